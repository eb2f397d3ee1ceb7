// Package migrate bulk-discovers file-store artifacts under a folder tree and
// rewrites them into the database representation.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/fragments"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/naming"
	"github.com/mweide/shadowtwin/internal/parser"
	"github.com/mweide/shadowtwin/internal/storage"
	"github.com/mweide/shadowtwin/internal/twin"
)

// Defensive limits on the folder walk, independent of the caller's limit.
const (
	maxWalkDepth = 32
	maxWalkFiles = 50000
)

const defaultWorkers = 4

// Notifier receives progress events (for the SSE stream). May be nil.
type Notifier func(event string, data any)

// Engine runs migrations. Each source is independent; the per-source loop
// runs on a bounded worker pool to respect database and object-storage rate
// limits.
type Engine struct {
	cfg      twin.LibraryConfig
	files    storage.Provider
	svc      *twin.Service
	uploader *fragments.Uploader
	runs     twin.RunStore
	logger   *slog.Logger
	workers  int
	notify   Notifier
}

// New creates a migration engine. workers <= 0 selects the default pool size.
func New(cfg twin.LibraryConfig, files storage.Provider, svc *twin.Service, uploader *fragments.Uploader, runs twin.RunStore, logger *slog.Logger, workers int, notify Notifier) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Engine{
		cfg:      cfg,
		files:    files,
		svc:      svc,
		uploader: uploader,
		runs:     runs,
		logger:   logger,
		workers:  workers,
		notify:   notify,
	}
}

type sourceResult struct {
	sourceID       string
	artifactsFound int
	upserted       int
	deleted        int
	foldersDeleted int
	err            error
}

func (e *Engine) newRun(params models.MigrationParams) *models.MigrationRun {
	return &models.MigrationRun{
		RunID:     uuid.NewString(),
		LibraryID: e.cfg.LibraryID,
		Params:    params,
		Status:    models.MigrationRunning,
		StartedAt: time.Now().UTC(),
		Report:    models.MigrationReport{Errors: []models.MigrationError{}},
	}
}

// Run executes one migration synchronously. Per-source failures are recorded
// in the report and processing continues; a failure before or after the
// per-source loop marks the run failed.
func (e *Engine) Run(ctx context.Context, params models.MigrationParams) (*models.MigrationRun, error) {
	run := e.newRun(params)
	if err := e.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, e.execute(ctx, run)
}

// Start creates the run record and executes the migration in the background,
// detached from the caller's request context. The returned run id can be
// polled through the run store.
func (e *Engine) Start(ctx context.Context, params models.MigrationParams) (string, error) {
	run := e.newRun(params)
	if err := e.runs.Create(ctx, run); err != nil {
		return "", err
	}
	go func() {
		if err := e.execute(context.WithoutCancel(ctx), run); err != nil {
			e.logger.Error("migrate: background run failed",
				slog.String("run", run.RunID), slog.String("error", err.Error()))
		}
	}()
	return run.RunID, nil
}

func (e *Engine) execute(ctx context.Context, run *models.MigrationRun) error {
	params := run.Params
	sources, err := e.enumerate(ctx, params)
	if err != nil {
		e.fail(ctx, run, fmt.Sprintf("scan failed: %v", err))
		return err
	}
	if params.Limit > 0 && len(sources) > params.Limit {
		sources = sources[:params.Limit]
	}
	run.Report.SourcesScanned = len(sources)
	e.step(ctx, run, fmt.Sprintf("scan complete: %d candidate sources", len(sources)))

	results := e.processAll(ctx, sources, params)
	for _, res := range results {
		run.Report.ArtifactsFound += res.artifactsFound
		run.Report.ArtifactsUpserted += res.upserted
		run.Report.ArtifactsDeleted += res.deleted
		run.Report.FoldersDeleted += res.foldersDeleted
		if res.err != nil {
			run.Report.Errors = append(run.Report.Errors, models.MigrationError{
				SourceID: res.sourceID,
				Message:  res.err.Error(),
			})
			e.step(ctx, run, fmt.Sprintf("source %s failed: %v", res.sourceID, res.err))
			continue
		}
		if res.artifactsFound > 0 {
			e.step(ctx, run, fmt.Sprintf("source %s: %d artifacts, %d upserted", res.sourceID, res.artifactsFound, res.upserted))
		}
	}

	run.Status = models.MigrationCompleted
	e.step(ctx, run, "migration complete")
	if err := e.runs.Finalize(ctx, run.RunID, run.Status, run.Report); err != nil {
		return err
	}
	if e.notify != nil {
		e.notify("migration-finished", run.Report)
	}
	return nil
}

func (e *Engine) step(ctx context.Context, run *models.MigrationRun, msg string) {
	run.Steps = append(run.Steps, models.MigrationStep{At: time.Now().UTC(), Message: msg})
	if err := e.runs.AppendStep(ctx, run.RunID, msg); err != nil {
		e.logger.Warn("migrate: append step failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) fail(ctx context.Context, run *models.MigrationRun, msg string) {
	e.step(ctx, run, msg)
	run.Status = models.MigrationFailed
	if err := e.runs.Finalize(ctx, run.RunID, run.Status, run.Report); err != nil {
		e.logger.Warn("migrate: finalize failed", slog.String("error", err.Error()))
	}
}

// enumerate walks the folder tree breadth-first collecting candidate source
// files. Companion folders (dot-prefixed) are handled per source, not walked.
func (e *Engine) enumerate(ctx context.Context, params models.MigrationParams) ([]storage.File, error) {
	type item struct {
		folderID string
		depth    int
	}
	queue := []item{{folderID: params.RootFolderID}}
	var out []storage.File

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]

		children, err := e.files.List(ctx, cur.folderID)
		if err != nil {
			return nil, fmt.Errorf("migrate: list %s: %w", cur.folderID, err)
		}
		for _, f := range children {
			if f.IsFolder {
				if !params.Recursive || strings.HasPrefix(f.Name, ".") {
					continue
				}
				if cur.depth+1 > maxWalkDepth {
					return nil, fmt.Errorf("migrate: folder tree exceeds max depth %d", maxWalkDepth)
				}
				queue = append(queue, item{folderID: f.ID, depth: cur.depth + 1})
				continue
			}
			out = append(out, f)
			if len(out) > maxWalkFiles {
				return nil, fmt.Errorf("migrate: folder tree exceeds max file count %d", maxWalkFiles)
			}
		}
	}
	return out, nil
}

// processAll fans sources out to the worker pool and collects results.
func (e *Engine) processAll(ctx context.Context, sources []storage.File, params models.MigrationParams) []sourceResult {
	jobs := make(chan storage.File, len(sources))
	for _, s := range sources {
		jobs <- s
	}
	close(jobs)

	resultsCh := make(chan sourceResult, len(sources))
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				if err := ctx.Err(); err != nil {
					resultsCh <- sourceResult{sourceID: src.ID, err: err}
					continue
				}
				res := e.processSource(ctx, src, params)
				if e.notify != nil {
					e.notify("migration-source", map[string]any{
						"sourceId": res.sourceID,
						"upserted": res.upserted,
					})
				}
				resultsCh <- res
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	results := make([]sourceResult, 0, len(sources))
	for res := range resultsCh {
		results = append(results, res)
	}
	return results
}

// candidate is one artifact file matched to a semantic key.
type candidate struct {
	file      storage.File
	decoded   naming.Decoded
	companion bool
}

func (e *Engine) processSource(ctx context.Context, src storage.File, params models.MigrationParams) sourceResult {
	res := sourceResult{sourceID: src.ID}

	companionID, companionFiles, err := e.companionContents(ctx, src)
	if err != nil {
		res.err = err
		return res
	}
	siblings, err := e.files.List(ctx, src.ParentID)
	if err != nil {
		res.err = fmt.Errorf("list siblings: %w", err)
		return res
	}

	// Dedupe candidates by semantic key; companion-folder entries win over
	// siblings, matching the resolver's precedence.
	byKey := make(map[models.ArtifactKey]candidate)
	var order []models.ArtifactKey
	collect := func(files []storage.File, companion bool) {
		for _, f := range files {
			if f.IsFolder || f.ID == src.ID {
				continue
			}
			d, ok := naming.Decode(f.Name, src.Name)
			if !ok || d.Kind == models.KindRaw {
				continue
			}
			key := d.Key(src.ID)
			if _, exists := byKey[key]; exists {
				continue
			}
			byKey[key] = candidate{file: f, decoded: d, companion: companion}
			order = append(order, key)
		}
	}
	collect(companionFiles, true)
	collect(siblings, false)

	res.artifactsFound = len(order)
	if len(order) == 0 {
		return res
	}

	refs := e.referenceFragments(companionFiles)

	for _, key := range order {
		cand := byKey[key]
		if err := e.migrateArtifact(ctx, src, cand, companionFiles, refs, params, &res); err != nil {
			res.err = err
			return res
		}
	}

	if params.CleanupFilesystem && !params.DryRun && companionID != "" {
		if err := e.files.DeleteFolder(ctx, companionID); err != nil {
			e.logger.Warn("migrate: companion cleanup failed",
				slog.String("folder", companionID), slog.String("error", err.Error()))
		} else {
			res.foldersDeleted++
		}
	}

	return res
}

func (e *Engine) companionContents(ctx context.Context, src storage.File) (string, []storage.File, error) {
	folder, err := e.files.Child(ctx, src.ParentID, naming.CompanionFolderName(src.Name))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("companion lookup: %w", err)
	}
	if !folder.IsFolder {
		return "", nil, nil
	}
	files, err := e.files.List(ctx, folder.ID)
	if err != nil {
		return "", nil, fmt.Errorf("list companion folder: %w", err)
	}
	return folder.ID, files, nil
}

// referenceFragments records non-image, non-markdown companion files (audio,
// video, other binaries) as reference-only fragments.
func (e *Engine) referenceFragments(companionFiles []storage.File) []models.BinaryFragment {
	var out []models.BinaryFragment
	for _, f := range companionFiles {
		if f.IsFolder {
			continue
		}
		switch kind := fragments.Classify(f.Name); kind {
		case models.FragmentAudio, models.FragmentVideo, models.FragmentBinary:
			out = append(out, fragments.Reference(f, kind))
		}
	}
	return out
}

func (e *Engine) migrateArtifact(ctx context.Context, src storage.File, cand candidate, companionFiles []storage.File, refs []models.BinaryFragment, params models.MigrationParams, res *sourceResult) error {
	data, err := e.files.Read(ctx, cand.file.ID)
	if err != nil {
		return fmt.Errorf("read %s: %w", cand.file.ID, err)
	}

	key := cand.decoded.Key(src.ID)
	markdown := string(data)
	frags := refs

	if !params.DryRun {
		parsed := parser.Parse(data)
		out, err := e.uploader.Process(ctx, fragments.Input{
			LibraryID:   e.cfg.LibraryID,
			SourceID:    src.ID,
			Markdown:    markdown,
			Frontmatter: parsed.Frontmatter,
			Lookup:      lookupIn(e.files, companionFiles),
		})
		if err != nil {
			return fmt.Errorf("process fragments for %s: %w", key, err)
		}
		markdown = out.Markdown
		frags = append(out.Fragments, refs...)

		if _, err := e.svc.UpsertArtifact(ctx, twin.UpsertInput{
			SourceID:   src.ID,
			SourceName: src.Name,
			ParentID:   src.ParentID,
			Key:        key,
			Markdown:   markdown,
			Fragments:  frags,
		}); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
		res.upserted++

		if params.CleanupFilesystem {
			if err := e.files.Delete(ctx, cand.file.ID); err != nil {
				e.logger.Warn("migrate: artifact cleanup failed",
					slog.String("file", cand.file.ID), slog.String("error", err.Error()))
			} else {
				res.deleted++
			}
		}
	}

	return nil
}

// lookupIn resolves fragment references against the companion folder listing.
func lookupIn(files storage.Provider, companionFiles []storage.File) fragments.FileLookup {
	return func(ctx context.Context, name string) (storage.File, []byte, error) {
		for _, f := range companionFiles {
			if f.IsFolder || f.Name != name {
				continue
			}
			data, err := files.Read(ctx, f.ID)
			if err != nil {
				return storage.File{}, nil, err
			}
			return f, data, nil
		}
		return storage.File{}, nil, apperr.ErrNotFound
	}
}
