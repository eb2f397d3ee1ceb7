// Package fragments extracts embedded binary content from artifact markdown,
// deduplicates it by content hash, and re-hosts it in object storage.
package fragments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/mweide/shadowtwin/internal/apperr"
	"github.com/mweide/shadowtwin/internal/checksum"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/storage"
)

// FileLookup resolves a referenced file name to its file-store entry and
// content. Implementations return apperr.ErrNotFound when the name does not
// resolve to a local file.
type FileLookup func(ctx context.Context, name string) (storage.File, []byte, error)

// Input describes one markdown processing request.
type Input struct {
	LibraryID   string
	SourceID    string
	Markdown    string
	Frontmatter models.Frontmatter
	Lookup      FileLookup
}

// Output is the rewritten markdown plus one fragment per distinct image.
type Output struct {
	Markdown  string
	Fragments []models.BinaryFragment
	// Uploaded counts objects actually uploaded (not reused by hash).
	Uploaded int
}

// Uploader rewrites embedded image references to content-addressed object
// URLs. With no object store configured it falls back to recording file-store
// ids and leaves the markdown untouched.
type Uploader struct {
	objects ObjectStore
	logger  *slog.Logger
}

// New creates an uploader. objects may be nil when no object-storage service
// is configured.
func New(objects ObjectStore, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{objects: objects, logger: logger}
}

// Scope returns the object-path scope segment for an artifact, chosen from
// the frontmatter detailViewType and defaulting to books.
func Scope(fm models.Frontmatter) string {
	switch strings.ToLower(fm.DetailViewType) {
	case "session", "sessions":
		return "sessions"
	default:
		return "books"
	}
}

// ObjectPath builds the deterministic content-addressed path for an image.
func ObjectPath(libraryID, scope, sourceID, hash, ext string) string {
	return path.Join(libraryID, scope, sourceID, hash+ext)
}

// Process scans in.Markdown for embedded image references, uploads or reuses
// each resolvable image, and rewrites the references. References that do not
// resolve to a local file are left as they are.
func (u *Uploader) Process(ctx context.Context, in Input) (*Output, error) {
	out := &Output{Markdown: in.Markdown}
	if in.Lookup == nil {
		return out, nil
	}
	scope := Scope(in.Frontmatter)

	for _, dest := range scanImageRefs(in.Markdown) {
		name := path.Base(dest)
		file, data, err := in.Lookup(ctx, name)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("fragments: read %s: %w", name, err)
		}

		hash := checksum.Sum(data)
		ext := strings.ToLower(path.Ext(name))
		frag := models.BinaryFragment{
			Name:        name,
			Kind:        models.FragmentImage,
			ContentHash: hash,
			MimeType:    mime.TypeByExtension(ext),
			SizeBytes:   int64(len(data)),
			CreatedAt:   time.Now().UTC(),
		}

		if u.objects == nil {
			// No object storage configured: reference the file store instead
			// and keep the markdown reference local.
			frag.LocalFileID = file.ID
			out.Fragments = append(out.Fragments, frag)
			continue
		}

		objectPath := ObjectPath(in.LibraryID, scope, in.SourceID, hash, ext)
		url, found, err := u.objects.Exists(ctx, objectPath)
		if err != nil {
			return nil, err
		}
		if !found {
			url, err = u.objects.Upload(ctx, objectPath, data, frag.MimeType)
			if err != nil {
				return nil, err
			}
			out.Uploaded++
			u.logger.Debug("fragments: uploaded image",
				slog.String("name", name), slog.String("path", objectPath))
		}

		frag.URL = url
		out.Markdown = rewriteImageRefs(out.Markdown, dest, url)
		out.Fragments = append(out.Fragments, frag)
	}

	return out, nil
}

// Reference records a non-image binary encountered during migration as a
// fragment without dedup or upload; audio and video are large and never
// embedded in the markdown body.
func Reference(file storage.File, kind models.FragmentKind) models.BinaryFragment {
	return models.BinaryFragment{
		Name:        file.Name,
		Kind:        kind,
		LocalFileID: file.ID,
		MimeType:    mime.TypeByExtension(strings.ToLower(path.Ext(file.Name))),
		SizeBytes:   file.SizeBytes,
		CreatedAt:   time.Now().UTC(),
	}
}

// Classify buckets a file name by extension into a fragment kind.
func Classify(name string) models.FragmentKind {
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		return models.FragmentMarkdown
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".bmp":
		return models.FragmentImage
	case ".mp3", ".wav", ".m4a", ".ogg", ".flac", ".aac":
		return models.FragmentAudio
	case ".mp4", ".mov", ".mkv", ".webm", ".avi":
		return models.FragmentVideo
	default:
		return models.FragmentBinary
	}
}
