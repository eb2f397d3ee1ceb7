// Package mirrorwatch watches the vault for edits to mirrored artifact files
// and feeds them back into the database through the sync path.
package mirrorwatch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mweide/shadowtwin/internal/naming"
	"github.com/mweide/shadowtwin/internal/storage"
)

// SyncFunc is called with the owning source of a changed mirrored file.
type SyncFunc func(ctx context.Context, sourceID, parentID string)

const debounce = 500 * time.Millisecond

// Watch starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled. Changed markdown files are mapped to
// their owning source document and handed to sync after a short debounce, so
// an editor's save burst triggers one pass.
//
// New directories created at runtime are automatically added to the watch
// list.
func Watch(ctx context.Context, files storage.Provider, vaultRoot string, sync SyncFunc, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("mirrorwatch: started", slog.String("root", vaultRoot))

	// pending maps sourceID to parentID for the next flush.
	pending := make(map[string]string)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("mirrorwatch: stopped")
			return nil

		case <-flushCh:
			for sourceID, parentID := range pending {
				sync(ctx, sourceID, parentID)
			}
			pending = make(map[string]string)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("mirrorwatch: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("mirrorwatch: watching new dir", slog.String("path", absPath))
					}
					continue
				}
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(absPath, ".md") {
				continue
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			fileID := filepath.ToSlash(rel)

			sourceID, parentID, found := owningSource(ctx, files, fileID)
			if !found {
				continue
			}
			logger.Debug("mirrorwatch: mirrored edit",
				slog.String("file", fileID), slog.String("source", sourceID))
			pending[sourceID] = parentID
			scheduleFlush()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("mirrorwatch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// owningSource maps a changed markdown file to the source document whose
// artifact it mirrors. Files inside a companion folder belong to the source
// the folder is named after; sibling files are decoded against each candidate
// source in the same folder.
func owningSource(ctx context.Context, files storage.Provider, fileID string) (sourceID, parentID string, found bool) {
	dir := path.Dir(fileID)
	if dir == "." {
		dir = ""
	}
	dirName := path.Base(dir)

	if strings.HasPrefix(dirName, ".") && dirName != "." && dirName != ".." {
		sourceName := strings.TrimPrefix(dirName, ".")
		grand := path.Dir(dir)
		if grand == "." {
			grand = ""
		}
		src, err := files.Child(ctx, grand, sourceName)
		if err != nil || src.IsFolder {
			return "", "", false
		}
		return src.ID, grand, true
	}

	fileName := path.Base(fileID)
	siblings, err := files.List(ctx, dir)
	if err != nil {
		return "", "", false
	}
	for _, sib := range siblings {
		if sib.IsFolder || sib.ID == fileID {
			continue
		}
		if _, ok := naming.Decode(fileName, sib.Name); ok {
			return sib.ID, dir, true
		}
	}
	return "", "", false
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
