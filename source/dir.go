// Package source reads frames for the detection pipeline.
package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
)

// FrameSource yields frames until io.EOF.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

// IsImage reports whether path has an image extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// Retry policy for followed files that cannot be decoded yet, such as a
// frame whose writer has not finished.
const (
	retryDelay  = 50 * time.Millisecond
	maxAttempts = 5
)

// Dir reads the images of a directory as an image sequence in lexical
// order. When following, images created after the initial listing are
// read as they appear until the context is cancelled.
type Dir struct {
	path     string
	pending  []string
	retry    []string
	attempts map[string]int
	seen     map[string]bool
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	open     func(path string) (image.Image, error)
}

// OpenDir lists path and, if follow is set, starts watching it.
func OpenDir(path string, follow bool, logger *slog.Logger) (*Dir, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dir{
		path:     path,
		attempts: make(map[string]int),
		seen:     make(map[string]bool),
		logger:   logger,
		open:     func(p string) (image.Image, error) { return imaging.Open(p) },
	}

	if follow {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
		if err := w.Add(path); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
		d.watcher = w
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("read frames directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		p := filepath.Join(path, e.Name())
		d.pending = append(d.pending, p)
		d.seen[p] = true
	}
	sort.Strings(d.pending)
	return d, nil
}

// Next returns the next frame. Files that cannot be decoded are skipped
// with a warning. When following, they are first retried a few times.
func (d *Dir) Next(ctx context.Context) (image.Image, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(d.pending) == 0 {
			if d.watcher == nil {
				return nil, io.EOF
			}
			if err := d.wait(ctx); err != nil {
				return nil, err
			}
			continue
		}

		p := d.pending[0]
		d.pending = d.pending[1:]
		img, err := d.open(p)
		if err != nil {
			if d.watcher != nil && d.attempts[p] < maxAttempts {
				d.attempts[p]++
				d.retry = append(d.retry, p)
				d.logger.Debug("Frame not readable yet.", "path", p, "attempt", d.attempts[p], "error", err)
				continue
			}
			d.logger.Warn("Skipping unreadable frame.", "path", p, "error", err)
			if d.watcher != nil {
				// A later write makes the file eligible again.
				delete(d.seen, p)
				delete(d.attempts, p)
			}
			continue
		}
		delete(d.attempts, p)
		return img, nil
	}
}

// wait blocks until the watcher reports at least one new image or files
// waiting for a retry are due.
func (d *Dir) wait(ctx context.Context) error {
	var due <-chan time.Time
	if len(d.retry) > 0 {
		t := time.NewTimer(retryDelay)
		defer t.Stop()
		due = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-due:
			d.pending = append(d.pending, d.retry...)
			d.retry = nil
			return nil
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return io.EOF
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !IsImage(ev.Name) || d.seen[ev.Name] {
				continue
			}
			d.seen[ev.Name] = true
			d.pending = append(d.pending, ev.Name)
			return nil
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return io.EOF
			}
			return fmt.Errorf("watch %s: %w", d.path, err)
		}
	}
}

// Close stops watching.
func (d *Dir) Close() error {
	if d.watcher != nil {
		return d.watcher.Close()
	}
	return nil
}
