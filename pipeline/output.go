package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
)

// FrameWriter saves rendered frames as numbered PNG files.
type FrameWriter struct {
	Dir string
}

// NewFrameWriter creates dir if needed.
func NewFrameWriter(dir string) (*FrameWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &FrameWriter{Dir: dir}, nil
}

// Consume implements Sink.
func (w *FrameWriter) Consume(_ context.Context, r Result) error {
	path := filepath.Join(w.Dir, fmt.Sprintf("frame_%06d.png", r.Index))
	if err := imaging.Save(r.Rendered, path); err != nil {
		return fmt.Errorf("save frame %d: %w", r.Index, err)
	}
	return nil
}

// SyncWriter serializes writes from concurrent workers so raw output
// lines do not interleave.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
