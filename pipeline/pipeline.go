// Package pipeline runs frames through detection and attribute networks
// with a bounded number of outstanding requests and delivers the results
// in frame order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lon9/car_detection_tutorial/detection"
	"github.com/lon9/car_detection_tutorial/source"
)

// ErrStop is returned by a Sink to end the run early without an error.
var ErrStop = errors.New("pipeline: stop requested")

// Result is one processed frame.
type Result struct {
	Index    int
	Frame    image.Image
	Objects  []detection.Object
	Rendered *image.RGBA
}

// Sink consumes results in frame order.
type Sink interface {
	Consume(ctx context.Context, r Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Result) error

func (f SinkFunc) Consume(ctx context.Context, r Result) error { return f(ctx, r) }

// Worker owns the networks of one outstanding request slot.
type Worker struct {
	Detector   *detection.Detector
	Classifier *detection.Classifier
}

// Close releases the networks.
func (w *Worker) Close() error {
	var errs []error
	if w.Detector != nil && w.Detector.Net != nil {
		errs = append(errs, w.Detector.Net.Close())
	}
	if w.Classifier != nil && w.Classifier.Net != nil {
		errs = append(errs, w.Classifier.Net.Close())
	}
	return errors.Join(errs...)
}

func (w *Worker) process(ctx context.Context, frames []image.Image, m *Metrics) ([][]detection.Object, error) {
	start := time.Now()
	objs, err := w.Detector.Detect(ctx, frames)
	if err != nil {
		return nil, err
	}
	m.Observe(StageDetection, start)

	if w.Classifier == nil {
		return objs, nil
	}
	start = time.Now()
	for i, frame := range frames {
		var (
			boxes []image.Rectangle
			idx   []int
		)
		for j, o := range objs[i] {
			if o.Label == detection.LabelVehicle {
				boxes = append(boxes, o.Box)
				idx = append(idx, j)
			}
		}
		if len(boxes) == 0 {
			continue
		}
		attrs, err := w.Classifier.Classify(ctx, frame, boxes)
		if err != nil {
			return nil, err
		}
		for k, j := range idx {
			objs[i][j].Attributes = &attrs[k]
		}
	}
	m.Observe(StageAttributes, start)
	return objs, nil
}

// Stats summarizes a run.
type Stats struct {
	Frames  int
	Objects int
	Elapsed time.Duration
}

// FPS is the average throughput of the run.
func (s Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// Pipeline wires a frame source to workers and sinks.
type Pipeline struct {
	Source source.FrameSource

	// NewWorker creates the networks of request slot id.
	NewWorker func(id int) (*Worker, error)

	// Batch is the number of frames per detection request.
	Batch int

	// AsyncDepth is the maximum number of outstanding requests.
	AsyncDepth int

	Sinks   []Sink
	Metrics *Metrics
	Logger  *slog.Logger
}

type job struct {
	first  int
	frames []image.Image
	objs   [][]detection.Object
	err    error
	done   chan struct{}
}

// Run processes the source until it is exhausted, a sink returns ErrStop,
// the context is cancelled or a stage fails.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batch := max(p.Batch, 1)
	depth := max(p.AsyncDepth, 1)

	workers := make([]*Worker, 0, depth)
	defer func() {
		for _, w := range workers {
			if err := w.Close(); err != nil {
				logger.Warn("Failed to release worker.", "error", err)
			}
		}
	}()
	for i := 0; i < depth; i++ {
		w, err := p.NewWorker(i)
		if err != nil {
			return Stats{}, fmt.Errorf("create worker %d: %w", i, err)
		}
		workers = append(workers, w)
	}
	logger.Debug("Workers ready.", "count", depth, "batch", batch)

	var stats Stats
	started := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	slots := make(chan struct{}, depth)
	work := make(chan *job)
	ordered := make(chan *job, depth)

	g.Go(func() error {
		defer close(work)
		defer close(ordered)
		next := 0
		for {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}

			j := &job{first: next, done: make(chan struct{})}
			for len(j.frames) < batch {
				start := time.Now()
				img, err := p.Source.Next(ctx)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return fmt.Errorf("read frame %d: %w", next, err)
				}
				p.Metrics.Observe(StageDecode, start)
				j.frames = append(j.frames, img)
				next++
			}
			if len(j.frames) == 0 {
				return nil
			}

			ordered <- j
			select {
			case work <- j:
			case <-ctx.Done():
				return ctx.Err()
			}
			if len(j.frames) < batch {
				return nil
			}
		}
	})

	for _, w := range workers {
		w := w
		g.Go(func() error {
			for j := range work {
				j.objs, j.err = w.process(ctx, j.frames, p.Metrics)
				close(j.done)
			}
			return nil
		})
	}

	g.Go(func() error {
		for j := range ordered {
			select {
			case <-j.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			if j.err != nil {
				return fmt.Errorf("frames %d-%d: %w", j.first, j.first+len(j.frames)-1, j.err)
			}
			for i, frame := range j.frames {
				if err := p.deliver(ctx, j.first+i, frame, j.objs[i]); err != nil {
					return err
				}
				stats.Frames++
				stats.Objects += len(j.objs[i])
				p.Metrics.count(j.objs[i])
			}
			<-slots
		}
		return nil
	})

	err := g.Wait()
	stats.Elapsed = time.Since(started)
	if errors.Is(err, ErrStop) {
		logger.Info("Stopped by request.", "frames", stats.Frames)
		err = nil
	}
	return stats, err
}

func (p *Pipeline) deliver(ctx context.Context, index int, frame image.Image, objs []detection.Object) error {
	if len(p.Sinks) == 0 {
		return nil
	}

	start := time.Now()
	r := Result{Index: index, Frame: frame, Objects: objs, Rendered: detection.Render(frame, objs)}
	p.Metrics.Observe(StageRender, start)

	start = time.Now()
	for _, s := range p.Sinks {
		if err := s.Consume(ctx, r); err != nil {
			return err
		}
	}
	p.Metrics.Observe(StageOutput, start)
	return nil
}
