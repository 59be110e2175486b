package detection

import (
	"context"
	"fmt"
	"image"
	"io"
)

// Detector runs the vehicle and license-plate detection network.
type Detector struct {
	Net       Network
	InputSize image.Point
	Batch     int
	Threshold float64

	// Raw receives every output row when set.
	Raw io.Writer
}

// Detect runs one request over frames, at most Batch of them, and returns
// the objects of each frame. A short batch is padded.
func (d *Detector) Detect(ctx context.Context, frames []image.Image) ([][]Object, error) {
	if len(frames) > d.Batch && d.Batch > 0 {
		return nil, fmt.Errorf("detection: %d frames exceed batch size %d", len(frames), d.Batch)
	}
	sizes := make([]image.Point, len(frames))
	for i, f := range frames {
		sizes[i] = f.Bounds().Size()
	}

	res, err := d.Net.Infer(ctx, Pack(frames, d.InputSize, d.Batch))
	if err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("detection: network returned no outputs")
	}

	objs, err := Decode(res[0], sizes, d.Threshold, d.Raw)
	if err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}
	// Frame coordinates are relative to the frame origin.
	for i, f := range frames {
		origin := f.Bounds().Min
		for j := range objs[i] {
			objs[i][j].Box = objs[i][j].Box.Add(origin)
		}
	}
	return objs, nil
}
