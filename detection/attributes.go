package detection

import (
	"context"
	"fmt"
	"image"

	"gonum.org/v1/gonum/floats"
)

// Colors and Types are the classes of the vehicle attributes network, in
// output order.
var (
	Colors = []string{"white", "gray", "yellow", "red", "green", "blue", "black"}
	Types  = []string{"car", "van", "truck", "bus"}
)

// Attributes is the classification of one vehicle.
type Attributes struct {
	Color string
	Type  string
}

func (a Attributes) String() string {
	return a.Color + " " + a.Type
}

// DecodeAttributes reads the first n results of the color and type outputs.
func DecodeAttributes(color, typ Blob, n int) ([]Attributes, error) {
	if err := color.check(); err != nil {
		return nil, fmt.Errorf("color output: %w", err)
	}
	if err := typ.check(); err != nil {
		return nil, fmt.Errorf("type output: %w", err)
	}
	if len(color.Data) < n*len(Colors) {
		return nil, fmt.Errorf("color output has %d values, need %d", len(color.Data), n*len(Colors))
	}
	if len(typ.Data) < n*len(Types) {
		return nil, fmt.Errorf("type output has %d values, need %d", len(typ.Data), n*len(Types))
	}

	out := make([]Attributes, n)
	for i := range out {
		out[i] = Attributes{
			Color: Colors[argmax(color.Data[i*len(Colors):(i+1)*len(Colors)])],
			Type:  Types[argmax(typ.Data[i*len(Types):(i+1)*len(Types)])],
		}
	}
	return out, nil
}

func argmax(v []float32) int {
	f := make([]float64, len(v))
	for i, x := range v {
		f[i] = float64(x)
	}
	return floats.MaxIdx(f)
}

// Classifier runs the vehicle attributes network over vehicle boxes in
// batches.
type Classifier struct {
	Net       Network
	InputSize image.Point
	Batch     int

	// Dynamic submits a short last batch at its real size instead of
	// padding it to Batch.
	Dynamic bool

	// AutoResize lets a RegionNetwork crop and resize the boxes itself.
	AutoResize bool
}

// Classify returns the attributes of every box, in order.
func (c *Classifier) Classify(ctx context.Context, frame image.Image, boxes []image.Rectangle) ([]Attributes, error) {
	batch := c.Batch
	if batch < 1 {
		batch = 1
	}
	out := make([]Attributes, 0, len(boxes))

	for start := 0; start < len(boxes); start += batch {
		end := min(start+batch, len(boxes))
		chunk := boxes[start:end]
		slots := batch
		if c.Dynamic {
			slots = len(chunk)
		}

		var (
			res []Blob
			err error
		)
		if rn, ok := c.Net.(RegionNetwork); ok && c.AutoResize {
			res, err = rn.InferRegions(ctx, frame, chunk, slots)
		} else {
			res, err = c.Net.Infer(ctx, Pack(CropROIs(frame, chunk, c.InputSize), c.InputSize, slots))
		}
		if err != nil {
			return nil, fmt.Errorf("vehicle attributes: %w", err)
		}
		if len(res) < 2 {
			return nil, fmt.Errorf("vehicle attributes: expected 2 outputs, got %d", len(res))
		}

		attrs, err := DecodeAttributes(res[0], res[1], len(chunk))
		if err != nil {
			return nil, fmt.Errorf("vehicle attributes: %w", err)
		}
		out = append(out, attrs...)
	}
	return out, nil
}
