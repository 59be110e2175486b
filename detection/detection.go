// Package detection turns frames into network input tensors and network
// outputs into vehicle and license-plate detections with optional vehicle
// attributes. The inference itself is done by a Network supplied by the
// caller.
package detection

import (
	"context"
	"fmt"
	"image"
)

// Blob is a dense float32 tensor. Input blobs are NCHW.
type Blob struct {
	Shape []int
	Data  []float32
}

// NewBlob allocates a zeroed blob of the given shape.
func NewBlob(shape ...int) Blob {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Blob{Shape: append([]int(nil), shape...), Data: make([]float32, n)}
}

// Len is the number of elements the shape describes.
func (b Blob) Len() int {
	if len(b.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range b.Shape {
		n *= d
	}
	return n
}

func (b Blob) check() error {
	if b.Len() != len(b.Data) {
		return fmt.Errorf("blob shape %v holds %d elements, data has %d", b.Shape, b.Len(), len(b.Data))
	}
	return nil
}

// Network runs one inference request. Outputs are returned in the order the
// network was configured with. A Network is not safe for concurrent use.
type Network interface {
	Infer(ctx context.Context, input Blob) ([]Blob, error)
	Close() error
}

// RegionNetwork is implemented by networks that crop and resize regions of
// a frame themselves. batch is the number of slots the request must fill;
// it is never smaller than len(rois).
type RegionNetwork interface {
	Network
	InferRegions(ctx context.Context, frame image.Image, rois []image.Rectangle, batch int) ([]Blob, error)
}

// Label is the class a detection belongs to.
type Label int

const (
	LabelUnknown Label = 0
	LabelVehicle Label = 1
	LabelPlate   Label = 2
)

func (l Label) String() string {
	switch l {
	case LabelVehicle:
		return "vehicle"
	case LabelPlate:
		return "plate"
	default:
		return fmt.Sprintf("label(%d)", int(l))
	}
}

// Object is one detection in frame coordinates.
type Object struct {
	Label      Label
	Confidence float64
	Box        image.Rectangle

	// Attributes is set for vehicles once they are classified.
	Attributes *Attributes
}
