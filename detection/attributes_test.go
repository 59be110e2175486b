package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNet records the inputs it receives and answers with canned outputs.
type fakeNet struct {
	inputs  []Blob
	respond func(in Blob) ([]Blob, error)
}

func (f *fakeNet) Infer(_ context.Context, in Blob) ([]Blob, error) {
	f.inputs = append(f.inputs, in)
	return f.respond(in)
}

func (f *fakeNet) Close() error { return nil }

// regionNet is a fakeNet that also crops regions itself.
type regionNet struct {
	fakeNet
	regions [][]image.Rectangle
}

func (r *regionNet) InferRegions(_ context.Context, _ image.Image, rois []image.Rectangle, batch int) ([]Blob, error) {
	r.regions = append(r.regions, rois)
	return r.respond(NewBlob(batch, 3, 1, 1))
}

// attributeOutputs answers every slot with color index 3 (red) and type
// index 2 (truck).
func attributeOutputs(in Blob) ([]Blob, error) {
	n := in.Shape[0]
	c := NewBlob(n, len(Colors), 1, 1)
	ty := NewBlob(n, len(Types), 1, 1)
	for i := 0; i < n; i++ {
		c.Data[i*len(Colors)+3] = 0.9
		ty.Data[i*len(Types)+2] = 0.8
	}
	return []Blob{c, ty}, nil
}

func testFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	return img
}

func TestDecodeAttributes(t *testing.T) {
	t.Parallel()

	c := Blob{Shape: []int{2, 7}, Data: []float32{
		0.9, 0, 0, 0, 0, 0, 0.1,
		0, 0, 0, 0, 0, 0.2, 0.7,
	}}
	ty := Blob{Shape: []int{2, 4}, Data: []float32{
		0.1, 0.6, 0.2, 0.1,
		0, 0, 0, 1,
	}}

	got, err := DecodeAttributes(c, ty, 2)
	require.NoError(t, err)
	require.Equal(t, []Attributes{{Color: "white", Type: "van"}, {Color: "black", Type: "bus"}}, got)
	require.Equal(t, "white van", got[0].String())

	_, err = DecodeAttributes(c, ty, 3)
	require.Error(t, err)
}

func TestClassifier_PadsStaticBatches(t *testing.T) {
	t.Parallel()

	net := &fakeNet{respond: attributeOutputs}
	c := &Classifier{Net: net, InputSize: image.Pt(4, 4), Batch: 2}
	boxes := []image.Rectangle{
		image.Rect(0, 0, 8, 8),
		image.Rect(8, 8, 16, 16),
		image.Rect(2, 2, 10, 10),
	}

	got, err := c.Classify(context.Background(), testFrame(20, 20), boxes)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, a := range got {
		assert.Equal(t, Attributes{Color: "red", Type: "truck"}, a)
	}

	require.Len(t, net.inputs, 2)
	assert.Equal(t, []int{2, 3, 4, 4}, net.inputs[0].Shape)
	assert.Equal(t, []int{2, 3, 4, 4}, net.inputs[1].Shape, "short batch is padded")
}

func TestClassifier_DynamicBatch(t *testing.T) {
	t.Parallel()

	net := &fakeNet{respond: attributeOutputs}
	c := &Classifier{Net: net, InputSize: image.Pt(4, 4), Batch: 2, Dynamic: true}
	boxes := []image.Rectangle{image.Rect(0, 0, 8, 8), image.Rect(8, 8, 16, 16), image.Rect(2, 2, 10, 10)}

	_, err := c.Classify(context.Background(), testFrame(20, 20), boxes)
	require.NoError(t, err)

	require.Len(t, net.inputs, 2)
	assert.Equal(t, []int{1, 3, 4, 4}, net.inputs[1].Shape)
}

func TestClassifier_AutoResize(t *testing.T) {
	t.Parallel()

	net := &regionNet{fakeNet: fakeNet{respond: attributeOutputs}}
	boxes := []image.Rectangle{image.Rect(0, 0, 8, 8), image.Rect(8, 8, 16, 16)}

	c := &Classifier{Net: net, InputSize: image.Pt(4, 4), Batch: 4, AutoResize: true}
	got, err := c.Classify(context.Background(), testFrame(20, 20), boxes)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, [][]image.Rectangle{boxes}, net.regions)
	require.Empty(t, net.inputs)

	// Without the flag the same network gets packed crops.
	c.AutoResize = false
	_, err = c.Classify(context.Background(), testFrame(20, 20), boxes)
	require.NoError(t, err)
	require.Len(t, net.inputs, 1)
}

func TestClassifier_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := &Classifier{
		Net:       &fakeNet{respond: func(Blob) ([]Blob, error) { return nil, boom }},
		InputSize: image.Pt(2, 2),
		Batch:     1,
	}
	_, err := c.Classify(context.Background(), testFrame(4, 4), []image.Rectangle{image.Rect(0, 0, 2, 2)})
	require.ErrorIs(t, err, boom)

	c.Net = &fakeNet{respond: func(in Blob) ([]Blob, error) { return []Blob{in}, nil }}
	_, err = c.Classify(context.Background(), testFrame(4, 4), []image.Rectangle{image.Rect(0, 0, 2, 2)})
	require.Error(t, err)
}

func TestDetector(t *testing.T) {
	t.Parallel()

	net := &fakeNet{respond: func(in Blob) ([]Blob, error) {
		require.Equal(t, []int{3, 3, 8, 8}, in.Shape)
		return []Blob{ssd(
			[7]float32{0, 1, 0.9, 0, 0, 0.5, 0.5},
			[7]float32{1, 2, 0.8, 0.5, 0.5, 1, 1},
			[7]float32{2, 1, 0.9, 0, 0, 1, 1},
		)}, nil
	}}
	d := &Detector{Net: net, InputSize: image.Pt(8, 8), Batch: 3, Threshold: 0.5}

	shifted := testFrame(40, 40).SubImage(image.Rect(20, 20, 40, 40))
	got, err := d.Detect(context.Background(), []image.Image{testFrame(20, 10), shifted})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, image.Rect(0, 0, 10, 5), got[0][0].Box)
	require.Equal(t, image.Rect(30, 30, 40, 40), got[1][0].Box)

	_, err = d.Detect(context.Background(), make([]image.Image, 4))
	require.Error(t, err)
}
