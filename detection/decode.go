package detection

import (
	"fmt"
	"image"
	"io"
)

// detectionWidth is the length of one SSD output row:
// image_id, label, confidence, xmin, ymin, xmax, ymax.
const detectionWidth = 7

// Decode converts an SSD style output blob of shape [1, 1, N, 7] into
// objects per frame. frames holds the size of every frame of the batch;
// rows that refer to padding slots are ignored. Only rows whose confidence
// exceeds threshold are kept. A row with a negative image id ends the list.
//
// When raw is not nil every row is also written to it in text form.
func Decode(out Blob, frames []image.Point, threshold float64, raw io.Writer) ([][]Object, error) {
	if err := out.check(); err != nil {
		return nil, err
	}
	if len(out.Shape) == 0 || out.Shape[len(out.Shape)-1] != detectionWidth {
		return nil, fmt.Errorf("detection output shape %v: last dimension must be %d", out.Shape, detectionWidth)
	}

	result := make([][]Object, len(frames))
	rows := len(out.Data) / detectionWidth
	if rows == 0 {
		return result, nil
	}

	for i := 0; i < rows; i++ {
		r := out.Data[i*detectionWidth : (i+1)*detectionWidth]
		if r[0] < 0 {
			break
		}
		id := int(r[0])
		if id >= len(frames) {
			continue
		}

		size := frames[id]
		label := Label(int(r[1]))
		conf := float64(r[2])
		box := image.Rect(
			int(float64(r[3])*float64(size.X)),
			int(float64(r[4])*float64(size.Y)),
			int(float64(r[5])*float64(size.X)),
			int(float64(r[6])*float64(size.Y)),
		)
		keep := conf > threshold

		if raw != nil {
			suffix := ""
			if keep {
				suffix = " WILL BE RENDERED!"
			}
			fmt.Fprintf(raw, "[%d,%d] element, prob = %f    (%d,%d)-(%d,%d)%s\n",
				i, int(label), conf, box.Min.X, box.Min.Y, box.Max.X, box.Max.Y, suffix)
		}
		if !keep {
			continue
		}

		box = box.Intersect(image.Rect(0, 0, size.X, size.Y))
		if box.Empty() {
			continue
		}
		result[id] = append(result[id], Object{Label: label, Confidence: conf, Box: box})
	}
	return result, nil
}
