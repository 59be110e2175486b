package detection

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// CropROIs cuts every box out of frame and scales it to size. Boxes are
// clipped to the frame; a box outside the frame yields a blank image so
// the result stays aligned with boxes.
func CropROIs(frame image.Image, boxes []image.Rectangle, size image.Point) []image.Image {
	out := make([]image.Image, len(boxes))
	for i, box := range boxes {
		roi := box.Intersect(frame.Bounds())
		if roi.Empty() {
			out[i] = image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
			continue
		}
		crop := imaging.Crop(frame, roi)
		out[i] = resize.Resize(uint(size.X), uint(size.Y), crop, resize.Bilinear)
	}
	return out
}
