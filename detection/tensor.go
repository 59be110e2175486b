package detection

import (
	"image"

	"github.com/nfnt/resize"
)

// Pack resizes images to size and packs them into an NCHW blob of batch
// slots with planar BGR channels in the 0..255 range. Slots beyond
// len(images) stay zero.
func Pack(images []image.Image, size image.Point, batch int) Blob {
	if batch < len(images) {
		batch = len(images)
	}
	w, h := size.X, size.Y
	blob := NewBlob(batch, 3, h, w)
	plane := w * h

	for n, img := range images {
		b := img.Bounds()
		if b.Dx() != w || b.Dy() != h {
			img = resize.Resize(uint(w), uint(h), img, resize.Bilinear)
			b = img.Bounds()
		}
		base := n * 3 * plane
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				i := y*w + x
				blob.Data[base+i] = float32(bl >> 8)
				blob.Data[base+plane+i] = float32(g >> 8)
				blob.Data[base+2*plane+i] = float32(r >> 8)
			}
		}
	}
	return blob
}
