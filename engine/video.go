package engine

import (
	"context"
	"fmt"
	"image"
	"io"
	"runtime"

	"gocv.io/x/gocv"

	"github.com/lon9/car_detection_tutorial/pipeline"
)

// CameraInput is the input value that selects a capture device.
const CameraInput = "cam"

// Capture reads frames from a video file or a camera.
type Capture struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

// OpenCapture opens input, or camera cameraID when input is "cam".
func OpenCapture(input string, cameraID int) (*Capture, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if input == CameraInput {
		vc, err = gocv.OpenVideoCapture(cameraID)
	} else {
		vc, err = gocv.VideoCaptureFile(input)
	}
	if err != nil {
		return nil, fmt.Errorf("open input %q: %w", input, err)
	}
	return &Capture{vc: vc, mat: gocv.NewMat()}, nil
}

// Next implements source.FrameSource.
func (c *Capture) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.vc.Read(&c.mat) || c.mat.Empty() {
		return nil, io.EOF
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close releases the capture.
func (c *Capture) Close() error {
	c.mat.Close()
	return c.vc.Close()
}

// escKey stops the display loop.
const escKey = 27

// Window shows rendered frames. It implements pipeline.Sink. All highgui
// calls happen on the goroutine that calls Run.
type Window struct {
	title string
	loop  *pipeline.Loop
	win   *gocv.Window
}

// NewWindow prepares a display window. It is opened by Run.
func NewWindow(title string) *Window {
	return &Window{title: title, loop: pipeline.NewLoop()}
}

// Run opens the window and serves it until Close. On macOS the caller
// must be the main goroutine with its OS thread locked.
func (w *Window) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w.win = gocv.NewWindow(w.title)
	defer w.win.Close()
	w.loop.Run()
}

// Consume shows a frame and returns pipeline.ErrStop when Esc is pressed.
func (w *Window) Consume(_ context.Context, r pipeline.Result) error {
	m, err := gocv.ImageToMatRGB(r.Rendered)
	if err != nil {
		return fmt.Errorf("convert frame %d: %w", r.Index, err)
	}
	defer m.Close()

	var key int
	if err := w.loop.Do(func() {
		w.win.IMShow(m)
		key = w.win.WaitKey(1)
	}); err != nil {
		return fmt.Errorf("show frame %d: %w", r.Index, err)
	}
	if key == escKey {
		return pipeline.ErrStop
	}
	return nil
}

// WaitKey blocks until a key is pressed.
func (w *Window) WaitKey() {
	_ = w.loop.Do(func() { w.win.WaitKey(0) })
}

// Close makes Run return, which closes the window.
func (w *Window) Close() error {
	w.loop.Close()
	return nil
}
