// Package engine binds the detection pipeline to OpenCV through gocv: the
// DNN module runs the networks on its OpenVINO backend, videoio reads
// frames and highgui shows them.
package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/lon9/car_detection_tutorial/detection"
)

// extraPluginPathEnv is read by OpenCV's OpenVINO backend when it loads
// device plugins.
const extraPluginPathEnv = "OPENCV_DNN_IE_EXTRA_PLUGIN_PATH"

// ConfigureExtensions makes custom layer libraries visible to the backend.
// It must run before the first network is read.
func ConfigureExtensions(cpuLibrary, gpuKernels string, logger *slog.Logger) error {
	if cpuLibrary != "" {
		if _, err := os.Stat(cpuLibrary); err != nil {
			return fmt.Errorf("custom CPU library: %w", err)
		}
		if err := os.Setenv(extraPluginPathEnv, filepath.Dir(cpuLibrary)); err != nil {
			return err
		}
		logger.Info("CPU extension loaded.", "path", cpuLibrary)
	}
	if gpuKernels != "" {
		if _, err := os.Stat(gpuKernels); err != nil {
			return fmt.Errorf("custom GPU kernels: %w", err)
		}
		logger.Warn("Custom GPU kernels are not supported by the OpenCV backend, ignoring.", "path", gpuKernels)
	}
	return nil
}

// NetworkConfig describes one network to load.
type NetworkConfig struct {
	// Model is the .xml topology; the .bin weights sit next to it.
	Model  string
	Device detection.Device

	// Outputs are the layers to read, in order. Empty reads the default
	// output.
	Outputs []string

	// InputSize is used when the network crops regions itself.
	InputSize image.Point
}

// Network is a gocv DNN network. It implements detection.RegionNetwork.
type Network struct {
	net     gocv.Net
	outputs []string
	size    image.Point
}

// ReadNetwork loads and configures a network for its target device.
func ReadNetwork(cfg NetworkConfig) (*Network, error) {
	weights := strings.TrimSuffix(cfg.Model, filepath.Ext(cfg.Model)) + ".bin"
	net := gocv.ReadNet(cfg.Model, weights)
	if net.Empty() {
		return nil, fmt.Errorf("read network %s: no layers loaded", cfg.Model)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendOpenVINO); err != nil {
		net.Close()
		return nil, fmt.Errorf("network %s: set backend: %w", cfg.Model, err)
	}
	if err := net.SetPreferableTarget(target(cfg.Device)); err != nil {
		net.Close()
		return nil, fmt.Errorf("network %s: set target %s: %w", cfg.Model, cfg.Device, err)
	}
	return &Network{net: net, outputs: cfg.Outputs, size: cfg.InputSize}, nil
}

func target(d detection.Device) gocv.NetTargetType {
	switch d.Name {
	case "GPU":
		return gocv.NetTargetFP16
	case "MYRIAD":
		return gocv.NetTargetVPU
	case "FPGA":
		return gocv.NetTargetFPGA
	default:
		return gocv.NetTargetCPU
	}
}

// Infer implements detection.Network.
func (n *Network) Infer(ctx context.Context, in detection.Blob) ([]detection.Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, err := gocv.NewMatWithSizesFromBytes(in.Shape, gocv.MatTypeCV32F, float32Bytes(in.Data))
	if err != nil {
		return nil, fmt.Errorf("input blob: %w", err)
	}
	defer blob.Close()
	return n.forward(blob)
}

// InferRegions implements detection.RegionNetwork. Each region is cropped
// and resized by OpenCV and run on its own; slots past len(rois) are left
// zero.
func (n *Network) InferRegions(ctx context.Context, frame image.Image, rois []image.Rectangle, batch int) ([]detection.Blob, error) {
	src, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer src.Close()

	origin := frame.Bounds().Min
	bounds := image.Rect(0, 0, src.Cols(), src.Rows())

	var merged []detection.Blob
	for i, roi := range rois {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := roi.Sub(origin).Intersect(bounds)
		if r.Empty() {
			return nil, fmt.Errorf("region %v outside frame", roi)
		}
		region := src.Region(r)
		blob := gocv.BlobFromImage(region, 1.0, n.size, gocv.NewScalar(0, 0, 0, 0), false, false)
		region.Close()
		outs, err := n.forward(blob)
		blob.Close()
		if err != nil {
			return nil, err
		}

		if merged == nil {
			merged = make([]detection.Blob, len(outs))
			for k, o := range outs {
				shape := append([]int{batch}, o.Shape[1:]...)
				merged[k] = detection.NewBlob(shape...)
			}
		}
		for k, o := range outs {
			copy(merged[k].Data[i*len(o.Data):], o.Data)
		}
	}
	return merged, nil
}

func (n *Network) forward(input gocv.Mat) ([]detection.Blob, error) {
	n.net.SetInput(input, "")

	var outs []gocv.Mat
	if len(n.outputs) == 0 {
		outs = []gocv.Mat{n.net.Forward("")}
	} else {
		outs = n.net.ForwardLayers(n.outputs)
	}
	defer func() {
		for _, m := range outs {
			m.Close()
		}
	}()

	res := make([]detection.Blob, len(outs))
	for i, m := range outs {
		data, err := m.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		res[i] = detection.Blob{Shape: m.Size(), Data: append([]float32(nil), data...)}
	}
	return res, nil
}

// Close implements detection.Network.
func (n *Network) Close() error {
	return n.net.Close()
}

func float32Bytes(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}
