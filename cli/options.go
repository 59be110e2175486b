package cli

import (
	"reflect"
	"strings"
)

// Options is option of the command.
type Options struct {
	Help           bool    `long:"h" description:"Print a usage message."`
	Input          string  `long:"i" value-name:"path" default:"cam" description:"Optional. Path to an video file. Default value is \"cam\" to work with camera."`
	Model          string  `long:"m" value-name:"path" description:"Required. Path to the Vehicle/License-Plate Detection model (.xml) file."`
	ModelVA        string  `long:"m_va" value-name:"path" description:"Optional. Path to the Vehicle Attributes model (.xml) file."`
	Device         string  `long:"d" value-name:"device" default:"CPU" description:"Specify the target device for Vehicle Detection (CPU, GPU, FPGA, MYRIAD, or HETERO)."`
	Batch          uint32  `long:"n" value-name:"num" default:"1" description:"Specify number of maximum simultaneously processed frames for Vehicle Detection ( default is 1)."`
	DeviceVA       string  `long:"d_va" value-name:"device" default:"CPU" description:"Specify the target device for Vehicle Attributes (CPU, GPU, FPGA, MYRIAD, or HETERO)."`
	BatchVA        uint32  `long:"n_va" value-name:"num" default:"1" description:"Specify number of maximum simultaneously processed vehicles for Vehicle Attributes Detection ( default is 1)."`
	DynamicBatchVA bool    `long:"dyn_va" description:"Enable dynamic batching for Vehicle Attributes Detection ( default is 0)."`
	AutoResize     bool    `long:"auto_resize" description:"Enable auto-resize (ROI crop & data resize) of input during inference."`
	PerfCounters   bool    `long:"pc" description:"Enables per-layer performance statistics."`
	CustomGPU      string  `long:"c" value-name:"absolute_path" description:"For clDNN (GPU)-targeted custom kernels, if any. Absolute path to the xml file with the kernels desc."`
	CustomCPU      string  `long:"l" value-name:"absolute_path" description:"For MKLDNN (CPU)-targeted custom layers, if any. Absolute path to a shared library with the kernels impl."`
	Raw            bool    `long:"r" description:"Output Inference results as raw values."`
	Threshold      float64 `long:"t" value-name:"num" default:"0.5" description:"Probability threshold for vehicle/licence-plate detections."`
	NoWait         bool    `long:"no_wait" description:"No wait for key press in the end."`
	NoShow         bool    `long:"no_show" description:"No show processed video."`
	AsyncDepth     uint32  `long:"n_async" value-name:"num" default:"1" description:"Maximum number of outstanding async API calls allowed (1=synchronous=default, >1=asynchronous)."`
}

// optionSpec is the static declaration of a single flag, read from the
// Options struct tags.
type optionSpec struct {
	Name        string
	ValueName   string
	Default     string
	Description string
	Bool        bool
}

// specs returns the flag declarations in field order.
func specs() []optionSpec {
	t := reflect.TypeOf(Options{})
	out := make([]optionSpec, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, ok := f.Tag.Lookup("long")
		if !ok {
			continue
		}
		out = append(out, optionSpec{
			Name:        name,
			ValueName:   f.Tag.Get("value-name"),
			Default:     f.Tag.Get("default"),
			Description: f.Tag.Get("description"),
			Bool:        f.Type.Kind() == reflect.Bool,
		})
	}
	return out
}

func specIndex() map[string]optionSpec {
	m := make(map[string]optionSpec)
	for _, s := range specs() {
		m[s.Name] = s
	}
	return m
}

// placeholder renders the argument placeholder the way the usage screen
// shows it, e.g. "<path>" in quotes. Boolean flags have none.
func (s optionSpec) placeholder() string {
	if s.ValueName == "" {
		return ""
	}
	return `"<` + strings.TrimSpace(s.ValueName) + `>"`
}
