package detection

import (
	"fmt"
	"strings"
)

// Device is a parsed target device. Heterogeneous devices list the primary
// device first and the fallbacks after it.
type Device struct {
	Name      string
	Fallbacks []string
	Hetero    bool
}

var knownDevices = map[string]bool{
	"CPU":    true,
	"GPU":    true,
	"FPGA":   true,
	"MYRIAD": true,
}

// ParseDevice parses CPU, GPU, FPGA, MYRIAD or HETERO:<dev>,<dev>...
func ParseDevice(s string) (Device, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if list, ok := strings.CutPrefix(s, "HETERO:"); ok {
		var names []string
		for _, n := range strings.Split(list, ",") {
			n = strings.TrimSpace(n)
			if !knownDevices[n] {
				return Device{}, fmt.Errorf("unknown device %q in %q", n, s)
			}
			names = append(names, n)
		}
		return Device{Name: names[0], Fallbacks: names[1:], Hetero: true}, nil
	}
	if !knownDevices[s] {
		return Device{}, fmt.Errorf("unknown device %q", s)
	}
	return Device{Name: s}, nil
}

func (d Device) String() string {
	if !d.Hetero {
		return d.Name
	}
	return "HETERO:" + strings.Join(append([]string{d.Name}, d.Fallbacks...), ",")
}
