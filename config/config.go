// Package config holds the settings that are read from the environment
// rather than from the command line.
//
// Every variable uses the CAR_DETECTION_ prefix. A .env file in the working
// directory, when present, is loaded first and never overrides variables
// that are already set.
package config

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "CAR_DETECTION_"

// Settings defines the environment driven configuration.
type Settings struct {
	LogLevel  string
	LogFormat string

	// CameraID selects the capture device when the input is "cam".
	CameraID int

	// DetectionInput and AttributesInput are the spatial input sizes of
	// the two networks.
	DetectionInput  image.Point
	AttributesInput image.Point

	// AttributesOutputs names the color and type output layers.
	AttributesOutputs []string

	// OutputDir receives annotated frames when set.
	OutputDir string

	// MetricsAddr serves the metrics registry over HTTP when set.
	MetricsAddr string

	// Follow keeps reading a frame directory for new images.
	Follow bool
}

// Default returns Settings with sensible defaults.
func Default() Settings {
	return Settings{
		LogLevel:          "info",
		LogFormat:         "text",
		DetectionInput:    image.Pt(300, 300),
		AttributesInput:   image.Pt(72, 72),
		AttributesOutputs: []string{"color", "type"},
	}
}

// LoadDotEnv loads path into the process environment. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
func (s *Settings) LoadFromEnv() error {
	if v := os.Getenv(Prefix + "LOG_LEVEL"); v != "" {
		s.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(Prefix + "LOG_FORMAT"); v != "" {
		s.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv(Prefix + "CAMERA_ID"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sCAMERA_ID: %w", Prefix, err)
		}
		s.CameraID = n
	}
	if v := os.Getenv(Prefix + "DETECTION_INPUT"); v != "" {
		p, err := ParseSize(v)
		if err != nil {
			return fmt.Errorf("parse %sDETECTION_INPUT: %w", Prefix, err)
		}
		s.DetectionInput = p
	}
	if v := os.Getenv(Prefix + "ATTRIBUTES_INPUT"); v != "" {
		p, err := ParseSize(v)
		if err != nil {
			return fmt.Errorf("parse %sATTRIBUTES_INPUT: %w", Prefix, err)
		}
		s.AttributesInput = p
	}
	if v := os.Getenv(Prefix + "ATTRIBUTES_OUTPUTS"); v != "" {
		var names []string
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		s.AttributesOutputs = names
	}
	if v := os.Getenv(Prefix + "OUTPUT_DIR"); v != "" {
		s.OutputDir = v
	}
	if v := os.Getenv(Prefix + "METRICS_ADDR"); v != "" {
		s.MetricsAddr = v
	}
	if v := os.Getenv(Prefix + "FOLLOW"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sFOLLOW: %w", Prefix, err)
		}
		s.Follow = b
	}
	return nil
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", s.LogLevel)
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return fmt.Errorf("config: invalid log format %q: must be 'text' or 'json'", s.LogFormat)
	}
	if s.CameraID < 0 {
		return errors.New("config: camera id must not be negative")
	}
	if s.DetectionInput.X <= 0 || s.DetectionInput.Y <= 0 {
		return errors.New("config: detection input size must be positive")
	}
	if s.AttributesInput.X <= 0 || s.AttributesInput.Y <= 0 {
		return errors.New("config: attributes input size must be positive")
	}
	if len(s.AttributesOutputs) != 2 {
		return fmt.Errorf("config: attributes outputs must name the color and type layers, got %d names", len(s.AttributesOutputs))
	}
	return nil
}

// ParseSize parses a WIDTHxHEIGHT string such as "300x300".
func ParseSize(v string) (image.Point, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(v)), "x")
	if !ok {
		return image.Point{}, fmt.Errorf("size %q: want WIDTHxHEIGHT", v)
	}
	x, err := strconv.Atoi(w)
	if err != nil {
		return image.Point{}, fmt.Errorf("size %q: %w", v, err)
	}
	y, err := strconv.Atoi(h)
	if err != nil {
		return image.Point{}, fmt.Errorf("size %q: %w", v, err)
	}
	if x <= 0 || y <= 0 {
		return image.Point{}, fmt.Errorf("size %q: dimensions must be positive", v)
	}
	return image.Pt(x, y), nil
}
