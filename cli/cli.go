// Package cli declares the command-line surface of car_detection_tutorial:
// the typed options with their defaults, the usage screen, and validation
// of the parsed values.
package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

// ExitError is an error that carries a process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// ExitUsage is the exit code for malformed command lines.
const ExitUsage = 2

// Upper bounds of the count flags. Each slot of a batch holds a full input
// tensor and each outstanding request its own pair of networks.
const (
	MaxBatch      = 1024
	MaxAsyncDepth = 64
)

// ErrModelNotSet is returned by Validate when -m is empty.
var ErrModelNotSet = errors.New("Parameter -m is not set")

// Parse processes command-line arguments. It returns the parsed options,
// whether the program should exit cleanly (help was requested), or an
// ExitError. Usage is written to output on -h and on parse errors.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	normalized, err := normalizeArgs(args)
	if err != nil {
		ShowUsage(output)
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	opts := &Options{}
	parser := flags.NewParser(opts, flags.PassDoubleDash)
	parser.Name = ProgramName
	rest, err := parser.ParseArgs(normalized)
	if err != nil {
		ShowUsage(output)
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	if opts.Help {
		ShowUsage(output)
		return nil, true, nil
	}
	if len(rest) > 0 {
		ShowUsage(output)
		return nil, false, &ExitError{Code: ExitUsage, Message: fmt.Sprintf("unexpected argument %q", rest[0])}
	}

	if err := opts.Validate(); err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return opts, false, nil
}

// Validate checks values the parser cannot check on its own.
func (o *Options) Validate() error {
	if o.Input == "" {
		return errors.New("Parameter -i is not set")
	}
	if o.Model == "" {
		return ErrModelNotSet
	}
	if o.Batch < 1 || o.Batch > MaxBatch {
		return fmt.Errorf("Parameter -n must be in [1, %d], got %d", MaxBatch, o.Batch)
	}
	if o.BatchVA < 1 || o.BatchVA > MaxBatch {
		return fmt.Errorf("Parameter -n_va must be in [1, %d], got %d", MaxBatch, o.BatchVA)
	}
	if o.AsyncDepth < 1 || o.AsyncDepth > MaxAsyncDepth {
		return fmt.Errorf("Parameter -n_async must be in [1, %d], got %d", MaxAsyncDepth, o.AsyncDepth)
	}
	// Written so that NaN fails too.
	if !(o.Threshold >= 0 && o.Threshold <= 1) {
		return fmt.Errorf("Parameter -t must be in [0, 1], got %g", o.Threshold)
	}
	if o.CustomCPU != "" && !filepath.IsAbs(o.CustomCPU) {
		return fmt.Errorf("Parameter -l must be an absolute path, got %q", o.CustomCPU)
	}
	if o.CustomGPU != "" && !filepath.IsAbs(o.CustomGPU) {
		return fmt.Errorf("Parameter -c must be an absolute path, got %q", o.CustomGPU)
	}
	return nil
}

// Default returns the options as they are before any argument is parsed.
func Default() *Options {
	opts := &Options{}
	if _, err := flags.NewParser(opts, flags.None).ParseArgs(nil); err != nil {
		panic(err)
	}
	return opts
}
