package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/xid"

	"github.com/lon9/car_detection_tutorial/cli"
	"github.com/lon9/car_detection_tutorial/config"
	"github.com/lon9/car_detection_tutorial/detection"
	"github.com/lon9/car_detection_tutorial/engine"
	"github.com/lon9/car_detection_tutorial/pipeline"
	"github.com/lon9/car_detection_tutorial/source"
)

// The display window is served from the main goroutine, which must stay on
// the main thread for highgui.
func init() {
	runtime.LockOSThread()
}

func main() {
	// Use a minimal logger until the settings are read.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(outW io.Writer, args []string) error {
	opts, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	settings := config.Default()
	if err := settings.LoadFromEnv(); err != nil {
		return &cli.ExitError{Code: cli.ExitUsage, Message: err.Error()}
	}
	if err := settings.Validate(); err != nil {
		return &cli.ExitError{Code: cli.ExitUsage, Message: err.Error()}
	}

	logger := newLogger(settings.LogLevel, settings.LogFormat, os.Stderr).With("run", xid.New().String())
	slog.SetDefault(logger)

	detDevice, err := detection.ParseDevice(opts.Device)
	if err != nil {
		return &cli.ExitError{Code: cli.ExitUsage, Message: "-d: " + err.Error()}
	}
	vaDevice, err := detection.ParseDevice(opts.DeviceVA)
	if err != nil {
		return &cli.ExitError{Code: cli.ExitUsage, Message: "-d_va: " + err.Error()}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.ConfigureExtensions(opts.CustomCPU, opts.CustomGPU, logger); err != nil {
		return err
	}

	logger.Info("Reading input.", "input", opts.Input)
	src, err := openSource(opts.Input, settings, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	metrics := pipeline.NewMetrics()
	if settings.MetricsAddr != "" {
		srv := &http.Server{Addr: settings.MetricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed.", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("Serving metrics.", "addr", settings.MetricsAddr)
	}

	var raw io.Writer
	if opts.Raw {
		raw = pipeline.NewSyncWriter(outW)
	}

	newWorker := func(id int) (*pipeline.Worker, error) {
		logger.Debug("Loading networks.", "worker", id, "device", detDevice.String())
		det, err := engine.ReadNetwork(engine.NetworkConfig{Model: opts.Model, Device: detDevice})
		if err != nil {
			return nil, err
		}
		w := &pipeline.Worker{Detector: &detection.Detector{
			Net:       det,
			InputSize: settings.DetectionInput,
			Batch:     int(opts.Batch),
			Threshold: opts.Threshold,
			Raw:       raw,
		}}
		if opts.ModelVA == "" {
			return w, nil
		}
		va, err := engine.ReadNetwork(engine.NetworkConfig{
			Model:     opts.ModelVA,
			Device:    vaDevice,
			Outputs:   settings.AttributesOutputs,
			InputSize: settings.AttributesInput,
		})
		if err != nil {
			det.Close()
			return nil, err
		}
		w.Classifier = &detection.Classifier{
			Net:        va,
			InputSize:  settings.AttributesInput,
			Batch:      int(opts.BatchVA),
			Dynamic:    opts.DynamicBatchVA,
			AutoResize: opts.AutoResize,
		}
		return w, nil
	}

	var (
		sinks  []pipeline.Sink
		window *engine.Window
	)
	if !opts.NoShow {
		window = engine.NewWindow("Detection results")
		defer window.Close()
		sinks = append(sinks, window)
	}
	if settings.OutputDir != "" {
		fw, err := pipeline.NewFrameWriter(settings.OutputDir)
		if err != nil {
			return err
		}
		sinks = append(sinks, fw)
	}

	p := &pipeline.Pipeline{
		Source:     src,
		NewWorker:  newWorker,
		Batch:      int(opts.Batch),
		AsyncDepth: int(opts.AsyncDepth),
		Sinks:      sinks,
		Metrics:    metrics,
		Logger:     logger,
	}
	execute := func() error {
		stats, err := p.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("Processing finished.",
			"frames", stats.Frames,
			"objects", stats.Objects,
			"elapsed", stats.Elapsed.Round(time.Millisecond),
			"fps", fmt.Sprintf("%.2f", stats.FPS()),
		)

		if opts.PerfCounters {
			if err := metrics.WriteReport(outW); err != nil {
				return err
			}
		}

		if window != nil && !opts.NoWait {
			fmt.Fprintln(outW, "Press any key to exit")
			window.WaitKey()
		}
		return nil
	}
	if window == nil {
		return execute()
	}

	errc := make(chan error, 1)
	go func() {
		defer window.Close()
		errc <- execute()
	}()
	window.Run()
	return <-errc
}

// openSource reads a directory of frames in pure Go and anything else,
// including the camera, through OpenCV.
func openSource(input string, settings config.Settings, logger *slog.Logger) (source.FrameSource, error) {
	if info, err := os.Stat(input); err == nil && info.IsDir() {
		return source.OpenDir(input, settings.Follow, logger)
	}
	return engine.OpenCapture(input, settings.CameraID)
}
