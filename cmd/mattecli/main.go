// Command mattecli drives the matting pipeline from raw RGBA buffers on
// disk, exercising Pipeline.Run the way an external host would: it owns
// no image decoding, no UI, and no batching beyond one image per
// invocation, per the pipeline's explicit non-goals.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"matting-core/internal/config"
	"matting-core/internal/logger"
	"matting-core/internal/matting/cache"
	"matting-core/internal/matting/pipeline"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "mattecli:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("mattecli", flag.ContinueOnError)
	var (
		inPath   = fs.String("in", "", "path to a raw RGBA buffer (H*W*4 bytes, row-major)")
		outPath  = fs.String("out", "", "path to write the resulting RGBA buffer")
		width    = fs.Int("width", 0, "image width in pixels")
		height   = fs.Int("height", 0, "image height in pixels")
		entropy  = fs.Bool("entropy", false, "use entropy-mode trimap refinement instead of threshold mode")
		kappa    = fs.Float64("kappa", 100.0, "trimap confidence (kappa) in the alpha solve")
		logLevel = fs.String("log-level", "info", "log level: debug, info, warn, error")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" || *width <= 0 || *height <= 0 {
		fs.Usage()
		return fmt.Errorf("missing required flags: -in, -out, -width, -height")
	}

	log := logger.NewConsoleLogger(parseLevel(*logLevel))

	rgba, err := os.ReadFile(*inPath)
	if err != nil {
		return fmt.Errorf("reading input buffer: %w", err)
	}

	params := config.Default()
	params.UseEntropy = *entropy
	params.TrimapConfidence = *kappa
	if err := params.Validate(); err != nil {
		return err
	}

	p := pipeline.New(cache.New(log), log)
	resp, err := p.Run(pipeline.Request{
		RGBA:   rgba,
		H:      *height,
		W:      *width,
		Params: params,
		Progress: func(percent int, message string) {
			log.Info("mattecli", message, map[string]interface{}{"percent": percent})
		},
	})
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}
	if resp.Status == pipeline.Cancelled {
		return fmt.Errorf("run cancelled")
	}

	if err := os.WriteFile(*outPath, resp.RGBA, 0o644); err != nil {
		return fmt.Errorf("writing output buffer: %w", err)
	}
	return nil
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
