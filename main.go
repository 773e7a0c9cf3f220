package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"chronophoto/config"
	"chronophoto/frames"
	"chronophoto/pipeline"
	"chronophoto/serve"
)

var (
	output      = flag.String("output", "", "Path of the output image.")
	outputBlend = flag.String("output-blend", "", "Optional path of the blend mask image.")
	frameRange  = flag.String("frames", "", "Frame range <lo>/<hi>[/<step>] applied to the input list.")

	mode        = flag.String("mode", "outlier", "Pixel selection mode (outlier|lighter|darker).")
	threshold   = flag.String("threshold", "abs/0.05/0.2", "Outlier threshold (abs|rel)/<lo>[/<hi>].")
	outlier     = flag.String("outlier", "extreme", "Outlier selection mode (extreme|average|first|last|forward|backward).")
	background  = flag.String("background", "random", "Background selection mode (random|first|average|median).")
	weights     = flag.String("weights", "1,1,1,1", "Channel weights for the color distance.")
	sample      = flag.Int("sample", 0, "Statistics subsample size; 0 uses every frame.")
	slicing     = flag.String("slice", "rows/4", "Slicing policy (rows|pixels|count)/<number>.")
	compression = flag.String("compression", "gzip", "Slice file compression (gzip|zlib|deflate)[/<level>].")
	tempDir     = flag.String("temp-dir", "", "Directory for temporary slice files.")
	threads     = flag.Int("threads", 0, "Worker pool size; 0 uses the CPU count.")

	shakeParams  = flag.String("shake", "", "Shake reduction <radius>/<search-radius>.")
	shakeAnchors = flag.String("shake-anchors", "", "Comma-separated shake anchors <x>/<y>.")
	shakeThreads = flag.Int("shake-threads", 0, "Shake analysis parallelism; 0 uses the CPU count.")

	statusPort = flag.Int("status-port", 0, "Port for the status/metrics server; 0 disables it.")
	watch      = flag.Bool("watch", false, "Re-render when new frames appear under the input pattern.")
	debug      = flag.Bool("debug", false, "Enable debug logging.")
)

func main() {
	flag.Parse()
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	if flag.NArg() != 1 {
		fmt.Println("How to run:\n\tchronophoto [flags] <input glob pattern>")
		flag.PrintDefaults()
		os.Exit(1)
		return
	}

	raw := &config.Raw{
		Pattern:      flag.Arg(0),
		Output:       *output,
		OutputBlend:  *outputBlend,
		FrameRange:   *frameRange,
		Mode:         *mode,
		Threshold:    *threshold,
		Outlier:      *outlier,
		Background:   *background,
		Weights:      *weights,
		Sample:       *sample,
		Slice:        *slicing,
		Compression:  *compression,
		TempDir:      *tempDir,
		Threads:      *threads,
		Shake:        *shakeParams,
		ShakeAnchors: *shakeAnchors,
		ShakeThreads: *shakeThreads,
		StatusPort:   *statusPort,
		Watch:        *watch,
	}
	cfg, err := raw.Parse()
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Debugf("Loaded configuration: %v", spew.Sdump(cfg))

	if cfg.StatusPort > 0 {
		status := serve.NewStatusServer()
		cfg.Pipeline.Progress = status
		go func() {
			log.Infof("Hosting status server on port %d", cfg.StatusPort)
			http.Handle("/status", handlers.CompressHandler(status))
			http.Handle("/progressws", status.Updater)
			http.Handle("/metrics", promhttp.Handler())
			log.Println(http.ListenAndServe(fmt.Sprintf(":%d", cfg.StatusPort), nil))
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Println("Caught signal", sig)
		cancel()
	}()

	if cfg.Watch {
		if err := watchLoop(ctx, cfg); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}
	if err := render(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

// render runs the pipeline once and writes the outputs. The blend mask is
// written only after the main image succeeded.
func render(ctx context.Context, cfg *config.Config) error {
	src, err := frames.NewFileSource(cfg.Pattern, cfg.Range)
	if err != nil {
		return err
	}
	res, err := pipeline.Run(ctx, src, &cfg.Pipeline)
	if err != nil {
		return err
	}
	if err := frames.WriteImage(cfg.Output, res.Width, res.Height, res.Channels, res.Pixels); err != nil {
		return err
	}
	if cfg.OutputBlend != "" && res.Mask != nil {
		if err := frames.WriteMask(cfg.OutputBlend, res.Width, res.Height, res.Mask); err != nil {
			return err
		}
	}
	return nil
}
