// Package config turns the CLI's raw option strings into a validated render
// configuration. All validation happens here, before any IO.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"chronophoto/frames"
	"chronophoto/pipeline"
	"chronophoto/pixel"
	"chronophoto/shake"
	"chronophoto/slice"
)

// Raw holds the option strings exactly as given on the command line.
type Raw struct {
	Pattern     string
	Output      string
	OutputBlend string
	FrameRange  string

	Mode        string
	Threshold   string
	Outlier     string
	Background  string
	Weights     string
	Sample      int
	Slice       string
	Compression string
	TempDir     string
	Threads     int

	Shake        string
	ShakeAnchors string
	ShakeThreads int

	StatusPort int
	Watch      bool
}

// Config is the validated run configuration.
type Config struct {
	Pattern     string
	Output      string
	OutputBlend string
	Range       *frames.Range

	Pipeline pipeline.Options

	StatusPort int
	Watch      bool
}

// Parse validates r and assembles the pipeline options.
func (r *Raw) Parse() (*Config, error) {
	c := &Config{
		Pattern:     r.Pattern,
		Output:      r.Output,
		OutputBlend: r.OutputBlend,
		StatusPort:  r.StatusPort,
		Watch:       r.Watch,
	}
	if r.Pattern == "" {
		return nil, fmt.Errorf("%w: missing input pattern", ErrConfig)
	}
	if r.Output == "" {
		return nil, fmt.Errorf("%w: missing output path", ErrConfig)
	}

	var err error
	if c.Pipeline.Mode, err = pipeline.ParseMode(r.Mode); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.Pipeline.Threshold, err = pixel.ParseThreshold(r.Threshold); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	th := c.Pipeline.Threshold
	if th.Lo < 0 || (th.HasHi && th.Hi < th.Lo) {
		return nil, fmt.Errorf("%w: threshold bounds %g/%g out of order", ErrConfig, th.Lo, th.Hi)
	}
	if c.Pipeline.Pick, err = pixel.ParsePickPolicy(r.Outlier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.Pipeline.Background, err = pixel.ParseBackgroundPolicy(r.Background); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.Pipeline.Weights, err = parseWeights(r.Weights); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if r.Sample < 0 {
		return nil, fmt.Errorf("%w: sample size must be positive", ErrConfig)
	}
	c.Pipeline.Sample = r.Sample
	if c.Pipeline.Policy, err = slice.ParsePolicy(r.Slice); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.Pipeline.Compression, err = slice.ParseCompression(r.Compression); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if r.Threads < 0 {
		return nil, fmt.Errorf("%w: thread count must be positive", ErrConfig)
	}
	c.Pipeline.Threads = r.Threads

	c.Pipeline.TempDir = r.TempDir
	if c.Pipeline.TempDir == "" {
		c.Pipeline.TempDir = filepath.Join(os.TempDir(), "chrono-photo")
	}

	if r.FrameRange != "" {
		rng, err := frames.ParseRange(r.FrameRange)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		c.Range = &rng
	}

	if r.Shake != "" {
		params, err := shake.ParseParams(r.Shake)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		if r.ShakeAnchors == "" {
			return nil, fmt.Errorf("%w: shake reduction requires at least one anchor", ErrConfig)
		}
		anchors, err := shake.ParseAnchors(r.ShakeAnchors)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		c.Pipeline.Shake = &shake.Compensator{
			Params:  params,
			Anchors: anchors,
			Threads: r.ShakeThreads,
		}
	} else if r.ShakeAnchors != "" {
		return nil, fmt.Errorf("%w: shake anchors given without shake parameters", ErrConfig)
	}

	return c, nil
}

// parseWeights parses four comma-separated non-negative channel weights.
func parseWeights(s string) ([4]float64, error) {
	var w [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return w, fmt.Errorf("invalid weights %q, expected four comma-separated values", s)
	}
	var sum float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 {
			return w, fmt.Errorf("invalid channel weight %q, expected a non-negative number", p)
		}
		w[i] = v
		sum += v
	}
	if sum == 0 {
		return w, fmt.Errorf("invalid weights %q, at least one channel must have weight", s)
	}
	return w, nil
}
