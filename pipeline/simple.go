package pipeline

import (
	"fmt"

	"chronophoto/frames"
)

// Mode selects the per-pixel reduction.
type Mode int

const (
	// ModeOutlier runs the time-axis outlier pipeline.
	ModeOutlier Mode = iota
	// ModeLighter keeps the brightest sample (sum of R, G and B).
	ModeLighter
	// ModeDarker keeps the darkest sample.
	ModeDarker
)

// ParseMode parses a selection mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "outlier":
		return ModeOutlier, nil
	case "lighter":
		return ModeLighter, nil
	case "darker":
		return ModeDarker, nil
	}
	return 0, fmt.Errorf("invalid selection mode %q, expected one of outlier|lighter|darker", s)
}

// reduceSimple is the streaming min/max reduction behind the lighter and
// darker modes. No slice files and no blend mask; one pass over the input.
func reduceSimple(src frames.Source, mode Mode) (*Result, error) {
	it, err := src.Frames()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var res *Result
	var sums []uint32

	for {
		f, err := it.Next()
		if err != nil {
			return nil, err
		}
		if f == nil {
			break
		}
		if res == nil {
			res = &Result{
				Width:    f.Width,
				Height:   f.Height,
				Channels: f.Channels,
				Pixels:   make([]byte, len(f.Pixels)),
			}
			copy(res.Pixels, f.Pixels)
			sums = make([]uint32, f.Width*f.Height)
			for i := range sums {
				sums[i] = luminance(f.Pixels[i*f.Channels:])
			}
			continue
		}
		if err := f.Check(res.Width, res.Height, res.Channels); err != nil {
			return nil, err
		}
		for i := range sums {
			s := luminance(f.Pixels[i*res.Channels:])
			if (mode == ModeLighter && s > sums[i]) || (mode == ModeDarker && s < sums[i]) {
				sums[i] = s
				copy(res.Pixels[i*res.Channels:(i+1)*res.Channels], f.Pixels[i*res.Channels:(i+1)*res.Channels])
			}
		}
	}
	if res == nil {
		return nil, fmt.Errorf("empty frame sequence")
	}
	return res, nil
}

// luminance is the unweighted sum of the three color channels.
func luminance(v []byte) uint32 {
	return uint32(v[0]) + uint32(v[1]) + uint32(v[2])
}
