package slice

import (
	"fmt"
	"strconv"
	"strings"
)

// PolicyKind selects how the image is partitioned into slices.
type PolicyKind int

const (
	// ByRows slices into slabs of n consecutive image rows.
	ByRows PolicyKind = iota
	// ByPixels slices into runs of n consecutive row-major pixels.
	ByPixels
	// ByCount chooses the run length so that about n slices result.
	ByCount
)

// Policy is the slicing configuration. It is the operator's knob for peak
// memory: workers hold one decoded slice each.
type Policy struct {
	Kind  PolicyKind
	Value int
}

// ParsePolicy parses "rows/4", "pixels/20000" or "count/16" style options.
func ParsePolicy(s string) (Policy, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Policy{}, fmt.Errorf("invalid slicing %q, expected (rows|pixels|count)/<number>", s)
	}
	var p Policy
	switch parts[0] {
	case "rows":
		p.Kind = ByRows
	case "pixels":
		p.Kind = ByPixels
	case "count":
		p.Kind = ByCount
	default:
		return Policy{}, fmt.Errorf("invalid slicing mode %q, expected rows, pixels or count", parts[0])
	}
	v, err := strconv.Atoi(parts[1])
	if err != nil || v <= 0 {
		return Policy{}, fmt.Errorf("invalid slicing value %q, expected a positive number", parts[1])
	}
	p.Value = v
	return p, nil
}

// Region is one slab of the partition: a contiguous row-major pixel run.
type Region struct {
	OriginX int
	OriginY int
	SliceW  int
	SliceH  int
	// Start is the row-major index of the first pixel, Pixels the run length.
	Start  int
	Pixels int
}

// Partition splits a WxH image into regions according to the policy. The
// regions cover every pixel exactly once; the last one may be shorter.
func (p Policy) Partition(w, h int) []Region {
	switch p.Kind {
	case ByRows:
		var regions []Region
		for y := 0; y < h; y += p.Value {
			rows := p.Value
			if y+rows > h {
				rows = h - y
			}
			regions = append(regions, Region{
				OriginY: y,
				SliceW:  w,
				SliceH:  rows,
				Start:   y * w,
				Pixels:  rows * w,
			})
		}
		return regions
	case ByPixels:
		return partitionRuns(w, h, p.Value)
	case ByCount:
		run := (w*h + p.Value - 1) / p.Value
		return partitionRuns(w, h, run)
	}
	return nil
}

func partitionRuns(w, h, run int) []Region {
	total := w * h
	var regions []Region
	for start := 0; start < total; start += run {
		n := run
		if start+n > total {
			n = total - start
		}
		regions = append(regions, Region{
			OriginX: start % w,
			OriginY: start / w,
			SliceW:  n,
			SliceH:  1,
			Start:   start,
			Pixels:  n,
		})
	}
	return regions
}
