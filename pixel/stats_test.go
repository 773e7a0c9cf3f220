package pixel_test

import (
	"testing"

	"chronophoto/pixel"
)

// vector builds an interleaved time vector from the first `channels` values
// of each sample.
func vector(channels int, samples ...[]uint8) []uint8 {
	var out []uint8
	for _, s := range samples {
		out = append(out, s[:channels]...)
	}
	return out
}

func TestMedianLowerMiddle(t *testing.T) {
	cases := []struct {
		name   string
		values []uint8
		median float64
	}{
		{name: "odd", values: []uint8{40, 10, 30, 20, 50}, median: 30},
		{name: "even uses lower middle", values: []uint8{40, 10, 30, 20}, median: 20},
		{name: "two", values: []uint8{9, 3}, median: 3},
		{name: "single", values: []uint8{77}, median: 77},
		{name: "all equal", values: []uint8{5, 5, 5, 5}, median: 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := pixel.NewAnalyzer(1, 0)
			var st pixel.Stats
			a.Compute(c.values, len(c.values), &st)
			if st.Median[0] != c.median {
				t.Errorf("median = %v, want %v", st.Median[0], c.median)
			}
		})
	}
}

func TestQuartiles(t *testing.T) {
	a := pixel.NewAnalyzer(1, 0)
	var st pixel.Stats
	// Sorted: 0 10 20 30 40; Q1 = 10, Q3 = 30.
	a.Compute([]uint8{30, 0, 40, 10, 20}, 5, &st)
	if st.Median[0] != 20 {
		t.Errorf("median = %v, want 20", st.Median[0])
	}
	if st.IQR[0] != 20 {
		t.Errorf("IQR = %v, want 20", st.IQR[0])
	}
}

func TestMedianWithinRange(t *testing.T) {
	a := pixel.NewAnalyzer(3, 0)
	var st pixel.Stats
	vec := vector(3,
		[]uint8{10, 200, 7},
		[]uint8{90, 100, 9},
		[]uint8{50, 150, 8},
		[]uint8{70, 120, 6},
	)
	a.Compute(vec, 4, &st)
	min := [3]float64{10, 100, 6}
	max := [3]float64{90, 200, 9}
	for c := 0; c < 3; c++ {
		if st.Median[c] < min[c] || st.Median[c] > max[c] {
			t.Errorf("channel %d: median %v outside [%v, %v]", c, st.Median[c], min[c], max[c])
		}
	}
}

// With a subsample configured, statistics come from the strided index set and
// stay deterministic.
func TestSubsampleStride(t *testing.T) {
	values := []uint8{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}
	a := pixel.NewAnalyzer(1, 5)
	var st pixel.Stats
	a.Compute(values, len(values), &st)
	// Stride 2 selects 0 20 40 60 80; lower-middle median 40, Q1 20, Q3 60.
	if st.Median[0] != 40 {
		t.Errorf("median = %v, want 40", st.Median[0])
	}
	if st.IQR[0] != 40 {
		t.Errorf("IQR = %v, want 40", st.IQR[0])
	}
	if got := a.SampleSize(len(values)); got != 5 {
		t.Errorf("SampleSize = %d, want 5", got)
	}

	// Identical inputs produce identical stats.
	var st2 pixel.Stats
	a.Compute(values, len(values), &st2)
	if st != st2 {
		t.Errorf("repeated Compute differs: %+v vs %+v", st, st2)
	}
}

func TestSampleLargerThanVector(t *testing.T) {
	a := pixel.NewAnalyzer(1, 100)
	var st pixel.Stats
	a.Compute([]uint8{3, 1, 2}, 3, &st)
	if st.Median[0] != 2 {
		t.Errorf("median = %v, want 2", st.Median[0])
	}
}
