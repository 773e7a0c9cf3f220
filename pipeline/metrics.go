package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesSliced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronophoto_frames_sliced_total",
		Help: "Input frames transposed into slice files.",
	})
	slicesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronophoto_slices_processed_total",
		Help: "Slice files analyzed into output pixels.",
	})
	pixelsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronophoto_pixels_processed_total",
		Help: "Output pixels produced by the outlier analysis.",
	})
	sliceSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chronophoto_slice_seconds",
		Help:    "Wall time to decode and analyze one slice.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)
