// Package pipeline orchestrates the chrono-photograph render: optional shake
// analysis, one-pass time-slicing to disk, and parallel per-slice outlier
// processing into the output image.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"

	"chronophoto/frames"
	"chronophoto/pixel"
	"chronophoto/shake"
	"chronophoto/slice"
)

// abortLatch carries the first slice failure to the orchestrator and tells
// the remaining workers to stand down. Workers poll tripped between slices;
// a slice already in progress always runs to completion.
type abortLatch struct {
	mu  sync.Mutex
	err error
}

// fail records err if the latch is still clear. Later calls lose.
func (l *abortLatch) fail(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
}

func (l *abortLatch) tripped() bool {
	return l.first() != nil
}

// first returns the error that tripped the latch, or nil.
func (l *abortLatch) first() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Options is the full render configuration. Policy values are parsed by the
// config package; everything here is already validated.
type Options struct {
	Mode       Mode
	Threshold  pixel.Threshold
	Pick       pixel.PickPolicy
	Background pixel.BackgroundPolicy
	Weights    [4]float64
	// Sample is the statistics subsample size; 0 uses every frame.
	Sample int

	Policy      slice.Policy
	Compression slice.Compression
	TempDir     string
	// Threads is the worker pool size; 0 means the CPU count.
	Threads int

	// Shake enables camera shake compensation when non-nil.
	Shake *shake.Compensator

	// Progress receives phase and completion updates; may be nil.
	Progress Progress
}

// Progress receives pipeline updates. Implementations must be safe for
// concurrent use; SliceDone is called from worker goroutines.
type Progress interface {
	PhaseChanged(phase string)
	FrameSliced(done, total int)
	SliceDone(done, total int)
}

// Result is the assembled output image plus the per-pixel blend mask.
// Mask is nil for the simple lighter/darker reductions.
type Result struct {
	Width    int
	Height   int
	Channels int
	Pixels   []byte
	Mask     []byte
}

// Run renders one chrono-photograph from src. Slice files live under
// opts.TempDir for the duration of the call and are deleted before it
// returns, also on failure. Cancelling ctx aborts cooperatively between
// slices.
func Run(ctx context.Context, src frames.Source, opts *Options) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.Mode != ModeOutlier {
		return reduceSimple(src, opts.Mode)
	}

	if opts.Shake != nil {
		phase(opts, "shake")
		offsets, err := opts.Shake.Analyze(src)
		if err != nil {
			return nil, err
		}
		src = shake.Cropped(src, offsets)
	}

	dir, created, err := ensureTempDir(opts.TempDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if created {
			// Best effort; fails when foreign files remain.
			if rerr := os.Remove(dir); rerr == nil {
				log.Debugf("Removed temp directory %v", dir)
			}
		}
	}()

	phase(opts, "slice")
	it, err := src.Frames()
	if err != nil {
		return nil, err
	}
	set, err := slice.WriteSlices(countingIterator(it, src.Count(), opts), src.Count(), opts.Policy, opts.Compression, dir)
	it.Close()
	if set != nil {
		defer set.Remove()
	}
	if err != nil {
		return nil, err
	}
	framesSliced.Add(float64(set.Frames))

	phase(opts, "process")
	res, err := processSlices(ctx, set, opts)
	if err != nil {
		return nil, err
	}

	phase(opts, "done")
	log.Infof("Rendered %dx%d image from %d frames in %v", res.Width, res.Height, set.Frames, time.Since(start).Round(time.Millisecond))
	return res, nil
}

// processSlices fans the slice files out over the worker pool and assembles
// the output buffers. Output regions are disjoint per slice, so workers write
// without locks; completion order is irrelevant.
func processSlices(ctx context.Context, set *slice.Set, opts *Options) (*Result, error) {
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if threads > len(set.Regions) {
		threads = len(set.Regions)
	}

	res := &Result{
		Width:    set.Width,
		Height:   set.Height,
		Channels: set.Channels,
		Pixels:   make([]byte, set.Width*set.Height*set.Channels),
		Mask:     make([]byte, set.Width*set.Height),
	}

	abort := &abortLatch{}

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			abort.fail(ctx.Err())
		case <-watchDone:
		}
	}()

	var done int64
	var doneMu sync.Mutex
	durations := make([]float64, 0, len(set.Regions))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := newProcessor(opts, set.Width, set.Channels)
			for idx := range jobs {
				if abort.tripped() {
					continue
				}
				began := time.Now()
				if err := p.processSlice(set.Files[idx], set.Compression, set.Regions[idx], res.Pixels, res.Mask); err != nil {
					abort.fail(fmt.Errorf("slice %d: %w", idx, err))
					continue
				}
				elapsed := time.Since(began)
				slicesProcessed.Inc()
				pixelsProcessed.Add(float64(set.Regions[idx].Pixels))
				sliceSeconds.Observe(elapsed.Seconds())

				doneMu.Lock()
				done++
				d := done
				durations = append(durations, elapsed.Seconds())
				doneMu.Unlock()
				if opts.Progress != nil {
					opts.Progress.SliceDone(int(d), len(set.Regions))
				}
				log.Debugf("Processed slice %d/%d in %v", d, len(set.Regions), elapsed.Round(time.Millisecond))
			}
		}()
	}

	for i := range set.Files {
		if abort.tripped() {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := abort.first(); err != nil {
		return nil, err
	}
	logTimings(durations)
	return res, nil
}

func logTimings(durations []float64) {
	if len(durations) == 0 {
		return
	}
	mean, _ := stats.Mean(durations)
	median, _ := stats.Median(durations)
	p90, _ := stats.Percentile(durations, 90)
	log.Infof("Slice timings: mean %.3fs, median %.3fs, p90 %.3fs", mean, median, p90)
}

// countingIterator reports per-frame slicing progress without copying frames.
func countingIterator(it frames.Iterator, total int, opts *Options) frames.Iterator {
	if opts.Progress == nil {
		return it
	}
	return &countedIterator{it: it, total: total, progress: opts.Progress}
}

type countedIterator struct {
	it       frames.Iterator
	done     int
	total    int
	progress Progress
}

func (c *countedIterator) Next() (*frames.Frame, error) {
	f, err := c.it.Next()
	if f != nil {
		c.done++
		c.progress.FrameSliced(c.done, c.total)
	}
	return f, err
}

func (c *countedIterator) Close() error { return c.it.Close() }

func phase(opts *Options, name string) {
	log.WithField("phase", name).Info("Pipeline phase")
	if opts.Progress != nil {
		opts.Progress.PhaseChanged(name)
	}
}

// ensureTempDir creates dir when missing and reports whether this run
// created it, so cleanup only removes directories it owns.
func ensureTempDir(dir string) (string, bool, error) {
	if _, err := os.Stat(dir); err == nil {
		return dir, false, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", false, fmt.Errorf("unable to create temp directory %v: %w", dir, err)
	}
	log.Debugf("Created temp directory %v", dir)
	return dir, true, nil
}
