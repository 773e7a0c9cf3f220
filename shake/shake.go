// Package shake estimates per-frame camera displacement against anchor
// templates from the first frame and exposes shifted, cropped frame views.
package shake

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"chronophoto/frames"
)

// ErrAnchorOutOfBounds indicates an anchor whose template or search window
// leaves the frame.
var ErrAnchorOutOfBounds = errors.New("shake anchor out of bounds")

// Params configures the matching: template half-size and search half-size.
type Params struct {
	AnchorRadius int
	SearchRadius int
}

// ParseParams parses "radius/search-radius" style options.
func ParseParams(s string) (Params, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Params{}, fmt.Errorf("invalid shake parameters %q, expected <radius>/<search-radius>", s)
	}
	ra, err := strconv.Atoi(parts[0])
	if err != nil || ra < 1 {
		return Params{}, fmt.Errorf("invalid shake anchor radius %q", parts[0])
	}
	rs, err := strconv.Atoi(parts[1])
	if err != nil || rs < 0 {
		return Params{}, fmt.Errorf("invalid shake search radius %q", parts[1])
	}
	return Params{AnchorRadius: ra, SearchRadius: rs}, nil
}

// Anchor is a fixed template center, in frame 0 coordinates.
type Anchor struct {
	X int
	Y int
}

// ParseAnchors parses a comma-separated list of "x/y" pairs.
func ParseAnchors(s string) ([]Anchor, error) {
	var anchors []Anchor
	for _, part := range strings.Split(s, ",") {
		xy := strings.Split(strings.TrimSpace(part), "/")
		if len(xy) != 2 {
			return nil, fmt.Errorf("invalid shake anchor %q, expected <x>/<y>", part)
		}
		x, err := strconv.Atoi(xy[0])
		if err != nil {
			return nil, fmt.Errorf("invalid shake anchor %q", part)
		}
		y, err := strconv.Atoi(xy[1])
		if err != nil {
			return nil, fmt.Errorf("invalid shake anchor %q", part)
		}
		anchors = append(anchors, Anchor{X: x, Y: y})
	}
	if len(anchors) == 0 {
		return nil, fmt.Errorf("no shake anchors in %q", s)
	}
	return anchors, nil
}

// Offset is one frame's estimated displacement relative to frame 0.
type Offset struct {
	X int
	Y int
}

// Compensator detects per-frame offsets by sum-of-squared-differences
// matching of the anchor templates inside a bounded search window.
type Compensator struct {
	Params  Params
	Anchors []Anchor
	// Threads bounds matching parallelism; 0 means the CPU count.
	Threads int
}

// Analyze reads one pass over src and returns an offset per frame. Frame 0
// supplies the templates and always has offset (0, 0). Matching runs in a
// worker pool; frames are read in order, only the small search windows are
// retained per pending frame.
func (c *Compensator) Analyze(src frames.Source) ([]Offset, error) {
	it, err := src.Frames()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	count := src.Count()
	offsets := make([]Offset, count)

	threads := c.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	type job struct {
		t       int
		windows []byte
	}
	jobs := make(chan job, threads)
	var wg sync.WaitGroup
	var templates []byte
	var w0, h0, channels int

	t := 0
	for {
		frame, err := it.Next()
		if err != nil {
			close(jobs)
			wg.Wait()
			return nil, err
		}
		if frame == nil {
			break
		}
		if t >= count {
			close(jobs)
			wg.Wait()
			return nil, fmt.Errorf("%w: more frames than expected", frames.ErrInconsistentFrame)
		}

		if t == 0 {
			w0, h0, channels = frame.Width, frame.Height, frame.Channels
			if err := c.checkBounds(frame); err != nil {
				close(jobs)
				return nil, err
			}
			templates = c.extract(frame, c.Params.AnchorRadius, nil)
			for i := 0; i < threads; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := range jobs {
						offsets[j.t] = c.match(templates, j.windows, channels)
					}
				}()
			}
		} else {
			if err := frame.Check(w0, h0, channels); err != nil {
				close(jobs)
				wg.Wait()
				return nil, err
			}
			jobs <- job{t: t, windows: c.extract(frame, c.Params.AnchorRadius+c.Params.SearchRadius, nil)}
		}
		t++
	}
	close(jobs)
	wg.Wait()

	if t != count {
		return nil, fmt.Errorf("%w: source yielded %d frames, expected %d", frames.ErrInconsistentFrame, t, count)
	}
	log.Infof("Analyzed camera shake over %d frames, %d anchors", count, len(c.Anchors))
	return offsets, nil
}

// checkBounds ensures every anchor's search window fits inside the frame.
func (c *Compensator) checkBounds(f *frames.Frame) error {
	r := c.Params.AnchorRadius + c.Params.SearchRadius
	for _, a := range c.Anchors {
		if a.X-r < 0 || a.Y-r < 0 || a.X+r >= f.Width || a.Y+r >= f.Height {
			return fmt.Errorf("%w: anchor (%d, %d) with radius %d in %dx%d frame",
				ErrAnchorOutOfBounds, a.X, a.Y, r, f.Width, f.Height)
		}
	}
	return nil
}

// extract copies the square windows of half-size r around every anchor into
// one packed buffer.
func (c *Compensator) extract(f *frames.Frame, r int, dst []byte) []byte {
	size := 2*r + 1
	winLen := size * size * f.Channels
	if cap(dst) < winLen*len(c.Anchors) {
		dst = make([]byte, winLen*len(c.Anchors))
	}
	dst = dst[:winLen*len(c.Anchors)]
	for i, a := range c.Anchors {
		win := dst[i*winLen:]
		for dy := 0; dy < size; dy++ {
			srcOff := ((a.Y-r+dy)*f.Width + a.X - r) * f.Channels
			copy(win[dy*size*f.Channels:(dy+1)*size*f.Channels], f.Pixels[srcOff:srcOff+size*f.Channels])
		}
	}
	return dst
}

// match finds the offset minimizing the SSD between the frame-0 templates and
// the search windows, summed across anchors. Ties resolve to the first offset
// in row-major scan order.
func (c *Compensator) match(templates, windows []byte, channels int) Offset {
	ra, rs := c.Params.AnchorRadius, c.Params.SearchRadius
	tSize := 2*ra + 1
	sSize := 2*(ra+rs) + 1
	tLen := tSize * tSize * channels
	sLen := sSize * sSize * channels

	best := Offset{}
	var bestDiff int64 = -1
	for dy := -rs; dy <= rs; dy++ {
		for dx := -rs; dx <= rs; dx++ {
			var diff int64
			for a := 0; a < len(c.Anchors); a++ {
				tmpl := templates[a*tLen:]
				win := windows[a*sLen:]
				for ty := 0; ty < tSize; ty++ {
					tRow := tmpl[ty*tSize*channels:]
					wRow := win[((ty+rs+dy)*sSize+rs+dx)*channels:]
					for i := 0; i < tSize*channels; i++ {
						d := int64(tRow[i]) - int64(wRow[i])
						diff += d * d
					}
				}
			}
			if bestDiff < 0 || diff < bestDiff {
				bestDiff = diff
				best = Offset{X: dx, Y: dy}
			}
		}
	}
	return best
}
