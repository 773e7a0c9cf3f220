package shake

import (
	"fmt"

	"chronophoto/frames"
)

// Cropped wraps src in a view that undoes the per-frame offsets. The view is
// shrunk by twice the maximum absolute offset on each axis, so every output
// pixel has a source pixel in every frame.
func Cropped(src frames.Source, offsets []Offset) frames.Source {
	var maxX, maxY int
	for _, o := range offsets {
		if abs(o.X) > maxX {
			maxX = abs(o.X)
		}
		if abs(o.Y) > maxY {
			maxY = abs(o.Y)
		}
	}
	return &croppedSource{src: src, offsets: offsets, maxX: maxX, maxY: maxY}
}

type croppedSource struct {
	src     frames.Source
	offsets []Offset
	maxX    int
	maxY    int
}

func (s *croppedSource) Count() int { return s.src.Count() }

func (s *croppedSource) Frames() (frames.Iterator, error) {
	it, err := s.src.Frames()
	if err != nil {
		return nil, err
	}
	return &croppedIterator{src: s, it: it}, nil
}

type croppedIterator struct {
	src *croppedSource
	it  frames.Iterator
	f   frames.Frame
	buf []byte
}

func (it *croppedIterator) Next() (*frames.Frame, error) {
	in, err := it.it.Next()
	if err != nil || in == nil {
		return nil, err
	}
	if in.Index >= len(it.src.offsets) {
		return nil, fmt.Errorf("%w: no shake offset for frame %d", frames.ErrInconsistentFrame, in.Index)
	}

	w := in.Width - 2*it.src.maxX
	h := in.Height - 2*it.src.maxY
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("shake offsets (%d, %d) leave no %dx%d image",
			it.src.maxX, it.src.maxY, in.Width, in.Height)
	}

	o := it.src.offsets[in.Index]
	ch := in.Channels
	if cap(it.buf) < w*h*ch {
		it.buf = make([]byte, w*h*ch)
	}
	it.buf = it.buf[:w*h*ch]

	x0 := it.src.maxX + o.X
	for y := 0; y < h; y++ {
		srcOff := ((y+it.src.maxY+o.Y)*in.Width + x0) * ch
		copy(it.buf[y*w*ch:(y+1)*w*ch], in.Pixels[srcOff:srcOff+w*ch])
	}

	it.f = frames.Frame{
		Index:    in.Index,
		Width:    w,
		Height:   h,
		Channels: ch,
		Pixels:   it.buf,
	}
	return &it.f, nil
}

func (it *croppedIterator) Close() error { return it.it.Close() }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
