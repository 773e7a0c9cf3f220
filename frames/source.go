// Package frames provides ordered frame sequences for the pipeline: decoded
// input images as packed 8-bit row-major pixel bytes.
package frames

import (
	"errors"
	"fmt"
)

// ErrInconsistentFrame indicates a frame whose dimensions or channel count
// differ from the first frame of the sequence.
var ErrInconsistentFrame = errors.New("inconsistent frame")

// Frame is one decoded input image. Pixels holds Width*Height*Channels bytes
// in row-major order, RGB or RGBA.
type Frame struct {
	Index    int
	Width    int
	Height   int
	Channels int
	Pixels   []byte
}

// Check validates f against the reference layout.
func (f *Frame) Check(w, h, channels int) error {
	if f.Width != w || f.Height != h || f.Channels != channels {
		return fmt.Errorf("%w: frame %d is %dx%dx%d, want %dx%dx%d",
			ErrInconsistentFrame, f.Index, f.Width, f.Height, f.Channels, w, h, channels)
	}
	return nil
}

// Iterator yields frames in order. Next returns (nil, nil) after the last
// frame. Frames may be reused by the iterator; callers must not retain the
// pixel slice past the following Next call.
type Iterator interface {
	Next() (*Frame, error)
	Close() error
}

// Source is a replayable ordered frame sequence. The pipeline runs multiple
// in-order passes (shake analysis, then slicing), each via a fresh Iterator.
type Source interface {
	// Count is the number of frames a full pass yields.
	Count() int
	Frames() (Iterator, error)
}

// MemSource serves frames from memory. Used by tests and small inputs.
type MemSource struct {
	Width    int
	Height   int
	Channels int
	Data     [][]byte
}

// NewMemSource wraps pre-decoded pixel buffers, one per frame.
func NewMemSource(w, h, channels int, data [][]byte) *MemSource {
	return &MemSource{Width: w, Height: h, Channels: channels, Data: data}
}

func (s *MemSource) Count() int { return len(s.Data) }

func (s *MemSource) Frames() (Iterator, error) {
	return &memIterator{src: s}, nil
}

type memIterator struct {
	src  *MemSource
	next int
	f    Frame
}

func (it *memIterator) Next() (*Frame, error) {
	if it.next >= len(it.src.Data) {
		return nil, nil
	}
	it.f = Frame{
		Index:    it.next,
		Width:    it.src.Width,
		Height:   it.src.Height,
		Channels: it.src.Channels,
		Pixels:   it.src.Data[it.next],
	}
	it.next++
	return &it.f, nil
}

func (it *memIterator) Close() error { return nil }
