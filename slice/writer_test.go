package slice_test

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"chronophoto/frames"
	"chronophoto/slice"
)

// gradientFrames builds n distinct WxH RGB frames.
func gradientFrames(w, h, n int) [][]byte {
	data := make([][]byte, n)
	for t := 0; t < n; t++ {
		buf := make([]byte, w*h*3)
		for i := 0; i < w*h; i++ {
			buf[i*3] = byte(t*40 + i)
			buf[i*3+1] = byte(i)
			buf[i*3+2] = byte(t)
		}
		data[t] = buf
	}
	return data
}

func TestWriteSlices(t *testing.T) {
	const w, h, n = 6, 8, 4
	data := gradientFrames(w, h, n)
	src := frames.NewMemSource(w, h, 3, data)
	comp := slice.Compression{Codec: slice.Gzip, Level: 6}
	policy := slice.Policy{Kind: slice.ByRows, Value: 3}

	it, _ := src.Frames()
	set, err := slice.WriteSlices(it, n, policy, comp, t.TempDir())
	if err != nil {
		t.Fatalf("WriteSlices: %v", err)
	}
	defer set.Remove()

	if len(set.Files) != len(set.Regions) {
		t.Fatalf("%d files for %d regions", len(set.Files), len(set.Regions))
	}

	// Every slice file must hold exactly n pixel blocks ordered by t, each
	// the region's slab of the corresponding frame.
	for k, path := range set.Files {
		r := set.Regions[k]
		hdr, block, err := slice.Decode(path, comp, nil)
		if err != nil {
			t.Fatalf("slice %d: %v", k, err)
		}
		if int(hdr.Frames) != n || hdr.PixelCount() != r.Pixels {
			t.Fatalf("slice %d: header %+v", k, hdr)
		}
		for f := 0; f < n; f++ {
			want := data[f][r.Start*3 : (r.Start+r.Pixels)*3]
			got := block[f*r.Pixels*3 : (f+1)*r.Pixels*3]
			if !bytes.Equal(got, want) {
				t.Fatalf("slice %d frame %d: block differs", k, f)
			}
		}
	}
}

func TestWriteSlicesInconsistentFrame(t *testing.T) {
	const w, h = 4, 4
	data := gradientFrames(w, h, 3)
	// Middle frame has the wrong size.
	data[1] = make([]byte, 2*2*3)
	src := &inconsistentSource{data: data}

	dir := t.TempDir()
	it, _ := src.Frames()
	_, err := slice.WriteSlices(it, 3, slice.Policy{Kind: slice.ByRows, Value: 2},
		slice.Compression{Codec: slice.Gzip, Level: 1}, dir)
	if !errors.Is(err, frames.ErrInconsistentFrame) {
		t.Fatalf("WriteSlices = %v, want ErrInconsistentFrame", err)
	}

	// Partial files must be cleaned up on failure.
	entries, derr := os.ReadDir(dir)
	if derr != nil {
		t.Fatal(derr)
	}
	if len(entries) != 0 {
		t.Errorf("%d stale files left in temp dir", len(entries))
	}
}

// inconsistentSource yields frames whose dimensions follow their buffers.
type inconsistentSource struct {
	data [][]byte
}

func (s *inconsistentSource) Count() int { return len(s.data) }

func (s *inconsistentSource) Frames() (frames.Iterator, error) {
	return &inconsistentIterator{src: s}, nil
}

type inconsistentIterator struct {
	src  *inconsistentSource
	next int
	f    frames.Frame
}

func (it *inconsistentIterator) Next() (*frames.Frame, error) {
	if it.next >= len(it.src.data) {
		return nil, nil
	}
	buf := it.src.data[it.next]
	side := 4
	if len(buf) != 4*4*3 {
		side = 2
	}
	it.f = frames.Frame{
		Index:    it.next,
		Width:    side,
		Height:   side,
		Channels: 3,
		Pixels:   buf,
	}
	it.next++
	return &it.f, nil
}

func (it *inconsistentIterator) Close() error { return nil }

func TestWriteSlicesCountMismatch(t *testing.T) {
	const w, h = 4, 2
	data := gradientFrames(w, h, 2)
	src := frames.NewMemSource(w, h, 3, data)

	it, _ := src.Frames()
	_, err := slice.WriteSlices(it, 5, slice.Policy{Kind: slice.ByRows, Value: 1},
		slice.Compression{Codec: slice.Deflate, Level: 4}, t.TempDir())
	if !errors.Is(err, frames.ErrInconsistentFrame) {
		t.Fatalf("WriteSlices = %v, want ErrInconsistentFrame", err)
	}
}
