package slice_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chronophoto/slice"
)

func testHeader(pixels, frames int) slice.Header {
	return slice.Header{
		Magic:    slice.Magic,
		Version:  slice.Version,
		Width:    uint32(pixels),
		Height:   1,
		Channels: 3,
		SliceW:   uint32(pixels),
		SliceH:   1,
		Frames:   uint32(frames),
	}
}

// Round-trip equality must hold for every codec and every level.
func TestCodecRoundTrip(t *testing.T) {
	const pixels, frames = 64, 3
	block := make([]byte, pixels*3*frames)
	for i := range block {
		block[i] = byte(i * 31)
	}

	dir := t.TempDir()
	for _, codec := range []slice.Codec{slice.Gzip, slice.Zlib, slice.Deflate} {
		for level := 0; level <= 9; level++ {
			comp := slice.Compression{Codec: codec, Level: level}
			path := filepath.Join(dir, "roundtrip.bin")

			h := testHeader(pixels, frames)
			enc, err := slice.NewEncoder(path, comp, &h)
			if err != nil {
				t.Fatalf("%v/%d: NewEncoder: %v", codec, level, err)
			}
			chunk := pixels * 3
			for f := 0; f < frames; f++ {
				if err := enc.Append(block[f*chunk : (f+1)*chunk]); err != nil {
					t.Fatalf("%v/%d: Append: %v", codec, level, err)
				}
			}
			if err := enc.Close(); err != nil {
				t.Fatalf("%v/%d: Close: %v", codec, level, err)
			}

			got, decoded, err := slice.Decode(path, comp, nil)
			if err != nil {
				t.Fatalf("%v/%d: Decode: %v", codec, level, err)
			}
			if got != h {
				t.Errorf("%v/%d: header = %+v, want %+v", codec, level, got, h)
			}
			if !bytes.Equal(decoded, block) {
				t.Errorf("%v/%d: decoded block differs", codec, level)
			}
		}
	}
}

func TestParseCompression(t *testing.T) {
	cases := []struct {
		in    string
		codec slice.Codec
		level int
		err   bool
	}{
		{in: "gzip", codec: slice.Gzip, level: 6},
		{in: "gzip/9", codec: slice.Gzip, level: 9},
		{in: "zlib/0", codec: slice.Zlib, level: 0},
		{in: "deflate/3", codec: slice.Deflate, level: 3},
		{in: "lz4/3", err: true},
		{in: "gzip/10", err: true},
		{in: "gzip/-1", err: true},
	}
	for _, c := range cases {
		comp, err := slice.ParseCompression(c.in)
		if c.err {
			if err == nil {
				t.Errorf("ParseCompression(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCompression(%q): %v", c.in, err)
			continue
		}
		if comp.Codec != c.codec || comp.Level != c.level {
			t.Errorf("ParseCompression(%q) = %+v", c.in, comp)
		}
	}
}

func TestDecodeBadMagic(t *testing.T) {
	comp := slice.Compression{Codec: slice.Gzip, Level: 6}
	path := filepath.Join(t.TempDir(), "bad.bin")

	h := testHeader(4, 1)
	h.Magic = 0xdeadbeef
	enc, err := slice.NewEncoder(path, comp, &h)
	if err != nil {
		t.Fatal(err)
	}
	enc.Append(make([]byte, 4*3))
	enc.Close()

	if _, _, err := slice.Decode(path, comp, nil); !errors.Is(err, slice.ErrCorruptSlice) {
		t.Errorf("Decode = %v, want ErrCorruptSlice", err)
	}
}

func TestDecodeBadVersion(t *testing.T) {
	comp := slice.Compression{Codec: slice.Zlib, Level: 6}
	path := filepath.Join(t.TempDir(), "version.bin")

	h := testHeader(4, 1)
	h.Version = 9
	enc, err := slice.NewEncoder(path, comp, &h)
	if err != nil {
		t.Fatal(err)
	}
	enc.Append(make([]byte, 4*3))
	enc.Close()

	if _, _, err := slice.Decode(path, comp, nil); !errors.Is(err, slice.ErrUnsupportedVersion) {
		t.Errorf("Decode = %v, want ErrUnsupportedVersion", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	comp := slice.Compression{Codec: slice.Gzip, Level: 6}
	path := filepath.Join(t.TempDir(), "short.bin")

	// Header promises two frames but only one is written.
	h := testHeader(8, 2)
	enc, err := slice.NewEncoder(path, comp, &h)
	if err != nil {
		t.Fatal(err)
	}
	enc.Append(make([]byte, 8*3))
	enc.Close()

	if _, _, err := slice.Decode(path, comp, nil); !errors.Is(err, slice.ErrCorruptSlice) {
		t.Errorf("Decode = %v, want ErrCorruptSlice", err)
	}
}

func TestDecodeNotCompressed(t *testing.T) {
	comp := slice.Compression{Codec: slice.Gzip, Level: 6}
	path := filepath.Join(t.TempDir(), "plain.bin")
	if err := os.WriteFile(path, []byte("not a gzip stream"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := slice.Decode(path, comp, nil); !errors.Is(err, slice.ErrCorruptSlice) {
		t.Errorf("Decode = %v, want ErrCorruptSlice", err)
	}
}
