package slice

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Codec is the compression algorithm framing a slice file.
type Codec int

const (
	Gzip Codec = iota
	Zlib
	Deflate
)

func (c Codec) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	case Deflate:
		return "deflate"
	}
	return "unknown"
}

// Compression pairs a codec with its level (0-9).
type Compression struct {
	Codec Codec
	Level int
}

// ParseCompression parses "gzip/6" style options. The level defaults to 6.
func ParseCompression(s string) (Compression, error) {
	parts := strings.Split(s, "/")
	if len(parts) > 2 {
		return Compression{}, fmt.Errorf("invalid compression %q, expected (gzip|zlib|deflate)[/<level>]", s)
	}
	var c Compression
	switch parts[0] {
	case "gzip":
		c.Codec = Gzip
	case "zlib":
		c.Codec = Zlib
	case "deflate":
		c.Codec = Deflate
	default:
		return Compression{}, fmt.Errorf("invalid compression codec %q, expected gzip, zlib or deflate", parts[0])
	}
	c.Level = 6
	if len(parts) == 2 {
		level, err := strconv.Atoi(parts[1])
		if err != nil || level < 0 || level > 9 {
			return Compression{}, fmt.Errorf("invalid compression level %q, expected 0-9", parts[1])
		}
		c.Level = level
	}
	return c, nil
}

// NewWriter wraps w in the configured codec's standard container.
func (c Compression) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c.Codec {
	case Gzip:
		return gzip.NewWriterLevel(w, c.Level)
	case Zlib:
		return zlib.NewWriterLevel(w, c.Level)
	case Deflate:
		return flate.NewWriter(w, c.Level)
	}
	return nil, fmt.Errorf("unknown codec %d", c.Codec)
}

// NewReader unwraps the codec container around r.
func (c Compression) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c.Codec {
	case Gzip:
		return gzip.NewReader(r)
	case Zlib:
		return zlib.NewReader(r)
	case Deflate:
		return flate.NewReader(r), nil
	}
	return nil, fmt.Errorf("unknown codec %d", c.Codec)
}

// Encoder streams one slice file: header first, then per-frame pixel chunks,
// all inside a single compression member. Bytes pass straight through a
// bounded buffer; no slice is materialized in memory.
type Encoder struct {
	file *os.File
	buf  *bufio.Writer
	zw   io.WriteCloser
}

// NewEncoder creates path and writes the header into the compressed stream.
func NewEncoder(path string, comp Compression, h *Header) (*Encoder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	zw, err := comp.NewWriter(buf)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := writeHeader(zw, h); err != nil {
		zw.Close()
		f.Close()
		return nil, err
	}
	return &Encoder{file: f, buf: buf, zw: zw}, nil
}

// Append writes one frame's worth of slab pixels.
func (e *Encoder) Append(pixels []byte) error {
	_, err := e.zw.Write(pixels)
	return err
}

// Close finalizes the compression member and the file.
func (e *Encoder) Close() error {
	zerr := e.zw.Close()
	ferr := e.buf.Flush()
	cerr := e.file.Close()
	if zerr != nil {
		return zerr
	}
	if ferr != nil {
		return ferr
	}
	return cerr
}

// Decode reads a slice file back into a header and its pixel block. block is
// reused when it has sufficient capacity, keeping workers allocation-steady
// across slices.
func Decode(path string, comp Compression, block []byte) (Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()

	zr, err := comp.NewReader(bufio.NewReader(f))
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrCorruptSlice, err)
	}
	defer zr.Close()

	h, err := readHeader(zr)
	if err != nil {
		return Header{}, nil, err
	}

	size := h.BlockSize()
	if cap(block) < size {
		block = make([]byte, size)
	}
	block = block[:size]
	if _, err := io.ReadFull(zr, block); err != nil {
		return Header{}, nil, fmt.Errorf("%w: truncated pixel block: %v", ErrCorruptSlice, err)
	}
	return h, block, nil
}
