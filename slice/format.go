package slice

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Slice file header, stored big-endian inside the compression stream.
const (
	Magic   = 0x43504854 // "CHPT"
	Version = 1
)

var (
	// ErrCorruptSlice indicates a bad magic number or a truncated stream.
	ErrCorruptSlice = errors.New("corrupt slice file")
	// ErrUnsupportedVersion indicates a header from a different format version.
	ErrUnsupportedVersion = errors.New("unsupported slice file version")
)

// Header describes one slice file: the slab's placement in the image and the
// number of per-frame pixel blocks that follow it.
type Header struct {
	Magic    uint32
	Version  uint16
	Width    uint32
	Height   uint32
	Channels uint8
	OriginX  uint32
	OriginY  uint32
	SliceW   uint32
	SliceH   uint32
	Frames   uint32
}

// BlockSize is the byte length of the pixel block following the header.
func (h *Header) BlockSize() int {
	return int(h.Frames) * int(h.SliceW) * int(h.SliceH) * int(h.Channels)
}

// PixelCount is the number of pixels in the slab.
func (h *Header) PixelCount() int {
	return int(h.SliceW) * int(h.SliceH)
}

func writeHeader(w io.Writer, h *Header) error {
	return binary.Write(w, binary.BigEndian, h)
}

func readHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return h, fmt.Errorf("%w: truncated header", ErrCorruptSlice)
		}
		return h, err
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: bad magic 0x%08x", ErrCorruptSlice, h.Magic)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Channels != 3 && h.Channels != 4 {
		return h, fmt.Errorf("%w: %d channels", ErrCorruptSlice, h.Channels)
	}
	return h, nil
}
