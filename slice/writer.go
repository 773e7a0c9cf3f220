package slice

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"chronophoto/frames"
)

// Set is the on-disk result of one slicing pass: K slice files plus the
// layout needed to reassemble them.
type Set struct {
	Files       []string
	Regions     []Region
	Width       int
	Height      int
	Channels    int
	Frames      int
	Compression Compression
}

// Remove deletes all slice files. Failures are logged but never returned so
// cleanup cannot mask a primary error.
func (s *Set) Remove() {
	for _, path := range s.Files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.WithField("path", path).Errorf("Unable to delete slice file: %v", err)
		}
	}
}

// WriteSlices transposes the frame sequence into K compressed slice files
// under dir, one streaming pass over the input. Exactly one encoder per slice
// is open at a time; no slice is materialized in memory. On error the partial
// files are removed before returning.
func WriteSlices(src frames.Iterator, count int, policy Policy, comp Compression, dir string) (set *Set, err error) {
	id := runID()

	var encoders []*Encoder
	defer func() {
		for _, e := range encoders {
			if e != nil {
				e.Close()
			}
		}
		if err != nil && set != nil {
			set.Remove()
			set = nil
		}
	}()

	t := 0
	for {
		frame, ferr := src.Next()
		if ferr != nil {
			return set, ferr
		}
		if frame == nil {
			break
		}

		if set == nil {
			set = &Set{
				Width:       frame.Width,
				Height:      frame.Height,
				Channels:    frame.Channels,
				Frames:      count,
				Regions:     policy.Partition(frame.Width, frame.Height),
				Compression: comp,
			}
			if frame.Channels != 3 && frame.Channels != 4 {
				return set, fmt.Errorf("%w: frame 0 has %d channels, want 3 or 4",
					frames.ErrInconsistentFrame, frame.Channels)
			}
			encoders = make([]*Encoder, len(set.Regions))
			for i, r := range set.Regions {
				path := filepath.Join(dir, fmt.Sprintf("slice-%s-%05d.bin", id, i))
				h := Header{
					Magic:    Magic,
					Version:  Version,
					Width:    uint32(set.Width),
					Height:   uint32(set.Height),
					Channels: uint8(set.Channels),
					OriginX:  uint32(r.OriginX),
					OriginY:  uint32(r.OriginY),
					SliceW:   uint32(r.SliceW),
					SliceH:   uint32(r.SliceH),
					Frames:   uint32(count),
				}
				enc, eerr := NewEncoder(path, comp, &h)
				if eerr != nil {
					return set, eerr
				}
				encoders[i] = enc
				set.Files = append(set.Files, path)
			}
			log.Infof("Time-slicing %d frames into %d slices", count, len(set.Regions))
		}

		if cerr := frame.Check(set.Width, set.Height, set.Channels); cerr != nil {
			return set, cerr
		}
		for i, r := range set.Regions {
			start := r.Start * set.Channels
			end := start + r.Pixels*set.Channels
			if aerr := encoders[i].Append(frame.Pixels[start:end]); aerr != nil {
				return set, aerr
			}
		}
		t++
	}

	if set == nil {
		return nil, fmt.Errorf("empty frame sequence")
	}
	if t != count {
		return set, fmt.Errorf("%w: source yielded %d frames, expected %d",
			frames.ErrInconsistentFrame, t, count)
	}

	for i, e := range encoders {
		if cerr := e.Close(); cerr != nil {
			encoders[i] = nil
			return set, cerr
		}
		encoders[i] = nil
	}
	encoders = nil
	return set, nil
}

// runID distinguishes slice files of concurrent runs sharing a temp dir.
func runID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "000000000000"
	}
	return hex.EncodeToString(b[:])
}
