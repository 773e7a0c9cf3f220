package frames

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Range restricts and strides a file list: frames [Start, End) taking every
// Step-th. End <= 0 means up to the last file.
type Range struct {
	Start int
	End   int
	Step  int
}

// ParseRange parses "lo/hi" or "lo/hi/step" style options.
func ParseRange(s string) (Range, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return Range{}, fmt.Errorf("invalid frame range %q, expected <lo>/<hi>[/<step>]", s)
	}
	r := Range{Step: 1}
	var err error
	if r.Start, err = strconv.Atoi(parts[0]); err != nil || r.Start < 0 {
		return Range{}, fmt.Errorf("invalid frame range start %q", parts[0])
	}
	if r.End, err = strconv.Atoi(parts[1]); err != nil {
		return Range{}, fmt.Errorf("invalid frame range end %q", parts[1])
	}
	if len(parts) == 3 {
		if r.Step, err = strconv.Atoi(parts[2]); err != nil || r.Step < 1 {
			return Range{}, fmt.Errorf("invalid frame range step %q", parts[2])
		}
	}
	return r, nil
}

// Apply selects the ranged subset of a sorted file list.
func (r Range) Apply(files []string) []string {
	end := r.End
	if end <= 0 || end > len(files) {
		end = len(files)
	}
	if r.Start >= end {
		return nil
	}
	var out []string
	for i := r.Start; i < end; i += r.Step {
		out = append(out, files[i])
	}
	return out
}

// FileSource decodes image files matching a glob pattern, in lexical order.
type FileSource struct {
	paths []string
}

// NewFileSource expands pattern and applies the optional frame range.
func NewFileSource(pattern string, rng *Range) (*FileSource, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	sort.Strings(paths)
	if rng != nil {
		paths = rng.Apply(paths)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files found for pattern %q", pattern)
	}
	log.Infof("Found %d input frames", len(paths))
	return &FileSource{paths: paths}, nil
}

func (s *FileSource) Count() int { return len(s.paths) }

// Paths returns the resolved file list, in frame order.
func (s *FileSource) Paths() []string { return s.paths }

func (s *FileSource) Frames() (Iterator, error) {
	return &fileIterator{paths: s.paths}, nil
}

type fileIterator struct {
	paths []string
	next  int
	f     Frame
}

// Next decodes the next file into packed RGB or RGBA bytes. OpenCV decodes
// BGR-ordered; channels are swapped here so downstream code only ever sees
// RGB(A).
func (it *fileIterator) Next() (*Frame, error) {
	if it.next >= len(it.paths) {
		return nil, nil
	}
	path := it.paths[it.next]

	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	if mat.Empty() {
		return nil, fmt.Errorf("unable to decode image %v", path)
	}
	defer mat.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	switch mat.Channels() {
	case 1:
		gocv.CvtColor(mat, &rgb, gocv.ColorGrayToBGR)
	case 3:
		gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGB)
	case 4:
		gocv.CvtColor(mat, &rgb, gocv.ColorBGRAToRGBA)
	default:
		return nil, fmt.Errorf("%w: %v has %d channels", ErrInconsistentFrame, path, mat.Channels())
	}

	it.f = Frame{
		Index:    it.next,
		Width:    rgb.Cols(),
		Height:   rgb.Rows(),
		Channels: rgb.Channels(),
		Pixels:   rgb.ToBytes(),
	}
	it.next++
	return &it.f, nil
}

func (it *fileIterator) Close() error { return nil }
