package pipeline

import (
	"fmt"
	"math"

	"chronophoto/pixel"
	"chronophoto/slice"
)

// processor drives the per-pixel analysis across one loaded slice. Each
// worker owns one processor; every buffer is reused across pixels and slices,
// so the per-pixel path performs no heap allocation.
type processor struct {
	channels int
	width    int

	analyzer *pixel.Analyzer
	selector *pixel.Selector
	bg       pixel.BackgroundPolicy

	block []byte
	vec   []uint8
	bgc   [4]float64
	stats pixel.Stats
}

func newProcessor(opts *Options, width, channels int) *processor {
	return &processor{
		channels: channels,
		width:    width,
		analyzer: pixel.NewAnalyzer(channels, opts.Sample),
		selector: pixel.NewSelector(opts.Threshold, opts.Pick, opts.Weights, channels),
		bg:       opts.Background,
	}
}

// processSlice decodes one slice file and writes its output pixels and blend
// mask entries. out and mask are the shared final buffers; the region's pixel
// run is disjoint from every other slice, so no locking is involved.
func (p *processor) processSlice(path string, comp slice.Compression, r slice.Region, out, mask []byte) error {
	h, block, err := slice.Decode(path, comp, p.block)
	if err != nil {
		return err
	}
	p.block = block

	if h.PixelCount() != r.Pixels || int(h.OriginX) != r.OriginX || int(h.OriginY) != r.OriginY {
		return fmt.Errorf("%w: header %dx%d@(%d,%d) does not match region of %d pixels",
			slice.ErrCorruptSlice, h.SliceW, h.SliceH, h.OriginX, h.OriginY, r.Pixels)
	}

	n := int(h.Frames)
	ch := p.channels
	if cap(p.vec) < n*ch {
		p.vec = make([]uint8, n*ch)
	}
	vec := p.vec[:n*ch]

	for i := 0; i < r.Pixels; i++ {
		for t := 0; t < n; t++ {
			off := (t*r.Pixels + i) * ch
			copy(vec[t*ch:(t+1)*ch], block[off:off+ch])
		}

		idx := r.Start + i
		x, y := idx%p.width, idx/p.width

		p.analyzer.Compute(vec, n, &p.stats)
		p.selector.Classify(vec, n, &p.stats)
		p.bg.Background(vec, ch, p.selector.Background(), &p.stats, x, y, p.bgc[:])
		fg, alpha := p.selector.Select(vec, p.bgc[:])

		pixel.BlendInto(out[idx*ch:], fg, p.bgc[:], alpha, ch)
		mask[idx] = uint8(math.Round(alpha * 255))
	}
	return nil
}
