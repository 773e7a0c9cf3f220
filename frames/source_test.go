package frames_test

import (
	"errors"
	"testing"

	"chronophoto/frames"
)

func TestParseRange(t *testing.T) {
	cases := []struct {
		in   string
		want frames.Range
		err  bool
	}{
		{in: "0/10", want: frames.Range{Start: 0, End: 10, Step: 1}},
		{in: "5/0/2", want: frames.Range{Start: 5, End: 0, Step: 2}},
		{in: "3/9/3", want: frames.Range{Start: 3, End: 9, Step: 3}},
		{in: "10", err: true},
		{in: "-1/10", err: true},
		{in: "0/10/0", err: true},
		{in: "a/b", err: true},
	}
	for _, c := range cases {
		r, err := frames.ParseRange(c.in)
		if c.err {
			if err == nil {
				t.Errorf("ParseRange(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRange(%q): %v", c.in, err)
			continue
		}
		if r != c.want {
			t.Errorf("ParseRange(%q) = %+v, want %+v", c.in, r, c.want)
		}
	}
}

func TestRangeApply(t *testing.T) {
	files := []string{"a", "b", "c", "d", "e", "f"}
	cases := []struct {
		r    frames.Range
		want []string
	}{
		{r: frames.Range{Start: 0, End: 0, Step: 1}, want: files},
		{r: frames.Range{Start: 2, End: 5, Step: 1}, want: []string{"c", "d", "e"}},
		{r: frames.Range{Start: 0, End: 0, Step: 2}, want: []string{"a", "c", "e"}},
		{r: frames.Range{Start: 1, End: 100, Step: 3}, want: []string{"b", "e"}},
		{r: frames.Range{Start: 10, End: 0, Step: 1}, want: nil},
	}
	for _, c := range cases {
		got := c.r.Apply(files)
		if len(got) != len(c.want) {
			t.Errorf("%+v: Apply = %v, want %v", c.r, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("%+v: Apply = %v, want %v", c.r, got, c.want)
				break
			}
		}
	}
}

func TestMemSourceReplayable(t *testing.T) {
	data := [][]byte{
		{1, 2, 3},
		{4, 5, 6},
	}
	src := frames.NewMemSource(1, 1, 3, data)
	if src.Count() != 2 {
		t.Fatalf("Count = %d", src.Count())
	}

	for pass := 0; pass < 2; pass++ {
		it, err := src.Frames()
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; ; i++ {
			f, err := it.Next()
			if err != nil {
				t.Fatal(err)
			}
			if f == nil {
				if i != 2 {
					t.Fatalf("pass %d ended after %d frames", pass, i)
				}
				break
			}
			if f.Index != i || f.Pixels[0] != data[i][0] {
				t.Fatalf("pass %d frame %d = %+v", pass, i, f)
			}
		}
		it.Close()
	}
}

func TestFrameCheck(t *testing.T) {
	f := &frames.Frame{Index: 3, Width: 4, Height: 4, Channels: 3}
	if err := f.Check(4, 4, 3); err != nil {
		t.Errorf("Check: %v", err)
	}
	if err := f.Check(4, 4, 4); !errors.Is(err, frames.ErrInconsistentFrame) {
		t.Errorf("Check = %v, want ErrInconsistentFrame", err)
	}
}
