package imgbuf

import (
	"image"
	"testing"
)

func TestValidBounds(t *testing.T) {
	cases := []struct {
		name string
		px   [][2]int
		want image.Rectangle
		ok   bool
	}{
		{"empty", nil, image.Rectangle{}, false},
		{"single", [][2]int{{3, 4}}, image.Rect(3, 4, 4, 5), true},
		{"spread", [][2]int{{1, 7}, {8, 2}}, image.Rect(1, 2, 9, 8), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := New(10, 10, 3)
			for _, p := range c.px {
				r.Set(p[0], p[1], 2, 1)
			}
			got, ok := ValidBounds(r)
			if ok != c.ok || got != c.want {
				t.Errorf("got %v %v, want %v %v", got, ok, c.want, c.ok)
			}
		})
	}
}

func TestValidBoundsCustomNoData(t *testing.T) {
	r := New(4, 4, 1)
	for i := range r.Pix {
		r.Pix[i] = 255
	}
	nd := byte(255)
	r.NoData = &nd
	if _, ok := ValidBounds(r); ok {
		t.Fatal("all pixels equal nodata")
	}
	r.Set(1, 1, 0, 0)
	got, ok := ValidBounds(r)
	if !ok || got != image.Rect(1, 1, 2, 2) {
		t.Errorf("got %v %v", got, ok)
	}
}

func TestCrop(t *testing.T) {
	r := New(6, 4, 1)
	for i := range r.Pix {
		r.Pix[i] = byte(i)
	}
	c, err := Crop(r, image.Rect(2, 1, 5, 3))
	if err != nil {
		t.Fatal(err)
	}
	if c.Width != 3 || c.Height != 2 {
		t.Fatalf("crop is %dx%d", c.Width, c.Height)
	}
	want := []byte{8, 9, 10, 14, 15, 16}
	for i, v := range want {
		if c.Pix[i] != v {
			t.Fatalf("crop pixel %d: got %d want %d", i, c.Pix[i], v)
		}
	}
	if _, err = Crop(r, image.Rect(10, 10, 12, 12)); err != ErrBadDimensions {
		t.Errorf("expected ErrBadDimensions, got %v", err)
	}
}
