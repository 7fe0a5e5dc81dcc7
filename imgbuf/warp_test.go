package imgbuf

import "testing"

func TestWarpIdentity(t *testing.T) {
	r := New(8, 6, 3)
	for i := range r.Pix {
		r.Pix[i] = byte(i % 251)
	}
	out, err := WarpPerspective(r, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, 8, 6)
	if err != nil {
		t.Fatal(err)
	}
	for i := range r.Pix {
		if out.Pix[i] != r.Pix[i] {
			t.Fatalf("pixel byte %d changed: %d -> %d", i, r.Pix[i], out.Pix[i])
		}
	}
}

func TestWarpTranslationLeavesNoData(t *testing.T) {
	r := New(4, 4, 1)
	for i := range r.Pix {
		r.Pix[i] = 100
	}
	// 向右平移2像素
	out, err := WarpPerspective(r, [9]float64{1, 0, 2, 0, 1, 0, 0, 0, 1}, 8, 4)
	if err != nil {
		t.Fatal(err)
	}
	rect, ok := ValidBounds(out)
	if !ok {
		t.Fatal("warped raster is empty")
	}
	if rect.Min.X != 2 || rect.Max.X != 6 || rect.Min.Y != 0 || rect.Max.Y != 4 {
		t.Errorf("valid area %v", rect)
	}
	if out.At(0, 0, 0) != 0 || out.At(7, 3, 0) != 0 {
		t.Error("area outside the source must stay zero")
	}
}

func TestWarpSingular(t *testing.T) {
	r := New(2, 2, 1)
	if _, err := WarpPerspective(r, [9]float64{}, 2, 2); err != ErrSingularMatrix {
		t.Errorf("expected ErrSingularMatrix, got %v", err)
	}
	if _, err := WarpPerspective(r, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, 0, 2); err != ErrBadDimensions {
		t.Errorf("expected ErrBadDimensions, got %v", err)
	}
}
