package imgbuf

import (
	"errors"
	"math"
)

var ErrSingularMatrix = errors.New("perspective matrix is singular")

// 透视变换（逆向映射+双线性插值），h为行优先3x3矩阵，画布外区域填0
func WarpPerspective(src *Raster, h [9]float64, width, height int) (dst *Raster, err error) {
	if src.Empty() {
		err = ErrEmptyRaster
		return
	}
	if width <= 0 || height <= 0 {
		err = ErrBadDimensions
		return
	}
	inv, ok := invert3(h)
	if !ok {
		err = ErrSingularMatrix
		return
	}
	dst = New(width, height, src.Channels)
	dst.NoData = src.NoData
	ch := src.Channels
	maxX, maxY := float64(src.Width-1), float64(src.Height-1)
	for y := 0; y < height; y++ {
		fy := float64(y)
		for x := 0; x < width; x++ {
			fx := float64(x)
			w := inv[6]*fx + inv[7]*fy + inv[8]
			if w == 0 {
				continue
			}
			sx := (inv[0]*fx + inv[1]*fy + inv[2]) / w
			sy := (inv[3]*fx + inv[4]*fy + inv[5]) / w
			if sx < 0 || sy < 0 || sx > maxX || sy > maxY {
				continue
			}
			x0, y0 := int(sx), int(sy)
			x1, y1 := min(x0+1, src.Width-1), min(y0+1, src.Height-1)
			ax, ay := sx-float64(x0), sy-float64(y0)
			o := dst.Offset(x, y)
			for c := 0; c < ch; c++ {
				top := float64(src.At(x0, y0, c))*(1-ax) + float64(src.At(x1, y0, c))*ax
				bot := float64(src.At(x0, y1, c))*(1-ax) + float64(src.At(x1, y1, c))*ax
				dst.Pix[o+c] = byte(math.Round(top*(1-ay) + bot*ay))
			}
		}
	}
	return
}

func invert3(m [9]float64) (inv [9]float64, ok bool) {
	a, b, c := m[0], m[1], m[2]
	d, e, f := m[3], m[4], m[5]
	g, h, i := m[6], m[7], m[8]
	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
	if math.Abs(det) < 1e-12 {
		return
	}
	inv = [9]float64{
		(e*i - f*h) / det, (c*h - b*i) / det, (b*f - c*e) / det,
		(f*g - d*i) / det, (a*i - c*g) / det, (c*d - a*f) / det,
		(d*h - e*g) / det, (b*g - a*h) / det, (a*e - b*d) / det,
	}
	ok = true
	return
}
