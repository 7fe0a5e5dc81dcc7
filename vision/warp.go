package vision

import (
	"image"
	"image/color"

	"github.com/wgdzlh/georef/feature"
	"github.com/wgdzlh/georef/imgbuf"

	"gocv.io/x/gocv"
)

// OpenCV透视变换（双线性插值，边界填0）
type PerspectiveWarper struct{}

func (PerspectiveWarper) Warp(src *imgbuf.Raster, h *feature.Homography, width, height int) (dst *imgbuf.Raster, err error) {
	if width <= 0 || height <= 0 {
		err = imgbuf.ErrBadDimensions
		return
	}
	in, err := toMat(src)
	if err != nil {
		return
	}
	defer in.Close()
	m := homographyToMat(h)
	defer m.Close()
	out := gocv.NewMat()
	defer out.Close()
	gocv.WarpPerspectiveWithParams(in, &out, m, image.Pt(width, height),
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	return fromMat(out, src.NoData)
}
