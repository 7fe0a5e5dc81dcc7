package vision

import (
	"image"

	"github.com/wgdzlh/georef/imgbuf"

	"gocv.io/x/gocv"
)

// OpenCV实现的灰度转换与有效区裁剪
type ImageOps struct{}

func (ImageOps) Gray(r *imgbuf.Raster) (*imgbuf.Raster, error) {
	return Gray(r)
}

func (ImageOps) ValidBounds(r *imgbuf.Raster) (image.Rectangle, bool) {
	return ValidBounds(r)
}

func (ImageOps) Crop(r *imgbuf.Raster, rect image.Rectangle) (*imgbuf.Raster, error) {
	return Crop(r, rect)
}

// 转灰度，输入按RGB(A)通道顺序
func Gray(r *imgbuf.Raster) (g *imgbuf.Raster, err error) {
	if r.Channels == 1 && !r.Empty() {
		g = r.Clone()
		return
	}
	src, err := toMat(r)
	if err != nil {
		return
	}
	defer src.Close()
	code := gocv.ColorRGBToGray
	if r.Channels == 4 {
		code = gocv.ColorRGBAToGray
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.CvtColor(src, &dst, code)
	return fromMat(dst, nil)
}

// 有效像素掩膜：任一通道不等于nodata即为非零
func validMask(m gocv.Mat, nodata byte) gocv.Mat {
	chans := gocv.Split(m)
	defer func() {
		for _, c := range chans {
			c.Close()
		}
	}()
	var ref gocv.Mat
	if nodata != 0 {
		ref = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(nodata), 0, 0, 0), m.Rows(), m.Cols(), gocv.MatTypeCV8UC1)
		defer ref.Close()
	}
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), m.Rows(), m.Cols(), gocv.MatTypeCV8UC1)
	diff := gocv.NewMat()
	defer diff.Close()
	for _, c := range chans {
		if nodata != 0 {
			gocv.AbsDiff(c, ref, &diff)
			gocv.BitwiseOr(mask, diff, &mask)
			continue
		}
		gocv.BitwiseOr(mask, c, &mask)
	}
	return mask
}

// 非nodata像素的外接矩形，ok为false表示全为nodata
func ValidBounds(r *imgbuf.Raster) (rect image.Rectangle, ok bool) {
	m, err := toMat(r)
	if err != nil {
		return
	}
	defer m.Close()
	mask := validMask(m, r.NoDataValue())
	defer mask.Close()
	if gocv.CountNonZero(mask) == 0 {
		return
	}
	idx := gocv.NewMat()
	defer idx.Close()
	gocv.FindNonZero(mask, &idx)
	pts := gocv.NewPointVectorFromMat(idx)
	defer pts.Close()
	rect = gocv.BoundingRect(pts)
	ok = !rect.Empty()
	return
}

// 按矩形裁剪（拷贝），矩形会先与栅格范围求交
func Crop(r *imgbuf.Raster, rect image.Rectangle) (out *imgbuf.Raster, err error) {
	m, err := toMat(r)
	if err != nil {
		return
	}
	defer m.Close()
	rect = rect.Intersect(r.Bounds())
	if rect.Empty() {
		err = imgbuf.ErrBadDimensions
		return
	}
	roi := m.Region(rect)
	cropped := roi.Clone()
	roi.Close()
	defer cropped.Close()
	return fromMat(cropped, r.NoData)
}
