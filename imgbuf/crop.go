package imgbuf

import "image"

// 求非nodata像素（任一通道不等于nodata）的外接矩形，ok为false表示全为nodata
func ValidBounds(r *Raster) (rect image.Rectangle, ok bool) {
	if r.Empty() {
		return
	}
	nd := r.NoDataValue()
	minX, minY, maxX, maxY := r.Width, r.Height, -1, -1
	for y := 0; y < r.Height; y++ {
		row := r.Pix[y*r.Stride() : (y+1)*r.Stride()]
		for x := 0; x < r.Width; x++ {
			px := row[x*r.Channels : (x+1)*r.Channels]
			valid := false
			for _, v := range px {
				if v != nd {
					valid = true
					break
				}
			}
			if !valid {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			maxY = y
		}
	}
	if maxX < 0 {
		return
	}
	rect = image.Rect(minX, minY, maxX+1, maxY+1)
	ok = true
	return
}

// 按矩形裁剪（拷贝），矩形会先与栅格范围求交
func Crop(r *Raster, rect image.Rectangle) (out *Raster, err error) {
	if r.Empty() {
		err = ErrEmptyRaster
		return
	}
	rect = rect.Intersect(r.Bounds())
	if rect.Empty() {
		err = ErrBadDimensions
		return
	}
	out = New(rect.Dx(), rect.Dy(), r.Channels)
	out.NoData = r.NoData
	rowLen := out.Stride()
	for y := 0; y < out.Height; y++ {
		src := r.Offset(rect.Min.X, rect.Min.Y+y)
		copy(out.Pix[y*rowLen:(y+1)*rowLen], r.Pix[src:src+rowLen])
	}
	return
}
