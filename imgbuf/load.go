package imgbuf

import (
	"os"

	"github.com/disintegration/imaging"

	_ "github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// 读取照片（jpg/png/tif/bmp/webp），按EXIF方向自动旋正
func Load(path string) (r *Raster, err error) {
	if _, err = os.Stat(path); err != nil {
		return
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return
	}
	r = FromImage(img)
	return
}

// 保存为png（调试和测试用）
func Save(r *Raster, path string) (err error) {
	img, err := r.ToImage()
	if err != nil {
		return
	}
	return imaging.Save(img, path)
}
