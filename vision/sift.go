package vision

import (
	"github.com/wgdzlh/georef/feature"
	"github.com/wgdzlh/georef/imgbuf"

	"gocv.io/x/gocv"
)

// 基于OpenCV的SIFT检测器
type SIFT struct{}

func (SIFT) Detect(gray *imgbuf.Raster) (kps []feature.Keypoint, desc []feature.Descriptor, err error) {
	if gray.Channels != 1 {
		err = feature.ErrNotGray
		return
	}
	src, err := toMat(gray)
	if err != nil {
		return
	}
	defer src.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	sift := gocv.NewSIFT()
	defer sift.Close()
	cvKps, cvDesc := sift.DetectAndCompute(src, mask)
	defer cvDesc.Close()
	if len(cvKps) == 0 || cvDesc.Empty() {
		return
	}
	rows, cols := cvDesc.Rows(), cvDesc.Cols()
	if rows != len(cvKps) {
		err = feature.ErrDescriptorMismatch
		return
	}
	kps = make([]feature.Keypoint, rows)
	desc = make([]feature.Descriptor, rows)
	for i, k := range cvKps {
		kps[i] = feature.Keypoint{
			X:        k.X,
			Y:        k.Y,
			Size:     k.Size,
			Angle:    k.Angle,
			Response: k.Response,
			Octave:   k.Octave,
		}
		d := make(feature.Descriptor, cols)
		for j := range d {
			d[j] = cvDesc.GetFloatAt(i, j)
		}
		desc[i] = d
	}
	return
}
