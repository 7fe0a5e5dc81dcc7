package vision

import (
	"errors"

	"github.com/wgdzlh/georef/feature"
	"github.com/wgdzlh/georef/imgbuf"

	"gocv.io/x/gocv"
)

var ErrUnsupportedChannels = errors.New("unsupported channel count")

func matType(channels int) (mt gocv.MatType, err error) {
	switch channels {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
		mt = gocv.MatTypeCV8UC3
	case 4:
		mt = gocv.MatTypeCV8UC4
	default:
		err = ErrUnsupportedChannels
	}
	return
}

// 栅格转Mat，调用方负责Close
func toMat(r *imgbuf.Raster) (m gocv.Mat, err error) {
	if r.Empty() {
		err = imgbuf.ErrEmptyRaster
		return
	}
	mt, err := matType(r.Channels)
	if err != nil {
		return
	}
	return gocv.NewMatFromBytes(r.Height, r.Width, mt, r.Pix)
}

func fromMat(m gocv.Mat, nodata *byte) (r *imgbuf.Raster, err error) {
	if m.Empty() {
		err = imgbuf.ErrEmptyRaster
		return
	}
	r = &imgbuf.Raster{
		Width:    m.Cols(),
		Height:   m.Rows(),
		Channels: m.Channels(),
		Pix:      m.ToBytes(),
		NoData:   nodata,
	}
	if len(r.Pix) != r.Width*r.Height*r.Channels {
		r, err = nil, imgbuf.ErrBadDimensions
	}
	return
}

func descriptorsToMat(desc []feature.Descriptor) (m gocv.Mat, err error) {
	if len(desc) == 0 {
		err = imgbuf.ErrEmptyRaster
		return
	}
	dim := len(desc[0])
	m = gocv.NewMatWithSize(len(desc), dim, gocv.MatTypeCV32F)
	for i, d := range desc {
		if len(d) != dim {
			m.Close()
			err = feature.ErrDimensionMismatch
			return
		}
		for j, v := range d {
			m.SetFloatAt(i, j, v)
		}
	}
	return
}

func homographyToMat(h *feature.Homography) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for i, v := range h.H {
		m.SetDoubleAt(i/3, i%3, v)
	}
	return m
}

// OpenCV版本，启动时记录日志用
func Version() string {
	return gocv.OpenCVVersion()
}
