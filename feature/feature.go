package feature

import (
	"errors"

	"github.com/wgdzlh/georef/imgbuf"
)

var (
	ErrDescriptorMismatch = errors.New("keypoint and descriptor counts differ")
	ErrNotGray            = errors.New("detector needs a single channel image")
)

type Point struct {
	X, Y float64
}

type Keypoint struct {
	X        float64
	Y        float64
	Size     float64
	Angle    float64
	Response float64
	Octave   int
}

func (k Keypoint) Pt() Point {
	return Point{k.X, k.Y}
}

type Descriptor = []float32

// 单张影像的特征集合，Keypoints与Descriptors一一对应
type Set struct {
	Keypoints   []Keypoint
	Descriptors []Descriptor
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Keypoints)
}

// 特征检测器（如SIFT），输入为灰度图
type Detector interface {
	Detect(gray *imgbuf.Raster) ([]Keypoint, []Descriptor, error)
}

// 检测特征并做RootSIFT归一化；纯色图返回空集合
func Extract(det Detector, gray *imgbuf.Raster) (set *Set, err error) {
	if gray.Empty() {
		err = imgbuf.ErrEmptyRaster
		return
	}
	if gray.Channels != 1 {
		err = ErrNotGray
		return
	}
	set = &Set{}
	if gray.IsUniform() {
		return
	}
	kps, desc, err := det.Detect(gray)
	if err != nil {
		return
	}
	if len(kps) != len(desc) {
		err = ErrDescriptorMismatch
		return
	}
	RootSIFT(desc)
	set.Keypoints, set.Descriptors = kps, desc
	return
}
