package georef

import "github.com/pkg/errors"

// 单张影像失败的类别
var (
	ErrInput      = errors.New("input error")
	ErrGeometry   = errors.New("geometry error")
	ErrFeature    = errors.New("not enough features")
	ErrMatch      = errors.New("not enough matches")
	ErrHomography = errors.New("homography estimation failed")
	ErrCrop       = errors.New("warped image has no valid area")
	ErrIO         = errors.New("output write failed")
	ErrDependency = errors.New("required capability unavailable")
	ErrCancelled  = errors.New("cancelled")
	ErrUnexpected = errors.New("unexpected error")
)

// 批处理开始前的配置错误
var (
	ErrNoImages      = errors.New("no input images")
	ErrNoPolygon     = errors.New("no polygon")
	ErrNoReference   = errors.New("no valid reference layer")
	ErrAreaTooLarge  = errors.New("polygon area exceeds the limit")
	ErrInvalidConfig = errors.New("invalid config")
	ErrOutputClash   = errors.New("several inputs map to the same output")
)

var (
	ErrGdalDriverCreate = errors.New("gdal driver create err")
	ErrGdalDriverOpen   = errors.New("gdal driver open err")
	ErrGdalEmptyLayer   = errors.New("gdal layer is empty")
	ErrGdalWrongGeoType = errors.New("gdal wrong geo type")
	ErrVoidCrs          = errors.New("gdal layer with void crs")
	ErrInvalidWKT       = errors.New("invalid WKT")
	ErrEmptyTif         = errors.New("empty tif")
)

var kinds = []error{
	ErrInput, ErrGeometry, ErrFeature, ErrMatch, ErrHomography, ErrCrop, ErrIO,
	ErrDependency, ErrCancelled, ErrNoImages, ErrNoPolygon, ErrNoReference,
	ErrAreaTooLarge, ErrInvalidConfig, ErrOutputClash,
}

// 错误归类，未知错误归为ErrUnexpected
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrUnexpected
}

// 已归类的错误保留原类别，未归类时为def
func kindOr(err, def error) error {
	if k := KindOf(err); k != ErrUnexpected {
		return k
	}
	return def
}

func KindName(kind error) string {
	switch kind {
	case nil:
		return ""
	case ErrInput:
		return "input"
	case ErrGeometry:
		return "geometry"
	case ErrFeature:
		return "feature"
	case ErrMatch:
		return "match"
	case ErrHomography:
		return "homography"
	case ErrCrop:
		return "crop"
	case ErrIO:
		return "io"
	case ErrDependency:
		return "dependency"
	case ErrCancelled:
		return "cancelled"
	case ErrNoImages, ErrNoPolygon, ErrNoReference, ErrAreaTooLarge, ErrInvalidConfig, ErrOutputClash:
		return "config"
	}
	return "unexpected"
}
