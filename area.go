package georef

import (
	"math"

	"github.com/wgdzlh/georef/log"

	"github.com/golang/geo/s2"
	"github.com/lukeroth/gdal"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// 多边形面积（km²）：投影坐标系转到WGS84经纬度后按椭球等面积计算，地理坐标系用经纬度近似
func (g *GdalToolbox) PolygonAreaKm2(poly Polygon) (area float64, err error) {
	if err = poly.Validate(); err != nil {
		return
	}
	geographic, err := g.IsGeographic(poly.CRS)
	if err != nil {
		return
	}
	if geographic {
		area = ApproxGeographicAreaKm2(poly.Bounds())
		log.Warn(g.logTag+"geographic crs, area approximated from bounds", zap.String("crs", poly.CRS), zap.Float64("km2", area))
		return
	}
	lonLat, err := g.toLonLat(poly)
	if err != nil {
		return
	}
	area = SphericalAreaKm2(lonLat)
	log.Debug(g.logTag+"polygon area", zap.String("crs", poly.CRS), zap.Float64("km2", area))
	return
}

// 面积预检，超过maxKm2返回ErrAreaTooLarge
func (g *GdalToolbox) CheckPolygonArea(poly Polygon, maxKm2 float64) (area float64, err error) {
	if area, err = g.PolygonAreaKm2(poly); err != nil {
		return
	}
	if area > maxKm2 {
		err = errors.Wrapf(ErrAreaTooLarge, "%.2f km² > %.2f km²", area, maxKm2)
	}
	return
}

func (g *GdalToolbox) toLonLat(poly Polygon) (pts []Point, err error) {
	geo, err := g.polygonGeometry(poly)
	if err != nil {
		return
	}
	defer geo.Destroy()
	tRef, err := g.getCrsRef(UNIVERSAL_CRS)
	if err != nil {
		return
	}
	if err = geo.TransformTo(tRef); err != nil {
		log.Error(g.logTag+"geo transform failed", zap.Error(err))
		err = errors.Wrap(ErrGeometry, err.Error())
		return
	}
	if geo.Type() != gdal.GT_Polygon || geo.GeometryCount() == 0 {
		err = ErrGdalWrongGeoType
		return
	}
	ring := geo.Geometry(0)
	n := ring.PointCount()
	for i := 0; i < n; i++ {
		x, y, _ := ring.Point(i)
		pts = append(pts, Point{x, y})
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return
}

// 经纬度外接矩形面积近似
func ApproxGeographicAreaKm2(b GeoBounds) float64 {
	lonKm, latKm := KmPerDegree(b.Center().Y)
	return b.Width() * lonKm * b.Height() * latKm
}

var (
	wgs84E2 = WGS84Flattening * (2 - WGS84Flattening)
	wgs84E  = math.Sqrt(wgs84E2)
	wgs84Qp = authalicQ(math.Pi / 2)
)

func authalicQ(phi float64) float64 {
	s := math.Sin(phi)
	return (1 - wgs84E2) * (s/(1-wgs84E2*s*s) - math.Log((1-wgs84E*s)/(1+wgs84E*s))/(2*wgs84E))
}

// WGS84大地纬度转等面积纬度（度）
func AuthalicLatitude(lat float64) float64 {
	v := authalicQ(lat*math.Pi/180) / wgs84Qp
	return math.Asin(math.Max(-1, math.Min(1, v))) * 180 / math.Pi
}

// WGS84经纬度多边形面积：纬度换算为等面积纬度后在等面积球面上计算
func SphericalAreaKm2(lonLat []Point) float64 {
	if len(lonLat) < 3 {
		return 0
	}
	pts := make([]s2.Point, 0, len(lonLat))
	for _, p := range lonLat {
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(AuthalicLatitude(p.Y), p.X)))
	}
	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return loop.Area() * AuthalicRadius * AuthalicRadius / 1e6
}

// 两点间大圆距离（米）
func GreatCircleMeters(a, b Point) float64 {
	la := s2.LatLngFromDegrees(a.Y, a.X)
	lb := s2.LatLngFromDegrees(b.Y, b.X)
	return float64(la.Distance(lb)) * AuthalicRadius
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}
