package georef

import (
	"fmt"
	"image"
	"math"
	"strings"
)

const degToRad = math.Pi / 180

func PointsToWkt(x1, x2, y1, y2 float64) string {
	return fmt.Sprintf("POLYGON((%[1].12g %[3].12g, %[1].12g %[4].12g, %[2].12g %[4].12g, %[2].12g %[3].12g, %[1].12g %[3].12g))", x1, x2, y1, y2)
}

func BoundsToWkt(b GeoBounds) string {
	return PointsToWkt(b.MinX, b.MaxX, b.MinY, b.MaxY)
}

// 多边形转WKT（自动闭合）
func PolygonToWkt(p Polygon) string {
	if len(p.Vertices) == 0 {
		return "POLYGON EMPTY"
	}
	var sb strings.Builder
	sb.WriteString("POLYGON((")
	for i, v := range p.Vertices {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%.10g %.10g", v.X, v.Y)
	}
	if first, last := p.Vertices[0], p.Vertices[len(p.Vertices)-1]; first != last {
		fmt.Fprintf(&sb, ", %.10g %.10g", first.X, first.Y)
	}
	sb.WriteString("))")
	return sb.String()
}

// 参考瓦片每像素对应的地理尺寸
func ReferenceResolution(b GeoBounds, width, height int) (resX, resY float64) {
	if width <= 0 || height <= 0 {
		return
	}
	resX = b.Width() / float64(width)
	resY = b.Height() / float64(height)
	return
}

// 裁剪矩形（参考瓦片像素坐标，行号向南递增）对应的地理范围
func CropGeoBounds(b GeoBounds, resX, resY float64, rect image.Rectangle) GeoBounds {
	return GeoBounds{
		MinX: b.MinX + float64(rect.Min.X)*resX,
		MaxX: b.MinX + float64(rect.Max.X)*resX,
		MaxY: b.MaxY - float64(rect.Min.Y)*resY,
		MinY: b.MaxY - float64(rect.Max.Y)*resY,
	}
}

func NewGeoTransform(originX, originY, resX, resY float64) GeoTransform {
	return GeoTransform{OriginX: originX, OriginY: originY, PixelWidth: resX, PixelHeight: resY}
}

// 目标分辨率下的网格尺寸：max(1, round(范围/分辨率))
func DestinationGrid(ext GeoBounds, res float64) (width, height int) {
	width = max(1, int(math.Round(ext.Width()/res)))
	height = max(1, int(math.Round(ext.Height()/res)))
	return
}

// 参考瓦片高度（按多边形外接矩形宽高比）
func RenderHeight(b GeoBounds, width int) int {
	if b.Width() <= 0 || width <= 0 {
		return 0
	}
	return int(b.Height() / b.Width() * float64(width))
}

// 纬度lat处每度经度、纬度对应的公里数
func KmPerDegree(lat float64) (lonKm, latKm float64) {
	lonKm = KmPerDegLonEquator * math.Cos(lat*degToRad)
	latKm = KmPerDegLat
	return
}
