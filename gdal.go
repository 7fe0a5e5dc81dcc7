package georef

import (
	"strings"
	"sync"

	"github.com/wgdzlh/georef/log"

	"github.com/lukeroth/gdal"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type GdalToolbox struct {
	refMap map[string]gdal.SpatialReference
	rLock  sync.Mutex
	tmpDir string
	logTag string
}

// 由GDAL库C语言创建的内存对象，需要手动调用Destroy回收
type destroyable interface {
	Destroy()
}

var (
	emptyGeometry = gdal.Geometry{}
	emptyDataset  = gdal.Dataset{}
)

// 初始化GDAL工具箱，tmpDir为可选的临时目录路径（未提供的话为输出文件所在目录）
func NewGdalToolbox(tmpDir ...string) *GdalToolbox {
	g := &GdalToolbox{
		refMap: map[string]gdal.SpatialReference{},
		logTag: "GdalToolbox:",
	}
	if len(tmpDir) > 0 && tmpDir[0] != "" {
		g.tmpDir = tmpDir[0]
	}
	return g
}

// 获取crs对应的坐标系（可复用，故无需回收），crs可为EPSG:xxxx、WKT或PROJ串
func (g *GdalToolbox) getCrsRef(crs string) (ref gdal.SpatialReference, err error) {
	crs = strings.TrimSpace(crs)
	if crs == "" {
		err = ErrVoidCrs
		return
	}
	g.rLock.Lock()
	defer g.rLock.Unlock()
	ref, ok := g.refMap[crs]
	if ok {
		return
	}
	ref = gdal.CreateSpatialReference("")
	if err = ref.SetFromUserInput(crs); err != nil {
		log.Error(g.logTag+"set ref crs failed", zap.String("crs", crs), zap.Error(err))
		ref.Destroy()
		err = errors.Wrapf(ErrGeometry, "unknown crs %q", crs)
		return
	}
	// 数据轴次序固定为(经度,纬度)/(东,北)，避免坐标转换时次序倒置
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	g.refMap[crs] = ref
	return
}

// 从坐标系对象得到crs标识，优先EPSG编码，否则用WKT
func (g *GdalToolbox) crsOf(sp gdal.SpatialReference) (crs string, err error) {
	wkt, err := sp.ToWKT()
	if err != nil || wkt == "" {
		err = ErrVoidCrs
		return
	}
	log.Debug(g.logTag+"spatial ref attrs", zap.String("attr", wkt))
	name, _ := sp.AttrValue("AUTHORITY", 0)
	code, ok := sp.AttrValue("AUTHORITY", 1)
	if ok && strings.EqualFold(name, "EPSG") && code != "" {
		crs = "EPSG:" + code
		return
	}
	crs = wkt
	return
}

// crs对应的WKT
func (g *GdalToolbox) CrsWkt(crs string) (wkt string, err error) {
	ref, err := g.getCrsRef(crs)
	if err != nil {
		return
	}
	wkt, err = ref.ToWKT()
	return
}

// 是否为地理（经纬度）坐标系
func (g *GdalToolbox) IsGeographic(crs string) (ok bool, err error) {
	ref, err := g.getCrsRef(crs)
	if err != nil {
		return
	}
	ok = ref.IsGeographic()
	return
}

func (g *GdalToolbox) SameCrs(a, b string) (same bool, err error) {
	if a == b {
		same = true
		return
	}
	refA, err := g.getCrsRef(a)
	if err != nil {
		return
	}
	refB, err := g.getCrsRef(b)
	if err != nil {
		return
	}
	same = refA.IsSame(refB)
	return
}

// 检查流水线所需的GDAL驱动
func (g *GdalToolbox) CheckDrivers() (err error) {
	for _, name := range []string{GTIFF_DRIVER_NAME, MEM_DRIVER_NAME} {
		if _, e := gdal.GetDriverByName(name); e != nil {
			log.Error(g.logTag+"gdal driver missing", zap.String("driver", name), zap.Error(e))
			err = errors.Wrapf(ErrDependency, "gdal driver %s", name)
			return
		}
	}
	return
}

func (g *GdalToolbox) parseWKT(wkt string, ref gdal.SpatialReference) (ret gdal.Geometry, err error) {
	ret, err = gdal.CreateFromWKT(wkt, ref)
	if err != nil {
		log.Error(g.logTag+"parse wkt failed", zap.Error(err))
		err = ErrInvalidWKT
	}
	return
}

// 多边形转GDAL几何对象，调用方负责Destroy
func (g *GdalToolbox) polygonGeometry(poly Polygon) (geo gdal.Geometry, err error) {
	ref, err := g.getCrsRef(poly.CRS)
	if err != nil {
		return
	}
	return g.parseWKT(PolygonToWkt(poly), ref)
}

// 转换WKT坐标系
func (g *GdalToolbox) TransformWkt(wkt, crs, tCrs string) (ret string, err error) {
	if tCrs == crs {
		ret = wkt
		return
	}
	ref, err := g.getCrsRef(crs)
	if err != nil {
		return
	}
	tRef, err := g.getCrsRef(tCrs)
	if err != nil {
		return
	}
	geo, err := g.parseWKT(wkt, ref)
	if err != nil {
		return
	}
	defer geo.Destroy()
	if err = geo.TransformTo(tRef); err != nil {
		log.Error(g.logTag+"geo transform failed", zap.Error(err))
		return
	}
	ret, err = geo.ToWKT()
	return
}

// 获取WKT范围
func (g *GdalToolbox) GetWktBounds(wkt, crs string) (b GeoBounds, err error) {
	ref, err := g.getCrsRef(crs)
	if err != nil {
		return
	}
	geo, err := g.parseWKT(wkt, ref)
	if err != nil {
		return
	}
	defer geo.Destroy()
	envelope := geo.Envelope()
	b = GeoBounds{MinX: envelope.MinX(), MinY: envelope.MinY(), MaxX: envelope.MaxX(), MaxY: envelope.MaxY()}
	return
}

// 释放缓存的坐标系对象
func (g *GdalToolbox) Close() {
	g.rLock.Lock()
	defer g.rLock.Unlock()
	for k, ref := range g.refMap {
		ref.Destroy()
		delete(g.refMap, k)
	}
}
