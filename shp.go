package georef

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wgdzlh/georef/log"
	"github.com/wgdzlh/georef/utils"

	"github.com/lukeroth/gdal"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// 按扩展名选择矢量驱动
func vectorDriverName(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case FILE_EXT_JSON, FILE_EXT_GEOJSON:
		return GEOJSON_DRIVER_NAME
	case FILE_EXT_GPKG:
		return GPKG_DRIVER_NAME
	}
	return SHP_DRIVER_NAME
}

// 读取矢量文件（shp/zip压缩的shp/GeoJSON/GPKG）第一个图层的多边形；多个要素时取面积最大的多边形外环
func (g *GdalToolbox) LoadPolygon(path string) (poly Polygon, err error) {
	log.Info(g.logTag+"load polygon", zap.String("path", path))
	if strings.EqualFold(filepath.Ext(path), utils.FILE_EXT_ZIP) {
		parent := g.tmpDir
		if parent == "" {
			parent = os.TempDir()
		}
		var dir string
		if dir, err = utils.GetUniqSubDir(parent); err != nil {
			return
		}
		defer os.RemoveAll(dir)
		if path, err = utils.GetShpInZip(path, dir); err != nil {
			err = errors.Wrap(ErrInput, err.Error())
			return
		}
	}
	driver := gdal.OGRDriverByName(vectorDriverName(path))
	ds, ok := driver.Open(path, 0)
	if !ok {
		err = errors.Wrapf(ErrGdalDriverOpen, "open %s", path)
		return
	}
	defer ds.Destroy()
	var (
		layer   = ds.LayerByIndex(0)
		feature *gdal.Feature
		best    gdal.Geometry
		bestA   float64
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	if poly.CRS, err = g.crsOf(layer.SpatialReference()); err != nil {
		return
	}
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		geo := feature.Geometry()
		if geo == emptyGeometry {
			continue
		}
		switch geo.Type() {
		case gdal.GT_Polygon:
			if a := geo.Area(); a > bestA {
				best, bestA = geo, a
			}
		case gdal.GT_MultiPolygon:
			for i, n := 0, geo.GeometryCount(); i < n; i++ {
				sub := geo.Geometry(i)
				if a := sub.Area(); a > bestA {
					best, bestA = sub, a
				}
			}
		default:
			log.Warn(g.logTag+"skip non-polygon feature", zap.Uint("type", uint(geo.Type())))
		}
	}
	if bestA <= 0 {
		err = errors.Wrapf(ErrGdalEmptyLayer, "no polygon in %s", path)
		return
	}
	ring := best.Geometry(0)
	for i, n := 0, ring.PointCount(); i < n; i++ {
		x, y, _ := ring.Point(i)
		poly.Vertices = append(poly.Vertices, Point{x, y})
	}
	if n := len(poly.Vertices); n > 1 && poly.Vertices[0] == poly.Vertices[n-1] {
		poly.Vertices = poly.Vertices[:n-1]
	}
	err = poly.Validate()
	log.Info(g.logTag+"polygon loaded", zap.String("crs", poly.CRS), zap.Int("vertices", len(poly.Vertices)))
	return
}

func (g *GdalToolbox) getVectorDriver(path, crs string) (ds gdal.DataSource, layer gdal.Layer, err error) {
	name := vectorDriverName(path)
	log.Info(g.logTag+"output vector file", zap.String("path", path), zap.String("driver", name), zap.String("crs", crs))
	ref, err := g.getCrsRef(crs)
	if err != nil {
		return
	}
	if name == SHP_DRIVER_NAME {
		utils.RemoveShapefile(path)
	} else {
		os.Remove(path)
	}
	driver := gdal.OGRDriverByName(name)
	ds, ok := driver.Create(path, nil)
	if !ok {
		err = ErrGdalDriverCreate
		return
	}
	var opts []string
	if name == SHP_DRIVER_NAME {
		opts = []string{ENCODING_OPTION}
	}
	layer = ds.CreateLayer(utils.GetFilenameWithoutExt(path), ref, gdal.GT_Polygon, opts)
	return
}

func (g *GdalToolbox) initFootprintLayer(layer gdal.Layer) (err error) {
	for _, name := range []string{SHP_FIELD_IMAGE, SHP_FIELD_OUTPUT} {
		fd := gdal.CreateFieldDefinition(name, gdal.FT_String)
		fd.SetWidth(254)
		err = layer.CreateField(fd, false)
		fd.Destroy()
		if err != nil {
			return
		}
	}
	fd := gdal.CreateFieldDefinition(SHP_FIELD_RES, gdal.FT_Real)
	err = layer.CreateField(fd, false)
	fd.Destroy()
	return
}

// 将成功结果的输出范围写为矢量索引（每个输出一个矩形），crs为结果所在坐标系
func (g *GdalToolbox) WriteFootprints(path, crs string, results []PipelineResult) (cnt int, err error) {
	ref, err := g.getCrsRef(crs)
	if err != nil {
		return
	}
	ds, layer, err := g.getVectorDriver(path, crs)
	if err != nil {
		return
	}
	defer ds.Destroy() // 生成文件 + 释放资源
	if err = g.initFootprintLayer(layer); err != nil {
		return
	}
	var (
		def     = layer.Definition()
		imgIdx  = def.FieldIndex(SHP_FIELD_IMAGE)
		outIdx  = def.FieldIndex(SHP_FIELD_OUTPUT)
		resIdx  = def.FieldIndex(SHP_FIELD_RES)
		feature gdal.Feature
		geo     gdal.Geometry
		e       error
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for _, r := range results {
		if !r.Success {
			continue
		}
		feature = def.Create()
		gc = append(gc, feature)
		feature.SetFieldString(imgIdx, filepath.Base(r.Input))
		feature.SetFieldString(outIdx, filepath.Base(r.Output))
		feature.SetFieldFloat64(resIdx, r.GeoTransform.PixelWidth)
		if geo, e = g.parseWKT(BoundsToWkt(r.GeoTransform.Extent(r.Width, r.Height)), ref); e != nil {
			continue
		}
		if e = feature.SetGeometryDirectly(geo); e != nil {
			log.Error(g.logTag+"err in set geom of feature", zap.Error(e))
			continue
		}
		if e = layer.Create(feature); e != nil {
			log.Error(g.logTag+"err in create feature of layer", zap.Error(e))
			continue
		}
		cnt++
	}
	log.Info(g.logTag+"footprints written", zap.String("path", path), zap.Int("total", len(results)), zap.Int("valid", cnt))
	return
}
