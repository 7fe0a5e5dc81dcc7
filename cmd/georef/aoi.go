package main

import (
	"github.com/wgdzlh/georef"
	"github.com/wgdzlh/georef/utils"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// 测区多边形与参考图层参数
type aoiFlags struct {
	polygon   string
	bounds    string
	crs       string
	reference string
}

func (f *aoiFlags) bind(cmd *cobra.Command, needReference bool) {
	cmd.Flags().StringVarP(&f.polygon, "polygon", "p", "", "polygon file (shp, zipped shp, geojson, gpkg)")
	cmd.Flags().StringVar(&f.bounds, "bounds", "", "polygon as a rectangle: minx,miny,maxx,maxy")
	cmd.Flags().StringVar(&f.crs, "crs", "", "crs of --bounds, defaults to the reference layer crs")
	if needReference {
		cmd.Flags().StringVarP(&f.reference, "reference", "r", "", "georeferenced reference raster")
		cmd.MarkFlagRequired("reference")
	}
	cmd.MarkFlagsMutuallyExclusive("polygon", "bounds")
}

func (f *aoiFlags) loadPolygon(a *app) (poly georef.Polygon, err error) {
	switch {
	case f.polygon != "":
		poly, err = a.toolbox.LoadPolygon(f.polygon)
	case f.bounds != "":
		var v []float64
		if v, err = utils.StrToFloats(f.bounds, ","); err != nil || len(v) != 4 {
			err = errors.Wrapf(georef.ErrGeometry, "bounds %q: need minx,miny,maxx,maxy", f.bounds)
			return
		}
		poly = georef.Polygon{
			Vertices: []georef.Point{{X: v[0], Y: v[1]}, {X: v[2], Y: v[1]}, {X: v[2], Y: v[3]}, {X: v[0], Y: v[3]}},
			CRS:      f.crs,
		}
	default:
		err = georef.ErrNoPolygon
	}
	return
}

// 读取多边形并打开参考图层
func (f *aoiFlags) load(a *app) (poly georef.Polygon, layer *georef.RasterLayer, err error) {
	if poly, err = f.loadPolygon(a); err != nil {
		return
	}
	if layer, err = a.toolbox.OpenRasterLayer(f.reference, a.cfg.RenderWidth); err != nil {
		return
	}
	if poly.CRS == "" {
		poly.CRS = layer.CrsID()
	}
	return
}
