package georef

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wgdzlh/georef/imgbuf"
	"github.com/wgdzlh/georef/log"

	"github.com/google/uuid"
	"github.com/lukeroth/gdal"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// 已地理参考的栅格图层，作为参考瓦片的渲染来源
type RasterLayer struct {
	Path    string
	Width   int
	toolbox *GdalToolbox
	crs     string
	bounds  GeoBounds
	bands   int
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// 打开参考栅格图层，width为渲染宽度（像素）
func (g *GdalToolbox) OpenRasterLayer(path string, width int) (l *RasterLayer, err error) {
	sds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		log.Error(g.logTag+"open reference layer failed", zap.String("path", path), zap.Error(err))
		err = errors.Wrapf(ErrNoReference, "open %s: %v", path, err)
		return
	}
	defer sds.Close()
	l = &RasterLayer{
		Path:    path,
		Width:   width,
		toolbox: g,
		bands:   sds.RasterCount(),
	}
	if l.Width <= 0 {
		l.Width = DefaultRenderWidth
	}
	if wkt := sds.Projection(); wkt != "" {
		sp := gdal.CreateSpatialReference(wkt)
		l.crs, _ = g.crsOf(sp)
		sp.Destroy()
	}
	gt := sds.GeoTransform()
	l.bounds = GeoBounds{
		MinX: gt[0],
		MaxX: gt[0] + float64(sds.RasterXSize())*gt[1],
		MaxY: gt[3],
		MinY: gt[3] + float64(sds.RasterYSize())*gt[5],
	}
	log.Info(g.logTag+"reference layer opened", zap.String("path", path), zap.String("crs", l.crs),
		zap.Int("bands", l.bands), zap.Any("bounds", l.bounds))
	return
}

func (l *RasterLayer) CrsID() string {
	return l.crs
}

func (l *RasterLayer) Valid() bool {
	return l != nil && l.crs != "" && l.bands > 0 && l.bounds.Valid()
}

func (l *RasterLayer) Bounds() GeoBounds {
	return l.bounds
}

// 渲染多边形外接矩形范围的参考瓦片，多边形坐标系不同时先转换到图层坐标系
func (l *RasterLayer) Render(ctx context.Context, poly Polygon) (tile *ReferenceTile, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	b := poly.Bounds()
	if poly.CRS != "" && poly.CRS != l.crs {
		var wkt string
		if wkt, err = l.toolbox.TransformWkt(PolygonToWkt(poly), poly.CRS, l.crs); err != nil {
			err = errors.Wrap(ErrGeometry, err.Error())
			return
		}
		if b, err = l.toolbox.GetWktBounds(wkt, l.crs); err != nil {
			return
		}
	}
	return l.toolbox.RenderReference(l.Path, l.crs, b, l.Width)
}

// 从栅格图层截取bounds范围，输出width像素宽、按宽高比计算高度的RGB参考瓦片
func (g *GdalToolbox) RenderReference(layer, crs string, b GeoBounds, width int) (tile *ReferenceTile, err error) {
	height := RenderHeight(b, width)
	if !b.Valid() || height <= 0 {
		err = errors.Wrapf(ErrGeometry, "render size %dx%d", width, height)
		return
	}
	sds, err := gdal.Open(layer, gdal.ReadOnly)
	if err != nil {
		err = errors.Wrapf(ErrInput, "open %s: %v", layer, err)
		return
	}
	defer sds.Close()
	opts := []string{
		"-of", MEM_DRIVER_NAME,
		"-projwin", ftoa(b.MinX), ftoa(b.MaxY), ftoa(b.MaxX), ftoa(b.MinY),
		"-outsize", strconv.Itoa(width), strconv.Itoa(height),
		"-r", "bilinear",
	}
	bc := sds.RasterCount()
	switch {
	case bc >= 3:
		opts = append(opts, "-b", "1", "-b", "2", "-b", "3")
	case bc >= 1:
		opts = append(opts, "-b", "1", "-b", "1", "-b", "1")
	default:
		err = errors.Wrapf(ErrInput, "layer %s has no bands", layer)
		return
	}
	if sds.RasterBand(1).RasterDataType() != gdal.Byte {
		opts = append(opts, "-ot", "Byte", "-scale")
	}
	ods, err := gdal.Translate("", sds, opts)
	if err != nil {
		log.Error(g.logTag+"render reference failed", zap.String("layer", layer), zap.Error(err))
		err = errors.Wrapf(ErrInput, "render %s: %v", layer, err)
		return
	}
	defer ods.Close()
	bands, err := readBands(ods, OUTPUT_BANDS)
	if err != nil {
		return
	}
	img, err := imgbuf.Merge(ods.RasterXSize(), ods.RasterYSize(), bands...)
	if err != nil {
		return
	}
	tile = &ReferenceTile{Image: img, Bounds: b, CRS: crs}
	log.Info(g.logTag+"reference tile rendered", zap.String("layer", layer), zap.Int("width", img.Width), zap.Int("height", img.Height))
	return
}

func readBands(ds gdal.Dataset, n int) (bands [][]byte, err error) {
	w, h := ds.RasterXSize(), ds.RasterYSize()
	if ds.RasterCount() < n {
		err = errors.Wrapf(ErrEmptyTif, "%d bands, need %d", ds.RasterCount(), n)
		return
	}
	bands = make([][]byte, n)
	for i := 0; i < n; i++ {
		bands[i] = make([]byte, w*h)
		if err = ds.RasterBand(i+1).IO(gdal.Read, 0, 0, w, h, bands[i], w, h, 0, 0); err != nil {
			return
		}
	}
	return
}

func writeBands(ds gdal.Dataset, bands [][]byte, w, h int) (err error) {
	for i, b := range bands {
		band := ds.RasterBand(i + 1)
		if err = band.SetNoDataValue(NODATA_VALUE); err != nil {
			return
		}
		if err = band.IO(gdal.Write, 0, 0, w, h, b, w, h, 0, 0); err != nil {
			return
		}
	}
	return
}

// 将裁剪后的影像（src为其仿射参数）三次卷积重采样到dst网格，0为nodata
func (g *GdalToolbox) Resample(crop *imgbuf.Raster, src, dst GeoTransform, width, height int, crs string) (out *Resampled, err error) {
	if crop.Empty() || width <= 0 || height <= 0 {
		err = errors.Wrapf(ErrCrop, "resample %dx%d", width, height)
		return
	}
	wkt, err := g.CrsWkt(crs)
	if err != nil {
		return
	}
	driver, err := gdal.GetDriverByName(MEM_DRIVER_NAME)
	if err != nil {
		err = errors.Wrap(ErrDependency, err.Error())
		return
	}
	sds := driver.Create("", crop.Width, crop.Height, crop.Channels, gdal.Byte, nil)
	if sds == emptyDataset {
		err = ErrGdalDriverCreate
		return
	}
	defer sds.Close()
	if err = sds.SetGeoTransform(src.ToGDAL()); err != nil {
		return
	}
	if err = sds.SetProjection(wkt); err != nil {
		return
	}
	bands := make([][]byte, crop.Channels)
	for c := range bands {
		if bands[c], err = crop.Channel(c); err != nil {
			return
		}
	}
	if err = writeBands(sds, bands, crop.Width, crop.Height); err != nil {
		return
	}
	ext := dst.Extent(width, height)
	opts := []string{
		"-of", MEM_DRIVER_NAME,
		"-r", RESAMPLE_ALG,
		"-srcnodata", "0",
		"-dstnodata", "0",
		"-wo", "UNIFIED_SRC_NODATA=NO",
		"-te", ftoa(ext.MinX), ftoa(ext.MinY), ftoa(ext.MaxX), ftoa(ext.MaxY),
		"-ts", strconv.Itoa(width), strconv.Itoa(height),
	}
	ods, err := gdal.Warp("", nil, []gdal.Dataset{sds}, opts)
	if err != nil {
		log.Error(g.logTag+"resample failed", zap.Error(err))
		err = errors.Wrap(ErrDependency, err.Error())
		return
	}
	defer ods.Close()
	if bands, err = readBands(ods, crop.Channels); err != nil {
		return
	}
	out = &Resampled{Bands: bands, Width: width, Height: height, Transform: dst, CRS: crs}
	return
}

// 写出GeoTIFF（JPEG压缩、YCbCr、nodata为0），先在输出目录写临时文件再改名
func (g *GdalToolbox) WriteGeoTiff(out string, img *Resampled, quality int) (err error) {
	if img == nil || len(img.Bands) != OUTPUT_BANDS || img.Width <= 0 || img.Height <= 0 {
		err = errors.Wrap(ErrIO, "output needs 3 non-empty bands")
		return
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	wkt, err := g.CrsWkt(img.CRS)
	if err != nil {
		return
	}
	driver, err := gdal.GetDriverByName(GTIFF_DRIVER_NAME)
	if err != nil {
		err = errors.Wrap(ErrDependency, err.Error())
		return
	}
	if err = os.MkdirAll(filepath.Dir(out), os.ModePerm); err != nil {
		err = errors.Wrap(ErrIO, err.Error())
		return
	}
	// 临时文件与输出同目录，保证改名不跨文件系统
	tmp := filepath.Join(filepath.Dir(out), filepath.Base(out)+"."+uuid.NewString()+".tmp")
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	opts := []string{GTIFF_COMPRESS, fmt.Sprintf(GTIFF_QUALITY, quality), GTIFF_PHOTOMETRIC, GTIFF_TILED}
	ds := driver.Create(tmp, img.Width, img.Height, OUTPUT_BANDS, gdal.Byte, opts)
	if ds == emptyDataset {
		err = errors.Wrapf(ErrIO, "create %s", tmp)
		return
	}
	if err = ds.SetGeoTransform(img.Transform.ToGDAL()); err == nil {
		if err = ds.SetProjection(wkt); err == nil {
			err = writeBands(ds, img.Bands, img.Width, img.Height)
		}
	}
	ds.Close() // 关闭时落盘
	if err != nil {
		log.Error(g.logTag+"write geotiff failed", zap.String("out", out), zap.Error(err))
		err = errors.Wrap(ErrIO, err.Error())
		return
	}
	if err = os.Rename(tmp, out); err != nil {
		err = errors.Wrap(ErrIO, err.Error())
		return
	}
	log.Info(g.logTag+"geotiff written", zap.String("out", out), zap.Int("width", img.Width), zap.Int("height", img.Height))
	return
}

// 读取GeoTIFF的基本信息
type RasterInfo struct {
	Width     int
	Height    int
	Bands     int
	Transform GeoTransform
	CRS       string
	NoData    []float64
}

func (g *GdalToolbox) ReadRasterInfo(path string) (info RasterInfo, err error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		err = errors.Wrap(ErrInput, err.Error())
		return
	}
	defer ds.Close()
	gt := ds.GeoTransform()
	info = RasterInfo{
		Width:     ds.RasterXSize(),
		Height:    ds.RasterYSize(),
		Bands:     ds.RasterCount(),
		Transform: GeoTransform{OriginX: gt[0], OriginY: gt[3], PixelWidth: gt[1], PixelHeight: -gt[5]},
	}
	if wkt := ds.Projection(); wkt != "" {
		sp := gdal.CreateSpatialReference(wkt)
		info.CRS, _ = g.crsOf(sp)
		sp.Destroy()
	}
	for i := 1; i <= info.Bands; i++ {
		if v, ok := ds.RasterBand(i).NoDataValue(); ok {
			info.NoData = append(info.NoData, v)
		}
	}
	return
}

// 读取GeoTIFF像素（交错存储）
func (g *GdalToolbox) ReadRaster(path string) (r *imgbuf.Raster, err error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		err = errors.Wrap(ErrInput, err.Error())
		return
	}
	defer ds.Close()
	bands, err := readBands(ds, ds.RasterCount())
	if err != nil {
		return
	}
	return imgbuf.Merge(ds.RasterXSize(), ds.RasterYSize(), bands...)
}
