package georef

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/wgdzlh/georef/imgbuf"
)

// 8像素方块随机纹理，取值避开nodata
func blockBands(w, h int, seed int64) [][]byte {
	rng := rand.New(rand.NewSource(seed))
	const cell = 8
	cw, ch := (w+cell-1)/cell, (h+cell-1)/cell
	colors := make([][3]byte, cw*ch)
	for i := range colors {
		for c := 0; c < 3; c++ {
			colors[i][c] = byte(20 + rng.Intn(230))
		}
	}
	bands := make([][]byte, 3)
	for c := range bands {
		bands[c] = make([]byte, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				bands[c][y*w+x] = colors[(y/cell)*cw+x/cell][c]
			}
		}
	}
	return bands
}

// 写一幅1米分辨率的参考GeoTIFF，左上角为(x0, y0)
func writeReference(t *testing.T, g *GdalToolbox, path string, x0, y0 float64, w, h int) {
	t.Helper()
	img := &Resampled{
		Bands:     blockBands(w, h, 7),
		Width:     w,
		Height:    h,
		Transform: NewGeoTransform(x0, y0, 1, 1),
		CRS:       testCRS,
	}
	if err := g.WriteGeoTiff(path, img, 95); err != nil {
		t.Fatal(err)
	}
}

func TestWriteGeoTiff(t *testing.T) {
	g := NewGdalToolbox()
	dir := t.TempDir()
	out := filepath.Join(dir, "sub", "x_georef.tif")
	img := &Resampled{
		Bands:     blockBands(64, 48, 1),
		Width:     64,
		Height:    48,
		Transform: NewGeoTransform(300000, 7400048, 1, 1),
		CRS:       testCRS,
	}
	if err := g.WriteGeoTiff(out, img, 0); err != nil {
		t.Fatal(err)
	}
	info, err := g.ReadRasterInfo(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 64 || info.Height != 48 || info.Bands != OUTPUT_BANDS {
		t.Errorf("size %+v", info)
	}
	if info.Transform != img.Transform {
		t.Errorf("transform %+v", info.Transform)
	}
	if info.CRS != testCRS {
		t.Errorf("crs %q", info.CRS)
	}
	if len(info.NoData) != 3 || info.NoData[0] != 0 {
		t.Errorf("nodata %v", info.NoData)
	}
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}

	r, err := g.ReadRaster(out)
	if err != nil {
		t.Fatal(err)
	}
	// JPEG有损，只比较平均误差
	var diff float64
	for i := 0; i < 64*48; i++ {
		diff += math.Abs(float64(r.Pix[i*3]) - float64(img.Bands[0][i]))
	}
	if avg := diff / (64 * 48); avg > 12 {
		t.Errorf("mean abs error %.2f", avg)
	}

	img.Bands = img.Bands[:2]
	if err = g.WriteGeoTiff(out, img, 85); KindOf(err) != ErrIO {
		t.Errorf("two bands: %v", err)
	}
}

func TestWriteGeoTiffIgnoresTmpDir(t *testing.T) {
	dir := t.TempDir()
	// 临时目录不存在也不影响最终写出
	g := NewGdalToolbox(filepath.Join(dir, "scratch-missing"))
	defer g.Close()
	out := filepath.Join(dir, "out", "y_georef.tif")
	img := &Resampled{
		Bands:     blockBands(32, 32, 3),
		Width:     32,
		Height:    32,
		Transform: NewGeoTransform(300000, 7400032, 1, 1),
		CRS:       testCRS,
	}
	if err := g.WriteGeoTiff(out, img, 85); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Dir(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "y_georef.tif" {
		t.Errorf("unexpected files in output dir: %v", entries)
	}
	if _, err = os.Stat(filepath.Join(dir, "scratch-missing")); !os.IsNotExist(err) {
		t.Errorf("tmp dir should not be touched: %v", err)
	}
}

func TestResample(t *testing.T) {
	g := NewGdalToolbox()
	crop := imgbuf.New(100, 80, 3)
	for i := range crop.Pix {
		crop.Pix[i] = 200
	}
	src := NewGeoTransform(300000, 7400160, 2, 2)
	dst := NewGeoTransform(300000, 7400160, 1, 1)
	out, err := g.Resample(crop, src, dst, 200, 160, testCRS)
	if err != nil {
		t.Fatal(err)
	}
	if out.Width != 200 || out.Height != 160 || len(out.Bands) != 3 || out.Transform != dst {
		t.Fatalf("resampled %dx%d", out.Width, out.Height)
	}
	if v := out.Bands[1][80*200+100]; v < 198 || v > 202 {
		t.Errorf("center value %d", v)
	}
	if _, err = g.Resample(imgbuf.New(0, 0, 3), src, dst, 10, 10, testCRS); KindOf(err) != ErrCrop {
		t.Errorf("empty crop: %v", err)
	}
}

func TestRasterLayerRender(t *testing.T) {
	g := NewGdalToolbox()
	path := filepath.Join(t.TempDir(), "ref.tif")
	writeReference(t, g, path, 300000, 7400300, 400, 300)

	l, err := g.OpenRasterLayer(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	if !l.Valid() || l.CrsID() != testCRS {
		t.Fatalf("layer crs %q", l.CrsID())
	}
	if b := l.Bounds(); b != (GeoBounds{MinX: 300000, MinY: 7400000, MaxX: 300400, MaxY: 7400300}) {
		t.Errorf("layer bounds %+v", b)
	}

	poly := rect(300100, 7400100, 200, 100, testCRS)
	tile, err := l.Render(context.Background(), poly)
	if err != nil {
		t.Fatal(err)
	}
	if tile.Image.Width != 200 || tile.Image.Height != 100 || tile.Image.Channels != 3 {
		t.Errorf("tile %dx%dx%d", tile.Image.Width, tile.Image.Height, tile.Image.Channels)
	}
	if tile.Bounds != poly.Bounds() || tile.CRS != testCRS {
		t.Errorf("tile georef %+v %s", tile.Bounds, tile.CRS)
	}
	if tile.Image.IsUniform() {
		t.Error("tile lost its texture")
	}

	wkt, err := g.TransformWkt(PolygonToWkt(poly), testCRS, UNIVERSAL_CRS)
	if err != nil {
		t.Fatal(err)
	}
	gb, _ := g.GetWktBounds(wkt, UNIVERSAL_CRS)
	geoPoly := Polygon{
		Vertices: []Point{{gb.MinX, gb.MinY}, {gb.MaxX, gb.MinY}, {gb.MaxX, gb.MaxY}, {gb.MinX, gb.MaxY}},
		CRS:      UNIVERSAL_CRS,
	}
	if tile, err = l.Render(context.Background(), geoPoly); err != nil {
		t.Fatal(err)
	}
	if tile.CRS != testCRS || math.Abs(tile.Bounds.MinX-300100) > 5 || math.Abs(tile.Bounds.MaxY-7400200) > 5 {
		t.Errorf("reprojected tile bounds %+v", tile.Bounds)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err = l.Render(ctx, poly); err != context.Canceled {
		t.Errorf("cancelled render: %v", err)
	}
	if _, err = g.OpenRasterLayer(filepath.Join(t.TempDir(), "none.tif"), 0); KindOf(err) != ErrNoReference {
		t.Errorf("missing layer: %v", err)
	}
}
