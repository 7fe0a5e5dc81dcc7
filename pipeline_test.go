package georef

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/wgdzlh/georef/imgbuf"
)

type scene struct {
	g     *GdalToolbox
	layer *RasterLayer
	poly  Polygon
	photo string
	dir   string
}

// 参考图层800x600米，多边形600x400米；照片为参考瓦片经缩放旋转平移后的影像
func newScene(t *testing.T) *scene {
	t.Helper()
	s := &scene{g: NewGdalToolbox(), dir: t.TempDir()}
	ref := filepath.Join(s.dir, "ref.tif")
	writeReference(t, s.g, ref, 300000, 7400600, 800, 600)
	var err error
	if s.layer, err = s.g.OpenRasterLayer(ref, 600); err != nil {
		t.Fatal(err)
	}
	s.poly = rect(300100, 7400100, 600, 400, testCRS)
	tile, err := s.layer.Render(context.Background(), s.poly)
	if err != nil {
		t.Fatal(err)
	}
	a := 4 * math.Pi / 180
	sc := 0.85
	h := [9]float64{
		sc * math.Cos(a), -sc * math.Sin(a), 30,
		sc * math.Sin(a), sc * math.Cos(a), 20,
		0, 0, 1,
	}
	img, err := imgbuf.WarpPerspective(tile.Image, h, 560, 400)
	if err != nil {
		t.Fatal(err)
	}
	s.photo = filepath.Join(s.dir, "in", "photo.png")
	if err = imgbuf.Save(img, s.photo); err != nil {
		t.Fatal(err)
	}
	return s
}

func (s *scene) run(t *testing.T, cfg Config, out string) PipelineResult {
	t.Helper()
	p, err := NewGeoreferencer(cfg, s.g)
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	res, err := p.GeoreferenceImage(context.Background(), s.photo, out, s.poly, s.layer, sink)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("%s failed at %s: %s", res.KindName(), res.Stage, res.Message)
	}
	checkProgress(t, sink, true)
	return res
}

func TestGeoreferenceEndToEnd(t *testing.T) {
	s := newScene(t)
	out := filepath.Join(s.dir, "out", "photo_georef.tif")
	res := s.run(t, DefaultConfig(), out)
	if res.Inliers < 20 {
		t.Errorf("only %d inliers of %d matches", res.Inliers, res.Matches)
	}
	info, err := s.g.ReadRasterInfo(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Bands != 3 || info.CRS != testCRS || info.Transform.PixelWidth != 1 || info.Transform.PixelHeight != 1 {
		t.Errorf("output %+v", info)
	}
	ext := info.Transform.Extent(info.Width, info.Height)
	tb := s.poly.Bounds()
	if ext.MinX < tb.MinX-1 || ext.MaxX > tb.MaxX+1 || ext.MinY < tb.MinY-1 || ext.MaxY > tb.MaxY+1 {
		t.Errorf("output extent %+v outside tile %+v", ext, tb)
	}
	if ext.Width() < 450 || ext.Height() < 300 {
		t.Errorf("output extent too small: %+v", ext)
	}
	if len(info.NoData) != 3 {
		t.Errorf("nodata %v", info.NoData)
	}

	again := s.run(t, DefaultConfig(), filepath.Join(s.dir, "out", "again.tif"))
	if again.GeoTransform != res.GeoTransform || again.Width != res.Width || again.Inliers != res.Inliers {
		t.Errorf("not deterministic: %+v vs %+v", again.GeoTransform, res.GeoTransform)
	}
}

func TestGeoreferenceGoWarperCoarse(t *testing.T) {
	s := newScene(t)
	cfg := DefaultConfig()
	cfg.Warper = WarperGo
	cfg.TargetResolution = 2
	out := filepath.Join(s.dir, "coarse.tif")
	res := s.run(t, cfg, out)
	if res.GeoTransform.PixelWidth != 2 {
		t.Errorf("resolution %v", res.GeoTransform.PixelWidth)
	}
	info, err := s.g.ReadRasterInfo(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != res.Width || info.Height != res.Height || info.Width > 301 {
		t.Errorf("coarse grid %dx%d", info.Width, info.Height)
	}
}

func TestGeoreferenceKeepReferenceResolution(t *testing.T) {
	s := newScene(t)
	cfg := DefaultConfig()
	cfg.TargetResolution = 0
	res := s.run(t, cfg, filepath.Join(s.dir, "native.tif"))
	// 瓦片600像素对应600米
	if math.Abs(res.GeoTransform.PixelWidth-1) > 1e-9 {
		t.Errorf("resolution %v", res.GeoTransform.PixelWidth)
	}
}
