package georef

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/wgdzlh/georef/utils"

	"github.com/pkg/errors"
)

func footprintResults() []PipelineResult {
	return []PipelineResult{
		{Input: "/in/a.jpg", Output: "/out/a_georef.tif", Success: true, Width: 200, Height: 100,
			GeoTransform: NewGeoTransform(300000, 7400100, 1, 1)},
		{Input: "/in/b.jpg", Kind: ErrFeature},
		{Input: "/in/c.jpg", Output: "/out/c_georef.tif", Success: true, Width: 50, Height: 40,
			GeoTransform: NewGeoTransform(300500, 7400040, 1, 1)},
	}
}

func TestFootprintsRoundTrip(t *testing.T) {
	g := NewGdalToolbox()
	dir := t.TempDir()
	for _, name := range []string{"index.shp", "index.geojson", "index.gpkg"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			cnt, err := g.WriteFootprints(path, testCRS, footprintResults())
			if err != nil {
				t.Fatal(err)
			}
			if cnt != 2 {
				t.Errorf("wrote %d footprints", cnt)
			}
			poly, err := g.LoadPolygon(path)
			if err != nil {
				t.Fatal(err)
			}
			if len(poly.Vertices) != 4 {
				t.Errorf("vertices %v", poly.Vertices)
			}
			if b := poly.Bounds(); b != (GeoBounds{MinX: 300000, MinY: 7400000, MaxX: 300200, MaxY: 7400100}) {
				t.Errorf("largest footprint bounds %+v", b)
			}
			if same, _ := g.SameCrs(poly.CRS, testCRS); !same {
				t.Errorf("crs %q", poly.CRS)
			}
		})
	}
	// 重复写出时覆盖旧文件
	path := filepath.Join(dir, "index.shp")
	if cnt, err := g.WriteFootprints(path, testCRS, footprintResults()[2:]); err != nil || cnt != 1 {
		t.Fatalf("rewrite: %d %v", cnt, err)
	}
	poly, err := g.LoadPolygon(path)
	if err != nil {
		t.Fatal(err)
	}
	if b := poly.Bounds(); b.Width() != 50 || b.Height() != 40 {
		t.Errorf("rewritten bounds %+v", b)
	}
}

func TestLoadPolygonZip(t *testing.T) {
	g := NewGdalToolbox(t.TempDir())
	dir := t.TempDir()
	shp := filepath.Join(dir, "aoi.shp")
	if _, err := g.WriteFootprints(shp, testCRS, footprintResults()); err != nil {
		t.Fatal(err)
	}
	zipPath := filepath.Join(dir, "aoi.zip")
	zf, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(zf)
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		w, err := zw.Create("aoi/aoi" + ext)
		if err != nil {
			t.Fatal(err)
		}
		f, err := os.Open(filepath.Join(dir, "aoi"+ext))
		if err != nil {
			t.Fatal(err)
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
	}
	if err = zw.Close(); err != nil {
		t.Fatal(err)
	}
	zf.Close()
	utils.RemoveShapefile(shp)

	poly, err := g.LoadPolygon(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	if b := poly.Bounds(); b.Width() != 200 || b.Height() != 100 {
		t.Errorf("zip polygon bounds %+v", b)
	}
}

func TestLoadPolygonErrors(t *testing.T) {
	g := NewGdalToolbox()
	dir := t.TempDir()
	if _, err := g.LoadPolygon(filepath.Join(dir, "none.shp")); !errors.Is(err, ErrGdalDriverOpen) {
		t.Errorf("missing file: %v", err)
	}
	empty := filepath.Join(dir, "empty.shp")
	if _, err := g.WriteFootprints(empty, testCRS, footprintResults()[1:2]); err != nil {
		t.Fatal(err)
	}
	if _, err := g.LoadPolygon(empty); !errors.Is(err, ErrGdalEmptyLayer) {
		t.Errorf("empty layer: %v", err)
	}
	bad := filepath.Join(dir, "bad.zip")
	os.WriteFile(bad, []byte("not a zip"), 0644)
	if _, err := g.LoadPolygon(bad); KindOf(err) != ErrInput {
		t.Errorf("bad zip: %v", err)
	}
}
