package georef

import (
	"math"
	"testing"
)

func TestCrsRef(t *testing.T) {
	g := NewGdalToolbox()
	defer g.Close()
	geo, err := g.IsGeographic(UNIVERSAL_CRS)
	if err != nil || !geo {
		t.Fatalf("4326 geographic: %v %v", geo, err)
	}
	if geo, err = g.IsGeographic(testCRS); err != nil || geo {
		t.Fatalf("utm geographic: %v %v", geo, err)
	}
	if _, err = g.IsGeographic("EPSG:not-a-code"); KindOf(err) != ErrGeometry {
		t.Errorf("bad crs: %v", err)
	}
	if _, err = g.CrsWkt(" "); err != ErrVoidCrs {
		t.Errorf("void crs: %v", err)
	}
	wkt, err := g.CrsWkt(testCRS)
	if err != nil {
		t.Fatal(err)
	}
	same, err := g.SameCrs(testCRS, wkt)
	if err != nil || !same {
		t.Errorf("epsg vs wkt: %v %v", same, err)
	}
	if same, _ = g.SameCrs(testCRS, UNIVERSAL_CRS); same {
		t.Error("utm and wgs84 reported as same")
	}
}

func TestTransformWkt(t *testing.T) {
	g := NewGdalToolbox()
	defer g.Close()
	b := GeoBounds{MinX: 113.695688629, MinY: 29.971802123, MaxX: 115.075725846, MaxY: 31.360788281}
	wkt := BoundsToWkt(b)
	ret, err := g.TransformWkt(wkt, UNIVERSAL_CRS, "EPSG:3857")
	if err != nil {
		t.Fatal(err)
	}
	mb, err := g.GetWktBounds(ret, "EPSG:3857")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(mb.MinX-12656546.2) > 1 || math.Abs(mb.MaxY-3679693.5) > 1 {
		t.Errorf("web mercator bounds %+v", mb)
	}
	back, err := g.TransformWkt(ret, "EPSG:3857", UNIVERSAL_CRS)
	if err != nil {
		t.Fatal(err)
	}
	bb, _ := g.GetWktBounds(back, UNIVERSAL_CRS)
	if math.Abs(bb.MinX-b.MinX) > 1e-7 || math.Abs(bb.MaxY-b.MaxY) > 1e-7 {
		t.Errorf("round trip bounds %+v", bb)
	}
	if same, _ := g.TransformWkt(wkt, UNIVERSAL_CRS, UNIVERSAL_CRS); same != wkt {
		t.Error("identity transform should keep the wkt")
	}
	if _, err = g.GetWktBounds("POLYGON ((0 0, 1", UNIVERSAL_CRS); err != ErrInvalidWKT {
		t.Errorf("broken wkt: %v", err)
	}
}

func TestCheckDrivers(t *testing.T) {
	if err := NewGdalToolbox().CheckDrivers(); err != nil {
		t.Fatal(err)
	}
}
