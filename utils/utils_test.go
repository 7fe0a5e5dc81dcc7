package utils

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestStrToFloats(t *testing.T) {
	v, err := StrToFloats(" 1.5, 2,,-3e2 ", ",")
	if err != nil || len(v) != 3 || v[2] != -300 {
		t.Errorf("got %v %v", v, err)
	}
	if _, err = StrToFloats("1,x", ","); err == nil {
		t.Error("expected parse error")
	}
}

func TestListImagesAndOutputPath(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.JPG", "a.png", "a_georef.tif", "notes.txt"} {
		os.WriteFile(filepath.Join(dir, n), nil, 0644)
	}
	os.Mkdir(filepath.Join(dir, "sub.jpg"), os.ModePerm)
	imgs, err := ListImages(dir, "_georef")
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 2 || filepath.Base(imgs[0]) != "a.png" || filepath.Base(imgs[1]) != "b.JPG" {
		t.Errorf("images %v", imgs)
	}
	if out := OutputPath("/out", "/in/IMG_01.jpeg", "_georef", ".tif"); out != "/out/IMG_01_georef.tif" {
		t.Errorf("output %s", out)
	}
}

func writeZip(t *testing.T, path string, names ...string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, n := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: n, Method: zip.Store, NonUTF8: true})
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte("data"))
	}
	if err = zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestGetShpInZip(t *testing.T) {
	dir := t.TempDir()
	gbk, _ := simplifiedchinese.GBK.NewEncoder().String("测区.shp")
	zipPath := filepath.Join(dir, "aoi.zip")
	writeZip(t, zipPath, "x/"+gbk, "x/readme.txt")
	shp, err := GetShpInZip(zipPath, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(shp) != "测区.shp" {
		t.Errorf("shp %q", shp)
	}

	noShp := filepath.Join(dir, "none.zip")
	writeZip(t, noShp, "a.txt")
	if _, err = GetShpInZip(noShp, filepath.Join(dir, "out2")); err != ErrNoShpInZip {
		t.Errorf("expected ErrNoShpInZip, got %v", err)
	}
	slip := filepath.Join(dir, "slip.zip")
	writeZip(t, slip, "../evil.shp")
	if _, err = GetShpInZip(slip, filepath.Join(dir, "out3")); err != ErrZipSlip {
		t.Errorf("expected ErrZipSlip, got %v", err)
	}
}

func TestRemoveShapefile(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{".shp", ".dbf", ".prj", ".txt"} {
		os.WriteFile(filepath.Join(dir, "a"+ext), nil, 0644)
	}
	RemoveShapefile(filepath.Join(dir, "a.shp"))
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		t.Errorf("left %v", entries)
	}
}
