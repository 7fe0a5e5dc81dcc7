package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wgdzlh/georef"
	"github.com/wgdzlh/georef/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp(&out)
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	a.close()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "georef.json")
	if _, err := execute(t, "config", "init", path); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "-c", path, "--quality", "70", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"jpeg_quality": 70`) || !strings.Contains(out, `"max_area_km2": 3050`) {
		t.Errorf("config output:\n%s", out)
	}
	if _, err = execute(t, "-c", path, "--warper", "cuda", "config", "show"); err == nil {
		t.Error("invalid warper accepted")
	}
}

func TestAreaCommand(t *testing.T) {
	out, err := execute(t, "area", "--bounds", "300000,7400000,300200,7400150", "--crs", "EPSG:32723")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "area:   0.030 km² (limit 3,050 km²)") {
		t.Errorf("area output:\n%s", out)
	}
	_, err = execute(t, "area", "--bounds", "300000,7400000,400000,7450000", "--crs", "EPSG:32723")
	if georef.KindOf(err) != georef.ErrAreaTooLarge {
		t.Errorf("expected area error, got %v", err)
	}
	if _, err = execute(t, "area", "--bounds", "1,2,3"); georef.KindOf(err) != georef.ErrGeometry {
		t.Errorf("expected geometry error, got %v", err)
	}
}

func TestRunNeedsReference(t *testing.T) {
	if _, err := execute(t, "run", "photo.jpg", "--bounds", "0,0,1,1"); err == nil {
		t.Error("run without --reference accepted")
	}
	_, err := execute(t, "run", "photo.jpg", "--bounds", "0,0,1,1", "-r", filepath.Join(t.TempDir(), "none.tif"))
	if georef.KindOf(err) != georef.ErrNoReference {
		t.Errorf("expected missing reference, got %v", err)
	}
}

func TestHistoryCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	s, err := store.New(db)
	if err != nil {
		t.Fatal(err)
	}
	err = s.RecordBatch(&georef.BatchReport{
		ID:        "b-1",
		State:     georef.BatchCompleted,
		OutputDir: "/out",
		StartedAt: time.Now(),
		Results: []georef.PipelineResult{
			{Input: "/in/a.jpg", Output: "/out/a_georef.tif", Success: true, Status: georef.StageDone},
			{Input: "/in/b.jpg", Status: georef.StageFailed, Kind: georef.ErrMatch, Message: "3 good matches, need 4"},
		},
	})
	s.Close()
	if err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "--history", db, "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "1/2  b-1  /out") {
		t.Errorf("history output:\n%s", out)
	}
	if out, err = execute(t, "--history", db, "history", "b-1"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "match") || !strings.Contains(out, "b.jpg  3 good matches, need 4") {
		t.Errorf("items output:\n%s", out)
	}
}

func TestCollectImages(t *testing.T) {
	imgs, err := collectImages([]string{"a.jpg", "b.jpg"}, "_georef")
	if err != nil || len(imgs) != 2 {
		t.Errorf("explicit list %v %v", imgs, err)
	}
	if imgs, err = collectImages([]string{t.TempDir()}, "_georef"); err != nil || len(imgs) != 0 {
		t.Errorf("empty dir %v %v", imgs, err)
	}
}
