package georef

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/wgdzlh/georef/imgbuf"

	"github.com/pkg/errors"
)

type Point struct {
	X, Y float64
}

// 地理范围（参考瓦片所在坐标系）
type GeoBounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

func (b GeoBounds) Width() float64 {
	return b.MaxX - b.MinX
}

func (b GeoBounds) Height() float64 {
	return b.MaxY - b.MinY
}

func (b GeoBounds) Valid() bool {
	return b.Width() > 0 && b.Height() > 0 &&
		!math.IsNaN(b.MinX) && !math.IsNaN(b.MinY) && !math.IsInf(b.MaxX, 0) && !math.IsInf(b.MaxY, 0)
}

func (b GeoBounds) Center() Point {
	return Point{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2}
}

// 正北向的仿射变换参数
type GeoTransform struct {
	OriginX     float64 `json:"origin_x"`
	OriginY     float64 `json:"origin_y"`
	PixelWidth  float64 `json:"pixel_width"`
	PixelHeight float64 `json:"pixel_height"` // 正值，行号向南递增
}

// GDAL六参数
func (t GeoTransform) ToGDAL() [6]float64 {
	return [6]float64{t.OriginX, t.PixelWidth, 0, t.OriginY, 0, -t.PixelHeight}
}

func (t GeoTransform) PixelToGeo(col, row float64) (x, y float64) {
	x = t.OriginX + col*t.PixelWidth
	y = t.OriginY - row*t.PixelHeight
	return
}

// width*height网格覆盖的范围
func (t GeoTransform) Extent(width, height int) GeoBounds {
	return GeoBounds{
		MinX: t.OriginX,
		MinY: t.OriginY - float64(height)*t.PixelHeight,
		MaxX: t.OriginX + float64(width)*t.PixelWidth,
		MaxY: t.OriginY,
	}
}

// 多边形（隐式闭合）
type Polygon struct {
	Vertices []Point `json:"vertices"`
	CRS      string  `json:"crs"`
}

func (p Polygon) Bounds() (b GeoBounds) {
	if len(p.Vertices) == 0 {
		return
	}
	b = GeoBounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, v := range p.Vertices {
		b.MinX = math.Min(b.MinX, v.X)
		b.MinY = math.Min(b.MinY, v.Y)
		b.MaxX = math.Max(b.MaxX, v.X)
		b.MaxY = math.Max(b.MaxY, v.Y)
	}
	return
}

// 至少3个不同顶点，外接矩形非退化
func (p Polygon) Validate() error {
	distinct := map[Point]struct{}{}
	for _, v := range p.Vertices {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
			return errors.Wrap(ErrGeometry, "non-finite vertex")
		}
		distinct[v] = struct{}{}
	}
	if len(distinct) < 3 {
		return errors.Wrapf(ErrGeometry, "polygon needs at least 3 distinct vertices, got %d", len(distinct))
	}
	if !p.Bounds().Valid() {
		return errors.Wrap(ErrGeometry, "polygon bounding box is degenerate")
	}
	return nil
}

// 参考数据源的能力接口
type ReferenceProvider interface {
	CrsID() string
	Valid() bool
}

// 参考瓦片：渲染好的参考影像及其地理范围
type ReferenceTile struct {
	Image  *imgbuf.Raster
	Bounds GeoBounds
	CRS    string
}

func (t *ReferenceTile) CrsID() string {
	if t == nil {
		return ""
	}
	return t.CRS
}

func (t *ReferenceTile) Valid() bool {
	return t != nil && !t.Image.Empty() && t.Bounds.Valid()
}

// 按多边形范围渲染参考瓦片
type Renderer interface {
	Render(ctx context.Context, poly Polygon) (*ReferenceTile, error)
}

// 直接使用已渲染好的瓦片
type StaticRenderer struct {
	Tile *ReferenceTile
}

func (s StaticRenderer) Render(ctx context.Context, poly Polygon) (*ReferenceTile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Tile.Valid() {
		return nil, ErrNoReference
	}
	return s.Tile, nil
}

func (s StaticRenderer) CrsID() string {
	return s.Tile.CrsID()
}

func (s StaticRenderer) Valid() bool {
	return s.Tile.Valid()
}

// 重采样结果，Bands按R、G、B分通道存储
type Resampled struct {
	Bands     [][]byte
	Width     int
	Height    int
	Transform GeoTransform
	CRS       string
}

// 单张影像的处理阶段
type Stage int

const (
	StagePending Stage = iota
	StageRendering
	StageLoading
	StageExtracting
	StageMatching
	StageEstimating
	StageWarping
	StageCropping
	StageResampling
	StageWriting
	StageDone
	StageFailed
	StageCancelled
)

var stageNames = [...]string{
	"pending", "rendering", "loading", "extracting", "matching", "estimating",
	"warping", "cropping", "resampling", "writing", "done", "failed", "cancelled",
}

// 阶段在单张影像进度中的百分比
var stagePercent = [...]float64{0, 5, 15, 25, 50, 70, 85, 88, 92, 95, 100, 100, 100}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) Percent() float64 {
	if s < 0 || int(s) >= len(stagePercent) {
		return 0
	}
	return stagePercent[s]
}

func (s Stage) Terminal() bool {
	return s >= StageDone
}

type BatchState int

const (
	BatchIdle BatchState = iota
	BatchRunning
	BatchCancelled
	BatchCompleted
)

func (s BatchState) String() string {
	switch s {
	case BatchIdle:
		return "idle"
	case BatchRunning:
		return "running"
	case BatchCancelled:
		return "cancelled"
	case BatchCompleted:
		return "completed"
	}
	return fmt.Sprintf("batch(%d)", int(s))
}

// 单张影像的处理结果
type PipelineResult struct {
	Input        string        `json:"input"`
	Output       string        `json:"output,omitempty"`
	Success      bool          `json:"success"`
	Status       Stage         `json:"status"` // StageDone、StageFailed或StageCancelled
	Stage        Stage         `json:"stage"`  // 最后进入的阶段
	Kind         error         `json:"-"`
	Message      string        `json:"message"`
	Matches      int           `json:"matches"`
	Inliers      int           `json:"inliers"`
	GeoTransform GeoTransform  `json:"geo_transform"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	CRS          string        `json:"crs,omitempty"`
	Duration     time.Duration `json:"duration"`
}

func (r PipelineResult) KindName() string {
	return KindName(r.Kind)
}

// 批处理报告，每个输入恰有一个结果
type BatchReport struct {
	ID         string           `json:"id"`
	State      BatchState       `json:"state"`
	OutputDir  string           `json:"output_dir"`
	Results    []PipelineResult `json:"results"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

func (r *BatchReport) Succeeded() (ret []PipelineResult) {
	for _, v := range r.Results {
		if v.Success {
			ret = append(ret, v)
		}
	}
	return
}

// 失败及被取消的结果
func (r *BatchReport) Failed() (ret []PipelineResult) {
	for _, v := range r.Results {
		if !v.Success {
			ret = append(ret, v)
		}
	}
	return
}

func (r *BatchReport) Summary() string {
	var sb strings.Builder
	ok, failed := r.Succeeded(), r.Failed()
	fmt.Fprintf(&sb, "batch %s %s: %d of %d images georeferenced\n", r.ID, r.State, len(ok), len(r.Results))
	for _, v := range ok {
		fmt.Fprintf(&sb, "  ok    %s -> %s\n", filepath.Base(v.Input), filepath.Base(v.Output))
	}
	for _, v := range failed {
		fmt.Fprintf(&sb, "  fail  %s: %s\n", filepath.Base(v.Input), v.Message)
	}
	return sb.String()
}
