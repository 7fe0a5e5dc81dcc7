package georef

import (
	"fmt"
	"image"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/wgdzlh/georef/feature"
	"github.com/wgdzlh/georef/imgbuf"
	"github.com/wgdzlh/georef/log"
	"github.com/wgdzlh/georef/vision"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// 透视变换到参考瓦片画布
type Warper interface {
	Warp(src *imgbuf.Raster, h *feature.Homography, width, height int) (*imgbuf.Raster, error)
}

// 重采样到目标网格
type Resampler interface {
	Resample(crop *imgbuf.Raster, src, dst GeoTransform, width, height int, crs string) (*Resampled, error)
}

type RasterWriter interface {
	WriteGeoTiff(out string, img *Resampled, quality int) error
}

type ImageLoader func(path string) (*imgbuf.Raster, error)

// 灰度转换、有效区外接矩形与裁剪
type ImageOps interface {
	Gray(r *imgbuf.Raster) (*imgbuf.Raster, error)
	ValidBounds(r *imgbuf.Raster) (image.Rectangle, bool)
	Crop(r *imgbuf.Raster, rect image.Rectangle) (*imgbuf.Raster, error)
}

// 纯Go透视变换
type GoWarper struct{}

func (GoWarper) Warp(src *imgbuf.Raster, h *feature.Homography, width, height int) (*imgbuf.Raster, error) {
	return imgbuf.WarpPerspective(src, h.H, width, height)
}

// 纯Go影像操作，与GoWarper搭配
type GoImageOps struct{}

func (GoImageOps) Gray(r *imgbuf.Raster) (*imgbuf.Raster, error) {
	return r.Gray()
}

func (GoImageOps) ValidBounds(r *imgbuf.Raster) (image.Rectangle, bool) {
	return imgbuf.ValidBounds(r)
}

func (GoImageOps) Crop(r *imgbuf.Raster, rect image.Rectangle) (*imgbuf.Raster, error) {
	return imgbuf.Crop(r, rect)
}

// 自动地理配准流水线
type Georeferencer struct {
	cfg       Config
	toolbox   *GdalToolbox
	loader    ImageLoader
	detector  feature.Detector
	matcher   *feature.Matcher
	warper    Warper
	ops       ImageOps
	resampler Resampler
	writer    RasterWriter
	logTag    string
}

type Option func(*Georeferencer)

func WithLoader(l ImageLoader) Option {
	return func(p *Georeferencer) { p.loader = l }
}

func WithDetector(d feature.Detector) Option {
	return func(p *Georeferencer) { p.detector = d }
}

func WithSearcher(s feature.KnnSearcher) Option {
	return func(p *Georeferencer) { p.matcher.Searcher = s }
}

func WithWarper(w Warper) Option {
	return func(p *Georeferencer) { p.warper = w }
}

func WithImageOps(o ImageOps) Option {
	return func(p *Georeferencer) { p.ops = o }
}

func WithResampler(r Resampler) Option {
	return func(p *Georeferencer) { p.resampler = r }
}

func WithWriter(w RasterWriter) Option {
	return func(p *Georeferencer) { p.writer = w }
}

// 创建流水线，默认使用OpenCV的SIFT/BFMatcher/透视变换与GDAL重采样、写出
func NewGeoreferencer(cfg Config, toolbox *GdalToolbox, opts ...Option) (p *Georeferencer, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	if toolbox == nil {
		toolbox = NewGdalToolbox(cfg.TmpDir)
	}
	p = &Georeferencer{
		cfg:       cfg,
		toolbox:   toolbox,
		loader:    imgbuf.Load,
		detector:  vision.SIFT{},
		matcher:   feature.NewMatcher(vision.BFMatcher{}, cfg.RatioThreshold),
		warper:    vision.PerspectiveWarper{},
		ops:       vision.ImageOps{},
		resampler: toolbox,
		writer:    toolbox,
		logTag:    "Georeferencer:",
	}
	if cfg.Warper == WarperGo {
		p.warper = GoWarper{}
		p.ops = GoImageOps{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return
}

func (p *Georeferencer) ransacOptions() feature.RansacOptions {
	return feature.RansacOptions{
		Threshold:  p.cfg.ReprojThreshold,
		MaxIters:   p.cfg.RansacIters,
		Confidence: p.cfg.RansacConfidence,
		MinInliers: p.cfg.MinInliers,
		Seed:       p.cfg.RansacSeed,
	}
}

// 单张影像的运行状态
type imageRun struct {
	idx    int
	input  string
	output string
	tile   *ReferenceTile
	prog   *progress
	res    PipelineResult
	start  time.Time
	stage  time.Time
}

// 进入下一阶段，返回false表示已取消
func (r *imageRun) enter(s Stage) bool {
	if r.res.Stage != StagePending && !r.stage.IsZero() {
		observeStage(r.res.Stage, r.stage)
	}
	r.res.Stage = s
	r.stage = time.Now()
	if r.prog.cancelled() {
		return false
	}
	r.prog.stage(r.idx, r.input, s)
	return true
}

func (r *imageRun) fail(kind error, err error) PipelineResult {
	r.res.Success = false
	r.res.Status = StageFailed
	r.res.Kind = kind
	if err == nil {
		err = kind
	}
	if !errors.Is(err, kind) {
		err = errors.Wrap(kind, err.Error())
	}
	r.res.Message = err.Error()
	return r.finish()
}

func (r *imageRun) cancel() PipelineResult {
	r.res.Success = false
	r.res.Status = StageCancelled
	r.res.Kind = ErrCancelled
	r.res.Message = ErrCancelled.Error()
	return r.finish()
}

func (r *imageRun) finish() PipelineResult {
	if !r.stage.IsZero() {
		observeStage(r.res.Stage, r.stage)
	}
	r.res.Duration = time.Since(r.start)
	observeResult(r.res)
	return r.res
}

func newImageRun(idx int, input, output string, tile *ReferenceTile, prog *progress) *imageRun {
	return &imageRun{
		idx:    idx,
		input:  input,
		output: output,
		tile:   tile,
		prog:   prog,
		start:  time.Now(),
		res:    PipelineResult{Input: input, Status: StagePending, Stage: StagePending},
	}
}

// 处理单张影像；任何失败都转为结果返回，不影响调用方继续处理
func (p *Georeferencer) process(input, output string, idx int, tile *ReferenceTile, prog *progress) (res PipelineResult) {
	run := newImageRun(idx, input, output, tile, prog)
	defer func() {
		if r := recover(); r != nil {
			log.Error(p.logTag+"panic while processing image", zap.String("input", input), zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			res = run.fail(ErrUnexpected, fmt.Errorf("panic: %v", r))
		}
	}()
	res = p.run(run)
	if res.Success {
		log.Info(p.logTag+"image georeferenced", zap.String("input", input), zap.String("output", res.Output),
			zap.Int("inliers", res.Inliers), zap.Duration("took", res.Duration))
	} else {
		log.Warn(p.logTag+"image not georeferenced", zap.String("input", input), zap.String("kind", res.KindName()),
			zap.String("stage", res.Stage.String()), zap.String("reason", res.Message))
	}
	return
}

func (p *Georeferencer) run(r *imageRun) PipelineResult {
	tile := r.tile
	if !tile.Valid() {
		return r.fail(ErrInput, errors.New("reference tile is empty"))
	}

	if !r.enter(StageLoading) {
		return r.cancel()
	}
	img, err := p.loader(r.input)
	if err != nil {
		return r.fail(kindOr(err, ErrInput), errors.Wrapf(err, "load %s", filepath.Base(r.input)))
	}
	if img.Empty() {
		return r.fail(ErrInput, imgbuf.ErrEmptyRaster)
	}

	if !r.enter(StageExtracting) {
		return r.cancel()
	}
	imgSet, err := p.extract(img)
	if err != nil {
		return r.fail(KindOf(err), err)
	}
	refSet, err := p.extract(tile.Image)
	if err != nil {
		return r.fail(KindOf(err), err)
	}
	if imgSet.Len() < p.cfg.MinMatches || refSet.Len() < p.cfg.MinMatches {
		return r.fail(ErrFeature, errors.Errorf("%d photo / %d reference keypoints, need %d",
			imgSet.Len(), refSet.Len(), p.cfg.MinMatches))
	}

	if !r.enter(StageMatching) {
		return r.cancel()
	}
	matches, err := p.matcher.Match(imgSet, refSet)
	if err != nil {
		return r.fail(kindOr(err, ErrDependency), err)
	}
	r.res.Matches = len(matches)
	if len(matches) < p.cfg.MinMatches {
		return r.fail(ErrMatch, errors.Errorf("%d good matches, need %d", len(matches), p.cfg.MinMatches))
	}

	if !r.enter(StageEstimating) {
		return r.cancel()
	}
	src, dst := feature.Correspondences(imgSet, refSet, matches)
	h, inliers, err := feature.EstimateHomography(src, dst, p.ransacOptions())
	if err != nil {
		return r.fail(kindOr(err, ErrHomography), err)
	}
	r.res.Inliers = len(inliers)

	if !r.enter(StageWarping) {
		return r.cancel()
	}
	refW, refH := tile.Image.Width, tile.Image.Height
	warped, err := p.warper.Warp(img, h, refW, refH)
	if err != nil {
		return r.fail(kindOr(err, ErrDependency), err)
	}

	if !r.enter(StageCropping) {
		return r.cancel()
	}
	rect, ok := p.ops.ValidBounds(warped)
	if !ok {
		if p.cfg.FailOnEmptyWarp {
			return r.fail(ErrCrop, nil)
		}
		log.Warn(p.logTag+"warped image is empty, keep full canvas", zap.String("input", r.input))
		rect = warped.Bounds()
	}
	crop, err := p.ops.Crop(warped, rect)
	if err != nil {
		return r.fail(kindOr(err, ErrCrop), err)
	}

	if !r.enter(StageResampling) {
		return r.cancel()
	}
	resX, resY := ReferenceResolution(tile.Bounds, refW, refH)
	ext := CropGeoBounds(tile.Bounds, resX, resY, rect)
	srcGT := NewGeoTransform(ext.MinX, ext.MaxY, resX, resY)
	target := p.cfg.TargetResolution
	if target <= 0 {
		target = resX
	}
	w, hgt := DestinationGrid(ext, target)
	dstGT := NewGeoTransform(ext.MinX, ext.MaxY, target, target)
	out, err := p.resampler.Resample(crop, srcGT, dstGT, w, hgt, tile.CRS)
	if err != nil {
		return r.fail(kindOr(err, ErrDependency), err)
	}

	if !r.enter(StageWriting) {
		return r.cancel()
	}
	if err = p.writer.WriteGeoTiff(r.output, out, p.cfg.JPEGQuality); err != nil {
		return r.fail(kindOr(err, ErrIO), err)
	}

	observeStage(StageWriting, r.stage)
	r.stage = time.Time{}
	r.res.Stage = StageDone
	r.res.Status = StageDone
	r.res.Success = true
	r.res.Output = r.output
	r.res.GeoTransform = dstGT
	r.res.Width, r.res.Height = w, hgt
	r.res.CRS = tile.CRS
	r.res.Message = fmt.Sprintf("georeferencing finished (resolution ~%sm): %s",
		formatRes(p.groundResolution(target, ext, tile.CRS)), filepath.Base(r.output))
	r.prog.stage(r.idx, r.input, StageDone)
	return r.finish()
}

// 灰度转换失败归为输入错误，检测器失败归为依赖错误（已归类的保持不变）
func (p *Georeferencer) extract(img *imgbuf.Raster) (set *feature.Set, err error) {
	gray, err := p.ops.Gray(img)
	if err != nil {
		err = errors.Wrap(kindOr(err, ErrInput), err.Error())
		return
	}
	if set, err = feature.Extract(p.detector, gray); err != nil {
		err = errors.Wrap(kindOr(err, ErrDependency), err.Error())
	}
	return
}

// 地理坐标系下把度换算为地面米数
func (p *Georeferencer) groundResolution(res float64, ext GeoBounds, crs string) float64 {
	if geographic, err := p.toolbox.IsGeographic(crs); err != nil || !geographic {
		return res
	}
	c := ext.Center()
	return GreatCircleMeters(c, Point{c.X + res, c.Y})
}

func formatRes(v float64) string {
	return fmt.Sprintf("%g", roundTo(v, 2))
}
