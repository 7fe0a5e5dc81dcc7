package georef

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/wgdzlh/georef/log"
	"github.com/wgdzlh/georef/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type BatchRequest struct {
	Images    []string
	OutputDir string
	Polygon   *Polygon
	Renderer  Renderer
}

// 批处理前的配置检查，任何错误都会阻止批处理开始
func (p *Georeferencer) Preflight(req BatchRequest) (poly Polygon, area float64, err error) {
	if len(req.Images) == 0 {
		err = ErrNoImages
		return
	}
	if req.Polygon == nil || len(req.Polygon.Vertices) == 0 {
		err = ErrNoPolygon
		return
	}
	if req.Renderer == nil {
		err = ErrNoReference
		return
	}
	if err = p.checkOutputs(req); err != nil {
		return
	}
	poly = *req.Polygon
	if rp, ok := req.Renderer.(ReferenceProvider); ok {
		if !rp.Valid() {
			err = ErrNoReference
			return
		}
		if poly.CRS == "" {
			poly.CRS = rp.CrsID()
		}
	}
	if err = poly.Validate(); err != nil {
		return
	}
	if poly.CRS == "" {
		err = errors.Wrap(ErrGeometry, "polygon crs is unknown")
		return
	}
	area, err = p.toolbox.CheckPolygonArea(poly, p.cfg.MaxAreaKm2)
	if err != nil && KindOf(err) == ErrUnexpected {
		err = errors.Wrap(ErrGeometry, err.Error())
	}
	return
}

// a.jpg与a.png会写到同一个输出文件
func (p *Georeferencer) checkOutputs(req BatchRequest) error {
	seen := make(map[string]string, len(req.Images))
	for _, in := range req.Images {
		out := utils.OutputPath(req.OutputDir, in, p.cfg.OutputSuffix, FILE_EXT_TIF)
		if prev, ok := seen[out]; ok {
			return errors.Wrapf(ErrOutputClash, "%s and %s both write %s", filepath.Base(prev), filepath.Base(in), filepath.Base(out))
		}
		seen[out] = in
	}
	return nil
}

// 顺序处理一批影像，单张失败不影响其他影像；取消后剩余影像记为已取消
func (p *Georeferencer) RunBatch(ctx context.Context, req BatchRequest, sink ProgressSink) (report *BatchReport, err error) {
	report = &BatchReport{ID: uuid.NewString(), State: BatchIdle, OutputDir: req.OutputDir}
	poly, area, err := p.Preflight(req)
	if err != nil {
		log.Error(p.logTag+"batch rejected", zap.String("batch", report.ID), zap.Error(err))
		return
	}
	if err = os.MkdirAll(req.OutputDir, os.ModePerm); err != nil {
		err = errors.Wrap(ErrIO, err.Error())
		return
	}
	n := len(req.Images)
	report.State = BatchRunning
	report.StartedAt = time.Now()
	report.Results = make([]PipelineResult, 0, n)
	log.Info(p.logTag+"batch started", zap.String("batch", report.ID), zap.Int("images", n),
		zap.Float64("areaKm2", roundTo(area, 3)), zap.String("outDir", req.OutputDir))

	var (
		prog = newProgress(ctx, sink, n)
		tile *ReferenceTile
	)
	for i := 0; i < n; i++ {
		input := req.Images[i]
		if prog.cancelled() {
			report.Results = append(report.Results, cancelledResults(req.Images[i:])...)
			report.State = BatchCancelled
			break
		}
		output := utils.OutputPath(req.OutputDir, input, p.cfg.OutputSuffix, FILE_EXT_TIF)
		if tile == nil || !p.cfg.ReuseReference {
			var res PipelineResult
			if tile, res = p.render(ctx, req.Renderer, poly, i, input, output, prog); tile == nil {
				report.Results = append(report.Results, res)
				if res.Status == StageCancelled {
					report.Results = append(report.Results, cancelledResults(req.Images[i+1:])...)
					report.State = BatchCancelled
					break
				}
				continue
			}
		}
		res := p.process(input, output, i, tile, prog)
		report.Results = append(report.Results, res)
		if res.Status == StageCancelled {
			report.Results = append(report.Results, cancelledResults(req.Images[i+1:])...)
			report.State = BatchCancelled
			break
		}
	}
	if report.State == BatchRunning {
		report.State = BatchCompleted
		prog.report(100, "done")
	}
	report.FinishedAt = time.Now()
	batchesTotal.WithLabelValues(report.State.String()).Inc()
	log.Info(p.logTag+"batch finished", zap.String("batch", report.ID), zap.String("state", report.State.String()),
		zap.Int("succeeded", len(report.Succeeded())), zap.Int("failed", len(report.Failed())),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return
}

// 渲染参考瓦片；失败时tile为nil并返回该影像的失败结果
func (p *Georeferencer) render(ctx context.Context, r Renderer, poly Polygon, idx int, input, output string, prog *progress) (tile *ReferenceTile, res PipelineResult) {
	run := newImageRun(idx, input, output, nil, prog)
	if !run.enter(StageRendering) {
		res = run.cancel()
		return
	}
	t, err := r.Render(ctx, poly)
	if err == nil && !t.Valid() {
		err = errors.New("renderer returned an empty tile")
	}
	if err != nil {
		if ctx.Err() != nil {
			res = run.cancel()
			return
		}
		kind := KindOf(err)
		if kind != ErrGeometry && kind != ErrNoReference {
			kind = ErrInput
		}
		log.Error(p.logTag+"render reference failed", zap.String("input", input), zap.Error(err))
		res = run.fail(kind, err)
		return
	}
	observeStage(StageRendering, run.stage)
	tile = t
	return
}

func cancelledResults(inputs []string) (ret []PipelineResult) {
	for _, in := range inputs {
		ret = append(ret, PipelineResult{
			Input:   in,
			Status:  StageCancelled,
			Stage:   StagePending,
			Kind:    ErrCancelled,
			Message: ErrCancelled.Error(),
		})
	}
	return
}

// 单张影像地理配准，输出到指定路径
func (p *Georeferencer) GeoreferenceImage(ctx context.Context, input, output string, poly Polygon, r Renderer, sink ProgressSink) (res PipelineResult, err error) {
	req := BatchRequest{Images: []string{input}, Polygon: &poly, Renderer: r}
	if poly, _, err = p.Preflight(req); err != nil {
		return
	}
	prog := newProgress(ctx, sink, 1)
	tile, res := p.render(ctx, r, poly, 0, input, output, prog)
	if tile == nil {
		return
	}
	res = p.process(input, output, 0, tile, prog)
	return
}

// 使用已渲染的参考瓦片处理单张影像（监听模式复用同一瓦片）
func (p *Georeferencer) GeoreferenceWithTile(ctx context.Context, input, output string, tile *ReferenceTile, sink ProgressSink) (res PipelineResult, err error) {
	if !tile.Valid() {
		err = ErrNoReference
		return
	}
	res = p.process(input, output, 0, tile, newProgress(ctx, sink, 1))
	return
}
