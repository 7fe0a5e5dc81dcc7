package georef

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
)

// 进度回调与取消查询；批处理期间唯一的挂起点
type ProgressSink interface {
	Progress(pct float64, msg string)
	Cancelled() bool
}

type ProgressFunc func(pct float64, msg string)

func (f ProgressFunc) Progress(pct float64, msg string) {
	f(pct, msg)
}

func (f ProgressFunc) Cancelled() bool {
	return false
}

// 可由其他goroutine置位的取消标志，包装一个进度回调
type Canceler struct {
	OnProgress func(pct float64, msg string)
	flag       atomic.Bool
}

func (c *Canceler) Progress(pct float64, msg string) {
	if c.OnProgress != nil {
		c.OnProgress(pct, msg)
	}
}

func (c *Canceler) Cancel() {
	c.flag.Store(true)
}

func (c *Canceler) Cancelled() bool {
	return c.flag.Load()
}

// 批处理进度：[0,100]内单调不减，nil回调不上报
type progress struct {
	ctx   context.Context
	sink  ProgressSink
	total int
	last  float64
}

func newProgress(ctx context.Context, sink ProgressSink, total int) *progress {
	return &progress{ctx: ctx, sink: sink, total: max(total, 1)}
}

func (p *progress) report(pct float64, msg string) {
	pct = min(max(pct, 0), 100)
	if pct < p.last {
		pct = p.last
	}
	p.last = pct
	if p.sink != nil {
		p.sink.Progress(pct, msg)
	}
}

func (p *progress) cancelled() bool {
	if p.ctx != nil && p.ctx.Err() != nil {
		return true
	}
	return p.sink != nil && p.sink.Cancelled()
}

// 进入第i张影像的某个阶段
func (p *progress) stage(i int, input string, s Stage) {
	pct := (float64(i)*100 + s.Percent()) / float64(p.total)
	p.report(pct, fmt.Sprintf("processing %d/%d: %s - %s", i+1, p.total, filepath.Base(input), s))
}
