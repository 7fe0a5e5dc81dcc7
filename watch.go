package georef

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wgdzlh/georef/log"
	"github.com/wgdzlh/georef/utils"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultSettleDelay = 500 * time.Millisecond

// 监听目录，新照片写入完成后用同一参考瓦片逐张配准
type Watcher struct {
	p         *Georeferencer
	dir       string
	outDir    string
	tile      *ReferenceTile
	Settle    time.Duration
	Skip      func(input string) bool // 返回true时跳过（如历史中已成功处理）
	OnResult  func(PipelineResult)
	pending   map[string]time.Time
	processed map[string]bool
	logTag    string
}

func (p *Georeferencer) NewWatcher(dir, outDir string, tile *ReferenceTile) (w *Watcher, err error) {
	if !tile.Valid() {
		err = ErrNoReference
		return
	}
	if outDir == "" {
		outDir = dir
	}
	w = &Watcher{
		p:         p,
		dir:       dir,
		outDir:    outDir,
		tile:      tile,
		Settle:    DefaultSettleDelay,
		pending:   map[string]time.Time{},
		processed: map[string]bool{},
		logTag:    "Watcher:",
	}
	return
}

// 是否为待配准的照片（排除本程序的输出）
func (w *Watcher) wanted(path string) bool {
	if !utils.IsImageFile(path) || w.processed[path] {
		return false
	}
	if strings.HasSuffix(utils.GetFilenameWithoutExt(path), w.p.cfg.OutputSuffix) {
		return false
	}
	if w.Skip != nil && w.Skip(path) {
		w.processed[path] = true
		return false
	}
	return true
}

// 阻塞直到ctx结束；已存在的照片先入队
func (w *Watcher) Run(ctx context.Context) (err error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		err = errors.Wrap(ErrDependency, err.Error())
		return
	}
	defer fw.Close()
	if err = fw.Add(w.dir); err != nil {
		err = errors.Wrap(ErrInput, err.Error())
		return
	}
	if err = os.MkdirAll(w.outDir, os.ModePerm); err != nil {
		err = errors.Wrap(ErrIO, err.Error())
		return
	}
	existing, err := utils.ListImages(w.dir, w.p.cfg.OutputSuffix)
	if err != nil {
		err = errors.Wrap(ErrInput, err.Error())
		return
	}
	now := time.Now()
	for _, path := range existing {
		if w.wanted(path) {
			w.pending[path] = now
		}
	}
	log.Info(w.logTag+"watching directory", zap.String("dir", w.dir), zap.String("outDir", w.outDir),
		zap.Int("queued", len(w.pending)))

	settle := max(w.Settle, 10*time.Millisecond)
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info(w.logTag+"watch stopped", zap.Int("processed", len(w.processed)))
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if w.wanted(ev.Name) {
				w.pending[ev.Name] = time.Now()
			}
		case e, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Error(w.logTag+"watcher error", zap.Error(e))
		case t := <-ticker.C:
			w.flush(ctx, t.Add(-settle))
		}
	}
}

// 处理最后一次写入早于deadline的照片
func (w *Watcher) flush(ctx context.Context, deadline time.Time) {
	for path, last := range w.pending {
		if last.After(deadline) {
			continue
		}
		delete(w.pending, path)
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		w.processed[path] = true
		out := utils.OutputPath(w.outDir, path, w.p.cfg.OutputSuffix, FILE_EXT_TIF)
		res, err := w.p.GeoreferenceWithTile(ctx, path, out, w.tile, nil)
		if err != nil {
			log.Error(w.logTag+"georeference failed", zap.String("input", filepath.Base(path)), zap.Error(err))
			continue
		}
		if w.OnResult != nil {
			w.OnResult(res)
		}
	}
}
