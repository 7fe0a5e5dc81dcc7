package main

import (
	"path/filepath"
	"time"

	"github.com/wgdzlh/georef"
	"github.com/wgdzlh/georef/log"
	"github.com/wgdzlh/georef/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		aoi    aoiFlags
		outDir string
		settle time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Georeference photos as they are dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			dir := args[0]
			if outDir == "" {
				outDir = filepath.Join(dir, "georef")
			}
			poly, layer, err := aoi.load(a)
			if err != nil {
				return
			}
			p, err := a.georeferencer()
			if err != nil {
				return
			}
			if err = poly.Validate(); err != nil {
				return
			}
			if _, err = a.toolbox.CheckPolygonArea(poly, a.cfg.MaxAreaKm2); err != nil {
				return
			}
			ctx, cancel := signalContext()
			defer cancel()
			tile, err := layer.Render(ctx, poly)
			if err != nil {
				return
			}
			w, err := p.NewWatcher(dir, outDir, tile)
			if err != nil {
				return
			}
			w.Settle = settle
			if a.history != nil {
				w.Skip = func(input string) bool {
					_, done, e := a.history.LastOutput(input)
					return e == nil && done
				}
			}
			report := &georef.BatchReport{
				ID:        "watch-" + utils.GetNowTimeTag(),
				State:     georef.BatchRunning,
				OutputDir: outDir,
				StartedAt: time.Now(),
			}
			w.OnResult = func(res georef.PipelineResult) {
				report.Results = append(report.Results, res)
				report.FinishedAt = time.Now()
				a.recordHistory(report)
				status := "ok"
				if !res.Success {
					status = "fail"
				}
				printer.Fprintf(a.out, "%-4s %s: %s\n", status, filepath.Base(res.Input), res.Message)
			}
			printer.Fprintf(a.out, "watching %s, outputs go to %s (Ctrl-C to stop)\n", dir, outDir)
			if err = w.Run(ctx); err != nil {
				return
			}
			report.State = georef.BatchCompleted
			report.FinishedAt = time.Now()
			a.recordHistory(report)
			log.Info(logTag+"watch finished", zap.Int("images", len(report.Results)))
			printReport(a.out, report)
			return
		},
	}
	aoi.bind(cmd, true)
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "output directory (default <dir>/georef)")
	cmd.Flags().DurationVar(&settle, "settle", georef.DefaultSettleDelay, "wait this long after the last write before processing a photo")
	return cmd
}
