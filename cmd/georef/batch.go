package main

import (
	"os"
	"path/filepath"

	"github.com/wgdzlh/georef"
	"github.com/wgdzlh/georef/log"
	"github.com/wgdzlh/georef/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 参数为单个目录时列出其中照片，否则按文件列表处理
func collectImages(args []string, skipSuffix string) (images []string, err error) {
	if len(args) == 1 {
		var fi os.FileInfo
		if fi, err = os.Stat(args[0]); err == nil && fi.IsDir() {
			return utils.ListImages(args[0], skipSuffix)
		}
		err = nil
	}
	images = args
	return
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		aoi        aoiFlags
		outDir     string
		footprints string
	)
	cmd := &cobra.Command{
		Use:   "batch <dir | photo...>",
		Short: "Georeference a batch of photos against one reference",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			images, err := collectImages(args, a.cfg.OutputSuffix)
			if err != nil {
				return
			}
			if outDir == "" {
				outDir = filepath.Join(filepath.Dir(images[0]), "georef")
			}
			poly, layer, err := aoi.load(a)
			if err != nil {
				return
			}
			p, err := a.georeferencer()
			if err != nil {
				return
			}
			ctx, cancel := signalContext()
			defer cancel()
			bar := newProgressPrinter(a.out)
			report, err := p.RunBatch(ctx, georef.BatchRequest{
				Images:    images,
				OutputDir: outDir,
				Polygon:   &poly,
				Renderer:  layer,
			}, bar)
			bar.finish()
			if err != nil {
				return
			}
			a.recordHistory(report)
			printReport(a.out, report)
			if footprints != "" && len(report.Succeeded()) > 0 {
				if footprints == "auto" {
					footprints = filepath.Join(outDir, "footprints_"+utils.GetNowTimeTag()+".geojson")
				}
				if _, e := a.toolbox.WriteFootprints(footprints, layer.CrsID(), report.Results); e != nil {
					log.Error(logTag+"write footprints failed", zap.String("path", footprints), zap.Error(e))
				}
			}
			return
		},
	}
	aoi.bind(cmd, true)
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "output directory (default <input dir>/georef)")
	cmd.Flags().StringVar(&footprints, "footprints", "", `write output footprints to this vector file ("auto" for a geojson in the output dir)`)
	return cmd
}

func (a *app) recordHistory(report *georef.BatchReport) {
	if err := a.history.RecordBatch(report); err != nil {
		log.Error(logTag+"record history failed", zap.String("batch", report.ID), zap.Error(err))
	}
}
