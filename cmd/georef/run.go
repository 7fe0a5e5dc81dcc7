package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wgdzlh/georef"
	"github.com/wgdzlh/georef/utils"

	"github.com/spf13/cobra"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCmd(a *app) *cobra.Command {
	var (
		aoi    aoiFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "run <photo>",
		Short: "Georeference a single photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			input := args[0]
			if output == "" {
				output = utils.OutputPath(filepath.Dir(input), input, a.cfg.OutputSuffix, georef.FILE_EXT_TIF)
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
			res, err := p.GeoreferenceImage(ctx, input, output, poly, layer, bar)
			bar.finish()
			if err != nil {
				return
			}
			report := &georef.BatchReport{
				ID:         "run-" + utils.GetNowTimeTag(),
				State:      georef.BatchCompleted,
				OutputDir:  filepath.Dir(output),
				Results:    []georef.PipelineResult{res},
				StartedAt:  bar.started,
				FinishedAt: bar.started.Add(res.Duration),
			}
			if res.Status == georef.StageCancelled {
				report.State = georef.BatchCancelled
			}
			a.recordHistory(report)
			printReport(a.out, report)
			if !res.Success {
				return res.Kind
			}
			return
		},
	}
	aoi.bind(cmd, true)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output GeoTIFF (default <photo>_georef.tif next to the photo)")
	return cmd
}
