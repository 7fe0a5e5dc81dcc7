package main

import (
	"runtime"

	"github.com/wgdzlh/georef/vision"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			printer.Fprintf(a.out, "georef %s\n", version)
			printer.Fprintf(a.out, "go      %s\n", runtime.Version())
			printer.Fprintf(a.out, "opencv  %s\n", vision.Version())
			if err = a.toolbox.CheckDrivers(); err != nil {
				printer.Fprintf(a.out, "gdal    missing drivers: %v\n", err)
				err = nil
			}
			return
		},
	}
}
