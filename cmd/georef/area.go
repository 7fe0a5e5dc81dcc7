package main

import (
	"github.com/wgdzlh/georef"

	"github.com/spf13/cobra"
)

func newAreaCmd(a *app) *cobra.Command {
	var aoi aoiFlags
	cmd := &cobra.Command{
		Use:   "area",
		Short: "Check a polygon against the area limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			poly, err := aoi.loadPolygon(a)
			if err != nil {
				return
			}
			if poly.CRS == "" {
				poly.CRS = georef.UNIVERSAL_CRS
			}
			area, err := a.toolbox.PolygonAreaKm2(poly)
			if err != nil {
				return
			}
			b := poly.Bounds()
			printer.Fprintf(a.out, "crs:    %s\n", poly.CRS)
			printer.Fprintf(a.out, "bounds: %.6f, %.6f, %.6f, %.6f\n", b.MinX, b.MinY, b.MaxX, b.MaxY)
			printer.Fprintf(a.out, "area:   %.3f km² (limit %.0f km²)\n", area, a.cfg.MaxAreaKm2)
			_, err = a.toolbox.CheckPolygonArea(poly, a.cfg.MaxAreaKm2)
			return
		},
	}
	aoi.bind(cmd, false)
	return cmd
}
