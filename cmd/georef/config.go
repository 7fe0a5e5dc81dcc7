package main

import (
	"encoding/json"

	"github.com/wgdzlh/georef"

	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialise the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			data, err := json.MarshalIndent(a.cfg, "", "  ")
			if err != nil {
				return
			}
			printer.Fprintf(a.out, "%s\n", data)
			return
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err = georef.SaveConfig(args[0], georef.DefaultConfig()); err != nil {
				return
			}
			printer.Fprintf(a.out, "default config written to %s\n", args[0])
			return
		},
	})
	return cmd
}
