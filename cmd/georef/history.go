package main

import (
	"path/filepath"
	"time"

	"github.com/wgdzlh/georef/store"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [batch-id]",
		Short: "List recorded batches, or the results of one batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s := a.history
			if s == nil {
				if s, err = store.New(a.cfg.History.DBPath); err != nil {
					return
				}
				defer s.Close()
			}
			if len(args) == 1 {
				items, err := s.Items(args[0])
				if err != nil {
					return err
				}
				for _, it := range items {
					status := "ok"
					if !it.Success {
						status = it.Kind
						if status == "" {
							status = it.Status
						}
					}
					printer.Fprintf(a.out, "%3d  %-10s %s  %s  %v\n", it.Seq+1, status, filepath.Base(it.Input), it.Message, it.Duration)
				}
				return nil
			}
			batches, err := s.ListBatches(limit)
			if err != nil {
				return
			}
			for _, b := range batches {
				printer.Fprintf(a.out, "%s  %-9s %d/%d  %s  %s\n", b.StartedAt.Local().Format(time.DateTime), b.State,
					b.Succeeded, b.Total, b.ID, b.OutputDir)
			}
			return
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of batches to list")
	return cmd
}
