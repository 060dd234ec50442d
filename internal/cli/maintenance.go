package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newArchiveCommand(opts *globalOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move completed processing logs older than the retention period to the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.archiver().Archive(cmd.Context(), days)
			if err != nil {
				return err
			}
			if res.Cleared == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No logs to archive")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d logs archived successfully (cutoff %s)\n",
				res.Cleared, res.Cutoff.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention in days (default ARCHIVE_RETENTION_DAYS)")
	return cmd
}

func newReconcileCommand(opts *globalOptions) *cobra.Command {
	var lease time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Mark processing logs whose batch stopped running as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.reconciler().Sweep(cmd.Context(), lease)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d stale logs marked failed\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&lease, "lease", 0, "processing lease (default PROCESSING_LEASE)")
	return cmd
}
