package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pluginsync/pkg/diffing"
	"pluginsync/pkg/scancycle"
	"pluginsync/pkg/store"
)

// ErrNoReports is returned by diff when the reports location is empty.
var ErrNoReports = errors.New("no reports found in reports folder")

func newScanCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan plug-ins, publish this machine's report and rebuild the diff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			s, err := store.FromConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			result, err := scancycle.New(cfg, s).Perform(cmd.Context())
			if errors.Is(err, scancycle.ErrNoReports) {
				fmt.Fprintln(out, diffing.NoReportsMessage)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, diffing.FormatDiffSummary(result.Evaluation.Diff))
			fmt.Fprintf(out, "Updates needed on %s: %d\n", cfg.MachineName, result.UpdateCount)
			return nil
		},
	}
}

func newDiffCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Rebuild the diff and update summary from the latest reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			s, err := store.FromConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			evaluation, err := scancycle.Evaluate(cmd.Context(), s)
			if err != nil {
				return err
			}
			if len(evaluation.Reports) == 0 {
				return ErrNoReports
			}
			if err := s.WriteDiff(cmd.Context(), evaluation.Diff); err != nil {
				return fmt.Errorf("failed to write diff: %w", err)
			}
			if err := s.WriteSummary(cmd.Context(), evaluation.Summary); err != nil {
				return fmt.Errorf("failed to write summary: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), diffing.FormatDiffSummary(evaluation.Diff))
			return nil
		},
	}
}
