package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pluginsync/pkg/config"
	"pluginsync/pkg/updatecheck"
)

func newCheckUpdateCmd(root *rootOptions) *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "check-update",
		Short: "Check whether a newer release is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := config.DefaultUpdateRepo
			cfg, err := config.LoadConfig(root.configPath)
			switch {
			case err == nil:
				repo = cfg.UpdateRepo
			case !errors.Is(err, config.ErrConfigNotFound):
				return err
			}

			checker, err := updatecheck.NewChecker(repo, nil)
			if err != nil {
				return err
			}
			if baseURL != "" {
				if checker, err = checker.WithBaseURL(baseURL); err != nil {
					return err
				}
			}
			release, err := checker.LatestRelease(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !updatecheck.IsUpdateAvailable(Version, release.Version) {
				fmt.Fprintf(out, "Up to date (%s).\n", Version)
				return nil
			}
			fmt.Fprintf(out, "Update available: %s (current %s)\n", release.Version, Version)
			if release.AssetURL != "" {
				fmt.Fprintf(out, "Download: %s\n", release.AssetURL)
			} else if release.URL != "" {
				fmt.Fprintf(out, "Release: %s\n", release.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "api-url", "", "GitHub API base URL (for GitHub Enterprise)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
