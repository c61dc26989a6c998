package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pluginsync/pkg/config"
)

type setupOptions struct {
	machineName        string
	pluginsPath        string
	reportsPath        string
	reportsBackend     string
	gcsBucket          string
	gcsPrefix          string
	gcsCredentialsFile string
	databaseDSN        string
	createDirs         bool
}

func newSetupCmd(root *rootOptions) *cobra.Command {
	opts := &setupOptions{}
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write the config file for this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.build()
			if err != nil {
				return fmt.Errorf("setup failed: %w", err)
			}
			if err := config.Write(root.configPath, cfg); err != nil {
				return fmt.Errorf("setup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setup complete. Config written to %s\n", root.configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.machineName, "machine-name", "", "Override the machine name (defaults to the host name)")
	cmd.Flags().StringVar(&opts.pluginsPath, "plugins-path", config.DefaultPluginsPath, "Path to the AAX plug-ins folder")
	cmd.Flags().StringVar(&opts.reportsPath, "reports-path", config.DefaultReportsPath, "Path to the shared reports folder")
	cmd.Flags().StringVar(&opts.reportsBackend, "reports-backend", config.DefaultReportsBackend, "Reports backend: local, gcs or postgres")
	cmd.Flags().StringVar(&opts.gcsBucket, "gcs-bucket", "", "GCS bucket for the gcs backend")
	cmd.Flags().StringVar(&opts.gcsPrefix, "gcs-prefix", "", "Object prefix inside the GCS bucket")
	cmd.Flags().StringVar(&opts.gcsCredentialsFile, "gcs-credentials-file", "", "Service account key file for GCS")
	cmd.Flags().StringVar(&opts.databaseDSN, "database-dsn", "", "Postgres DSN for the postgres backend")
	cmd.Flags().BoolVar(&opts.createDirs, "create-dirs", false, "Create the reports folder if it does not exist")
	return cmd
}

func (opts *setupOptions) build() (*config.Config, error) {
	cfg := config.Default(opts.machineName)
	cfg.PluginsPath = opts.pluginsPath
	cfg.ReportsPath = opts.reportsPath
	cfg.ReportsBackend = opts.reportsBackend
	cfg.GCSBucket = opts.gcsBucket
	cfg.GCSPrefix = opts.gcsPrefix
	cfg.GCSCredentialsFile = opts.gcsCredentialsFile
	cfg.DatabaseDSN = opts.databaseDSN
	cfg.Normalize()

	if opts.createDirs && cfg.ReportsBackend == config.BackendLocal {
		if err := os.MkdirAll(cfg.ReportsPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", cfg.ReportsPath, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
