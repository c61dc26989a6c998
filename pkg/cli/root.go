// Package cli wires the pluginsync commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"pluginsync/pkg/config"
)

// Version is stamped at build time with -ldflags "-X pluginsync/pkg/cli.Version=...".
var Version = "dev"

// ErrSetupRequired is returned when a command needs a config that does not exist yet.
var ErrSetupRequired = errors.New("configuration not found, run `pluginsync setup` first")

type rootOptions struct {
	configPath string
	logLevel   string
}

// longRunning commands log JSON; the rest log text.
var longRunning = map[string]bool{
	"daemon": true,
	"serve":  true,
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "pluginsync",
		Short: "Compare Pro Tools plug-in inventories across machines",
		Long: `pluginsync scans the AAX plug-ins installed on this machine, publishes
the inventory to a shared reports location and works out which machines
need which installs or updates.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd.ErrOrStderr(), opts.logLevel, longRunning[cmd.Name()])
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(),
		"Path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info",
		"Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newSetupCmd(opts),
		newScanCmd(opts),
		newDiffCmd(opts),
		newDaemonCmd(opts),
		newServeCmd(opts),
		newCheckUpdateCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func setupLogging(w io.Writer, level string, jsonOutput bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if jsonOutput {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig loads and validates the config at opts.configPath.
func (opts *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if errors.Is(err, config.ErrConfigNotFound) {
		return nil, ErrSetupRequired
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("Config loaded", "path", opts.configPath, "machine", cfg.MachineName, "backend", cfg.ReportsBackend)
	return cfg, nil
}
