// Package scancycle runs one full inventory pass: scan this machine,
// publish its report and rebuild every derived document from all the
// reports visible in the store.
package scancycle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pluginsync/pkg/config"
	"pluginsync/pkg/diffing"
	"pluginsync/pkg/metrics"
	"pluginsync/pkg/models"
	"pluginsync/pkg/report"
	"pluginsync/pkg/scanner"
	"pluginsync/pkg/store"
)

// ErrNoReports is returned when the store holds no readable reports after
// this machine's report was written.
var ErrNoReports = errors.New("no reports found")

// now is replaced in tests.
var now = time.Now

// BuildReport assembles this machine's report from scanned plugins. Blank
// version fields become models.UnknownVersion.
func BuildReport(machine, root string, scanTime time.Time, plugins []models.PluginRecord) *models.Report {
	records := make([]models.PluginRecord, 0, len(plugins))
	for _, plugin := range plugins {
		plugin.ShortVersion, plugin.BundleVersion = plugin.Versions()
		records = append(records, plugin)
	}
	return &models.Report{
		MachineName: machine,
		ScanTime:    scanTime,
		RootPath:    root,
		Plugins:     records,
	}
}

// Evaluation is the state derived from every latest report.
type Evaluation struct {
	Reports map[string]models.Report
	Diff    *models.Diff
	Summary *models.UpdateSummary
}

// Evaluate loads the latest reports and runs both comparison engines.
func Evaluate(ctx context.Context, s store.Store) (*Evaluation, error) {
	reports, err := s.LoadLatestReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reports: %w", err)
	}
	return &Evaluation{
		Reports: reports,
		Diff:    diffing.ComputeDiff(reports),
		Summary: diffing.ComputeUpdateSummary(reports),
	}, nil
}

// Result describes a finished cycle.
type Result struct {
	RunID       uuid.UUID
	Report      *models.Report
	Evaluation  *Evaluation
	UpdateCount int
	Duration    time.Duration
}

// Cycle performs scan cycles for one machine against one store.
type Cycle struct {
	cfg   *config.Config
	store store.Store
}

func New(cfg *config.Config, s store.Store) *Cycle {
	return &Cycle{cfg: cfg, store: s}
}

// Store returns the store the cycle publishes to.
func (c *Cycle) Store() store.Store {
	return c.store
}

// Perform scans, publishes and rebuilds the derived documents. When the
// store yields no reports the result carries no evaluation and the error
// is ErrNoReports.
func (c *Cycle) Perform(ctx context.Context) (result *Result, err error) {
	start := now()
	result = &Result{RunID: uuid.New()}
	logger := slog.With("component", "ScanCycle", "run_id", result.RunID)

	defer func() {
		result.Duration = now().Sub(start)
		status := metrics.StatusSuccess
		switch {
		case errors.Is(err, ErrNoReports):
			status = metrics.StatusNoReports
		case err != nil:
			status = metrics.StatusError
		}
		metrics.ObserveCycle(status, result.Duration)
	}()

	plugins, err := scanner.Scan(ctx, c.cfg.PluginsPath, scanner.Options{
		HashBinaries: c.cfg.HashBinaries,
		Workers:      c.cfg.ScanWorkers,
	})
	if err != nil {
		return result, fmt.Errorf("scan failed: %w", err)
	}
	result.Report = BuildReport(c.cfg.MachineName, c.cfg.PluginsPath, now(), plugins)
	logger.Info("Scan complete", "machine", c.cfg.MachineName, "plugins", len(plugins))

	if err := c.store.WriteReport(ctx, result.Report); err != nil {
		return result, fmt.Errorf("failed to write report: %w", err)
	}
	if err := c.store.PruneReports(ctx, c.cfg.PruneDays); err != nil {
		logger.Warn("Prune failed", "error", err)
	}

	evaluation, err := Evaluate(ctx, c.store)
	if err != nil {
		return result, err
	}
	if len(evaluation.Reports) == 0 {
		return result, ErrNoReports
	}
	result.Evaluation = evaluation

	if err := c.publish(ctx, evaluation); err != nil {
		return result, err
	}
	metrics.ObserveInventory(evaluation.Reports, evaluation.Summary)

	result.UpdateCount = len(evaluation.Summary.UpdatesFor(c.cfg.MachineName))
	logger.Info("Cycle complete",
		"machines", len(evaluation.Reports),
		"missing", len(evaluation.Diff.Missing[c.cfg.MachineName]),
		"mismatches", len(evaluation.Diff.VersionMismatches),
		"updates", result.UpdateCount,
	)
	return result, nil
}

func (c *Cycle) publish(ctx context.Context, evaluation *Evaluation) error {
	if err := c.store.WriteDiff(ctx, evaluation.Diff); err != nil {
		return fmt.Errorf("failed to write diff: %w", err)
	}
	if err := c.store.WriteSummary(ctx, evaluation.Summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	var html bytes.Buffer
	if err := report.RenderCombinedReport(&html, evaluation.Reports, evaluation.Summary, evaluation.Diff); err != nil {
		return err
	}
	payload, err := store.MarshalDocument(report.NewCombinedPayload(evaluation.Reports, evaluation.Summary, evaluation.Diff))
	if err != nil {
		return err
	}
	if err := c.store.WriteCombinedReport(ctx, html.Bytes(), payload); err != nil {
		return fmt.Errorf("failed to write combined report: %w", err)
	}
	return nil
}
