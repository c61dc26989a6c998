// Package store publishes scan reports and the documents derived from them
// to a location every machine can read.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pluginsync/pkg/config"
	"pluginsync/pkg/models"
)

var (
	// ErrUnsupportedBackend is returned by FromConfig for an unknown reports_backend.
	ErrUnsupportedBackend = errors.New("unsupported reports backend")
	// ErrMachineNotFound is returned when no latest report exists for a machine.
	ErrMachineNotFound = errors.New("machine not found")
)

// now is replaced in tests.
var now = time.Now

// Store persists machine reports and derived documents.
type Store interface {
	// WriteReport archives older scans and publishes report as its machine's latest.
	WriteReport(ctx context.Context, report *models.Report) error
	WriteDiff(ctx context.Context, diff *models.Diff) error
	WriteSummary(ctx context.Context, summary *models.UpdateSummary) error
	// WriteCombinedReport publishes the rendered cross-machine report.
	WriteCombinedReport(ctx context.Context, html, payload []byte) error
	// LoadLatestReports returns every machine's latest report keyed by machine name.
	LoadLatestReports(ctx context.Context) (map[string]models.Report, error)
	// PruneReports deletes archived scans older than days. Zero or less disables pruning.
	PruneReports(ctx context.Context, days int) error
	Close() error
}

// FromConfig opens the store selected by cfg.ReportsBackend.
func FromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.ReportsBackend {
	case config.BackendLocal, "":
		return NewLocalStore(cfg.ReportsPath), nil
	case config.BackendGCS:
		bucket, err := NewGCSBucket(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, err
		}
		return NewBlobStore(bucket, cfg.GCSPrefix), nil
	case config.BackendPostgres:
		return OpenPostgresStore(ctx, cfg.DatabaseDSN)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.ReportsBackend)
}

// LatestReport returns the latest report for one machine.
func LatestReport(ctx context.Context, s Store, machine string) (models.Report, error) {
	reports, err := s.LoadLatestReports(ctx)
	if err != nil {
		return models.Report{}, err
	}
	report, ok := reports[machine]
	if !ok {
		return models.Report{}, fmt.Errorf("%w: %s", ErrMachineNotFound, machine)
	}
	return report, nil
}

// MarshalDocument encodes v as indented JSON with a trailing newline.
// Struct fields are declared in key order and maps are sorted by the
// encoder, so the output has sorted keys throughout.
func MarshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeReport parses a published report. Documents that are not JSON or
// carry no machine name are rejected.
func decodeReport(data []byte) (models.Report, bool) {
	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return models.Report{}, false
	}
	if report.MachineName == "" {
		return models.Report{}, false
	}
	return report, true
}

func pruneCutoff(days int) time.Time {
	return now().Add(-time.Duration(days) * 24 * time.Hour)
}
