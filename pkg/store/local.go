package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pluginsync/pkg/models"
)

// LocalStore keeps reports in a directory, typically one synced between
// machines by a file sharing service.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Dir returns the reports directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) archiveDir() string {
	return filepath.Join(s.dir, ArchiveDir)
}

func (s *LocalStore) WriteReport(_ context.Context, report *models.Report) error {
	if err := os.MkdirAll(s.archiveDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create reports dir: %w", err)
	}
	s.moveOldScans()

	data, err := MarshalDocument(report)
	if err != nil {
		return err
	}
	timestamped := filepath.Join(s.archiveDir(), TimestampedReportName(report.MachineName, now()))
	if err := writeFileAtomic(timestamped, data); err != nil {
		return err
	}
	latest := filepath.Join(s.dir, LatestReportName(report.MachineName))
	if err := writeFileAtomic(latest, data); err != nil {
		return err
	}

	slog.Info("Report written", "component", "LocalStore", "machine", report.MachineName, "path", latest)
	return nil
}

// moveOldScans files any timestamped scans left at the top level into the
// archive. Failures are logged and skipped.
func (s *LocalStore) moveOldScans() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		slog.Warn("Failed to list reports dir", "component", "LocalStore", "error", err)
		return
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsTimestampedReport(entry.Name()) {
			continue
		}
		source := filepath.Join(s.dir, entry.Name())
		destination := filepath.Join(s.archiveDir(), entry.Name())
		if err := os.Rename(source, destination); err != nil {
			slog.Warn("Failed to archive scan", "component", "LocalStore", "file", entry.Name(), "error", err)
		}
	}
}

func (s *LocalStore) WriteDiff(_ context.Context, diff *models.Diff) error {
	return s.writeDocument(DiffFile, diff)
}

func (s *LocalStore) WriteSummary(_ context.Context, summary *models.UpdateSummary) error {
	return s.writeDocument(SummaryFile, summary)
}

func (s *LocalStore) WriteCombinedReport(_ context.Context, html, payload []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create reports dir: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, CombinedHTMLFile), html); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, CombinedJSONFile), payload)
}

func (s *LocalStore) writeDocument(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create reports dir: %w", err)
	}
	data, err := MarshalDocument(v)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, name), data)
}

func (s *LocalStore) LoadLatestReports(_ context.Context) (map[string]models.Report, error) {
	reports := make(map[string]models.Report)
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return reports, nil
		}
		return nil, fmt.Errorf("failed to list reports dir: %w", err)
	}

	// ReadDir sorts by name, so a later file wins when two name the same machine.
	for _, entry := range entries {
		if entry.IsDir() || !IsLatestReport(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			slog.Warn("Skipping unreadable report", "component", "LocalStore", "file", entry.Name(), "error", err)
			continue
		}
		report, ok := decodeReport(data)
		if !ok {
			slog.Warn("Skipping invalid report", "component", "LocalStore", "file", entry.Name())
			continue
		}
		reports[report.MachineName] = report
	}
	return reports, nil
}

func (s *LocalStore) PruneReports(_ context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := pruneCutoff(days)

	var removed []string
	for _, dir := range []string{s.dir, s.archiveDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsTimestampedReport(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				slog.Warn("Failed to prune scan", "component", "LocalStore", "file", path, "error", err)
				continue
			}
			removed = append(removed, entry.Name())
		}
	}

	if len(removed) > 0 {
		sort.Strings(removed)
		slog.Info("Pruned old scans", "component", "LocalStore", "count", len(removed), "files", strings.Join(removed, ","))
	}
	return nil
}

func (s *LocalStore) Close() error {
	return nil
}

// writeFileAtomic writes through a temp file in the same directory so
// readers on other machines never see a partial document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pluginsync-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
