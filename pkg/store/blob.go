package store

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pluginsync/pkg/models"
)

const downloadConcurrency = 8

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Name    string
	Updated time.Time
}

// Bucket is the object storage a BlobStore publishes to.
type Bucket interface {
	// List returns every object whose name starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte, contentType string) error
	Copy(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, name string) error
	Close() error
}

// BlobStore lays reports out in a bucket the same way LocalStore lays them
// out in a directory, under an optional prefix.
type BlobStore struct {
	bucket Bucket
	prefix string
}

func NewBlobStore(bucket Bucket, prefix string) *BlobStore {
	return &BlobStore{bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *BlobStore) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *BlobStore) archiveName(name string) string {
	return s.objectName(ArchiveDir + "/" + name)
}

func (s *BlobStore) listPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

// topLevel lists the objects directly under the prefix, by base name.
func (s *BlobStore) topLevel(ctx context.Context) ([]ObjectInfo, error) {
	objects, err := s.bucket.List(ctx, s.listPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	var out []ObjectInfo
	for _, object := range objects {
		rest := strings.TrimPrefix(object.Name, s.listPrefix())
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, ObjectInfo{Name: rest, Updated: object.Updated})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *BlobStore) WriteReport(ctx context.Context, report *models.Report) error {
	s.moveOldScans(ctx)

	data, err := MarshalDocument(report)
	if err != nil {
		return err
	}
	timestamped := s.archiveName(TimestampedReportName(report.MachineName, now()))
	if err := s.bucket.Write(ctx, timestamped, data, "application/json"); err != nil {
		return fmt.Errorf("failed to upload %s: %w", timestamped, err)
	}
	latest := s.objectName(LatestReportName(report.MachineName))
	if err := s.bucket.Write(ctx, latest, data, "application/json"); err != nil {
		return fmt.Errorf("failed to upload %s: %w", latest, err)
	}

	slog.Info("Report uploaded", "component", "BlobStore", "machine", report.MachineName, "object", latest)
	return nil
}

// moveOldScans copies top-level timestamped scans into the archive and
// deletes the originals. Failures are logged and skipped.
func (s *BlobStore) moveOldScans(ctx context.Context) {
	objects, err := s.topLevel(ctx)
	if err != nil {
		slog.Warn("Failed to list reports", "component", "BlobStore", "error", err)
		return
	}
	for _, object := range objects {
		if !IsTimestampedReport(object.Name) {
			continue
		}
		source := s.objectName(object.Name)
		if err := s.bucket.Copy(ctx, source, s.archiveName(object.Name)); err != nil {
			slog.Warn("Failed to archive scan", "component", "BlobStore", "object", source, "error", err)
			continue
		}
		if err := s.bucket.Delete(ctx, source); err != nil {
			slog.Warn("Failed to remove archived scan", "component", "BlobStore", "object", source, "error", err)
		}
	}
}

func (s *BlobStore) WriteDiff(ctx context.Context, diff *models.Diff) error {
	return s.writeDocument(ctx, DiffFile, diff)
}

func (s *BlobStore) WriteSummary(ctx context.Context, summary *models.UpdateSummary) error {
	return s.writeDocument(ctx, SummaryFile, summary)
}

func (s *BlobStore) WriteCombinedReport(ctx context.Context, html, payload []byte) error {
	if err := s.bucket.Write(ctx, s.objectName(CombinedHTMLFile), html, "text/html; charset=utf-8"); err != nil {
		return fmt.Errorf("failed to upload %s: %w", CombinedHTMLFile, err)
	}
	if err := s.bucket.Write(ctx, s.objectName(CombinedJSONFile), payload, "application/json"); err != nil {
		return fmt.Errorf("failed to upload %s: %w", CombinedJSONFile, err)
	}
	return nil
}

func (s *BlobStore) writeDocument(ctx context.Context, name string, v any) error {
	data, err := MarshalDocument(v)
	if err != nil {
		return err
	}
	if err := s.bucket.Write(ctx, s.objectName(name), data, "application/json"); err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}

// LoadLatestReports downloads every latest report concurrently. Objects
// that cannot be read or parsed are skipped.
func (s *BlobStore) LoadLatestReports(ctx context.Context) (map[string]models.Report, error) {
	objects, err := s.topLevel(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, object := range objects {
		if IsLatestReport(object.Name) {
			names = append(names, object.Name)
		}
	}

	decoded := make([]*models.Report, len(names))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(downloadConcurrency)
	for i, name := range names {
		group.Go(func() error {
			data, err := s.bucket.Read(groupCtx, s.objectName(name))
			if err != nil {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				slog.Warn("Skipping unreadable report", "component", "BlobStore", "object", name, "error", err)
				return nil
			}
			if report, ok := decodeReport(data); ok {
				decoded[i] = &report
			} else {
				slog.Warn("Skipping invalid report", "component", "BlobStore", "object", name)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to download reports: %w", err)
	}

	reports := make(map[string]models.Report, len(names))
	for _, report := range decoded {
		if report != nil {
			reports[report.MachineName] = *report
		}
	}
	return reports, nil
}

func (s *BlobStore) PruneReports(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := pruneCutoff(days)

	objects, err := s.bucket.List(ctx, s.listPrefix())
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	archivePrefix := s.listPrefix() + ArchiveDir + "/"
	removed := 0
	for _, object := range objects {
		dir, base := path.Split(object.Name)
		if dir != s.listPrefix() && dir != archivePrefix {
			continue
		}
		if !IsTimestampedReport(base) || !object.Updated.Before(cutoff) {
			continue
		}
		if err := s.bucket.Delete(ctx, object.Name); err != nil {
			slog.Warn("Failed to prune scan", "component", "BlobStore", "object", object.Name, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Pruned old scans", "component", "BlobStore", "count", removed)
	}
	return nil
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
