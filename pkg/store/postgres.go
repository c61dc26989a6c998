package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"pluginsync/pkg/models"
)

// latestReportRow is one machine's most recent scan.
type latestReportRow struct {
	MachineName string `gorm:"primaryKey"`
	ScanTime    time.Time
	RootPath    string
	PluginCount int
	Document    []byte `gorm:"type:jsonb;not null"`
	UpdatedAt   time.Time
}

func (latestReportRow) TableName() string { return "latest_reports" }

// archivedReportRow is every scan ever written.
type archivedReportRow struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	MachineName string    `gorm:"index"`
	ScanTime    time.Time `gorm:"index"`
	Document    []byte    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time
}

func (archivedReportRow) TableName() string { return "archived_reports" }

// documentRow holds the derived diff, summary and combined report.
type documentRow struct {
	Name        string `gorm:"primaryKey"`
	ContentType string
	Body        []byte `gorm:"not null"`
	UpdatedAt   time.Time
}

func (documentRow) TableName() string { return "documents" }

// pluginObservationRow is one plugin seen in one archived scan, kept for
// querying version history across machines.
type pluginObservationRow struct {
	ArchiveID     uuid.UUID `gorm:"type:uuid;index"`
	MachineName   string    `gorm:"index"`
	ScanTime      time.Time
	PluginKey     string `gorm:"index"`
	BundleName    string
	BundleID      string
	ShortVersion  string
	BundleVersion string
	BinaryHash    string
}

func (pluginObservationRow) TableName() string { return "plugin_observations" }

var observationColumns = []string{
	"archive_id", "machine_name", "scan_time", "plugin_key",
	"bundle_name", "bundle_id", "short_version", "bundle_version", "binary_hash",
}

// PostgresStore keeps reports in PostgreSQL through gorm. Plugin
// observations are bulk loaded with COPY on the underlying pgx connection.
type PostgresStore struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// OpenPostgresStore connects to dsn and migrates the schema.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	err = db.WithContext(ctx).AutoMigrate(
		&latestReportRow{},
		&archivedReportRow{},
		&documentRow{},
		&pluginObservationRow{},
	)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	slog.Info("Connected to database", "component", "PostgresStore")
	return &PostgresStore{db: db, sqlDB: sqlDB}, nil
}

func (s *PostgresStore) WriteReport(ctx context.Context, report *models.Report) error {
	data, err := MarshalDocument(report)
	if err != nil {
		return err
	}
	archiveID := uuid.New()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest := latestReportRow{
			MachineName: report.MachineName,
			ScanTime:    report.ScanTime,
			RootPath:    report.RootPath,
			PluginCount: len(report.Plugins),
			Document:    data,
			UpdatedAt:   now(),
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&latest).Error; err != nil {
			return fmt.Errorf("failed to upsert latest report: %w", err)
		}
		archived := archivedReportRow{
			ID:          archiveID,
			MachineName: report.MachineName,
			ScanTime:    report.ScanTime,
			Document:    data,
		}
		if err := tx.Create(&archived).Error; err != nil {
			return fmt.Errorf("failed to archive report: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.copyObservations(ctx, observationRows(archiveID, report)); err != nil {
		return err
	}
	slog.Info("Report stored", "component", "PostgresStore", "machine", report.MachineName, "archive_id", archiveID)
	return nil
}

// observationRows flattens a report into COPY rows in observationColumns order.
func observationRows(archiveID uuid.UUID, report *models.Report) [][]any {
	rows := make([][]any, 0, len(report.Plugins))
	for _, plugin := range report.Plugins {
		key := plugin.Key()
		if key == "" {
			continue
		}
		short, bundle := plugin.Versions()
		rows = append(rows, []any{
			archiveID.String(), report.MachineName, report.ScanTime, key,
			plugin.BundleName, plugin.BundleID, short, bundle, plugin.BinaryHash,
		})
	}
	return rows
}

func (s *PostgresStore) copyObservations(ctx context.Context, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	// Get a connection from the pool and unwrap to pgx.Conn
	conn, err := s.sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		pgxConn := driverConn.(*stdlib.Conn).Conn()
		_, copyErr := pgxConn.CopyFrom(
			ctx,
			pgx.Identifier{"plugin_observations"},
			observationColumns,
			pgx.CopyFromRows(rows),
		)
		return copyErr
	})
	if err != nil {
		return fmt.Errorf("failed to copy plugin observations: %w", err)
	}

	slog.Debug("Batch inserted plugin observations", "component", "PostgresStore", "count", len(rows))
	return nil
}

func (s *PostgresStore) WriteDiff(ctx context.Context, diff *models.Diff) error {
	return s.writeJSONDocument(ctx, DiffFile, diff)
}

func (s *PostgresStore) WriteSummary(ctx context.Context, summary *models.UpdateSummary) error {
	return s.writeJSONDocument(ctx, SummaryFile, summary)
}

func (s *PostgresStore) WriteCombinedReport(ctx context.Context, html, payload []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertDocument(tx, CombinedHTMLFile, "text/html; charset=utf-8", html); err != nil {
			return err
		}
		return upsertDocument(tx, CombinedJSONFile, "application/json", payload)
	})
}

func (s *PostgresStore) writeJSONDocument(ctx context.Context, name string, v any) error {
	data, err := MarshalDocument(v)
	if err != nil {
		return err
	}
	return upsertDocument(s.db.WithContext(ctx), name, "application/json", data)
}

func upsertDocument(db *gorm.DB, name, contentType string, body []byte) error {
	row := documentRow{Name: name, ContentType: contentType, Body: body, UpdatedAt: now()}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) LoadLatestReports(ctx context.Context) (map[string]models.Report, error) {
	var rows []latestReportRow
	if err := s.db.WithContext(ctx).Order("machine_name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load latest reports: %w", err)
	}

	reports := make(map[string]models.Report, len(rows))
	for _, row := range rows {
		report, ok := decodeReport(row.Document)
		if !ok {
			slog.Warn("Skipping invalid report", "component", "PostgresStore", "machine", row.MachineName)
			continue
		}
		reports[report.MachineName] = report
	}
	return reports, nil
}

func (s *PostgresStore) PruneReports(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := pruneCutoff(days)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scan_time < ?", cutoff).Delete(&pluginObservationRow{}).Error; err != nil {
			return fmt.Errorf("failed to prune plugin observations: %w", err)
		}
		result := tx.Where("scan_time < ?", cutoff).Delete(&archivedReportRow{})
		if result.Error != nil {
			return fmt.Errorf("failed to prune archived reports: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			slog.Info("Pruned old scans", "component", "PostgresStore", "count", result.RowsAffected)
		}
		return nil
	})
}

func (s *PostgresStore) Close() error {
	return s.sqlDB.Close()
}
