package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pluginsync/pkg/config"
	"pluginsync/pkg/models"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)

func TestMain(m *testing.M) {
	now = func() time.Time { return fixedNow }
	os.Exit(m.Run())
}

func sampleReport(machine string) *models.Report {
	return &models.Report{
		MachineName: machine,
		ScanTime:    fixedNow,
		RootPath:    "/plugins",
		Plugins: []models.PluginRecord{
			{BundleName: "Reverb.aaxplugin", BundleID: "com.example.reverb", ShortVersion: "1.0", BundleVersion: "100", Mtime: 12.5},
			{BundleName: "Delay.aaxplugin", ShortVersion: "", BundleVersion: "unknown"},
		},
	}
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "Edit-Bay__latest.json", LatestReportName("Edit/Bay"))
	assert.Equal(t, "unknown__latest.json", LatestReportName(""))
	assert.Equal(t, "Studio__20240301-123045.json", TimestampedReportName("Studio", fixedNow))

	loc := time.FixedZone("plus2", 2*3600)
	assert.Equal(t, "Studio__20240301-123045.json", TimestampedReportName("Studio", fixedNow.In(loc)))
}

func TestSafeMachineName_ReservedNames(t *testing.T) {
	tests := []struct {
		machine string
		want    string
	}{
		{machine: "diff", want: "_diff"},
		{machine: "Summary", want: "_Summary"},
		{machine: "REPORT", want: "_REPORT"},
		{machine: "diff__old", want: "_diff__old"},
		{machine: "_diff", want: "__diff"},
		{machine: "_Studio", want: "__Studio"},
		{machine: "diffs", want: "diffs"},
		{machine: "reporter", want: "reporter"},
		{machine: "Studio", want: "Studio"},
	}

	names := map[string]string{}
	for _, tt := range tests {
		t.Run(tt.machine, func(t *testing.T) {
			got := SafeMachineName(tt.machine)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsLatestReport(LatestReportName(tt.machine)))
			assert.True(t, IsTimestampedReport(TimestampedReportName(tt.machine, fixedNow)))
		})
		names[SafeMachineName(tt.machine)] = tt.machine
	}
	assert.Len(t, names, len(tests), "escaped names stay distinct")
}

func TestIsTimestampedReport(t *testing.T) {
	tests := map[string]bool{
		"Studio__20240101-101010.json": true,
		"Studio__latest.json":          false,
		"diff__20240101-101010.json":   false,
		"summary__20240101.json":       false,
		"Studio.json":                  false,
		"Studio__20240101-101010.html": false,
	}
	for name, want := range tests {
		assert.Equal(t, want, IsTimestampedReport(name), name)
	}
}

func TestIsLatestReport(t *testing.T) {
	tests := map[string]bool{
		"Studio__latest.json":  true,
		"diff__latest.json":    false,
		"summary__latest.json": false,
		"report__latest.json":  false,
		"Studio__latest.html":  false,
		"Studio.json":          false,
	}
	for name, want := range tests {
		assert.Equal(t, want, IsLatestReport(name), name)
	}
}

func TestMarshalDocument(t *testing.T) {
	data, err := MarshalDocument(map[string]any{"b": 1, "a": "<x>"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"<x>\",\n  \"b\": 1\n}\n", string(data))
}

func TestMarshalDocument_ReportKeysSorted(t *testing.T) {
	data, err := MarshalDocument(&models.Report{MachineName: "A", ScanTime: fixedNow, Plugins: []models.PluginRecord{}})
	require.NoError(t, err)
	assert.Equal(t, `{
  "machine_name": "A",
  "plugins": [],
  "scan_time": "2024-03-01T12:30:45Z"
}
`, string(data))
}

func TestDecodeReport(t *testing.T) {
	report, ok := decodeReport([]byte(`{"machine_name":"A","scan_time":"2024-03-01T13:30:45.123456+01:00","plugins":[{"bundle_name":"X.aaxplugin","bundle_id":null,"short_version":"1.0"}]}`))
	require.True(t, ok)
	assert.Equal(t, "A", report.MachineName)
	require.Len(t, report.Plugins, 1)
	assert.Equal(t, "X.aaxplugin", report.Plugins[0].Key())

	_, ok = decodeReport([]byte(`{"plugins":[]}`))
	assert.False(t, ok)
	_, ok = decodeReport([]byte(`not json`))
	assert.False(t, ok)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default("Studio")
	cfg.ReportsPath = t.TempDir()

	s, err := FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	cfg.ReportsBackend = "dropbox"
	_, err = FromConfig(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
}

func TestLatestReport(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	require.NoError(t, s.WriteReport(context.Background(), sampleReport("Studio")))

	report, err := LatestReport(context.Background(), s, "Studio")
	require.NoError(t, err)
	assert.Equal(t, "Studio", report.MachineName)

	_, err = LatestReport(context.Background(), s, "Laptop")
	assert.ErrorIs(t, err, ErrMachineNotFound)
}

func TestObservationRows(t *testing.T) {
	id := uuid.MustParse("6f1c1a9e-4d1b-4a57-9d0e-0c6c4c2b7d11")
	report := sampleReport("Studio")
	report.Plugins = append(report.Plugins, models.PluginRecord{ShortVersion: "1.0"})

	rows := observationRows(id, report)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], len(observationColumns))
	assert.Equal(t, []any{
		id.String(), "Studio", fixedNow, "com.example.reverb",
		"Reverb.aaxplugin", "com.example.reverb", "1.0", "100", "",
	}, rows[0])
	assert.Equal(t, []any{
		id.String(), "Studio", fixedNow, "Delay.aaxplugin",
		"Delay.aaxplugin", "", "unknown", "unknown", "",
	}, rows[1])
}
