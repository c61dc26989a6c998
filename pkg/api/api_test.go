package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pluginsync/pkg/models"
	"pluginsync/pkg/scheduler"
	"pluginsync/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var scanTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) store.Store {
	t.Helper()
	s := store.NewLocalStore(t.TempDir())
	for _, report := range []*models.Report{
		{
			MachineName: "Studio",
			ScanTime:    scanTime,
			Plugins: []models.PluginRecord{
				{BundleName: "Reverb.aaxplugin", BundleID: "com.a.reverb", ShortVersion: "2.0", BundleVersion: "200"},
				{BundleName: "Delay.aaxplugin", BundleID: "com.a.delay", ShortVersion: "3.0", BundleVersion: "300"},
			},
		},
		{
			MachineName: "Laptop",
			ScanTime:    scanTime,
			Plugins: []models.PluginRecord{
				{BundleName: "Reverb.aaxplugin", BundleID: "com.a.reverb", ShortVersion: "1.0", BundleVersion: "100"},
			},
		},
	} {
		require.NoError(t, s.WriteReport(context.Background(), report))
	}
	return s
}

func newRouter(s store.Store, runner *scheduler.Runner) *gin.Engine {
	router := gin.New()
	RegisterRoutes(router, s, runner, context.Background())
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(newRouter(seededStore(t), nil), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	w := serve(newRouter(seededStore(t), nil), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestReports(t *testing.T) {
	w := serve(newRouter(seededStore(t), nil), http.MethodGet, "/api/v1/reports")
	require.Equal(t, http.StatusOK, w.Code)

	var reports map[string]models.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	assert.Len(t, reports, 2)
	assert.Len(t, reports["Studio"].Plugins, 2)
}

func TestDiff(t *testing.T) {
	w := serve(newRouter(seededStore(t), nil), http.MethodGet, "/api/v1/diff")
	require.Equal(t, http.StatusOK, w.Code)

	var diff models.Diff
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diff))
	assert.Equal(t, []string{"Laptop", "Studio"}, diff.Machines)
	assert.Len(t, diff.Missing["Laptop"], 1)
	assert.Len(t, diff.VersionMismatches, 1)
}

func TestSummary(t *testing.T) {
	w := serve(newRouter(seededStore(t), nil), http.MethodGet, "/api/v1/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var summary models.UpdateSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Len(t, summary.UpdatesByMachine["Laptop"], 2)
	assert.Empty(t, summary.UpdatesByMachine["Studio"])
}

func TestMachineUpdates(t *testing.T) {
	tests := []struct {
		name    string
		machine string
		code    int
		updates int
	}{
		{name: "machine with updates", machine: "Laptop", code: http.StatusOK, updates: 2},
		{name: "machine up to date", machine: "Studio", code: http.StatusOK, updates: 0},
		{name: "unknown machine", machine: "Nobody", code: http.StatusNotFound},
	}

	router := newRouter(seededStore(t), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodGet, "/api/v1/machines/"+tt.machine+"/updates")
			require.Equal(t, tt.code, w.Code)

			if tt.code != http.StatusOK {
				var body struct {
					Error struct {
						Message string `json:"message"`
						Status  int    `json:"status"`
					} `json:"error"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.code, body.Error.Status)
				assert.Contains(t, body.Error.Message, tt.machine)
				return
			}

			var body struct {
				Machine string               `json:"machine"`
				Updates []models.UpdateEntry `json:"updates"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.machine, body.Machine)
			assert.NotNil(t, body.Updates)
			assert.Len(t, body.Updates, tt.updates)
		})
	}
}

func TestScan(t *testing.T) {
	var count atomic.Int32
	runner := scheduler.NewRunner(func(context.Context) error {
		count.Add(1)
		return nil
	})

	w := serve(newRouter(seededStore(t), runner), http.MethodPost, "/api/v1/scan")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"accepted","running":false}`, w.Body.String())
	assert.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScan_Disabled(t *testing.T) {
	w := serve(newRouter(seededStore(t), nil), http.MethodPost, "/api/v1/scan")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCombinedReport(t *testing.T) {
	w := serve(newRouter(seededStore(t), nil), http.MethodGet, "/report")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, htmlContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Delay.aaxplugin")
	assert.Contains(t, w.Body.String(), "Reverb.aaxplugin")
}

func TestMachineReport(t *testing.T) {
	router := newRouter(seededStore(t), nil)

	w := serve(router, http.MethodGet, "/machines/Laptop/report")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Machine: Laptop")
	assert.Contains(t, w.Body.String(), "Install from Studio")

	w = serve(router, http.MethodGet, "/machines/Nobody/report")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// brokenStore fails every read.
type brokenStore struct {
	store.Store
}

func (brokenStore) LoadLatestReports(context.Context) (map[string]models.Report, error) {
	return nil, errors.New("bucket unreachable")
}

func TestStoreFailure(t *testing.T) {
	router := newRouter(brokenStore{}, nil)
	for _, path := range []string{"/api/v1/reports", "/api/v1/diff", "/api/v1/summary", "/report"} {
		w := serve(router, http.MethodGet, path)
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.Contains(t, w.Body.String(), "bucket unreachable", path)
	}
}
