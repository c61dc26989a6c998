package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"pluginsync/pkg/models"
	"pluginsync/pkg/report"
	"pluginsync/pkg/scancycle"
	"pluginsync/pkg/scheduler"
	"pluginsync/pkg/store"
)

const htmlContentType = "text/html; charset=utf-8"

// healthHandler reports liveness
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// reportsHandler returns every machine's latest report
func reportsHandler(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		reports, err := s.LoadLatestReports(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, reports)
	}
}

// diffHandler computes the diff over the latest reports
func diffHandler(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		evaluation, ok := evaluate(c, s)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, evaluation.Diff)
	}
}

// summaryHandler computes the update summary over the latest reports
func summaryHandler(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		evaluation, ok := evaluate(c, s)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, evaluation.Summary)
	}
}

// machineUpdatesHandler lists the actions one machine needs
func machineUpdatesHandler(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		machine := c.Param("machine")
		evaluation, ok := evaluate(c, s)
		if !ok {
			return
		}
		if _, found := evaluation.Reports[machine]; !found {
			respondMachineNotFound(c, machine)
			return
		}

		updates := evaluation.Summary.UpdatesFor(machine)
		if updates == nil {
			updates = []models.UpdateEntry{}
		}
		c.JSON(http.StatusOK, gin.H{
			"machine": machine,
			"updates": updates,
		})
	}
}

// scanHandler queues a scan cycle on the runner. Requests that arrive while
// a cycle is running are folded into a single follow-up run. Callers wait
// on the runner before releasing the store.
func scanHandler(runner *scheduler.Runner, runCtx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if runner == nil {
			respondError(c, http.StatusServiceUnavailable, "scanning is not enabled")
			return
		}
		running := runner.Running()
		runner.Go(runCtx)
		c.JSON(http.StatusAccepted, gin.H{
			"status":  "accepted",
			"running": running,
		})
	}
}

// combinedReportHandler renders the all-machines HTML page
func combinedReportHandler(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		evaluation, ok := evaluate(c, s)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := report.RenderCombinedReport(&buf, evaluation.Reports, evaluation.Summary, evaluation.Diff); err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.Data(http.StatusOK, htmlContentType, buf.Bytes())
	}
}

// machineReportHandler renders one machine's update page
func machineReportHandler(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		machine := c.Param("machine")
		evaluation, ok := evaluate(c, s)
		if !ok {
			return
		}
		if _, found := evaluation.Reports[machine]; !found {
			respondMachineNotFound(c, machine)
			return
		}
		var buf bytes.Buffer
		if err := report.RenderUpdateReport(&buf, evaluation.Summary, machine); err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.Data(http.StatusOK, htmlContentType, buf.Bytes())
	}
}

func evaluate(c *gin.Context, s store.Store) (*scancycle.Evaluation, bool) {
	evaluation, err := scancycle.Evaluate(c.Request.Context(), s)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return evaluation, true
}
