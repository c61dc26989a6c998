package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"pluginsync/pkg/models"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("report").Funcs(template.FuncMap{
	"timestamp": func(t time.Time) string { return t.Format(time.RFC3339) },
	"add":       func(a, b int) int { return a + b },
}).ParseFS(templateFS, "templates/*.html.tmpl"))

// UpdatePage is the view model of a machine's update report.
type UpdatePage struct {
	Machine     string
	GeneratedAt time.Time
	Sources     string
	Total       int
	Missing     int
	Outdated    int
	Unknown     int
	Rows        []UpdateRow
}

// NewUpdatePage collects the updates summary holds for machine.
func NewUpdatePage(summary *models.UpdateSummary, machine string) UpdatePage {
	updates := summary.UpdatesFor(machine)
	page := UpdatePage{
		Machine:     machine,
		GeneratedAt: summary.GeneratedAt,
		Total:       len(updates),
		Rows:        updateRows(updates),
	}

	sources := make(map[string]struct{})
	for _, entry := range updates {
		switch entry.Reason {
		case models.ReasonMissing:
			page.Missing++
		case models.ReasonOutdated:
			page.Outdated++
		case models.ReasonUnknownVersion:
			page.Unknown++
		}
		if entry.BestMachine != nil && *entry.BestMachine != "" {
			sources[*entry.BestMachine] = struct{}{}
		}
	}
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	page.Sources = "Unknown"
	if len(names) > 0 {
		page.Sources = strings.Join(names, ", ")
	}
	return page
}

// RenderUpdateReport writes the HTML update report for machine.
func RenderUpdateReport(w io.Writer, summary *models.UpdateSummary, machine string) error {
	if err := templates.ExecuteTemplate(w, "update.html.tmpl", NewUpdatePage(summary, machine)); err != nil {
		return fmt.Errorf("failed to render update report: %w", err)
	}
	return nil
}
