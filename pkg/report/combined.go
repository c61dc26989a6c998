package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"pluginsync/pkg/models"
	"pluginsync/pkg/version"
)

// now is replaced in tests.
var now = time.Now

// CellState is how one machine holds one plugin.
type CellState string

const (
	CellMissing CellState = "missing"
	CellUnknown CellState = "unknown"
	CellVersion CellState = "version"
)

// Cell is one machine's column in a plugin row.
type Cell struct {
	State   CellState
	Version string
}

// PluginRow is one plugin across every machine.
type PluginRow struct {
	Key      string
	Name     string
	Missing  bool
	Mismatch bool
	Unknown  bool
	Cells    []Cell
}

// Differs reports whether the plugin is out of sync anywhere.
func (r PluginRow) Differs() bool {
	return r.Missing || r.Mismatch || r.Unknown
}

// MachineCard summarizes one machine's snapshot.
type MachineCard struct {
	Name     string
	ScanTime string
	Plugins  int
	Updates  int
	Rows     []UpdateRow
}

// CombinedPage is the view model of the combined report.
type CombinedPage struct {
	GeneratedAt  time.Time
	Machines     []MachineCard
	Rows         []PluginRow
	Total        int
	Differences  int
	MissingKeys  int
	MismatchKeys int
	UnknownKeys  int
}

// NewCombinedPage builds the plugin-by-machine matrix. Rows are ordered
// by lowercased plugin name.
func NewCombinedPage(reports map[string]models.Report, summary *models.UpdateSummary, diff *models.Diff) CombinedPage {
	machines := make([]string, 0, len(reports))
	for machine := range reports {
		machines = append(machines, machine)
	}
	sort.Strings(machines)

	generatedAt := now()
	if diff != nil && !diff.GeneratedAt.IsZero() {
		generatedAt = diff.GeneratedAt
	}
	page := CombinedPage{GeneratedAt: generatedAt}

	plugins := make(map[string]map[string]models.PluginRecord, len(machines))
	names := make(map[string]string)
	for _, machine := range machines {
		mapping := reports[machine].PluginMap()
		plugins[machine] = mapping
		for key, plugin := range mapping {
			if _, seen := names[key]; !seen {
				names[key] = plugin.BundleName
			}
		}

		card := MachineCard{Name: machine, ScanTime: "Unknown", Plugins: len(mapping)}
		if scan := reports[machine].ScanTime; !scan.IsZero() {
			card.ScanTime = scan.Format(time.RFC3339)
		}
		if summary != nil {
			updates := summary.UpdatesFor(machine)
			card.Updates = len(updates)
			card.Rows = updateRows(updates)
		}
		page.Machines = append(page.Machines, card)
	}

	keys := make([]string, 0, len(names))
	for key, name := range names {
		if name == "" {
			names[key] = key
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := strings.ToLower(names[keys[i]]), strings.ToLower(names[keys[j]])
		if a != b {
			return a < b
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		row := PluginRow{Key: key, Name: names[key]}
		known := make(map[string]struct{})
		for _, machine := range machines {
			plugin, ok := plugins[machine][key]
			if !ok {
				row.Missing = true
				row.Cells = append(row.Cells, Cell{State: CellMissing})
				continue
			}
			label, labeled := version.Label(plugin.Versions())
			if !labeled {
				row.Unknown = true
				row.Cells = append(row.Cells, Cell{State: CellUnknown})
				continue
			}
			known[label] = struct{}{}
			row.Cells = append(row.Cells, Cell{State: CellVersion, Version: label})
		}
		row.Mismatch = len(known) > 1

		if row.Missing {
			page.MissingKeys++
		}
		if row.Mismatch {
			page.MismatchKeys++
		}
		if row.Unknown {
			page.UnknownKeys++
		}
		if row.Differs() {
			page.Differences++
		}
		page.Rows = append(page.Rows, row)
	}
	page.Total = len(keys)
	return page
}

// RenderCombinedReport writes the combined HTML report.
func RenderCombinedReport(w io.Writer, reports map[string]models.Report, summary *models.UpdateSummary, diff *models.Diff) error {
	page := NewCombinedPage(reports, summary, diff)
	if err := templates.ExecuteTemplate(w, "combined.html.tmpl", page); err != nil {
		return fmt.Errorf("failed to render combined report: %w", err)
	}
	return nil
}

// CombinedPayload is the JSON companion of the combined report.
type CombinedPayload struct {
	Diff        *models.Diff             `json:"diff"`
	GeneratedAt time.Time                `json:"generated_at"`
	Reports     map[string]models.Report `json:"reports"`
	Summary     *models.UpdateSummary    `json:"summary"`
}

// NewCombinedPayload bundles everything the combined report was built from.
func NewCombinedPayload(reports map[string]models.Report, summary *models.UpdateSummary, diff *models.Diff) CombinedPayload {
	return CombinedPayload{
		Diff:        diff,
		GeneratedAt: now(),
		Reports:     reports,
		Summary:     summary,
	}
}
