// Package report renders the combined cross-machine report and the
// per-machine update report.
package report

import (
	"fmt"
	"sort"
	"strings"

	"pluginsync/pkg/models"
)

var reasonOrder = map[models.UpdateReason]int{
	models.ReasonMissing:        0,
	models.ReasonOutdated:       1,
	models.ReasonUnknownVersion: 2,
}

var reasonLabels = map[models.UpdateReason]string{
	models.ReasonMissing:        "Missing",
	models.ReasonOutdated:       "Outdated",
	models.ReasonUnknownVersion: "Unknown version",
}

// ReasonLabel is the human readable form of a reason.
func ReasonLabel(reason models.UpdateReason) string {
	if label, ok := reasonLabels[reason]; ok {
		return label
	}
	return "Update needed"
}

// FormatVersion renders an optional version, "missing" when absent.
func FormatVersion(version *string) string {
	if version == nil || *version == "" {
		return "missing"
	}
	return *version
}

// ActionText tells the user what to do about one update entry.
func ActionText(entry models.UpdateEntry) string {
	target := "latest version"
	if entry.LatestVersion != nil && *entry.LatestVersion != "" {
		target = "version " + *entry.LatestVersion
	}
	source := ""
	if entry.BestMachine != nil {
		source = *entry.BestMachine
	}

	switch entry.Reason {
	case models.ReasonMissing:
		if source != "" {
			return fmt.Sprintf("Install from %s (%s).", source, target)
		}
		return fmt.Sprintf("Install %s.", target)
	case models.ReasonOutdated:
		if source != "" {
			return fmt.Sprintf("Update from %s to %s.", source, target)
		}
		return fmt.Sprintf("Update to %s.", target)
	}
	if source != "" {
		return fmt.Sprintf("Verify version against %s.", source)
	}
	return "Verify version manually."
}

// displayName is the bundle name, falling back to the key.
func displayName(entry models.UpdateEntry) string {
	switch {
	case entry.BundleName != "":
		return entry.BundleName
	case entry.Key != "":
		return entry.Key
	}
	return "Unknown plugin"
}

// SortUpdates returns a copy of updates ordered by reason (missing,
// outdated, unknown version) and then by lowercased plugin name.
func SortUpdates(updates []models.UpdateEntry) []models.UpdateEntry {
	sorted := append([]models.UpdateEntry(nil), updates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := rank(sorted[i].Reason), rank(sorted[j].Reason)
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(displayName(sorted[i])) < strings.ToLower(displayName(sorted[j]))
	})
	return sorted
}

func rank(reason models.UpdateReason) int {
	if order, ok := reasonOrder[reason]; ok {
		return order
	}
	return 99
}

// UpdateRow is one rendered update entry.
type UpdateRow struct {
	Plugin  string
	Current string
	Latest  string
	Reason  string
	Source  string
	Action  string
}

func updateRows(updates []models.UpdateEntry) []UpdateRow {
	rows := make([]UpdateRow, 0, len(updates))
	for _, entry := range SortUpdates(updates) {
		source := "Unknown"
		if entry.BestMachine != nil && *entry.BestMachine != "" {
			source = *entry.BestMachine
		}
		rows = append(rows, UpdateRow{
			Plugin:  displayName(entry),
			Current: FormatVersion(entry.CurrentVersion),
			Latest:  FormatVersion(entry.LatestVersion),
			Reason:  ReasonLabel(entry.Reason),
			Source:  source,
			Action:  ActionText(entry),
		})
	}
	return rows
}
