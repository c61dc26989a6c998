package diffing

import (
	"fmt"
	"strings"

	"pluginsync/pkg/models"
)

// NoReportsMessage is the digest printed when no machine has published a report.
const NoReportsMessage = "No reports found."

// FormatDiffSummary renders a short plain-text digest of a diff.
func FormatDiffSummary(diff *models.Diff) string {
	if diff == nil || len(diff.Machines) == 0 {
		return NoReportsMessage
	}

	lines := []string{"Plugin sync diff summary:"}
	for _, machine := range diff.Machines {
		counts := diff.Counts[machine]
		lines = append(lines, fmt.Sprintf("- %s: %d plugins, %d unknown versions",
			machine, counts.Total, counts.UnknownVersions))
	}
	for _, machine := range diff.Machines {
		if n := len(diff.Missing[machine]); n > 0 {
			lines = append(lines, fmt.Sprintf("- Missing on %s: %d", machine, n))
		}
	}
	if n := len(diff.VersionMismatches); n > 0 {
		lines = append(lines, fmt.Sprintf("- Version mismatches: %d", n))
	}
	for _, machine := range diff.Machines {
		if n := len(diff.UnknownVersions[machine]); n > 0 {
			lines = append(lines, fmt.Sprintf("- Unknown versions on %s: %d", machine, n))
		}
	}

	return strings.Join(lines, "\n")
}
