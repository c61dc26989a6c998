package store

import (
	"strings"
	"time"
)

const (
	// ArchiveDir holds timestamped scans once a newer scan is written.
	ArchiveDir = "old scans"

	DiffFile         = "diff__latest.json"
	SummaryFile      = "summary__latest.json"
	CombinedHTMLFile = "report__latest.html"
	CombinedJSONFile = "report__latest.json"

	latestSuffix    = "__latest.json"
	timestampLayout = "20060102-150405"
)

var reservedPrefixes = []string{"diff__", "summary__", "report__"}

// SafeMachineName makes a machine name usable as a file name prefix.
// Names that would collide with a derived document, compared
// case-insensitively, get a leading underscore. Names that already start
// with an underscore get one more, so distinct machines keep distinct files.
func SafeMachineName(machine string) string {
	machine = strings.ReplaceAll(machine, "/", "-")
	if machine == "" {
		return "unknown"
	}
	if strings.HasPrefix(machine, "_") || isReservedName(machine) {
		return "_" + machine
	}
	return machine
}

func isReservedName(machine string) bool {
	lower := strings.ToLower(machine) + "__"
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// LatestReportName is the file holding a machine's most recent scan.
func LatestReportName(machine string) string {
	return SafeMachineName(machine) + latestSuffix
}

// TimestampedReportName is the archived copy of a scan taken at t.
func TimestampedReportName(machine string, t time.Time) string {
	return SafeMachineName(machine) + "__" + t.UTC().Format(timestampLayout) + ".json"
}

// IsTimestampedReport reports whether name is an archived machine scan.
func IsTimestampedReport(name string) bool {
	if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, latestSuffix) {
		return false
	}
	if strings.HasPrefix(name, "diff__") || strings.HasPrefix(name, "summary__") {
		return false
	}
	return strings.Contains(name, "__")
}

// IsLatestReport reports whether name is a machine's latest scan.
func IsLatestReport(name string) bool {
	if !strings.HasSuffix(name, latestSuffix) {
		return false
	}
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return true
}
