package models

import "time"

// UpdateReason explains why a machine needs to act on a plugin.
type UpdateReason string

const (
	ReasonMissing        UpdateReason = "missing"
	ReasonOutdated       UpdateReason = "outdated"
	ReasonUnknownVersion UpdateReason = "unknown_version"
)

// UpdateEntry is one recommended action for one machine.
// Nil pointers encode as JSON null.
type UpdateEntry struct {
	BestMachine    *string      `json:"best_machine"`
	BundleID       *string      `json:"bundle_id"`
	BundleName     string       `json:"bundle_name"`
	CurrentVersion *string      `json:"current_version"`
	Key            string       `json:"key"`
	LatestVersion  *string      `json:"latest_version"`
	Reason         UpdateReason `json:"reason"`
}

// MachineUpdate is a machine's entry under a plugin in UpdatesByPlugin.
type MachineUpdate struct {
	CurrentVersion *string      `json:"current_version"`
	Machine        string       `json:"machine"`
	Reason         UpdateReason `json:"reason"`
}

// PluginUpdate aggregates the machines that need action on one plugin.
type PluginUpdate struct {
	BestMachine   *string         `json:"best_machine"`
	BundleID      *string         `json:"bundle_id"`
	BundleName    string          `json:"bundle_name"`
	LatestVersion *string         `json:"latest_version"`
	Machines      []MachineUpdate `json:"machines"`
}

// UpdateSummary holds per-machine and per-plugin update recommendations.
type UpdateSummary struct {
	GeneratedAt      time.Time                `json:"generated_at"`
	Machines         []string                 `json:"machines"`
	UpdatesByMachine map[string][]UpdateEntry `json:"updates_by_machine"`
	UpdatesByPlugin  map[string]PluginUpdate  `json:"updates_by_plugin"`
}

// UpdatesFor returns the update entries for a machine, or nil when there are none.
func (s *UpdateSummary) UpdatesFor(machine string) []UpdateEntry {
	if s == nil {
		return nil
	}
	return s.UpdatesByMachine[machine]
}
