package models

import "time"

// PluginRef identifies a plugin in diff listings. A nil BundleID encodes
// as null.
type PluginRef struct {
	BundleID   *string `json:"bundle_id"`
	BundleName string  `json:"bundle_name"`
	Key        string  `json:"key"`
}

// VersionPair is the (short, bundle) version tuple reported by one machine.
type VersionPair struct {
	BundleVersion string `json:"bundle_version"`
	ShortVersion  string `json:"short_version"`
}

// VersionMismatch lists every machine's versions for a plugin whose versions disagree.
type VersionMismatch struct {
	BundleID   *string                `json:"bundle_id"`
	BundleName string                 `json:"bundle_name"`
	Key        string                 `json:"key"`
	Versions   map[string]VersionPair `json:"versions"`
}

// MachineCounts summarizes one machine's inventory.
type MachineCounts struct {
	Total           int `json:"total"`
	UnknownVersions int `json:"unknown_versions"`
}

// Diff is the structural comparison of all machines for one reconciliation pass.
type Diff struct {
	Counts            map[string]MachineCounts `json:"counts"`
	GeneratedAt       time.Time                `json:"generated_at"`
	Machines          []string                 `json:"machines"`
	Missing           map[string][]PluginRef   `json:"missing"`
	UnknownVersions   map[string][]PluginRef   `json:"unknown_versions"`
	VersionMismatches []VersionMismatch        `json:"version_mismatches"`
}
