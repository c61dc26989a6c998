package models

import (
	"time"
)

// UnknownVersion marks a version field that could not be read from the bundle.
const UnknownVersion = "unknown"

// PluginRecord is one plugin bundle as observed on one machine.
// Fields are declared in JSON key order so encoded documents have sorted keys.
type PluginRecord struct {
	BinaryHash    string  `json:"binary_hash,omitempty"`
	BundleID      string  `json:"bundle_id"`
	BundleName    string  `json:"bundle_name"`
	BundleVersion string  `json:"bundle_version"`
	Mtime         float64 `json:"mtime"`
	ShortVersion  string  `json:"short_version"`
}

// Key returns the identity used to correlate a plugin across machines.
func (p PluginRecord) Key() string {
	if p.BundleID != "" {
		return p.BundleID
	}
	return p.BundleName
}

// Versions returns the short and bundle versions with blanks normalized to UnknownVersion.
func (p PluginRecord) Versions() (short, bundle string) {
	short, bundle = p.ShortVersion, p.BundleVersion
	if short == "" {
		short = UnknownVersion
	}
	if bundle == "" {
		bundle = UnknownVersion
	}
	return short, bundle
}

// HasUnknownVersion reports whether neither version field is known.
func (p PluginRecord) HasUnknownVersion() bool {
	short, bundle := p.Versions()
	return short == UnknownVersion && bundle == UnknownVersion
}

// Report is one machine's inventory at scan time.
type Report struct {
	MachineName string         `json:"machine_name"`
	Plugins     []PluginRecord `json:"plugins"`
	RootPath    string         `json:"root_path,omitempty"`
	ScanTime    time.Time      `json:"scan_time"`
}

// PluginMap indexes the report's plugins by Key. Records without a key are
// dropped and later duplicates replace earlier ones.
func (r Report) PluginMap() map[string]PluginRecord {
	mapping := make(map[string]PluginRecord, len(r.Plugins))
	for _, plugin := range r.Plugins {
		key := plugin.Key()
		if key == "" {
			continue
		}
		mapping[key] = plugin
	}
	return mapping
}
