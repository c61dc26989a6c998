// Package diffing compares plugin inventories across machines.
//
// Both engines are pure: they read the supplied reports, hold no state
// between calls and never fail. Machines and plugin keys are always walked
// in sorted order so identical input produces identical output.
package diffing

import (
	"sort"
	"time"

	"pluginsync/pkg/models"
)

// now is replaced in tests.
var now = time.Now

// inventory is the per-machine key index shared by both engines.
type inventory struct {
	machines []string
	plugins  map[string]map[string]models.PluginRecord
	keys     []string
}

func newInventory(reports map[string]models.Report) *inventory {
	inv := &inventory{
		machines: make([]string, 0, len(reports)),
		plugins:  make(map[string]map[string]models.PluginRecord, len(reports)),
	}
	seen := make(map[string]struct{})
	for machine, report := range reports {
		inv.machines = append(inv.machines, machine)
		mapping := report.PluginMap()
		inv.plugins[machine] = mapping
		for key := range mapping {
			seen[key] = struct{}{}
		}
	}
	sort.Strings(inv.machines)

	inv.keys = make([]string, 0, len(seen))
	for key := range seen {
		inv.keys = append(inv.keys, key)
	}
	sort.Strings(inv.keys)
	return inv
}

// sample returns the record for key from the first machine, in sorted order, that has it.
func (inv *inventory) sample(key string) (models.PluginRecord, bool) {
	for _, machine := range inv.machines {
		if plugin, ok := inv.plugins[machine][key]; ok {
			return plugin, true
		}
	}
	return models.PluginRecord{}, false
}

func (inv *inventory) ref(key string) models.PluginRef {
	ref := models.PluginRef{Key: key}
	if plugin, ok := inv.sample(key); ok {
		ref.BundleName = plugin.BundleName
		ref.BundleID = optional(plugin.BundleID, plugin.BundleID != "")
	}
	return ref
}

// ComputeDiff reports, for every machine, the plugins it lacks and the
// plugins whose versions are unknown, plus every plugin whose versions
// disagree between the machines that have it.
func ComputeDiff(reports map[string]models.Report) *models.Diff {
	inv := newInventory(reports)

	diff := &models.Diff{
		GeneratedAt:       now(),
		Machines:          inv.machines,
		Missing:           make(map[string][]models.PluginRef, len(inv.machines)),
		UnknownVersions:   make(map[string][]models.PluginRef, len(inv.machines)),
		VersionMismatches: []models.VersionMismatch{},
		Counts:            make(map[string]models.MachineCounts, len(inv.machines)),
	}

	for _, machine := range inv.machines {
		mapping := inv.plugins[machine]
		missing := []models.PluginRef{}
		unknown := []models.PluginRef{}

		for _, key := range inv.keys {
			plugin, ok := mapping[key]
			if !ok {
				missing = append(missing, inv.ref(key))
				continue
			}
			if plugin.HasUnknownVersion() {
				unknown = append(unknown, models.PluginRef{
					Key:        key,
					BundleName: plugin.BundleName,
					BundleID:   optional(plugin.BundleID, plugin.BundleID != ""),
				})
			}
		}

		diff.Missing[machine] = missing
		diff.UnknownVersions[machine] = unknown
		diff.Counts[machine] = models.MachineCounts{
			Total:           len(mapping),
			UnknownVersions: len(unknown),
		}
	}

	for _, key := range inv.keys {
		versions := make(map[string]models.VersionPair)
		distinct := make(map[models.VersionPair]struct{})
		for _, machine := range inv.machines {
			plugin, ok := inv.plugins[machine][key]
			if !ok {
				continue
			}
			short, bundle := plugin.Versions()
			pair := models.VersionPair{ShortVersion: short, BundleVersion: bundle}
			versions[machine] = pair
			distinct[pair] = struct{}{}
		}
		if len(versions) < 2 || len(distinct) < 2 {
			continue
		}
		ref := inv.ref(key)
		diff.VersionMismatches = append(diff.VersionMismatches, models.VersionMismatch{
			Key:        key,
			BundleName: ref.BundleName,
			BundleID:   ref.BundleID,
			Versions:   versions,
		})
	}

	return diff
}
