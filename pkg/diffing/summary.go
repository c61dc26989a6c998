package diffing

import (
	"pluginsync/pkg/models"
	"pluginsync/pkg/version"
)

// candidate is one machine's copy of a plugin, prepared for ranking.
type candidate struct {
	key     version.Key
	ranked  bool
	label   string
	labeled bool
}

func newCandidate(plugin models.PluginRecord) candidate {
	short, bundle := plugin.Versions()
	c := candidate{}
	c.key, c.ranked = version.KeyFor(short, bundle)
	c.label, c.labeled = version.Label(short, bundle)
	return c
}

// ComputeUpdateSummary decides, for every machine and plugin, whether the
// machine should install or update the plugin and from which machine.
//
// The best machine holds the highest ranked version; ties go to the first
// machine in sorted order. Machines with no readable version never win.
// When no machine has a readable version for a plugin nothing is reported
// for that plugin.
func ComputeUpdateSummary(reports map[string]models.Report) *models.UpdateSummary {
	inv := newInventory(reports)

	summary := &models.UpdateSummary{
		GeneratedAt:      now(),
		Machines:         inv.machines,
		UpdatesByMachine: make(map[string][]models.UpdateEntry, len(inv.machines)),
		UpdatesByPlugin:  make(map[string]models.PluginUpdate),
	}
	for _, machine := range inv.machines {
		summary.UpdatesByMachine[machine] = []models.UpdateEntry{}
	}

	for _, key := range inv.keys {
		ref := inv.ref(key)

		candidates := make(map[string]candidate, len(inv.machines))
		bestMachine := ""
		var best candidate
		for _, machine := range inv.machines {
			plugin, ok := inv.plugins[machine][key]
			if !ok {
				continue
			}
			c := newCandidate(plugin)
			candidates[machine] = c
			if !c.ranked {
				continue
			}
			if bestMachine == "" || c.key.Compare(best.key) > 0 {
				bestMachine = machine
				best = c
			}
		}
		if bestMachine == "" {
			continue
		}

		latest := optional(best.label, best.labeled)
		bestRef := optional(bestMachine, true)
		var pending []models.MachineUpdate

		for _, machine := range inv.machines {
			entry := models.UpdateEntry{
				Key:           key,
				BundleName:    ref.BundleName,
				BundleID:      ref.BundleID,
				LatestVersion: latest,
				BestMachine:   bestRef,
			}

			c, present := candidates[machine]
			switch {
			case !present:
				entry.Reason = models.ReasonMissing
			case !c.ranked:
				entry.Reason = models.ReasonUnknownVersion
				entry.CurrentVersion = optional(c.label, c.labeled)
			case c.key.Compare(best.key) < 0:
				entry.Reason = models.ReasonOutdated
				entry.CurrentVersion = optional(c.label, c.labeled)
			default:
				continue
			}

			summary.UpdatesByMachine[machine] = append(summary.UpdatesByMachine[machine], entry)
			pending = append(pending, models.MachineUpdate{
				Machine:        machine,
				CurrentVersion: entry.CurrentVersion,
				Reason:         entry.Reason,
			})
		}

		if len(pending) > 0 {
			summary.UpdatesByPlugin[key] = models.PluginUpdate{
				BundleName:    ref.BundleName,
				BundleID:      ref.BundleID,
				LatestVersion: latest,
				BestMachine:   bestRef,
				Machines:      pending,
			}
		}
	}

	return summary
}

func optional(value string, ok bool) *string {
	if !ok {
		return nil
	}
	return &value
}
