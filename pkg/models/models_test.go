package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluginRecord_Key(t *testing.T) {
	tests := []struct {
		name   string
		record PluginRecord
		want   string
	}{
		{name: "bundle id wins", record: PluginRecord{BundleID: "com.a.reverb", BundleName: "Reverb.aaxplugin"}, want: "com.a.reverb"},
		{name: "falls back to bundle name", record: PluginRecord{BundleName: "Reverb.aaxplugin"}, want: "Reverb.aaxplugin"},
		{name: "no identity", record: PluginRecord{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.Key())
		})
	}
}

func TestPluginRecord_Versions(t *testing.T) {
	short, bundle := PluginRecord{ShortVersion: "1.0"}.Versions()
	assert.Equal(t, "1.0", short)
	assert.Equal(t, UnknownVersion, bundle)

	assert.True(t, PluginRecord{}.HasUnknownVersion())
	assert.True(t, PluginRecord{ShortVersion: UnknownVersion, BundleVersion: UnknownVersion}.HasUnknownVersion())
	assert.False(t, PluginRecord{BundleVersion: "7"}.HasUnknownVersion())
}

func TestReport_PluginMap(t *testing.T) {
	report := Report{Plugins: []PluginRecord{
		{BundleID: "a", ShortVersion: "1"},
		{},
		{BundleName: "B.aaxplugin"},
		{BundleID: "a", ShortVersion: "2"},
	}}

	mapping := report.PluginMap()
	assert.Len(t, mapping, 2)
	assert.Equal(t, "2", mapping["a"].ShortVersion)
	assert.Contains(t, mapping, "B.aaxplugin")
}

func TestUpdateSummary_UpdatesFor(t *testing.T) {
	var nilSummary *UpdateSummary
	assert.Nil(t, nilSummary.UpdatesFor("Studio"))

	summary := &UpdateSummary{UpdatesByMachine: map[string][]UpdateEntry{
		"Laptop": {{Key: "a", Reason: ReasonMissing}},
	}}
	assert.Len(t, summary.UpdatesFor("Laptop"), 1)
	assert.Empty(t, summary.UpdatesFor("Studio"))
}
