package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureInsightsSeating, nil))
	assert.True(t, ff.IsEnabled(FeatureAnalysisAtRiskSweep, nil))
	assert.False(t, ff.IsEnabled(FeatureExperimentalWellbeing, nil))

	// Unknown names never pass.
	assert.False(t, ff.IsEnabled("no.such.flag", nil))
}

func TestFeatureFlags_EnvOverrides(t *testing.T) {
	t.Setenv("FEATURE_INSIGHTS_SEATING", "false")
	t.Setenv("FEATURE_EXPERIMENTAL_WELLBEING_INDEX", "true")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureInsightsSeating, nil))
	assert.True(t, ff.IsEnabled(FeatureExperimentalWellbeing, nil))
}

func TestFeatureFlags_PartialRolloutBucketsAreStable(t *testing.T) {
	t.Setenv("FEATURE_EXPERIMENTAL_WELLBEING_INDEX", "40")

	ff := LoadFeatureFlags()

	first := ff.IsEnabled(FeatureExperimentalWellbeing, &FeatureContext{StudentCode: "70101"})
	for i := 0; i < 10; i++ {
		again := ff.IsEnabled(FeatureExperimentalWellbeing, &FeatureContext{StudentCode: "70101"})
		assert.Equal(t, first, again)
	}

	// With no student to bucket, a partial rollout counts as on.
	assert.True(t, ff.IsEnabled(FeatureExperimentalWellbeing, nil))
}

func TestFeatureFlags_ClassOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()

	require.NoError(t, ff.SetClassOverride("ז1", FeatureInsightsSeating, false))

	assert.False(t, ff.IsEnabled(FeatureInsightsSeating, &FeatureContext{Class: "ז1"}))
	assert.True(t, ff.IsEnabled(FeatureInsightsSeating, &FeatureContext{Class: "ז2"}))

	ff.ClearClassOverrides("ז1")
	assert.True(t, ff.IsEnabled(FeatureInsightsSeating, &FeatureContext{Class: "ז1"}))
}

func TestFeatureFlags_ClassOverrideUnknownFeature(t *testing.T) {
	ff := LoadFeatureFlags()

	err := ff.SetClassOverride("ז1", "no.such.flag", true)
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestFeatureFlags_AdminSeesEverything(t *testing.T) {
	ff := LoadFeatureFlags()

	admin := &FeatureContext{IsAdmin: true}
	assert.True(t, ff.IsEnabled(FeatureExperimentalWellbeing, admin))
	assert.True(t, ff.IsEnabled(FeatureExperimentalComparisons, admin))
}

func TestFeatureFlags_ActivationWindow(t *testing.T) {
	ff := LoadFeatureFlags()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	ff.mu.Lock()
	ff.flags[FeatureDashboardSearch].EnabledFrom = &future
	ff.flags[FeatureDashboardStats].EnabledUntil = &past
	ff.mu.Unlock()

	assert.False(t, ff.IsEnabled(FeatureDashboardSearch, nil))
	assert.False(t, ff.IsEnabled(FeatureDashboardStats, nil))
}

func TestFeatureFlags_TargetClasses(t *testing.T) {
	ff := LoadFeatureFlags()

	ff.mu.Lock()
	ff.flags[FeatureInsightsClassSummary].TargetClasses = []string{"ח2"}
	ff.mu.Unlock()

	assert.True(t, ff.IsEnabled(FeatureInsightsClassSummary, &FeatureContext{Class: "ח2"}))
	assert.False(t, ff.IsEnabled(FeatureInsightsClassSummary, &FeatureContext{Class: "ז1"}))
}

func TestFeatureFlags_InsightsEnabled(t *testing.T) {
	t.Setenv("FEATURE_INSIGHTS_SEATING", "false")
	t.Setenv("FEATURE_INSIGHTS_RECOMMENDATIONS", "false")

	ff := LoadFeatureFlags()

	// The summary surface alone keeps insights on.
	assert.True(t, ff.InsightsEnabled(nil))

	require.NoError(t, ff.SetClassOverride("ז1", FeatureInsightsClassSummary, false))
	assert.False(t, ff.InsightsEnabled(&FeatureContext{Class: "ז1"}))
}

func TestFeatureFlags_Snapshot(t *testing.T) {
	ff := LoadFeatureFlags()

	snap := ff.Snapshot()
	require.Len(t, snap, len(defaultFeatures))

	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].Name, snap[i].Name)
	}

	// Snapshot hands out copies, not the live entries.
	snap[0].Enabled = !snap[0].Enabled
	fresh := ff.Snapshot()
	assert.NotEqual(t, snap[0].Enabled, fresh[0].Enabled)
}
