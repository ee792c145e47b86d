package config

import (
	"errors"
	"hash/fnv"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// FEATURE FLAGS
// ═══════════════════════════════════════════════════════════════════════════
// Runtime toggles for dashboard capabilities. Flags can be flipped via
// environment variables without a redeploy, rolled out gradually per student
// code, or forced on or off for a single class while a feature is piloted.

// Feature flag names.
const (
	// Insight generation
	FeatureInsightsSeating         = "insights.seating"
	FeatureInsightsRecommendations = "insights.recommendations"
	FeatureInsightsClassSummary    = "insights.class_summary"

	// Analysis pipeline
	FeatureAnalysisSnapshots   = "analysis.snapshots"
	FeatureAnalysisAtRiskSweep = "analysis.at_risk_sweep"
	FeatureAnalysisTrends      = "analysis.trends"

	// Dashboard surface
	FeatureDashboardSearch = "dashboard.search"
	FeatureDashboardStats  = "dashboard.stats"

	// Admin operations
	FeatureAdminImport  = "admin.import"
	FeatureAdminRestore = "admin.restore"

	// Experimental, disabled unless explicitly turned on
	FeatureExperimentalWellbeing   = "experimental.wellbeing_index"
	FeatureExperimentalComparisons = "experimental.class_comparisons"
)

// ErrUnknownFeature is returned when an override names a flag that does
// not exist.
var ErrUnknownFeature = errors.New("unknown feature flag")

// Feature is one toggle with its rollout rules.
type Feature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`

	// RolloutPercent gates gradual rollout (0-100). Students are bucketed
	// by a consistent hash of their code, so a student never flips back
	// and forth between cohorts.
	RolloutPercent int `json:"rollout_percent"`

	// TargetClasses limits the feature to the listed classes. Empty
	// means every class.
	TargetClasses []string `json:"target_classes,omitempty"`

	// Optional activation window.
	EnabledFrom  *time.Time `json:"enabled_from,omitempty"`
	EnabledUntil *time.Time `json:"enabled_until,omitempty"`
}

// FeatureContext carries what a flag evaluation may depend on.
type FeatureContext struct {
	StudentCode string
	Class       string
	IsAdmin     bool
}

// defaultFeatures is the shipped flag set. Everything the dashboard
// relies on day to day starts enabled; experiments start dark.
var defaultFeatures = []Feature{
	{Name: FeatureInsightsSeating, Description: "Seating recommendations on student profiles", Enabled: true, RolloutPercent: 100},
	{Name: FeatureInsightsRecommendations, Description: "Actionable recommendations per class", Enabled: true, RolloutPercent: 100},
	{Name: FeatureInsightsClassSummary, Description: "Narrative class-level insight summaries", Enabled: true, RolloutPercent: 100},
	{Name: FeatureAnalysisSnapshots, Description: "Persist aggregation snapshots for fast reads", Enabled: true, RolloutPercent: 100},
	{Name: FeatureAnalysisAtRiskSweep, Description: "Scheduled sweep that flags at-risk students", Enabled: true, RolloutPercent: 100},
	{Name: FeatureAnalysisTrends, Description: "Performance trend breakdowns in aggregations", Enabled: true, RolloutPercent: 100},
	{Name: FeatureDashboardSearch, Description: "Free-text student search", Enabled: true, RolloutPercent: 100},
	{Name: FeatureDashboardStats, Description: "Overview statistics panel", Enabled: true, RolloutPercent: 100},
	{Name: FeatureAdminImport, Description: "Bulk roster import endpoint", Enabled: true, RolloutPercent: 100},
	{Name: FeatureAdminRestore, Description: "Backup restore endpoint", Enabled: true, RolloutPercent: 100},
	{Name: FeatureExperimentalWellbeing, Description: "Composite wellbeing index per class", Enabled: false, RolloutPercent: 0},
	{Name: FeatureExperimentalComparisons, Description: "Side-by-side class comparison views", Enabled: false, RolloutPercent: 0},
}

// FeatureFlags is the thread-safe flag registry.
type FeatureFlags struct {
	mu    sync.RWMutex
	flags map[string]*Feature

	// Per-class forces, set at runtime through the admin API for pilots
	// and debugging. They beat every other rule.
	classOverrides map[string]map[string]bool
}

// LoadFeatureFlags builds the registry from the shipped defaults with
// environment overrides applied on top.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		flags:          make(map[string]*Feature, len(defaultFeatures)),
		classOverrides: make(map[string]map[string]bool),
	}
	for _, f := range defaultFeatures {
		applyEnvOverride(&f)
		ff.flags[f.Name] = &f
	}
	return ff
}

// applyEnvOverride reads FEATURE_<NAME> for one flag. A boolean value
// flips the flag outright; a number 0-100 sets a partial rollout.
// FEATURE_INSIGHTS_SEATING=false, FEATURE_EXPERIMENTAL_WELLBEING_INDEX=25.
func applyEnvOverride(f *Feature) {
	raw := os.Getenv(envKeyFor(f.Name))
	if raw == "" {
		return
	}

	if b, err := strconv.ParseBool(raw); err == nil {
		f.Enabled = b
		f.RolloutPercent = 0
		if b {
			f.RolloutPercent = 100
		}
		return
	}

	if p, err := strconv.Atoi(raw); err == nil && p >= 0 && p <= 100 {
		f.Enabled = p > 0
		f.RolloutPercent = p
	}
}

// envKeyFor maps "insights.seating" to "FEATURE_INSIGHTS_SEATING".
func envKeyFor(name string) string {
	return "FEATURE_" + strings.ReplaceAll(strings.ToUpper(name), ".", "_")
}

// IsEnabled evaluates a flag for the given context. A nil context is
// treated as anonymous: no class, no student, not an admin.
func (ff *FeatureFlags) IsEnabled(name string, fctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if fctx == nil {
		fctx = &FeatureContext{}
	}

	if forced, ok := ff.classOverrides[fctx.Class][name]; ok {
		return forced
	}

	f, ok := ff.flags[name]
	if !ok {
		return false
	}
	if fctx.IsAdmin {
		return true
	}
	if !f.Enabled || !f.activeAt(time.Now()) {
		return false
	}
	if len(f.TargetClasses) > 0 && fctx.Class != "" && !slices.Contains(f.TargetClasses, fctx.Class) {
		return false
	}
	if f.RolloutPercent < 100 && fctx.StudentCode != "" {
		return rolloutBucket(name, fctx.StudentCode) < f.RolloutPercent
	}
	return f.RolloutPercent > 0
}

// activeAt reports whether the flag's activation window covers t.
func (f *Feature) activeAt(t time.Time) bool {
	if f.EnabledFrom != nil && t.Before(*f.EnabledFrom) {
		return false
	}
	if f.EnabledUntil != nil && t.After(*f.EnabledUntil) {
		return false
	}
	return true
}

// rolloutBucket maps a student into a stable 0-99 bucket per flag.
func rolloutBucket(name, studentCode string) int {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(studentCode))
	return int(h.Sum32() % 100)
}

// InsightsEnabled reports whether any insight surface is live for the
// given context.
func (ff *FeatureFlags) InsightsEnabled(fctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureInsightsClassSummary, fctx) ||
		ff.IsEnabled(FeatureInsightsRecommendations, fctx) ||
		ff.IsEnabled(FeatureInsightsSeating, fctx)
}

// SetClassOverride forces a flag on or off for one class, bypassing
// rollout and window rules until the override is cleared.
func (ff *FeatureFlags) SetClassOverride(class, name string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.flags[name]; !ok {
		return ErrUnknownFeature
	}
	if ff.classOverrides[class] == nil {
		ff.classOverrides[class] = make(map[string]bool)
	}
	ff.classOverrides[class][name] = enabled
	return nil
}

// ClearClassOverrides drops every override for a class.
func (ff *FeatureFlags) ClearClassOverrides(class string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.classOverrides, class)
}

// Snapshot returns a copy of every flag, sorted by name.
func (ff *FeatureFlags) Snapshot() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.flags))
	for _, f := range ff.flags {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
