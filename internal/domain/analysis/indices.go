package analysis

import (
	"math"

	"github.com/ishebot/insight-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE INDICES
// Heuristic 0-100 scores built from fixed weighted adjustments. They are a
// presentation convenience for the dashboard, not calibrated measurements.
// Each per-student score is clamped to [0,100] before averaging; the final
// average is rounded half-up. An empty population yields 0.
// ══════════════════════════════════════════════════════════════════════════════

// engagementScore starts every student at 50 and adjusts for participation,
// attendance and collaboration.
func (a *Aggregator) engagementScore(records []*student.Record) int {
	if len(records) == 0 {
		return 0
	}

	total := 0.0
	for _, r := range records {
		score := 50.0

		if containsAny(r.ParticipationLevel, a.cfg.HighParticipationKeywords) {
			score += 20
		} else if containsAny(r.ParticipationLevel, a.cfg.LowParticipationKeywords) {
			score -= 20
		}

		if r.AttendanceRate > 0 {
			score += (r.AttendanceRate - 80) * 0.5
		}

		if containsAny(r.CollaborationSkills, a.cfg.CollabExcellentKeywords) {
			score += 15
		}

		total += clamp(score)
	}

	return int(math.Round(total / float64(len(records))))
}

// wellbeingIndex is the weighted average of the emotional health buckets:
// positive 100, neutral 50, concerning 0. Without any emotional data the
// index defaults to 50, the neutral midpoint.
func (a *Aggregator) wellbeingIndex(records []*student.Record) int {
	if len(records) == 0 {
		return 0
	}

	health := a.categorizeEmotionalHealth(records)
	total := health.Positive + health.Neutral + health.Concerning
	if total == 0 {
		return 50
	}

	score := float64(health.Positive*100+health.Neutral*50) / float64(total)
	return int(math.Round(score))
}

// academicReadiness weighs grades at 60% and adds fixed bonuses for critical
// thinking and creativity levels.
func (a *Aggregator) academicReadiness(records []*student.Record) int {
	if len(records) == 0 {
		return 0
	}

	total := 0.0
	for _, r := range records {
		score := 0.0

		if r.Grade > 0 {
			score += float64(r.Grade) * 0.6
		}

		if containsAny(r.CriticalThinking, a.cfg.CollabExcellentKeywords) {
			score += 20
		} else if containsAny(r.CriticalThinking, a.cfg.CollabGoodKeywords) {
			score += 10
		}

		if containsAny(r.CreativityLevel, a.cfg.CreativityHighKeywords) {
			score += 20
		} else if containsAny(r.CreativityLevel, a.cfg.CreativityMediumKeywords) {
			score += 10
		}

		total += math.Min(100, score)
	}

	return int(math.Round(total / float64(len(records))))
}

// socialIntegration starts at 50 and adjusts for collaboration skill and
// participation level.
func (a *Aggregator) socialIntegration(records []*student.Record) int {
	if len(records) == 0 {
		return 0
	}

	total := 0.0
	for _, r := range records {
		score := 50.0

		if containsAny(r.CollaborationSkills, a.cfg.CollabExcellentKeywords) {
			score += 30
		} else if containsAny(r.CollaborationSkills, a.cfg.CollabGoodKeywords) {
			score += 15
		}

		if containsAny(r.ParticipationLevel, a.cfg.HighParticipationKeywords) {
			score += 20
		} else if containsAny(r.ParticipationLevel, a.cfg.LowParticipationKeywords) {
			score -= 20
		}

		total += clamp(score)
	}

	return int(math.Round(total / float64(len(records))))
}

func clamp(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}
