package roster

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// FLEXIBLE JSON TYPES
// The roster endpoint is backed by a spreadsheet, so numeric cells frequently
// arrive as strings ("85", "92.5") and list cells as newline-joined text.
// These types absorb both shapes so the mapper only ever sees clean values.
// ══════════════════════════════════════════════════════════════════════════════

// ErrNilDTO is returned when a nil DTO is passed to the mapper.
var ErrNilDTO = errors.New("roster: nil DTO")

// FlexInt is an int that unmarshals from a JSON number, a numeric string,
// or an empty string (treated as zero).
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		// Sheets sometimes exports integers as "85.0".
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("roster: invalid numeric string %q", s)
		}
		*f = FlexInt(int(v))
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexInt(int(v))
	return nil
}

// Int returns the value as a plain int.
func (f FlexInt) Int() int {
	return int(f)
}

// FlexFloat is a float64 that unmarshals from a JSON number, a numeric
// string, or an empty string (treated as zero).
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("roster: invalid numeric string %q", s)
		}
		*f = FlexFloat(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// Float returns the value as a plain float64.
func (f FlexFloat) Float() float64 {
	return float64(f)
}

// StringList is a []string that unmarshals from a JSON array or from a
// single string with newline- or comma-separated items.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if data[0] == '[' {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = cleanList(items)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	sep := "\n"
	if !strings.Contains(s, "\n") {
		sep = ","
	}
	*l = cleanList(strings.Split(s, sep))
	return nil
}

// cleanList trims items and drops empty ones.
func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT DTOs
// ══════════════════════════════════════════════════════════════════════════════

// StudentDTO is one student row as served by the roster endpoint.
type StudentDTO struct {
	StudentCode string `json:"studentCode"`
	Name        string `json:"name"`
	ClassID     string `json:"classId"`
	Quarter     string `json:"quarter"`

	// Date is the analysis date in dd/mm/yyyy form.
	Date string `json:"date"`

	KeyStrengths        StringList `json:"keyStrengths"`
	AreasNeedingSupport StringList `json:"areasNeedingSupport"`
	ChallengesBehaviors StringList `json:"challengesBehaviors"`
	Interventions       StringList `json:"interventions"`
	PersonalityTraits   StringList `json:"personalityTraits"`

	EmotionalState string `json:"emotionalState"`
	LearningStyle  string `json:"learningStyle"`

	Grade          FlexInt   `json:"grade"`
	LastAssessment FlexInt   `json:"lastAssessment"`
	AttendanceRate FlexFloat `json:"attendanceRate"`

	ParticipationLevel  string `json:"participationLevel"`
	CollaborationSkills string `json:"collaborationSkills"`
	CriticalThinking    string `json:"criticalThinking"`
	CreativityLevel     string `json:"creativityLevel"`

	KeyNotes               string `json:"keyNotes"`
	TeacherRecommendations string `json:"teacherRecommendations"`

	NeedsAnalysis    bool    `json:"needsAnalysis"`
	StrengthsCount   FlexInt `json:"strengthsCount"`
	PerformanceTrend string  `json:"performanceTrend"`
}

// StudentsPayload is the getAllStudents response body.
type StudentsPayload struct {
	Students []StudentDTO `json:"students"`
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS AND OPERATION DTOs
// ══════════════════════════════════════════════════════════════════════════════

// StatsDTO is the getStats response body.
type StatsDTO struct {
	TotalStudents    FlexInt            `json:"totalStudents"`
	ByClass          map[string]FlexInt `json:"byClass"`
	ByLearningStyle  map[string]FlexInt `json:"byLearningStyle"`
	AverageStrengths FlexFloat          `json:"averageStrengths"`
	LastUpdated      string             `json:"lastUpdated"`
}

// SyncResultDTO is the syncStudents / initialSync response body.
type SyncResultDTO struct {
	Added   FlexInt `json:"added"`
	Total   FlexInt `json:"total"`
	Message string  `json:"message"`
}

// AnalyzeResultDTO is the analyzeOneStudent response body.
type AnalyzeResultDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// APIErrorDTO is the error shape returned by the roster endpoint. The
// endpoint always answers 200, so errors only surface through this body.
type APIErrorDTO struct {
	ErrorText string `json:"error"`
	Message   string `json:"message"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("roster api error: %s (%s)", e.ErrorText, e.Message)
	}
	return fmt.Sprintf("roster api error: %s", e.ErrorText)
}
