package roster

import (
	"encoding/json"
	"testing"

	"github.com/ishebot/insight-hub/internal/domain/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentDTO_ParsingSheetShapes(t *testing.T) {
	jsonData := `{
		"studentCode": "70101",
		"name": "דני כהן",
		"classId": "ז1",
		"quarter": "Q1",
		"date": "15/10/2025",
		"keyStrengths": "חשיבה יצירתית\nעבודת צוות\nסקרנות",
		"areasNeedingSupport": ["ריכוז", "ניהול זמן"],
		"emotionalState": "רגוע",
		"learningStyle": "חזותי",
		"grade": "85.0",
		"lastAssessment": 78,
		"attendanceRate": "92%",
		"participationLevel": "גבוהה",
		"needsAnalysis": false,
		"strengthsCount": "3",
		"performanceTrend": "improving"
	}`

	var dto StudentDTO
	require.NoError(t, json.Unmarshal([]byte(jsonData), &dto))

	assert.Equal(t, "70101", dto.StudentCode)
	assert.Equal(t, []string{"חשיבה יצירתית", "עבודת צוות", "סקרנות"}, []string(dto.KeyStrengths))
	assert.Equal(t, []string{"ריכוז", "ניהול זמן"}, []string(dto.AreasNeedingSupport))
	assert.Equal(t, 85, dto.Grade.Int())
	assert.Equal(t, 78, dto.LastAssessment.Int())
	assert.InDelta(t, 92.0, dto.AttendanceRate.Float(), 0.001)
	assert.Equal(t, 3, dto.StrengthsCount.Int())
}

func TestStudentDTO_EmptyAndNullNumbers(t *testing.T) {
	var dto StudentDTO
	require.NoError(t, json.Unmarshal([]byte(`{"studentCode":"1","grade":"","attendanceRate":null}`), &dto))

	assert.Equal(t, 0, dto.Grade.Int())
	assert.Equal(t, 0.0, dto.AttendanceRate.Float())
}

func TestStringList_CommaSeparated(t *testing.T) {
	var l StringList
	require.NoError(t, json.Unmarshal([]byte(`"ריכוז, התמדה , "`), &l))

	assert.Equal(t, []string{"ריכוז", "התמדה"}, []string(l))
}

func TestMapper_RecordFromDTO(t *testing.T) {
	mapper := NewMapper()

	rec, err := mapper.RecordFromDTO(&StudentDTO{
		StudentCode:      " 70101 ",
		Name:             "דני כהן",
		ClassID:          "ז1",
		Quarter:          "Q1",
		Date:             "15/10/2025",
		KeyStrengths:     StringList{"חשיבה יצירתית", "עבודת צוות"},
		LearningStyle:    "חזותי",
		Grade:            85,
		AttendanceRate:   92,
		PerformanceTrend: "משתפר",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, student.Code("70101"), rec.Code)
	assert.Equal(t, student.Class("ז1"), rec.Class)
	assert.Equal(t, "visual", rec.LearningStyle)
	assert.Equal(t, student.TrendImproving, rec.PerformanceTrend)
	assert.Equal(t, 85, rec.Grade)
	assert.False(t, rec.LastAnalysisDate.IsZero())
	assert.Equal(t, 2025, rec.LastAnalysisDate.Year())

	// StrengthsCount falls back to the list length when the sheet cell is empty.
	assert.Equal(t, 2, rec.StrengthsCount)
}

func TestMapper_RecordFromDTO_ClampsOutOfRange(t *testing.T) {
	mapper := NewMapper()

	rec, err := mapper.RecordFromDTO(&StudentDTO{
		StudentCode:    "70102",
		Name:           "שרה לוי",
		Grade:          FlexInt(140),
		LastAssessment: FlexInt(-5),
		AttendanceRate: FlexFloat(103.5),
	})
	require.NoError(t, err)

	assert.Equal(t, 100, rec.Grade)
	assert.Equal(t, 0, rec.LastAssessment)
	assert.Equal(t, 100.0, rec.AttendanceRate)
}

func TestMapper_RecordFromDTO_MalformedDate(t *testing.T) {
	mapper := NewMapper()

	rec, err := mapper.RecordFromDTO(&StudentDTO{
		StudentCode: "70103",
		Name:        "יעל",
		Date:        "not-a-date",
	})
	require.NoError(t, err)
	assert.True(t, rec.LastAnalysisDate.IsZero())
}

func TestMapper_RecordsFromDTOs_CollectsRowErrors(t *testing.T) {
	mapper := NewMapper()

	records, syncErrs := mapper.RecordsFromDTOs([]StudentDTO{
		{StudentCode: "70101", Name: "דני"},
		{StudentCode: "", Name: "חסר קוד"},
		{StudentCode: "70103", Name: ""},
		{StudentCode: "70104", Name: "יעל"},
	})

	assert.Len(t, records, 2)
	require.Len(t, syncErrs, 2)
	assert.Equal(t, "mapping", syncErrs[0].ErrorType)
	assert.Equal(t, "70103", syncErrs[1].StudentCode)
}

func TestNormalizeLearningStyle(t *testing.T) {
	assert.Equal(t, "visual", NormalizeLearningStyle("חזותי"))
	assert.Equal(t, "auditory", NormalizeLearningStyle(" שמיעתי "))
	assert.Equal(t, "visual", NormalizeLearningStyle("Visual"))
	assert.Equal(t, "drawing", NormalizeLearningStyle("Drawing"))
	assert.Equal(t, "", NormalizeLearningStyle("  "))
}

func TestNormalizeTrend(t *testing.T) {
	assert.Equal(t, student.TrendDeclining, NormalizeTrend("יורד"))
	assert.Equal(t, student.TrendStable, NormalizeTrend("Stable"))
	assert.Equal(t, student.PerformanceTrend(""), NormalizeTrend("sideways"))
}
