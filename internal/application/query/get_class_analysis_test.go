package query

import (
	"context"
	"testing"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSnapshotRepo keeps snapshots in memory, newest last.
type stubSnapshotRepo struct {
	snapshots []*analysis.Snapshot
}

func (s *stubSnapshotRepo) Save(ctx context.Context, snap *analysis.Snapshot) error {
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *stubSnapshotRepo) GetLatest(ctx context.Context, scope string) (*analysis.Snapshot, error) {
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].Scope == scope {
			return s.snapshots[i], nil
		}
	}
	return nil, analysis.ErrSnapshotNotFound
}

func (s *stubSnapshotRepo) ListRecent(ctx context.Context, scope string, limit int) ([]*analysis.Snapshot, error) {
	return nil, nil
}

func (s *stubSnapshotRepo) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}

func TestGetClassAnalysis_LiveComputeStoresSnapshot(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	snaps := &stubSnapshotRepo{}
	handler := NewGetClassAnalysisHandler(repo, snaps, nil, nil)

	result, err := handler.Handle(context.Background(), GetClassAnalysisQuery{})
	require.NoError(t, err)

	assert.Equal(t, "live", result.Source)
	assert.Equal(t, analysis.ScopeAll, result.Scope)
	assert.Equal(t, 3, result.Analysis.TotalStudents)
	assert.Equal(t, 2, result.Analysis.AnalyzedStudents)

	// The live compute should leave a snapshot behind for the next read.
	require.Len(t, snaps.snapshots, 1)
	assert.Equal(t, analysis.ScopeAll, snaps.snapshots[0].Scope)
}

func TestGetClassAnalysis_ServesFreshSnapshot(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	snaps := &stubSnapshotRepo{snapshots: []*analysis.Snapshot{{
		ID:         "snap-1",
		Scope:      analysis.ScopeAll,
		Result:     &analysis.AggregatedAnalysis{TotalStudents: 99},
		ComputedAt: time.Now().Add(-time.Minute),
	}}}
	handler := NewGetClassAnalysisHandler(repo, snaps, nil, nil)

	result, err := handler.Handle(context.Background(), GetClassAnalysisQuery{MaxSnapshotAge: time.Hour})
	require.NoError(t, err)

	assert.Equal(t, "snapshot", result.Source)
	assert.Equal(t, 99, result.Analysis.TotalStudents)
}

func TestGetClassAnalysis_StaleSnapshotRecomputes(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	snaps := &stubSnapshotRepo{snapshots: []*analysis.Snapshot{{
		ID:         "snap-1",
		Scope:      analysis.ScopeAll,
		Result:     &analysis.AggregatedAnalysis{TotalStudents: 99},
		ComputedAt: time.Now().Add(-2 * time.Hour),
	}}}
	handler := NewGetClassAnalysisHandler(repo, snaps, nil, nil)

	result, err := handler.Handle(context.Background(), GetClassAnalysisQuery{MaxSnapshotAge: time.Hour})
	require.NoError(t, err)

	assert.Equal(t, "live", result.Source)
	assert.Equal(t, 3, result.Analysis.TotalStudents)
}

func TestGetClassAnalysis_ForceRecomputeSkipsSnapshot(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	snaps := &stubSnapshotRepo{snapshots: []*analysis.Snapshot{{
		ID:         "snap-1",
		Scope:      analysis.ScopeAll,
		Result:     &analysis.AggregatedAnalysis{TotalStudents: 99},
		ComputedAt: time.Now(),
	}}}
	handler := NewGetClassAnalysisHandler(repo, snaps, nil, nil)

	result, err := handler.Handle(context.Background(), GetClassAnalysisQuery{ForceRecompute: true})
	require.NoError(t, err)

	assert.Equal(t, "live", result.Source)
	assert.Equal(t, 3, result.Analysis.TotalStudents)
}

func TestGetClassAnalysis_ClassScope(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	handler := NewGetClassAnalysisHandler(repo, &stubSnapshotRepo{}, nil, nil)

	result, err := handler.Handle(context.Background(), GetClassAnalysisQuery{Class: "ז1"})
	require.NoError(t, err)

	assert.Equal(t, "ז1", result.Scope)
	assert.Equal(t, 2, result.Analysis.TotalStudents)
}

func TestGetStudentProfile_BundleAndRisk(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	handler := NewGetStudentProfileHandler(repo, nil, nil)

	result, err := handler.Handle(context.Background(), GetStudentProfileQuery{Code: "70101"})
	require.NoError(t, err)

	assert.Equal(t, student.Code("70101"), result.Record.Code)
	require.NotNil(t, result.Bundle)
	assert.Equal(t, "70101", result.Bundle.StudentCode)
	assert.Equal(t, "low", result.RiskLevel)
	assert.Empty(t, result.RiskFactors)
}

func TestGetStudentProfile_InvalidCode(t *testing.T) {
	handler := NewGetStudentProfileHandler(&stubStudentRepo{}, nil, nil)

	_, err := handler.Handle(context.Background(), GetStudentProfileQuery{Code: ""})
	require.Error(t, err)
}

func TestGetStudentProfile_NotFound(t *testing.T) {
	handler := NewGetStudentProfileHandler(&stubStudentRepo{}, nil, nil)

	_, err := handler.Handle(context.Background(), GetStudentProfileQuery{Code: "99999"})
	require.ErrorIs(t, err, student.ErrRecordNotFound)
}
