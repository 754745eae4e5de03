package casestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"casework/internal/casefile"
	"casework/internal/casefile/casefiletest"
	"casework/internal/casestore"
	"casework/internal/enablement"
	"casework/pkg/platform/sentinel"
)

var decidedAt = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func decided(id string, status casefile.Status, at time.Time) casefile.Snapshot {
	snap := casefiletest.Snapshot(id, casefiletest.WithFailure(casefiletest.Documents(), casefile.KindEmiratesID, "bad_data"))
	snap.Validation = &casefile.Validation{
		Confidence: 0.9,
		Profile:    casefile.Profile{Name: casefiletest.Name, EmiratesID: casefiletest.EmiratesID},
	}
	snap.Score = &casefile.Score{Probability: 0.82, Label: true}
	snap.Decision = &casefile.Decision{
		Status:     status,
		Reasons:    []casefile.Reason{{Text: "reason for " + id}},
		Score:      0.82,
		Confidence: 0.9,
		DecidedAt:  at,
	}
	snap.StageErrors = []casefile.StageError{{
		Stage:   casefile.StageExtraction,
		Kind:    casefile.ErrorExtraction,
		Subject: string(casefile.KindEmiratesID),
		Message: "bad_data",
	}}
	return snap
}

func record(t *testing.T, snap casefile.Snapshot) casestore.Record {
	t.Helper()
	r, err := casestore.FromSnapshot(snap)
	require.NoError(t, err)
	return r
}

// StoreContract runs the same behaviour checks against every Store.
type StoreContract struct {
	suite.Suite
	newStore func() casestore.Store
	store    casestore.Store
	ctx      context.Context
}

func (s *StoreContract) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

// =============================================================================
// Save / Get
// =============================================================================

func (s *StoreContract) TestSaveAndGet() {
	want := record(s.T(), decided("case-1", casefile.StatusApprove, decidedAt))
	s.Require().NoError(s.store.Save(s.ctx, want))

	got, err := s.store.Get(s.ctx, "case-1")
	s.Require().NoError(err)
	s.Equal(want.CaseID, got.CaseID)
	s.Equal(want.Decision.Status, got.Decision.Status)
	s.Equal(want.Decision.Reasons, got.Decision.Reasons)
	s.True(want.Decision.DecidedAt.Equal(got.Decision.DecidedAt))
	s.Equal(want.Documents, got.Documents)
	s.Equal(want.StageErrors, got.StageErrors)
	s.Equal(want.Validation.Profile.Name, got.Validation.Profile.Name)
	s.Nil(got.Plan)
}

func (s *StoreContract) TestGetUnknown() {
	_, err := s.store.Get(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreContract) TestSaveIsWriteOnce() {
	r := record(s.T(), decided("case-dup", casefile.StatusReview, decidedAt))
	s.Require().NoError(s.store.Save(s.ctx, r))
	s.ErrorIs(s.store.Save(s.ctx, r), sentinel.ErrConflict)
}

// =============================================================================
// Plans
// =============================================================================

func (s *StoreContract) TestSavePlan() {
	s.Require().NoError(s.store.Save(s.ctx, record(s.T(), decided("case-plan", casefile.StatusReview, decidedAt))))

	plan := enablement.Plan{
		CaseID:          "case-plan",
		Recommendations: enablement.Recommend(casefile.Profile{EmploymentStatus: "Unemployed"}),
		Summary:         "Applicant: Unknown | EID: Unknown",
	}
	s.Require().NoError(s.store.SavePlan(s.ctx, plan))

	got, err := s.store.Get(s.ctx, "case-plan")
	s.Require().NoError(err)
	s.Require().NotNil(got.Plan)
	s.Equal(plan, *got.Plan)
}

func (s *StoreContract) TestSavePlanForUnknownCase() {
	err := s.store.SavePlan(s.ctx, enablement.Plan{CaseID: "missing"})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// =============================================================================
// List
// =============================================================================

func (s *StoreContract) TestListNewestFirst() {
	for i, status := range []casefile.Status{casefile.StatusApprove, casefile.StatusReview, casefile.StatusSoftDecline, casefile.StatusReview} {
		id := []string{"a", "b", "c", "d"}[i]
		at := decidedAt.Add(time.Duration(i) * time.Minute)
		s.Require().NoError(s.store.Save(s.ctx, record(s.T(), decided(id, status, at))))
	}

	all, err := s.store.List(s.ctx, casestore.Filter{})
	s.Require().NoError(err)
	s.Equal([]string{"d", "c", "b", "a"}, ids(all))

	reviews, err := s.store.List(s.ctx, casestore.Filter{Status: casefile.StatusReview})
	s.Require().NoError(err)
	s.Equal([]string{"d", "b"}, ids(reviews))

	limited, err := s.store.List(s.ctx, casestore.Filter{Limit: 1})
	s.Require().NoError(err)
	s.Equal([]string{"d"}, ids(limited))
}

func ids(records []casestore.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.CaseID
	}
	return out
}

// =============================================================================
// Sink
// =============================================================================

func (s *StoreContract) TestSinkStoresDecidedCase() {
	sink := casestore.NewSink(s.store)
	s.Require().NoError(sink.Consume(s.ctx, decided("case-sink", casefile.StatusApprove, decidedAt)))

	_, err := s.store.Get(s.ctx, "case-sink")
	s.NoError(err)
}

func (s *StoreContract) TestSinkRejectsUndecidedCase() {
	err := casestore.NewSink(s.store).Consume(s.ctx, casefiletest.Snapshot("pending", casefiletest.Documents()))
	s.ErrorIs(err, casestore.ErrNoDecision)
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreContract{newStore: func() casestore.Store {
		return casestore.NewInMemoryStore()
	}})
}

func TestSQLiteStore(t *testing.T) {
	contract := &StoreContract{}
	contract.newStore = func() casestore.Store {
		path := filepath.Join(contract.T().TempDir(), "cases.db")
		store, err := casestore.OpenSQLite(context.Background(), path)
		contract.Require().NoError(err)
		contract.T().Cleanup(func() { _ = store.Close() })
		return store
	}
	suite.Run(t, contract)
}

func TestFromSnapshot(t *testing.T) {
	r := record(t, decided("case-x", casefile.StatusApprove, decidedAt))
	assert.Equal(t, casefile.StatusApprove, r.Status())
	require.Len(t, r.Documents, 4)
	for _, d := range r.Documents {
		if d.Kind == casefile.KindEmiratesID {
			assert.False(t, d.Extracted)
			assert.Equal(t, "bad_data", d.FailureCategory)
		} else {
			assert.True(t, d.Extracted)
		}
	}
}
