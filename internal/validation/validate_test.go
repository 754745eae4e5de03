package validation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"casework/internal/casefile"
	"casework/internal/casefile/casefiletest"
)

// =============================================================================
// Validation Test Suite
// =============================================================================

type ValidatorSuite struct {
	suite.Suite
	validator *Validator
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s.validator = New(DefaultPolicy(), WithClock(func() time.Time { return now }))
}

func (s *ValidatorSuite) fields(issues []casefile.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, is := range issues {
		out = append(out, fmt.Sprintf("%s/%s", is.Field, is.Severity))
	}
	return out
}

func (s *ValidatorSuite) TestConsistentDocuments() {
	result := s.validator.Evaluate(casefiletest.Documents())

	s.Empty(result.Issues)
	s.InDelta(1.0, result.Confidence, 1e-9)
	s.False(result.Blocked)

	p := result.Profile
	s.Equal(casefiletest.Name, p.Name)
	s.Equal(casefiletest.EmiratesID, p.EmiratesID)
	s.Require().NotNil(p.MonthlyIncome)
	s.InDelta(12000, *p.MonthlyIncome, 1e-9)
	s.Require().NotNil(p.NetWorth)
	s.InDelta(35000, *p.NetWorth, 1e-9)
	s.Equal("Rented", p.HousingType)
	s.Equal(712, *p.CreditScore)
	s.Equal(4, *p.FamilySize)
}

func (s *ValidatorSuite) TestIDFailureReducesConfidenceWithoutBlocking() {
	docs := casefiletest.WithFailure(casefiletest.Documents(), casefile.KindEmiratesID, "timeout")
	delta := s.validator.Validate(casefiletest.Snapshot("case-1", docs))

	s.Require().NotNil(delta.Validation)
	s.Empty(delta.StageErrors)
	s.Empty(delta.Validation.Issues, "a failed document raises no issues of its own")
	s.InDelta(0.90, delta.Validation.Confidence, 1e-9)
	s.False(delta.Validation.Blocked)

	// Identity falls back to the bank statement.
	s.Equal(casefiletest.Name, delta.Validation.Profile.Name)
	s.Equal("784199012345671", delta.Validation.Profile.EmiratesID)
	s.Nil(delta.Validation.Profile.DateOfBirth)
}

func (s *ValidatorSuite) TestIdentityMismatch() {
	credit := casefiletest.CreditReport()
	credit.ApplicantName = "Fatima Khalid"
	credit.EmiratesID = "784-1985-7654321-9"
	docs := casefiletest.WithDocument(casefiletest.Documents(), credit)

	delta := s.validator.Validate(casefiletest.Snapshot("case-1", docs))

	s.ElementsMatch([]string{"name/medium", "emirates_id/high"}, s.fields(delta.Validation.Issues))
	s.True(delta.Validation.Blocked, "high issue on a hard-required field blocks")
	s.Contains(delta.Validation.BlockCause, "emirates_id")
	s.Require().Len(delta.StageErrors, 1)
	s.Equal(casefile.ErrorValidationBlock, delta.StageErrors[0].Kind)
	s.Equal(casefile.StageValidation, delta.StageErrors[0].Stage)
}

func (s *ValidatorSuite) TestIncomeConsistency() {
	tests := []struct {
		name     string
		declared float64
		want     []string
	}{
		{name: "within tolerance", declared: 13000, want: []string{}},
		{name: "medium gap", declared: 17000, want: []string{"monthly_income/medium"}},
		{name: "large gap", declared: 30000, want: []string{"monthly_income/high"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			assets := casefiletest.AssetsLiabilities()
			assets.DeclaredMonthlyIncome = casefiletest.Amount(tt.declared)
			result := s.validator.Evaluate(casefiletest.WithDocument(casefiletest.Documents(), assets))
			s.Equal(tt.want, s.fields(result.Issues))
		})
	}
}

func (s *ValidatorSuite) TestPlausibility() {
	tests := []struct {
		name   string
		docs   func() casefile.RawDocuments
		want   string
		blocks bool
	}{
		{
			name: "credit score out of range",
			docs: func() casefile.RawDocuments {
				c := casefiletest.CreditReport()
				c.CreditScore = casefiletest.Int(950)
				return casefiletest.WithDocument(casefiletest.Documents(), c)
			},
			want: "credit_score/high",
		},
		{
			name: "net worth out of range",
			docs: func() casefile.RawDocuments {
				a := casefiletest.AssetsLiabilities()
				a.Assets = []casefile.Item{{Name: "Villa", Value: 3_500_000}}
				return casefiletest.WithDocument(casefiletest.Documents(), a)
			},
			want: "net_worth/medium",
		},
		{
			name: "unknown marital status",
			docs: func() casefile.RawDocuments {
				id := casefiletest.EmiratesIDCard()
				id.MaritalStatus = "Unknown"
				return casefiletest.WithDocument(casefiletest.Documents(), id)
			},
			want: "marital_status/low",
		},
		{
			name: "unparseable date of birth",
			docs: func() casefile.RawDocuments {
				id := casefiletest.EmiratesIDCard()
				id.DateOfBirth = "twelfth of april"
				return casefiletest.WithDocument(casefiletest.Documents(), id)
			},
			want: "date_of_birth/low",
		},
		{
			name: "minor applicant",
			docs: func() casefile.RawDocuments {
				id := casefiletest.EmiratesIDCard()
				id.DateOfBirth = "2010-09-01"
				return casefiletest.WithDocument(casefiletest.Documents(), id)
			},
			want: "date_of_birth/high",
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			result := s.validator.Evaluate(tt.docs())
			s.Contains(s.fields(result.Issues), tt.want)
			s.Equal(tt.blocks, result.Blocked)
		})
	}
}

func (s *ValidatorSuite) TestMissingHardRequiredField() {
	bank := casefiletest.BankStatement()
	bank.Transactions = nil
	credit := casefiletest.CreditReport()
	credit.MonthlyIncomeReported = nil
	assets := casefiletest.AssetsLiabilities()
	assets.DeclaredMonthlyIncome = nil

	docs := casefiletest.Documents()
	for _, d := range []casefile.Document{bank, credit, assets} {
		docs = casefiletest.WithDocument(docs, d)
	}
	result := s.validator.Evaluate(docs)

	s.Equal([]string{"monthly_income/high"}, s.fields(result.IssuesAtLeast(casefile.SeverityMedium)))
	s.True(result.Blocked)
}

func (s *ValidatorSuite) TestAllDocumentsFailedIsBlocked() {
	result := s.validator.Evaluate(casefiletest.AllFailed())
	s.True(result.Blocked)
	s.InDelta(0.0, result.Confidence, 1e-9)
}

// =============================================================================
// Policy
// =============================================================================

func TestConfidenceIsNonIncreasingInHighIssues(t *testing.T) {
	policy := DefaultPolicy()
	fixed := []casefile.Issue{
		{Field: "marital_status", Severity: casefile.SeverityLow},
		{Field: "name", Severity: casefile.SeverityMedium},
	}
	for extracted := 0; extracted <= 4; extracted++ {
		prev := policy.Confidence(extracted, fixed)
		issues := fixed
		for n := 1; n <= 8; n++ {
			issues = append(issues, casefile.Issue{Field: "x", Severity: casefile.SeverityHigh})
			got := policy.Confidence(extracted, issues)
			require.LessOrEqualf(t, got, prev, "extracted=%d highs=%d", extracted, n)
			require.GreaterOrEqual(t, got, 0.0)
			prev = got
		}
	}
}

func TestConfidenceIsNonDecreasingInDocuments(t *testing.T) {
	policy := DefaultPolicy()
	prev := -1.0
	for extracted := 0; extracted <= 4; extracted++ {
		got := policy.Confidence(extracted, nil)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
	assert.InDelta(t, 1.0, prev, 1e-9)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	inverted := DefaultPolicy()
	inverted.SeverityWeights = map[casefile.Severity]float64{
		casefile.SeverityHigh:   0.05,
		casefile.SeverityMedium: 0.10,
		casefile.SeverityLow:    0.20,
	}
	assert.ErrorContains(t, inverted.Validate(), "must not decrease")

	missing := DefaultPolicy()
	missing.SeverityWeights = map[casefile.Severity]float64{casefile.SeverityHigh: 0.2}
	assert.ErrorContains(t, missing.Validate(), `missing "low"`)

	bad := DefaultPolicy()
	bad.MinConfidence = 1.5
	bad.IncomeTolerance = 0
	err := bad.Validate()
	assert.ErrorContains(t, err, "min_confidence")
	assert.ErrorContains(t, err, "income_tolerance")
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "omar haddad", normalizeName("  OMAR   Haddad "))
	assert.Equal(t, "784199012345671", normalizeIDNumber("784-1990-1234567-1"))
	assert.InDelta(t, 0.5, relativeGap(50, 100), 1e-9)
	assert.Zero(t, relativeGap(0, 0))
}
