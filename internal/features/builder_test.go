package features

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casework/internal/casefile"
	"casework/internal/casefile/casefiletest"
	"casework/internal/validation"
)

func validatedProfile(t *testing.T, docs casefile.RawDocuments) casefile.Profile {
	t.Helper()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	v := validation.New(validation.DefaultPolicy(), validation.WithClock(func() time.Time { return now }))
	return v.Evaluate(docs).Profile
}

func TestBuildFromCompleteProfile(t *testing.T) {
	vec, err := Build(validatedProfile(t, casefiletest.Documents()))
	require.NoError(t, err)

	want := map[string]float64{
		MonthlyIncome:    12000,
		FamilySize:       4,
		EmploymentStatus: 0,
		HousingType:      1,
		MaritalStatus:    1,
		HasDisability:    0,
		NationalityLocal: 1,
		CreditScore:      712,
		NetWorth:         35000,
		DebtToIncome:     30000.0 / 144000.0,
		AverageBalance:   21600,
	}
	if diff := cmp.Diff(want, vec.Map()); diff != "" {
		t.Errorf("feature values mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Names, vec.Names)
	assert.Zero(t, vec.MissingCount())
}

func TestBuildIsDeterministic(t *testing.T) {
	profile := validatedProfile(t, casefiletest.WithFailure(casefiletest.Documents(), casefile.KindEmiratesID, "timeout"))

	first, err := Build(profile)
	require.NoError(t, err)
	for range 50 {
		again, err := Build(profile)
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("vector changed between runs (-first +again):\n%s", diff)
		}
	}
}

func TestBuildImputesMissingValues(t *testing.T) {
	income := 4000.0
	vec, err := Build(casefile.Profile{MonthlyIncome: &income, HousingType: "Caravan"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		value   float64
		missing bool
	}{
		{MonthlyIncome, 4000, false},
		{FamilySize, DefaultFamilySize, true},
		{EmploymentStatus, Unknown, true},
		{HousingType, Unknown, false},
		{MaritalStatus, Unknown, true},
		{HasDisability, 0, true},
		{NationalityLocal, 0, true},
		{CreditScore, DefaultCreditScore, true},
		{NetWorth, DefaultNetWorth, true},
		{DebtToIncome, DefaultDebtToIncome, true},
		{AverageBalance, DefaultBalance, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := vec.Get(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.value, got)
			assert.Equal(t, tt.missing, vec.IsMissing(tt.name))
		})
	}
}

func TestCategoryNormalization(t *testing.T) {
	for _, raw := range []string{"Self Employed", "self_employed", "SELF-EMPLOYED", "selfemployed"} {
		income := 1.0
		vec, err := Build(casefile.Profile{MonthlyIncome: &income, EmploymentStatus: raw})
		require.NoError(t, err)
		got, _ := vec.Get(EmploymentStatus)
		assert.Equal(t, 1.0, got, raw)
	}
}

func TestBuildRequiresMonthlyIncome(t *testing.T) {
	_, err := Build(casefile.Profile{Name: "x"})
	require.Error(t, err)
	assert.True(t, IsBuildError(err))
}

func TestStage(t *testing.T) {
	stage := NewStage()

	t.Run("requires validation", func(t *testing.T) {
		_, err := stage.Run(casefile.Snapshot{ID: "c"})
		assert.ErrorIs(t, err, ErrNotValidated)
	})

	t.Run("records a feature_build stage error", func(t *testing.T) {
		delta, err := stage.Run(casefile.Snapshot{ID: "c", Validation: &casefile.Validation{}})
		require.Error(t, err)
		require.Len(t, delta.StageErrors, 1)
		assert.Equal(t, casefile.ErrorFeatureBuild, delta.StageErrors[0].Kind)
		assert.Equal(t, MonthlyIncome, delta.StageErrors[0].Subject)
		assert.Nil(t, delta.Features)
	})

	t.Run("produces features", func(t *testing.T) {
		income := 9000.0
		delta, err := stage.Run(casefile.Snapshot{ID: "c", Validation: &casefile.Validation{
			Profile: casefile.Profile{MonthlyIncome: &income},
		}})
		require.NoError(t, err)
		require.NotNil(t, delta.Features)
		assert.Len(t, delta.Features.Values, len(Names))
	})
}
