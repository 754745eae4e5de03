// Package features turns a validated applicant profile into the fixed-order
// numeric vector the eligibility model consumes.
//
// Feature order, units and imputation values:
//
//	monthly_income      AED per month      required, no imputation
//	family_size         persons            1
//	employment_status   category code      -1 (Unknown)
//	housing_type        category code      -1 (Unknown)
//	marital_status      category code      -1 (Unknown)
//	has_disability      0/1                0
//	nationality_local   0/1                0
//	credit_score        300-900            650
//	net_worth           AED                0
//	debt_to_income      outstanding/annual income   0
//	average_balance     AED                0
//
// Every imputed value sets the matching Missing flag.
package features

import (
	"strings"

	"casework/internal/casefile"
)

// Feature names in vector order.
const (
	MonthlyIncome    = "monthly_income"
	FamilySize       = "family_size"
	EmploymentStatus = "employment_status"
	HousingType      = "housing_type"
	MaritalStatus    = "marital_status"
	HasDisability    = "has_disability"
	NationalityLocal = "nationality_local"
	CreditScore      = "credit_score"
	NetWorth         = "net_worth"
	DebtToIncome     = "debt_to_income"
	AverageBalance   = "average_balance"
)

// Names is the canonical feature order.
var Names = []string{
	MonthlyIncome,
	FamilySize,
	EmploymentStatus,
	HousingType,
	MaritalStatus,
	HasDisability,
	NationalityLocal,
	CreditScore,
	NetWorth,
	DebtToIncome,
	AverageBalance,
}

// Unknown is the code of an absent or unrecognised category.
const Unknown = -1

// Imputation values for optional features.
const (
	DefaultFamilySize   = 1
	DefaultCreditScore  = 650
	DefaultNetWorth     = 0
	DefaultDebtToIncome = 0
	DefaultBalance      = 0
)

var (
	employmentCodes = map[string]float64{
		"employed":      0,
		"self-employed": 1,
		"unemployed":    2,
		"retired":       3,
		"student":       4,
	}
	housingCodes = map[string]float64{
		"owned":  0,
		"rented": 1,
		"shared": 2,
	}
	maritalCodes = map[string]float64{
		"single":   0,
		"married":  1,
		"divorced": 2,
		"widowed":  3,
	}
	localNationalities = map[string]bool{
		"uae":                  true,
		"emirati":              true,
		"united-arab-emirates": true,
	}
)

// Build derives the feature vector from a profile. It is deterministic and
// fails only when monthly income is unavailable.
func Build(p casefile.Profile) (casefile.Vector, error) {
	if p.MonthlyIncome == nil {
		return casefile.Vector{}, &BuildError{Feature: MonthlyIncome, Reason: "monthly income unavailable"}
	}

	b := newVectorBuilder()
	income := *p.MonthlyIncome
	b.set(MonthlyIncome, income, false)

	if p.FamilySize != nil && *p.FamilySize > 0 {
		b.set(FamilySize, float64(*p.FamilySize), false)
	} else {
		b.set(FamilySize, DefaultFamilySize, true)
	}

	b.category(EmploymentStatus, employmentCodes, p.EmploymentStatus)
	b.category(HousingType, housingCodes, p.HousingType)
	b.category(MaritalStatus, maritalCodes, p.MaritalStatus)

	if p.HasDisability != nil {
		b.set(HasDisability, boolValue(*p.HasDisability), false)
	} else {
		b.set(HasDisability, 0, true)
	}

	if nat := normalizeCategory(p.Nationality); nat != "" {
		b.set(NationalityLocal, boolValue(localNationalities[nat]), false)
	} else {
		b.set(NationalityLocal, 0, true)
	}

	if p.CreditScore != nil {
		b.set(CreditScore, float64(*p.CreditScore), false)
	} else {
		b.set(CreditScore, DefaultCreditScore, true)
	}

	if p.NetWorth != nil {
		b.set(NetWorth, *p.NetWorth, false)
	} else {
		b.set(NetWorth, DefaultNetWorth, true)
	}

	// Zero income leaves the ratio undefined.
	if p.TotalOutstanding != nil && income > 0 {
		b.set(DebtToIncome, *p.TotalOutstanding/(income*12), false)
	} else {
		b.set(DebtToIncome, DefaultDebtToIncome, true)
	}

	if p.AverageBalance != nil {
		b.set(AverageBalance, *p.AverageBalance, false)
	} else {
		b.set(AverageBalance, DefaultBalance, true)
	}

	return b.vector(), nil
}

type vectorBuilder struct {
	values  map[string]float64
	missing map[string]bool
}

func newVectorBuilder() *vectorBuilder {
	return &vectorBuilder{
		values:  make(map[string]float64, len(Names)),
		missing: make(map[string]bool, len(Names)),
	}
}

func (b *vectorBuilder) set(name string, v float64, missing bool) {
	b.values[name] = v
	b.missing[name] = missing
}

func (b *vectorBuilder) category(name string, codes map[string]float64, raw string) {
	key := normalizeCategory(raw)
	if key == "" {
		b.set(name, Unknown, true)
		return
	}
	code, ok := codes[key]
	if !ok {
		// Unrecognised values are coded Unknown but are not missing.
		b.set(name, Unknown, false)
		return
	}
	b.set(name, code, false)
}

func (b *vectorBuilder) vector() casefile.Vector {
	v := casefile.Vector{
		Names:   make([]string, len(Names)),
		Values:  make([]float64, len(Names)),
		Missing: make([]bool, len(Names)),
	}
	for i, n := range Names {
		v.Names[i] = n
		v.Values[i] = b.values[n]
		v.Missing[i] = b.missing[n]
	}
	return v
}

// normalizeCategory folds case, spacing and underscore variants so
// "Self Employed", "self_employed" and "SELF-EMPLOYED" share a code.
func normalizeCategory(s string) string {
	if casefile.IsUnknown(s) {
		return ""
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	if s == "selfemployed" {
		return "self-employed"
	}
	return s
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
