package validation

import (
	"fmt"
	"strings"
	"unicode"

	"casework/internal/casefile"
)

// Profile field names used in issues and the hard-required list.
const (
	FieldName             = "name"
	FieldEmiratesID       = "emirates_id"
	FieldDateOfBirth      = "date_of_birth"
	FieldNationality      = "nationality"
	FieldEmploymentStatus = "employment_status"
	FieldHousingType      = "housing_type"
	FieldMaritalStatus    = "marital_status"
	FieldHasDisability    = "has_disability"
	FieldFamilySize       = "family_size"
	FieldMonthlyIncome    = "monthly_income"
	FieldCreditScore      = "credit_score"
	FieldTotalOutstanding = "total_outstanding"
	FieldNetWorth         = "net_worth"
	FieldAverageBalance   = "average_balance"
)

// Consolidate merges the extracted documents into one applicant profile.
//
// Identity comes from the ID document first, then the bank statement, then
// the credit report. Monthly income is the larger of the bank-derived and
// credit-reported figures, with the applicant's own declaration used only
// when neither exists. Housing comes from the credit report, falling back to
// the assets form. Documents that failed extraction contribute nothing.
//
// The returned issues cover values that could not be interpreted, such as
// an unparseable date of birth.
func Consolidate(docs casefile.RawDocuments) (casefile.Profile, []casefile.Issue) {
	var (
		p      casefile.Profile
		issues []casefile.Issue
	)
	id, hasID := docs.EmiratesID()
	bank, hasBank := docs.BankStatement()
	credit, hasCredit := docs.CreditReport()
	assets, hasAssets := docs.AssetsLiabilities()

	if hasID {
		p.Name = clean(id.Name)
		p.EmiratesID = clean(id.IDNumber)
		p.Nationality = clean(id.Nationality)
		p.EmploymentStatus = clean(id.EmploymentStatus)
		p.MaritalStatus = clean(id.MaritalStatus)
		p.HasDisability = id.HasDisability
		if raw := clean(id.DateOfBirth); raw != "" {
			dob, err := casefile.ParseDate(raw)
			if err != nil {
				issues = append(issues, casefile.Issue{
					Field:    FieldDateOfBirth,
					Severity: casefile.SeverityLow,
					Message:  fmt.Sprintf("date of birth %q could not be parsed", raw),
				})
			} else {
				p.DateOfBirth = &dob
			}
		}
	}
	if hasBank {
		p.Name = firstNonEmpty(p.Name, clean(bank.AccountHolder))
		p.EmiratesID = firstNonEmpty(p.EmiratesID, clean(bank.EmiratesID))
		if avg, ok := bank.AverageBalance(); ok {
			p.AverageBalance = &avg
		}
	}
	if hasCredit {
		p.Name = firstNonEmpty(p.Name, clean(credit.ApplicantName))
		p.EmiratesID = firstNonEmpty(p.EmiratesID, clean(credit.EmiratesID))
		p.HousingType = clean(credit.HousingType)
		if credit.CreditScore != nil {
			score := *credit.CreditScore
			p.CreditScore = &score
		}
		if credit.TotalOutstanding != nil {
			out := float64(*credit.TotalOutstanding)
			p.TotalOutstanding = &out
		}
	}
	if hasAssets {
		p.HousingType = firstNonEmpty(p.HousingType, clean(assets.HousingType))
		if assets.FamilySize != nil {
			size := *assets.FamilySize
			p.FamilySize = &size
		}
		if nw, ok := assets.NetWorth(); ok {
			p.NetWorth = &nw
		}
		if p.TotalOutstanding == nil {
			if debts, ok := assets.TotalLiabilities(); ok {
				p.TotalOutstanding = &debts
			}
		}
	}

	p.MonthlyIncome = consolidatedIncome(docs)
	return p, issues
}

func consolidatedIncome(docs casefile.RawDocuments) *float64 {
	var (
		best  float64
		found bool
	)
	take := func(v float64) {
		if !found || v > best {
			best = v
			found = true
		}
	}
	if bank, ok := docs.BankStatement(); ok {
		if v, ok := bank.MonthlyIncome(); ok {
			take(v)
		}
	}
	if credit, ok := docs.CreditReport(); ok && credit.MonthlyIncomeReported != nil {
		take(float64(*credit.MonthlyIncomeReported))
	}
	if !found {
		if assets, ok := docs.AssetsLiabilities(); ok && assets.DeclaredMonthlyIncome != nil {
			take(float64(*assets.DeclaredMonthlyIncome))
		}
	}
	if !found {
		return nil
	}
	return &best
}

func clean(s string) string {
	if casefile.IsUnknown(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalizeName folds case and collapses whitespace so "OMAR  haddad" and
// "Omar Haddad" compare equal.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// normalizeIDNumber keeps digits only; extractors disagree on dashes.
func normalizeIDNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
