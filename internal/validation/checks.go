package validation

import (
	"fmt"
	"math"
	"time"

	"casework/internal/casefile"
)

// Plausibility bounds.
const (
	minMonthlyIncome = 0
	maxMonthlyIncome = 100_000
	minCreditScore   = 300
	maxCreditScore   = 900
	minNetWorth      = -1_000_000
	maxNetWorth      = 2_000_000
)

// documentField is a field a document kind is expected to carry.
type documentField struct {
	field   string
	present func(casefile.Document) bool
}

var requiredByKind = map[casefile.Kind][]documentField{
	casefile.KindBankStatement: {
		{FieldName, func(d casefile.Document) bool { return clean(d.(casefile.BankStatement).AccountHolder) != "" }},
		{FieldMonthlyIncome, func(d casefile.Document) bool {
			_, ok := d.(casefile.BankStatement).MonthlyIncome()
			return ok
		}},
	},
	casefile.KindAssetsLiabilities: {
		{FieldNetWorth, func(d casefile.Document) bool {
			_, ok := d.(casefile.AssetsLiabilities).NetWorth()
			return ok
		}},
		{FieldFamilySize, func(d casefile.Document) bool { return d.(casefile.AssetsLiabilities).FamilySize != nil }},
	},
	casefile.KindCreditReport: {
		{FieldName, func(d casefile.Document) bool { return clean(d.(casefile.CreditReport).ApplicantName) != "" }},
		{FieldCreditScore, func(d casefile.Document) bool { return d.(casefile.CreditReport).CreditScore != nil }},
	},
	casefile.KindEmiratesID: {
		{FieldName, func(d casefile.Document) bool { return clean(d.(casefile.EmiratesID).Name) != "" }},
		{FieldEmiratesID, func(d casefile.Document) bool { return clean(d.(casefile.EmiratesID).IDNumber) != "" }},
		{FieldDateOfBirth, func(d casefile.Document) bool { return clean(d.(casefile.EmiratesID).DateOfBirth) != "" }},
	},
}

// checkRequired reports fields missing from extracted documents. A missing
// field is medium, unless it is hard-required and no other document
// supplied it, in which case one high issue is raised for the profile.
func checkRequired(docs casefile.RawDocuments, p casefile.Profile, policy Policy) []casefile.Issue {
	var issues []casefile.Issue
	for _, kind := range docs.Extracted() {
		doc := docs[kind].Document
		for _, req := range requiredByKind[kind] {
			if req.present(doc) {
				continue
			}
			if policy.IsHardRequired(req.field) && !profileHas(p, req.field) {
				continue
			}
			issues = append(issues, casefile.Issue{
				Field:    req.field,
				Severity: casefile.SeverityMedium,
				Message:  fmt.Sprintf("%s has no %s", kind, req.field),
			})
		}
	}
	for _, field := range policy.HardRequired {
		if !profileHas(p, field) {
			issues = append(issues, casefile.Issue{
				Field:    field,
				Severity: casefile.SeverityHigh,
				Message:  fmt.Sprintf("%s not supplied by any document", field),
			})
		}
	}
	return issues
}

func profileHas(p casefile.Profile, field string) bool {
	switch field {
	case FieldName:
		return p.Name != ""
	case FieldEmiratesID:
		return p.EmiratesID != ""
	case FieldDateOfBirth:
		return p.DateOfBirth != nil
	case FieldNationality:
		return p.Nationality != ""
	case FieldEmploymentStatus:
		return p.EmploymentStatus != ""
	case FieldHousingType:
		return p.HousingType != ""
	case FieldMaritalStatus:
		return p.MaritalStatus != ""
	case FieldHasDisability:
		return p.HasDisability != nil
	case FieldFamilySize:
		return p.FamilySize != nil
	case FieldMonthlyIncome:
		return p.MonthlyIncome != nil
	case FieldCreditScore:
		return p.CreditScore != nil
	case FieldTotalOutstanding:
		return p.TotalOutstanding != nil
	case FieldNetWorth:
		return p.NetWorth != nil
	case FieldAverageBalance:
		return p.AverageBalance != nil
	}
	return false
}

// checkIncomeConsistency compares the bank-derived income with the declared
// and credit-reported figures.
func checkIncomeConsistency(docs casefile.RawDocuments, tolerance float64) []casefile.Issue {
	bank, ok := docs.BankStatement()
	if !ok {
		return nil
	}
	observed, ok := bank.MonthlyIncome()
	if !ok {
		return nil
	}

	type source struct {
		name  string
		value *casefile.Amount
	}
	var sources []source
	if assets, ok := docs.AssetsLiabilities(); ok {
		sources = append(sources, source{"declared income", assets.DeclaredMonthlyIncome})
	}
	if credit, ok := docs.CreditReport(); ok {
		sources = append(sources, source{"credit-reported income", credit.MonthlyIncomeReported})
	}

	var issues []casefile.Issue
	for _, src := range sources {
		if src.value == nil {
			continue
		}
		gap := relativeGap(observed, float64(*src.value))
		if gap <= tolerance {
			continue
		}
		sev := casefile.SeverityMedium
		if gap > 2*tolerance {
			sev = casefile.SeverityHigh
		}
		issues = append(issues, casefile.Issue{
			Field:    FieldMonthlyIncome,
			Severity: sev,
			Message: fmt.Sprintf("bank statement income %.2f differs from %s %.2f by %.0f%%",
				observed, src.name, float64(*src.value), gap*100),
		})
	}
	return issues
}

func relativeGap(a, b float64) float64 {
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 0
	}
	return math.Abs(a-b) / denom
}

// checkIdentity compares names and ID numbers across documents against the
// consolidated identity.
func checkIdentity(docs casefile.RawDocuments, p casefile.Profile) []casefile.Issue {
	type identity struct {
		kind     casefile.Kind
		name, id string
	}
	var others []identity
	if bank, ok := docs.BankStatement(); ok {
		others = append(others, identity{casefile.KindBankStatement, bank.AccountHolder, bank.EmiratesID})
	}
	if credit, ok := docs.CreditReport(); ok {
		others = append(others, identity{casefile.KindCreditReport, credit.ApplicantName, credit.EmiratesID})
	}

	var issues []casefile.Issue
	for _, o := range others {
		if n := clean(o.name); n != "" && p.Name != "" && normalizeName(n) != normalizeName(p.Name) {
			issues = append(issues, casefile.Issue{
				Field:    FieldName,
				Severity: casefile.SeverityMedium,
				Message:  fmt.Sprintf("name on %s does not match applicant name", o.kind),
			})
		}
		if id := clean(o.id); id != "" && p.EmiratesID != "" && normalizeIDNumber(id) != normalizeIDNumber(p.EmiratesID) {
			issues = append(issues, casefile.Issue{
				Field:    FieldEmiratesID,
				Severity: casefile.SeverityHigh,
				Message:  fmt.Sprintf("ID number on %s does not match applicant ID", o.kind),
			})
		}
	}
	return issues
}

// checkPlausibility applies range checks and flags unknown categoricals.
// Categoricals are only flagged when the document that supplies them was
// extracted.
func checkPlausibility(docs casefile.RawDocuments, p casefile.Profile, now time.Time, minAge int) []casefile.Issue {
	var issues []casefile.Issue
	add := func(field string, sev casefile.Severity, format string, args ...any) {
		issues = append(issues, casefile.Issue{Field: field, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if p.MonthlyIncome != nil && (*p.MonthlyIncome < minMonthlyIncome || *p.MonthlyIncome > maxMonthlyIncome) {
		add(FieldMonthlyIncome, casefile.SeverityHigh, "monthly income %.2f outside [%d, %d]",
			*p.MonthlyIncome, minMonthlyIncome, maxMonthlyIncome)
	}
	if p.CreditScore != nil && (*p.CreditScore < minCreditScore || *p.CreditScore > maxCreditScore) {
		add(FieldCreditScore, casefile.SeverityHigh, "credit score %d outside [%d, %d]",
			*p.CreditScore, minCreditScore, maxCreditScore)
	}
	if p.NetWorth != nil && (*p.NetWorth < minNetWorth || *p.NetWorth > maxNetWorth) {
		add(FieldNetWorth, casefile.SeverityMedium, "net worth %.2f outside [%d, %d]",
			*p.NetWorth, minNetWorth, maxNetWorth)
	}

	if _, ok := docs.EmiratesID(); ok {
		for _, c := range []struct{ field, value string }{
			{FieldEmploymentStatus, p.EmploymentStatus},
			{FieldMaritalStatus, p.MaritalStatus},
			{FieldNationality, p.Nationality},
		} {
			if c.value == "" {
				add(c.field, casefile.SeverityLow, "%s is unknown", c.field)
			}
		}
	}
	_, hasCredit := docs.CreditReport()
	_, hasAssets := docs.AssetsLiabilities()
	if (hasCredit || hasAssets) && p.HousingType == "" {
		add(FieldHousingType, casefile.SeverityLow, "%s is unknown", FieldHousingType)
	}

	if p.DateOfBirth != nil && minAge > 0 {
		if age := ageAt(*p.DateOfBirth, now); age < minAge {
			add(FieldDateOfBirth, casefile.SeverityHigh, "applicant is %d, below minimum age %d", age, minAge)
		}
	}
	return issues
}

func ageAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
