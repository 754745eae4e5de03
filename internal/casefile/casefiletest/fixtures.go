// Package casefiletest provides consistent applicant documents for tests of
// the later pipeline stages.
package casefiletest

import (
	"maps"
	"time"

	"casework/internal/casefile"
)

// Applicant identity shared by every fixture document.
const (
	Name       = "Aisha Al Mansoori"
	EmiratesID = "784-1990-1234567-1"
)

// Amount returns a pointer to an AED amount.
func Amount(v float64) *casefile.Amount {
	a := casefile.Amount(v)
	return &a
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

func day(s string) casefile.Date {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return casefile.Date{Time: t}
}

// BankStatement covers three months with a 12,000 AED salary each month.
func BankStatement() casefile.BankStatement {
	return casefile.BankStatement{
		AccountHolder: Name,
		EmiratesID:    "784199012345671",
		BankName:      "Emirates NBD",
		Transactions: []casefile.Transaction{
			{Date: day("2026-01-01"), Amount: 12000, Category: "salary", Balance: Amount(18000)},
			{Date: day("2026-01-05"), Amount: -4500, Category: "rent", Balance: Amount(13500)},
			{Date: day("2026-02-01"), Amount: 12000, Category: "salary", Balance: Amount(25500)},
			{Date: day("2026-02-07"), Amount: -6000, Category: "transfer", Balance: Amount(19500)},
			{Date: day("2026-03-01"), Amount: 12000, Category: "salary", Balance: Amount(31500)},
		},
	}
}

// AssetsLiabilities declares a family of four in rented housing.
func AssetsLiabilities() casefile.AssetsLiabilities {
	return casefile.AssetsLiabilities{
		Assets:                []casefile.Item{{Name: "Car", Value: 45000}, {Name: "Savings", Value: 20000}},
		Liabilities:           []casefile.Item{{Name: "Car loan", Value: 30000}},
		DeclaredMonthlyIncome: Amount(12500),
		FamilySize:            Int(4),
		HousingType:           "Rented",
	}
}

// CreditReport agrees with the bank statement within tolerance.
func CreditReport() casefile.CreditReport {
	return casefile.CreditReport{
		ApplicantName:         "AISHA  AL MANSOORI",
		EmiratesID:            EmiratesID,
		CreditScore:           Int(712),
		TotalCreditLimit:      Amount(50000),
		TotalOutstanding:      Amount(30000),
		MonthlyIncomeReported: Amount(11500),
		HousingType:           "Rented",
	}
}

// EmiratesIDCard is the applicant's ID document.
func EmiratesIDCard() casefile.EmiratesID {
	return casefile.EmiratesID{
		Name:             Name,
		IDNumber:         EmiratesID,
		DateOfBirth:      "1990-04-12",
		Nationality:      "Emirati",
		Gender:           "F",
		EmploymentStatus: "Employed",
		MaritalStatus:    "Married",
		HasDisability:    Bool(false),
	}
}

// Documents returns all four documents extracted successfully.
func Documents() casefile.RawDocuments {
	return casefile.RawDocuments{
		casefile.KindAssetsLiabilities: {Kind: casefile.KindAssetsLiabilities, Document: AssetsLiabilities()},
		casefile.KindBankStatement:     {Kind: casefile.KindBankStatement, Document: BankStatement()},
		casefile.KindCreditReport:      {Kind: casefile.KindCreditReport, Document: CreditReport()},
		casefile.KindEmiratesID:        {Kind: casefile.KindEmiratesID, Document: EmiratesIDCard()},
	}
}

// WithDocument returns a copy of docs with kind replaced by doc.
func WithDocument(docs casefile.RawDocuments, doc casefile.Document) casefile.RawDocuments {
	out := maps.Clone(docs)
	out[doc.Kind()] = casefile.DocumentResult{Kind: doc.Kind(), Document: doc}
	return out
}

// WithFailure returns a copy of docs with kind marked as failed.
func WithFailure(docs casefile.RawDocuments, kind casefile.Kind, category string) casefile.RawDocuments {
	out := maps.Clone(docs)
	out[kind] = casefile.DocumentResult{
		Kind:    kind,
		Failure: &casefile.Failure{Category: category, Cause: "fixture failure"},
	}
	return out
}

// AllFailed returns four failure markers.
func AllFailed() casefile.RawDocuments {
	out := casefile.RawDocuments{}
	for _, k := range casefile.AllKinds {
		out[k] = casefile.DocumentResult{Kind: k, Failure: &casefile.Failure{Category: "bad_data", Cause: "fixture failure"}}
	}
	return out
}

// Snapshot wraps docs in a snapshot for stage tests.
func Snapshot(id string, docs casefile.RawDocuments) casefile.Snapshot {
	return casefile.Snapshot{ID: id, Documents: docs}
}
