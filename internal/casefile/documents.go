package casefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fields is the raw key/value output of a document extractor. It is decoded
// into a typed Document at the extraction boundary and not used after that.
type Fields map[string]any

// Document is one of BankStatement, AssetsLiabilities, CreditReport or EmiratesID.
type Document interface {
	Kind() Kind
}

// ErrNoRecognisedFields is returned by Decode when none of the schema's
// fields were present in the extractor output.
var ErrNoRecognisedFields = errors.New("no recognised fields")

// Amount accepts JSON numbers and numeric strings such as "12,500.00 AED".
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := parseAmount(s)
		if err != nil {
			return err
		}
		*a = Amount(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(f)
	return nil
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "AED"), "AED")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount %q is not numeric", s)
	}
	return v, nil
}

// Date accepts "2006-01-02", "02/01/2006" and RFC 3339 timestamps.
type Date struct {
	time.Time
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006", "2006/01/02"}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

// ParseDate parses the date layouts accepted on documents.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q has no recognised layout", s)
}

// Transaction is one bank statement line. Credits are positive.
type Transaction struct {
	Date        Date    `json:"date"`
	Amount      Amount  `json:"amount"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Balance     *Amount `json:"balance,omitempty"`
}

// IsIncome reports whether the transaction is an income credit.
func (t Transaction) IsIncome() bool {
	if t.Amount <= 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(t.Category)) {
	case "salary", "income", "wages", "pension":
		return true
	}
	return strings.Contains(strings.ToUpper(t.Description), "SALARY")
}

// BankStatement is the typed record for KindBankStatement.
type BankStatement struct {
	AccountHolder         string        `json:"account_holder,omitempty"`
	EmiratesID            string        `json:"emirates_id,omitempty"`
	BankName              string        `json:"bank_name,omitempty"`
	Transactions          []Transaction `json:"transactions,omitempty"`
	ReportedMonthlyIncome *Amount       `json:"estimated_monthly_income,omitempty"`
	ReportedAverage       *Amount       `json:"average_balance,omitempty"`
}

func (BankStatement) Kind() Kind { return KindBankStatement }

// MonthlyIncome sums income credits and normalises them over the number of
// calendar months the statement covers. When the statement carries no income
// lines the extractor-reported estimate is used.
func (b BankStatement) MonthlyIncome() (float64, bool) {
	months := make(map[string]struct{})
	var total float64
	var found bool
	for _, t := range b.Transactions {
		months[t.Date.Format("2006-01")] = struct{}{}
		if t.IsIncome() {
			total += float64(t.Amount)
			found = true
		}
	}
	if found && len(months) > 0 {
		return total / float64(len(months)), true
	}
	if b.ReportedMonthlyIncome != nil {
		return float64(*b.ReportedMonthlyIncome), true
	}
	return 0, false
}

// AverageBalance averages the running balance column.
func (b BankStatement) AverageBalance() (float64, bool) {
	var sum float64
	var n int
	for _, t := range b.Transactions {
		if t.Balance != nil {
			sum += float64(*t.Balance)
			n++
		}
	}
	if n > 0 {
		return sum / float64(n), true
	}
	if b.ReportedAverage != nil {
		return float64(*b.ReportedAverage), true
	}
	return 0, false
}

// TotalCredits sums positive transaction amounts.
func (b BankStatement) TotalCredits() float64 {
	var sum float64
	for _, t := range b.Transactions {
		if t.Amount > 0 {
			sum += float64(t.Amount)
		}
	}
	return sum
}

// TotalDebits sums negative transaction amounts as a positive number.
func (b BankStatement) TotalDebits() float64 {
	var sum float64
	for _, t := range b.Transactions {
		if t.Amount < 0 {
			sum -= float64(t.Amount)
		}
	}
	return sum
}

// Item is one asset or liability line with its value in AED.
type Item struct {
	Name  string `json:"name"`
	Value Amount `json:"value"`
}

// AssetsLiabilities is the typed record for KindAssetsLiabilities. Besides the
// itemised balance sheet it carries the applicant's own declarations.
type AssetsLiabilities struct {
	Assets                []Item  `json:"assets,omitempty"`
	Liabilities           []Item  `json:"liabilities,omitempty"`
	ReportedTotalAssets   *Amount `json:"total_assets,omitempty"`
	ReportedTotalDebts    *Amount `json:"total_liabilities,omitempty"`
	DeclaredMonthlyIncome *Amount `json:"declared_monthly_income,omitempty"`
	FamilySize            *int    `json:"family_size,omitempty"`
	HousingType           string  `json:"housing_type,omitempty"`
}

func (AssetsLiabilities) Kind() Kind { return KindAssetsLiabilities }

// TotalAssets sums itemised assets, falling back to the reported total.
func (a AssetsLiabilities) TotalAssets() (float64, bool) {
	return sumItems(a.Assets, a.ReportedTotalAssets)
}

// TotalLiabilities sums itemised liabilities, falling back to the reported total.
func (a AssetsLiabilities) TotalLiabilities() (float64, bool) {
	return sumItems(a.Liabilities, a.ReportedTotalDebts)
}

// NetWorth is assets minus liabilities. It needs at least one side present.
func (a AssetsLiabilities) NetWorth() (float64, bool) {
	assets, okA := a.TotalAssets()
	debts, okL := a.TotalLiabilities()
	if !okA && !okL {
		return 0, false
	}
	return assets - debts, true
}

func sumItems(items []Item, reported *Amount) (float64, bool) {
	if len(items) > 0 {
		var sum float64
		for _, it := range items {
			sum += float64(it.Value)
		}
		return sum, true
	}
	if reported != nil {
		return float64(*reported), true
	}
	return 0, false
}

// CreditReport is the typed record for KindCreditReport.
type CreditReport struct {
	ApplicantName         string  `json:"applicant_name,omitempty"`
	EmiratesID            string  `json:"emirates_id,omitempty"`
	CreditScore           *int    `json:"credit_score,omitempty"`
	TotalCreditLimit      *Amount `json:"total_credit_limit,omitempty"`
	TotalOutstanding      *Amount `json:"total_outstanding,omitempty"`
	MonthlyIncomeReported *Amount `json:"monthly_income_reported,omitempty"`
	HousingType           string  `json:"housing_type,omitempty"`
	Delinquencies         int     `json:"delinquencies,omitempty"`
}

func (CreditReport) Kind() Kind { return KindCreditReport }

// EmiratesID is the typed record for KindEmiratesID.
type EmiratesID struct {
	Name             string `json:"name,omitempty"`
	IDNumber         string `json:"emirates_id,omitempty"`
	DateOfBirth      string `json:"date_of_birth,omitempty"`
	Nationality      string `json:"nationality,omitempty"`
	Gender           string `json:"gender,omitempty"`
	EmploymentStatus string `json:"employment_status,omitempty"`
	MaritalStatus    string `json:"marital_status,omitempty"`
	HasDisability    *bool  `json:"has_disability,omitempty"`
	Address          string `json:"address,omitempty"`
}

func (EmiratesID) Kind() Kind { return KindEmiratesID }

// schemaKeys lists the top-level keys each schema recognises. Decode uses it
// to reject field maps that share nothing with the expected document.
var schemaKeys = map[Kind][]string{
	KindBankStatement:     {"account_holder", "applicant_name", "emirates_id", "bank_name", "transactions", "estimated_monthly_income", "average_balance"},
	KindAssetsLiabilities: {"assets", "liabilities", "total_assets", "total_liabilities", "declared_monthly_income", "family_size", "housing_type"},
	KindCreditReport:      {"applicant_name", "emirates_id", "credit_score", "total_credit_limit", "total_outstanding", "monthly_income_reported", "housing_type", "delinquencies"},
	KindEmiratesID:        {"name", "emirates_id", "date_of_birth", "nationality", "gender", "employment_status", "marital_status", "has_disability", "address"},
}

// Decode validates an extractor's field map against the schema for kind and
// returns the typed document. Placeholder values ("Unknown", "", null) are
// treated as absent.
func Decode(kind Kind, fields Fields) (Document, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("decode: unknown document kind %q", kind)
	}
	clean := normalize(fields)
	if kind == KindBankStatement {
		// Bank exports name the holder column applicant_name.
		if v, ok := clean["applicant_name"]; ok {
			if _, has := clean["account_holder"]; !has {
				clean["account_holder"] = v
			}
			delete(clean, "applicant_name")
		}
	}
	if !hasAnyKey(clean, schemaKeys[kind]) {
		return nil, fmt.Errorf("decode %s: %w", kind, ErrNoRecognisedFields)
	}

	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}

	var doc Document
	switch kind {
	case KindBankStatement:
		var d BankStatement
		err = json.Unmarshal(raw, &d)
		sort.SliceStable(d.Transactions, func(i, j int) bool {
			return d.Transactions[i].Date.Before(d.Transactions[j].Date.Time)
		})
		doc = d
	case KindAssetsLiabilities:
		var d AssetsLiabilities
		err = json.Unmarshal(raw, &d)
		doc = d
	case KindCreditReport:
		var d CreditReport
		err = json.Unmarshal(raw, &d)
		doc = d
	case KindEmiratesID:
		var d EmiratesID
		err = json.Unmarshal(raw, &d)
		doc = d
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return doc, nil
}

// IsUnknown reports whether a string is an extractor placeholder for "no value".
func IsUnknown(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown", "n/a", "na", "none", "null":
		return true
	}
	return false
}

func normalize(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		key := strings.ToLower(strings.TrimSpace(k))
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			if IsUnknown(tv) {
				continue
			}
			out[key] = strings.TrimSpace(tv)
		default:
			out[key] = v
		}
	}
	return out
}

func hasAnyKey(fields Fields, keys []string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}
