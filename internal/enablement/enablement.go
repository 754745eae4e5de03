// Package enablement proposes economic enablement support for a decided case
// and renders the plain-text case summary stored with it.
package enablement

import (
	"fmt"
	"strings"

	"casework/internal/casefile"
)

// Type is a category of support.
type Type string

const (
	TypeJobMatch            Type = "job_match"
	TypeFinancialCounseling Type = "financial_counseling"
	TypeRentalSupport       Type = "rental_support"
	TypeIncomeSupport       Type = "income_support"
	TypeDisabilitySupport   Type = "disability_support"
	TypeCareerCounseling    Type = "career_counseling"
)

// Priority orders recommendations for caseworkers.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is one proposed support measure.
type Recommendation struct {
	Type      Type     `json:"type"`
	Priority  Priority `json:"priority"`
	Rationale string   `json:"rationale"`
	Actions   []string `json:"suggested_actions"`
}

// Plan is the enablement output stored with a case.
type Plan struct {
	CaseID          string           `json:"case_id"`
	Recommendations []Recommendation `json:"recommendations"`
	Summary         string           `json:"summary"`
}

// Thresholds used by the rules.
const (
	LowIncomeThreshold   = 8000
	LowCreditScore       = 600
	LargeFamilySize      = 4
	unknownCreditDefault = 650
)

// Recommend applies the enablement rules to a profile. The result is never
// empty; an applicant with no detected gap gets general career counseling.
func Recommend(p casefile.Profile) []Recommendation {
	var out []Recommendation

	if !strings.EqualFold(strings.TrimSpace(p.EmploymentStatus), "employed") {
		out = append(out, Recommendation{
			Type:      TypeJobMatch,
			Priority:  PriorityHigh,
			Rationale: "Unemployed or self-employed with low income",
			Actions:   []string{"Explore job matching portal", "Enroll in short upskilling course"},
		})
	}

	credit := unknownCreditDefault
	if p.CreditScore != nil {
		credit = *p.CreditScore
	}
	if credit < LowCreditScore {
		out = append(out, Recommendation{
			Type:      TypeFinancialCounseling,
			Priority:  PriorityMedium,
			Rationale: "Low credit score",
			Actions:   []string{"Debt management session", "Budgeting workshop"},
		})
	}

	if strings.EqualFold(p.HousingType, "shared") && p.FamilySize != nil && *p.FamilySize >= LargeFamilySize {
		out = append(out, Recommendation{
			Type:      TypeRentalSupport,
			Priority:  PriorityHigh,
			Rationale: "Large family in shared housing",
			Actions:   []string{"Apply for rental subsidy", "Search larger unit options"},
		})
	}

	if p.MonthlyIncome == nil || *p.MonthlyIncome < LowIncomeThreshold {
		out = append(out, Recommendation{
			Type:      TypeIncomeSupport,
			Priority:  PriorityHigh,
			Rationale: "Low monthly income",
			Actions:   []string{"Temporary income support", "Upskilling stipend"},
		})
	}

	if p.HasDisability != nil && *p.HasDisability {
		out = append(out, Recommendation{
			Type:      TypeDisabilitySupport,
			Priority:  PriorityMedium,
			Rationale: "Applicant has a registered disability",
			Actions:   []string{"Refer to disability employment programme", "Assess accessibility grants"},
		})
	}

	if len(out) == 0 {
		out = append(out, Recommendation{
			Type:      TypeCareerCounseling,
			Priority:  PriorityLow,
			Rationale: "No clear gaps detected",
			Actions:   []string{"General career counseling"},
		})
	}
	return out
}

// Build produces the enablement plan and summary for a decided case.
func Build(snap casefile.Snapshot) Plan {
	var profile casefile.Profile
	if snap.Validation != nil {
		profile = snap.Validation.Profile
	}
	recs := Recommend(profile)
	return Plan{
		CaseID:          snap.ID,
		Recommendations: recs,
		Summary:         Summarize(snap, recs),
	}
}

// Summarize renders a short, deterministic summary of the case for the
// caseworker view.
func Summarize(snap casefile.Snapshot, recs []Recommendation) string {
	var p casefile.Profile
	if snap.Validation != nil {
		p = snap.Validation.Profile
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Applicant: %s | EID: %s\n", orUnknown(p.Name), orUnknown(p.EmiratesID))
	fmt.Fprintf(&b, "Signals: Income %s AED, Family %s, Employment %s, Housing %s\n",
		formatFloat(p.MonthlyIncome), formatInt(p.FamilySize), orUnknown(p.EmploymentStatus), orUnknown(p.HousingType))

	status := casefile.StatusPending
	var prob float64
	var reasons []string
	if snap.Decision != nil {
		status = snap.Decision.Status
		prob = snap.Decision.Score
		for _, r := range snap.Decision.Reasons {
			reasons = append(reasons, r.Text)
		}
	}
	fmt.Fprintf(&b, "Eligibility score: %.2f | Decision: %s", prob, status)
	if len(reasons) > 0 {
		fmt.Fprintf(&b, "\nReasons: %s", strings.Join(reasons, "; "))
	}
	if len(recs) > 0 {
		top := recs[0]
		fmt.Fprintf(&b, "\nTop enablement: %s (%s): %s", top.Type, top.Priority, top.Rationale)
		if len(top.Actions) > 0 {
			actions := top.Actions
			if len(actions) > 3 {
				actions = actions[:3]
			}
			fmt.Fprintf(&b, "\nSuggested actions: %s", strings.Join(actions, "; "))
		}
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func formatFloat(v *float64) string {
	if v == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%.0f", *v)
}

func formatInt(v *int) string {
	if v == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%d", *v)
}
