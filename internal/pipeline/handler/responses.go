package handler

import (
	"casework/internal/casefile"
	"casework/internal/casestore"
)

// CaseResponse is the applicant-facing view of a decided case. Stage errors,
// issues and model details stay internal; only decision reasons are exposed.
type CaseResponse struct {
	CaseID   string           `json:"case_id"`
	Decision DecisionResponse `json:"decision"`
}

// DecisionResponse is the decision portion of the response.
type DecisionResponse struct {
	Status     string           `json:"status"`
	Reasons    []ReasonResponse `json:"reasons"`
	Score      float64          `json:"score"`
	Confidence float64          `json:"confidence"`
}

// ReasonResponse is one decision reason.
type ReasonResponse struct {
	Text string `json:"text"`
}

// FromSnapshot converts a decided case to the response.
func FromSnapshot(snap casefile.Snapshot) *CaseResponse {
	resp := &CaseResponse{CaseID: snap.ID}
	if snap.Decision != nil {
		resp.Decision = fromDecision(*snap.Decision)
	}
	return resp
}

// FromRecord converts a stored case to the response.
func FromRecord(r casestore.Record) *CaseResponse {
	return &CaseResponse{CaseID: r.CaseID, Decision: fromDecision(r.Decision)}
}

func fromDecision(d casefile.Decision) DecisionResponse {
	reasons := make([]ReasonResponse, 0, len(d.Reasons))
	for _, r := range d.Reasons {
		reasons = append(reasons, ReasonResponse{Text: r.Text})
	}
	return DecisionResponse{
		Status:     string(d.Status),
		Reasons:    reasons,
		Score:      d.Score,
		Confidence: d.Confidence,
	}
}

// UnableToProcess is returned when evaluation fails internally. The caller
// still gets a decision and never the underlying error.
func UnableToProcess(caseID string) *CaseResponse {
	return &CaseResponse{
		CaseID: caseID,
		Decision: DecisionResponse{
			Status:  string(casefile.StatusSoftDecline),
			Reasons: []ReasonResponse{{Text: "unable to process"}},
		},
	}
}
