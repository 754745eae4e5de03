package decision

import (
	"fmt"
	"strings"

	"casework/internal/casefile"
)

// Path records which branch of the rule chain produced a decision.
type Path string

const (
	PathAllDocumentsFailed Path = "all_documents_failed"
	PathSkipped            Path = "skipped"
	PathScored             Path = "scored"
)

// Input is everything the rules look at. Build it with InputFrom.
type Input struct {
	AllDocumentsFailed bool
	// SkipCause is set when no score exists because validation blocked,
	// feature building failed, or the scorer failed.
	SkipCause       string
	Score           *casefile.Score
	Confidence      float64
	HighIssues      []casefile.Issue
	FailedDocuments []casefile.Kind
}

// InputFrom derives the rule input from a case snapshot.
func InputFrom(snap casefile.Snapshot) Input {
	in := Input{
		AllDocumentsFailed: snap.HasStageError(casefile.ErrorAllDocumentsFailed),
		Score:              snap.Score,
		FailedDocuments:    snap.Documents.Failed(),
	}
	if snap.Validation != nil {
		in.Confidence = snap.Validation.Confidence
		in.HighIssues = snap.Validation.IssuesAtLeast(casefile.SeverityHigh)
	}
	if snap.Score == nil {
		in.SkipCause = skipCause(snap)
	}
	return in
}

// skipCause describes why scoring did not run in caseworker terms. Raw
// error text from the scorer is never copied into a reason.
func skipCause(snap casefile.Snapshot) string {
	if snap.Validation != nil && snap.Validation.Blocked {
		return "validation blocked scoring: " + snap.Validation.BlockCause
	}
	for _, e := range snap.StageErrors {
		switch e.Kind {
		case casefile.ErrorValidationBlock:
			return "validation blocked scoring: " + e.Message
		case casefile.ErrorFeatureBuild:
			return fmt.Sprintf("features could not be built: %s unavailable", e.Subject)
		case casefile.ErrorScoringTimeout:
			return "eligibility scoring timed out"
		case casefile.ErrorScoring:
			return "eligibility scoring failed"
		}
	}
	return "eligibility score unavailable"
}

// Evaluate applies the policy to the input. It is pure: no I/O and no clock;
// DecidedAt is left for the caller. Rule priority:
//  1. all documents failed: SOFT_DECLINE
//  2. no score: the policy's SkippedStatus
//  3. approval conditions all hold: APPROVE
//  4. probability at or above the review threshold: REVIEW, listing every
//     condition that prevented approval
//  5. otherwise SOFT_DECLINE
func Evaluate(p Policy, in Input) (casefile.Decision, Path) {
	d := casefile.Decision{Confidence: in.Confidence}

	// Rule 1: nothing to evaluate
	if in.AllDocumentsFailed {
		d.Status = casefile.StatusSoftDecline
		d.Reasons = reasons("no usable documents")
		return d, PathAllDocumentsFailed
	}

	// Rule 2: degraded path without a score
	if in.Score == nil {
		cause := in.SkipCause
		if cause == "" {
			cause = "eligibility score unavailable"
		}
		d.Status = p.SkippedStatus
		d.Reasons = reasons(cause)
		return d, PathSkipped
	}

	prob := in.Score.Probability
	d.Score = prob

	// Rule 3: approval
	blockers := approvalBlockers(p, in)
	if len(blockers) == 0 {
		d.Status = casefile.StatusApprove
		d.Reasons = reasons(fmt.Sprintf("high eligibility score (%.2f) with sufficient validation confidence (%.2f)", prob, in.Confidence))
		return d, PathScored
	}

	// Rule 4: borderline or held back by data quality
	if prob >= p.ReviewThreshold {
		d.Status = casefile.StatusReview
		d.Reasons = reasons(blockers...)
		if len(in.FailedDocuments) > 0 {
			d.Reasons = append(d.Reasons, casefile.Reason{Text: "degraded extraction: " + joinKinds(in.FailedDocuments) + " could not be read"})
		}
		return d, PathScored
	}

	// Rule 5: low score
	d.Status = casefile.StatusSoftDecline
	d.Reasons = reasons(fmt.Sprintf("low eligibility score (%.2f) or model predicted ineligible", prob))
	return d, PathScored
}

// approvalBlockers lists the failed approval conditions in order of how much
// each contributes to the hold: confidence, score, label, imputation, issues.
func approvalBlockers(p Policy, in Input) []string {
	var out []string
	s := in.Score
	if in.Confidence < p.ConfidenceFloor {
		out = append(out, fmt.Sprintf("validation confidence (%.2f) below floor (%.2f)", in.Confidence, p.ConfidenceFloor))
	}
	if s.Probability < p.ApproveThreshold {
		out = append(out, fmt.Sprintf("borderline eligibility score (%.2f) below approval threshold (%.2f)", s.Probability, p.ApproveThreshold))
	}
	if !s.Label {
		out = append(out, "model predicted ineligible")
	}
	if s.Imputed {
		out = append(out, "score imputed from model label without a probability")
	}
	if len(in.HighIssues) > 0 {
		fields := make([]string, 0, len(in.HighIssues))
		for _, is := range in.HighIssues {
			fields = append(fields, is.Field)
		}
		out = append(out, fmt.Sprintf("%d high severity validation issue(s) outstanding: %s", len(in.HighIssues), strings.Join(fields, ", ")))
	}
	return out
}

func reasons(texts ...string) []casefile.Reason {
	out := make([]casefile.Reason, 0, len(texts))
	for _, t := range texts {
		out = append(out, casefile.Reason{Text: t})
	}
	return out
}

func joinKinds(kinds []casefile.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
