// Package casefile defines the Case State threaded through the evaluation
// pipeline: typed document records, validation results, the feature vector,
// the eligibility score, and the terminal decision.
//
// Stages never hold a *Case. They receive an immutable Snapshot and return a
// Delta; the orchestrator is the only writer and merges deltas with Apply.
package casefile

import (
	"fmt"
	"strings"
)

// Kind identifies one of the four documents an application must include.
type Kind string

const (
	KindAssetsLiabilities Kind = "assets_liabilities"
	KindBankStatement     Kind = "bank_statement"
	KindCreditReport      Kind = "credit_report"
	KindEmiratesID        Kind = "emirates_id"
)

// AllKinds lists the required documents in their canonical order.
var AllKinds = []Kind{
	KindAssetsLiabilities,
	KindBankStatement,
	KindCreditReport,
	KindEmiratesID,
}

// ParseKind validates a document kind string. Case and surrounding
// whitespace are ignored.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown document kind %q", s)
	}
	return k, nil
}

// IsValid reports whether k is one of the required document kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindAssetsLiabilities, KindBankStatement, KindCreditReport, KindEmiratesID:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}
