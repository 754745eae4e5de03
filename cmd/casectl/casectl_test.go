package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"casework/internal/casestore"
)

type CasectlSuite struct {
	suite.Suite
	dir string
	db  string
}

func TestCasectlSuite(t *testing.T) {
	suite.Run(t, new(CasectlSuite))
}

func (s *CasectlSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.db = filepath.Join(s.dir, "cases.db")
	s.T().Setenv("POLICY_FILE", "")
	s.T().Setenv("EXTRACTION_SERVICE_URL", "")
	s.T().Setenv("VERTEX_PROJECT", "")
	s.T().Setenv("MODEL_SERVER_URL", "")
	s.T().Setenv("MODEL_PATH", "")
}

func (s *CasectlSuite) write(name, content string) string {
	p := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(p, []byte(content), 0o600))
	return p
}

func (s *CasectlSuite) run(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", s.db}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (s *CasectlSuite) evaluateArgs() []string {
	return []string{"evaluate",
		"--case-id", "case-cli-1",
		"--bank_statement", s.write("statement.csv",
			"# account_holder: Aisha Khan\ndate,description,amount,balance\n"+
				"2026-04-01,Salary,4200,5200\n2026-05-01,Salary,4200,6100\n"),
		"--emirates_id", s.write("id.json",
			`{"name":"Aisha Khan","emirates_id":"784-1990-1234567-1","date_of_birth":"1990-03-14","employment_status":"employed"}`),
		"--credit_report", s.write("credit.json",
			`{"applicant_name":"Aisha Khan","credit_score":690,"total_outstanding":"3,000"}`),
		"--assets_liabilities", s.write("assets.json",
			`{"assets":[{"name":"savings","value":8000}],"liabilities":[{"name":"car loan","value":12000}],"family_size":4}`),
	}
}

// =============================================================================
// evaluate
// =============================================================================

func (s *CasectlSuite) TestEvaluateStoresDecision() {
	out, err := s.run(s.evaluateArgs()...)
	s.Require().NoError(err)
	s.Contains(out, "Case:        case-cli-1")
	s.Contains(out, "Decision:")

	store, err := casestore.OpenSQLite(context.Background(), s.db)
	s.Require().NoError(err)
	defer store.Close()
	record, err := store.Get(context.Background(), "case-cli-1")
	s.Require().NoError(err)
	s.True(record.Status().IsTerminal())
	s.NotEmpty(record.Decision.Reasons)
	s.Require().NotNil(record.Plan, "enablement plan is stored with the case")
}

func (s *CasectlSuite) TestEvaluateJSONOutput() {
	out, err := s.run(append(s.evaluateArgs(), "--json")...)
	s.Require().NoError(err)

	var resp struct {
		CaseID   string `json:"case_id"`
		Decision struct {
			Status string `json:"status"`
		} `json:"decision"`
	}
	s.Require().NoError(json.Unmarshal([]byte(out), &resp))
	s.Equal("case-cli-1", resp.CaseID)
	s.NotEmpty(resp.Decision.Status)
}

func (s *CasectlSuite) TestEvaluateRequiresADocument() {
	_, err := s.run("evaluate")
	s.Require().Error(err)
	s.Contains(err.Error(), "at least one document")
}

func (s *CasectlSuite) TestEvaluateMissingFile() {
	_, err := s.run("evaluate", "--emirates_id", filepath.Join(s.dir, "missing.json"))
	s.Require().Error(err)
	s.Contains(err.Error(), "emirates_id")
}

// =============================================================================
// extract
// =============================================================================

func (s *CasectlSuite) TestExtractPrintsTypedRecord() {
	path := s.write("id.json", `{"name":"Aisha Khan","emirates_id":"784-1990-1234567-1"}`)
	out, err := s.run("extract", "--kind", "emirates_id", "--file", path)
	s.Require().NoError(err)

	var doc map[string]any
	s.Require().NoError(json.Unmarshal([]byte(out), &doc))
	s.Equal("Aisha Khan", doc["name"])
	s.Equal("784-1990-1234567-1", doc["emirates_id"])
}

func (s *CasectlSuite) TestExtractUnknownKind() {
	path := s.write("id.json", `{"name":"x"}`)
	_, err := s.run("extract", "--kind", "passport", "--file", path)
	s.Error(err)
}

func (s *CasectlSuite) TestExtractReportsFailureCategory() {
	path := s.write("report.pdf", "%PDF-1.7")
	_, err := s.run("extract", "--kind", "credit_report", "--file", path)
	s.Require().Error(err)
	s.Contains(err.Error(), "credit_report")
}

// =============================================================================
// policy
// =============================================================================

func (s *CasectlSuite) TestPolicyShowAppliesOverlay() {
	overlay := s.write("policy.yaml", "decision:\n  approve_threshold: 0.82\n")
	out, err := s.run("--policy", overlay, "policy", "show")
	s.Require().NoError(err)
	s.Contains(out, "approve_threshold: 0.82")
	s.Contains(out, "validation:")
}

func (s *CasectlSuite) TestPolicyCheckRejectsInvalid() {
	bad := s.write("bad.yaml", "decision:\n  review_threshold: 0.99\n")
	_, err := s.run("policy", "check", bad)
	s.Error(err)

	good := s.write("good.yaml", "decision:\n  approve_threshold: 0.8\n")
	out, err := s.run("policy", "check", good)
	s.Require().NoError(err)
	s.Contains(out, "ok")
}

// =============================================================================
// token
// =============================================================================

func (s *CasectlSuite) TestTokenIssue() {
	s.T().Setenv("JWT_SIGNING_KEY", "cli-test-key")
	out, err := s.run("token", "issue", "--caseworker", "cw-7", "--office", "Dubai")
	s.Require().NoError(err)
	s.Regexp(`^[\w-]+\.[\w-]+\.[\w-]+\n$`, out)
}

func (s *CasectlSuite) TestTokenIssueRequiresCaseworker() {
	_, err := s.run("token", "issue")
	s.Error(err)
}

// =============================================================================
// cases
// =============================================================================

func (s *CasectlSuite) TestCasesListAndGet() {
	_, err := s.run(s.evaluateArgs()...)
	s.Require().NoError(err)

	out, err := s.run("cases", "list")
	s.Require().NoError(err)
	s.Contains(out, "CASE")
	s.Contains(out, "case-cli-1")

	out, err = s.run("cases", "get", "case-cli-1")
	s.Require().NoError(err)
	var record casestore.Record
	s.Require().NoError(json.Unmarshal([]byte(out), &record))
	s.Equal("case-cli-1", record.CaseID)
}

func (s *CasectlSuite) TestCasesGetUnknown() {
	_, err := s.run("cases", "get", "nope")
	s.Error(err)
}
