package report_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockwhz/secregress/internal/report"
)

// bandit's JSON shapes, used to build well-formed fixtures.
type cwe struct {
	ID   any    `json:"id"`
	Link string `json:"link,omitempty"`
}

type finding struct {
	Filename        string `json:"filename,omitempty"`
	TestID          string `json:"test_id,omitempty"`
	IssueSeverity   string `json:"issue_severity"`
	IssueConfidence string `json:"issue_confidence"`
	IssueCWE        *cwe   `json:"issue_cwe,omitempty"`
}

type rawReport struct {
	Results []finding `json:"results"`
}

func marshal(t *testing.T, v any) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return data
}

func TestParse_EndToEndExample(t *testing.T) {
	t.Parallel()

	c1 := marshal(t, rawReport{Results: []finding{
		{IssueSeverity: "HIGH", IssueConfidence: "HIGH", IssueCWE: &cwe{ID: 89}},
		{IssueSeverity: "LOW", IssueConfidence: "MEDIUM", IssueCWE: &cwe{ID: 79}},
	}})
	c2 := marshal(t, rawReport{Results: []finding{
		{IssueSeverity: "HIGH", IssueConfidence: "LOW"},
	}})

	rec1, err := report.Parse("R", "C1", c1)
	require.NoError(t, err)
	assert.Equal(t, "R", rec1.Repository)
	assert.Equal(t, "C1", rec1.Commit)
	assert.Equal(t, 1, rec1.High)
	assert.Equal(t, 0, rec1.Medium)
	assert.Equal(t, 1, rec1.Low)
	assert.Equal(t, "79; 89", rec1.CWEString())
	assert.Equal(t, 1, rec1.ConfHigh)
	assert.Equal(t, 1, rec1.ConfMedium)

	rec2, err := report.Parse("R", "C2", c2)
	require.NoError(t, err)
	assert.Equal(t, 1, rec2.High)
	assert.Equal(t, 0, rec2.Medium)
	assert.Equal(t, 0, rec2.Low)
	assert.Equal(t, "", rec2.CWEString())
	assert.Equal(t, 1, rec2.ConfLow)
}

func TestParse_CategoryDedup(t *testing.T) {
	t.Parallel()

	data := []byte(`{"results": [
		{"issue_severity": "LOW", "issue_cwe": {"id": 89}},
		{"issue_severity": "MEDIUM", "issue_cwe": {"id": 89, "link": "https://cwe.mitre.org/data/definitions/89.html"}},
		{"issue_severity": "HIGH", "issue_cwe": {"id": "89"}}
	]}`)

	rec, err := report.Parse("r", "c", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"89"}, rec.CWEs)
	assert.Equal(t, 3, rec.Total())
}

func TestParse_ToleratesMalformedFindings(t *testing.T) {
	t.Parallel()

	data := []byte(`{"results": [
		{"issue_severity": "HIGH", "issue_confidence": "HIGH", "issue_cwe": {"id": 78}},
		{"issue_confidence": "LOW"}
	]}`)

	rec, err := report.Parse("r", "c", data)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.High)
	assert.Equal(t, 1, rec.Total())
	assert.Equal(t, []string{"78"}, rec.CWEs)
}

func TestParse_CountConservation(t *testing.T) {
	t.Parallel()

	data := []byte(`{"results": [
		{"issue_severity": "HIGH"},
		{"issue_severity": "MEDIUM"},
		{"issue_severity": "MEDIUM"},
		{"issue_severity": "LOW"},
		{"issue_severity": "UNKNOWN"},
		{"issue_severity": "high"},
		{"issue_severity": 3},
		{}
	]}`)

	rec, err := report.Parse("r", "c", data)
	require.NoError(t, err)
	assert.Equal(t, 8-4, rec.Total())
	assert.Equal(t, 2, rec.Medium)
}

func TestParse_UnrecognizedSeverityStillCollectsCategory(t *testing.T) {
	t.Parallel()

	data := []byte(`{"results": [{"issue_severity": "CRITICAL", "issue_cwe": {"id": 502}}]}`)

	rec, err := report.Parse("r", "c", data)
	require.NoError(t, err)
	assert.Zero(t, rec.Total())
	assert.Equal(t, []string{"502"}, rec.CWEs)
}

func TestParse_MalformedCategories(t *testing.T) {
	t.Parallel()

	data := []byte(`{"results": [
		{"issue_severity": "LOW", "issue_cwe": "89"},
		{"issue_severity": "LOW", "issue_cwe": {"link": "x"}},
		{"issue_severity": "LOW", "issue_cwe": {"id": ""}},
		{"issue_severity": "LOW", "issue_cwe": {"id": null}},
		{"issue_severity": "LOW", "issue_cwe": {"id": 0}},
		{"issue_severity": "LOW", "issue_cwe": {"id": 22.0}},
		{"issue_severity": "LOW", "issue_cwe": [1, 2]},
		"not a finding"
	]}`)

	rec, err := report.Parse("r", "c", data)
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Low)
	assert.Equal(t, []string{"22"}, rec.CWEs)
}

func TestParse_NonCrashOnGarbage(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty object":      `{}`,
		"array root":        `[1, 2, 3]`,
		"results is object": `{"results": {"a": 1}}`,
		"results is null":   `{"results": null}`,
		"scalar root":       `42`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec, err := report.Parse("r", "c", []byte(doc))
			require.NoError(t, err)
			assert.Zero(t, rec.Total())
			assert.Empty(t, rec.CWEs)
		})
	}
}

func TestParse_NotJSON(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"traceback":        `Traceback (most recent call last):`,
		"empty file":       ``,
		"whitespace":       "  \n",
		"trailing garbage": `{"results": []} trailing-garbage`,
		"two documents":    `{"results": []} {"results": []}`,
		"truncated":        `{"results": [{"issue_severity": "HIGH"`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := report.Parse("r", "c", []byte(doc))
			require.ErrorIs(t, err, report.ErrMalformedReport)
		})
	}
}

func TestParse_TrailingWhitespaceIsFine(t *testing.T) {
	t.Parallel()

	rec, err := report.Parse("r", "c", []byte("{\"results\": [{\"issue_severity\": \"LOW\"}]}\n\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Low)
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SQL Injection", report.Describe("89"))
	assert.Equal(t, "SQL Injection", report.Describe("CWE-89"))
	assert.Equal(t, "", report.Describe("703"))
	assert.Equal(t, "79: XSS", report.Label("79"))
	assert.Equal(t, "703", report.Label("703"))
}
