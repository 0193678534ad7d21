package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/david/proposaland/internal/auth"
	"github.com/david/proposaland/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", "", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func listingsYAML() string {
	deadline := time.Now().AddDate(0, 0, 20).Format("2006-01-02")
	return `opportunities:
  - title: Video and multimedia production
    description: World Bank project P123456 needs a documentary film.
    organization: World Bank
    budget: USD 120,000
    deadline: ` + deadline + `
  - title: Office furniture supply
    organization: UNDP
  - title: Photo campaign by a local company
    organization: UNICEF
`
}

func TestDecodeListings(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		isJSON bool
		want   int
	}{
		{"json list", `[{"title":"a"},{"title":"b"}]`, true, 2},
		{"json object", `{"opportunities":[{"title":"a"}]}`, true, 1},
		{"yaml list", "- title: a\n- title: b\n- title: c\n", false, 3},
		{"yaml object", "opportunities:\n  - title: a\n", false, 1},
		{"empty", "  \n", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeListings([]byte(tt.data), tt.isJSON)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	_, err := decodeListings([]byte(`{"opportunities": 3}`), true)
	assert.Error(t, err)
}

func TestClassify_JSON(t *testing.T) {
	path := writeFile(t, "listings.yaml", listingsYAML())
	out, err := run(t, "classify", "-f", path, "--format", "json")
	require.NoError(t, err, out)

	var body struct {
		Ranked   []models.ScoredOpportunity `json:"ranked"`
		Outcomes []struct {
			Kept   bool   `json:"kept"`
			Reason string `json:"reason"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.Len(t, body.Ranked, 1)
	assert.Equal(t, "P123456", body.Ranked[0].ReferenceNumber)
	require.Len(t, body.Outcomes, 3)
	assert.Equal(t, "no_keywords", body.Outcomes[1].Reason)
	assert.Equal(t, "exclusion_keyword", body.Outcomes[2].Reason)
}

func TestClassify_Table(t *testing.T) {
	path := writeFile(t, "listings.yaml", listingsYAML())
	out, err := run(t, "classify", "-f", path, "--show-dropped")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Video and multimedia production")
	assert.Contains(t, out, "USD 120000")
	assert.Contains(t, out, "exclusion_keyword")
}

func TestClassify_Errors(t *testing.T) {
	_, err := run(t, "classify")
	assert.Error(t, err, "--file is required")

	path := writeFile(t, "empty.json", "[]")
	_, err = run(t, "classify", "-f", path)
	assert.ErrorContains(t, err, "no listings")

	_, err = run(t, "classify", "-f", path, "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestRefs(t *testing.T) {
	out, err := run(t, "refs", "--context", "World Bank", "Project", "P123456", "documentary")
	require.NoError(t, err, out)
	assert.Contains(t, out, "P123456")

	out, err = run(t, "refs", "--summary", "--min", "0.99", "nothing", "here")
	require.NoError(t, err)
	assert.Equal(t, "No reference numbers found", strings.TrimSpace(out))

	_, err = run(t, "refs", "--min", "2", "P123456")
	assert.Error(t, err)
}

func TestRefs_HTMLFile(t *testing.T) {
	path := writeFile(t, "notice.html", "<html><body><h1>Call</h1><p>Ref: RFP/2024/001</p></body></html>")
	out, err := run(t, "refs", "--file", path, "--format", "json", "--min", "0")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2024")
}

func TestPatterns(t *testing.T) {
	out, err := run(t, "patterns", "--regex")
	require.NoError(t, err)
	assert.Contains(t, out, "world-bank")
	assert.Contains(t, out, "patterns")
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := run(t, "token", "--subject", "ops")
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "cli-secret")
	out, err := run(t, "token", "--subject", "ops", "--ttl", "1h")
	require.NoError(t, err)

	authn, _, err := auth.New("cli-secret")
	require.NoError(t, err)
	sub, err := authn.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", sub)
}
