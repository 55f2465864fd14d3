package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const officeProject = `{"projectType":"office","totalArea":1000,"floors":3,"region":"germany",
"disciplines":[{"code":"EL","name":"Elétrico"},{"code":"HY","name":"Hidráulico"},{"code":"HV","name":"HVAC"}]}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStandardsList(t *testing.T) {
	out, err := run(t, "", "standards", "--standards-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "DIN 18015")
	assert.Contains(t, out, "VDI 2052")
	assert.NotContains(t, out, "R-18015-01")
}

func TestStandardsShowIncludesRules(t *testing.T) {
	out, err := run(t, "", "--json", "--standards-file", "", "standards", "DIN 18015")
	require.NoError(t, err)

	var got []standardJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "DIN 18015", got[0].ID)
	require.NotEmpty(t, got[0].Rules)
	assert.Equal(t, "R-18015-01", got[0].Rules[0].ID)
	assert.Equal(t, "area > 50", got[0].Rules[0].Condition)
}

func TestStandardsUnknownID(t *testing.T) {
	_, err := run(t, "", "--standards-file", "", "standards", "ISO 0000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestClassifyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.json")
	require.NoError(t, os.WriteFile(path, []byte(officeProject), 0o600))

	out, err := run(t, "", "--json", "--standards-file", "", "classify", path)
	require.NoError(t, err)

	var got struct {
		Categories []string `json:"categories"`
		Standards  []string `json:"standards"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"Elétrico", "Hidráulico", "HVAC"}, got.Categories)
	assert.Contains(t, got.Standards, "DIN 18015")
}

func TestCheckFromStdin(t *testing.T) {
	out, err := run(t, officeProject, "--json", "--standards-file", "", "check", "-")
	require.NoError(t, err)

	var got struct {
		Violations []struct {
			RuleID string `json:"ruleId"`
		} `json:"violations"`
		ComplianceReport []struct {
			StandardID string `json:"standard"`
			Compliant  bool   `json:"compliant"`
			Score      int    `json:"score"`
		} `json:"complianceReport"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Violations, 1)
	assert.Equal(t, "R-18015-01", got.Violations[0].RuleID)
	require.Len(t, got.ComplianceReport, 2)
	assert.Equal(t, 50, got.ComplianceReport[0].Score)
	assert.True(t, got.ComplianceReport[1].Compliant)
}

func TestCheckTableOutput(t *testing.T) {
	out, err := run(t, officeProject, "--standards-file", "", "check", "-", "--standard", "DIN 18015")
	require.NoError(t, err)
	assert.Contains(t, out, "STANDARD")
	assert.Contains(t, out, "R-18015-01")
	assert.NotContains(t, out, "VDI 2052")
}

func TestCheckRejectsInvalidProject(t *testing.T) {
	_, err := run(t, `{"projectType":"castle"}`, "--standards-file", "", "check", "-")
	require.Error(t, err)
}

func TestCheckRejectsUnknownPolicy(t *testing.T) {
	_, err := run(t, officeProject, "--standards-file", "", "--policy", "maybe", "check", "-")
	require.Error(t, err)
}

func TestPolicyFlagListsAcceptedValues(t *testing.T) {
	flag := NewRootCmd().PersistentFlags().Lookup("policy")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "(compliant or violation)")

	_, err := run(t, officeProject, "--standards-file", "", "--policy", "violation", "check", "-")
	require.NoError(t, err)
}
