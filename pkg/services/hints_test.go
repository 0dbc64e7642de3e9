package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlq-engine/nlq-engine/pkg/models"
)

func TestHintMatcher_TableHints(t *testing.T) {
	matcher := NewHintMatcher(DefaultHintRules())

	tests := []struct {
		name     string
		table    string
		expected models.Hint
	}{
		{"plural form", "employees", "employee-like"},
		{"synonym", "staff_members", "employee-like"},
		{"another synonym", "personnel", "employee-like"},
		{"department synonym", "depts", "department-like"},
		{"division", "divisions", "department-like"},
		{"project", "projects", "project-like"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := matcher.TableHints(tt.table)
			assert.Contains(t, hints, tt.expected)
		})
	}
}

func TestHintMatcher_ColumnHints(t *testing.T) {
	matcher := NewHintMatcher(DefaultHintRules())

	tests := []struct {
		column   string
		expected models.Hint
	}{
		{"salary", "salary-like"},
		{"annual_compensation", "salary-like"},
		{"name", "name-like"},
		{"first_name", "name-like"},
		{"join_date", "date-like"},
		{"hired_on", "date-like"},
		{"start_date", "date-like"},
		{"manager_id", "manager-like"},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			hints := matcher.ColumnHints(tt.column)
			assert.Contains(t, hints, tt.expected)
		})
	}
}

func TestHintMatcher_FuzzyMatch(t *testing.T) {
	matcher := NewHintMatcher(DefaultHintRules())

	// Slightly misspelled identifiers still match via Jaro-Winkler.
	assert.Contains(t, matcher.ColumnHints("salery"), models.Hint("salary-like"))
	assert.Contains(t, matcher.TableHints("employe"), models.Hint("employee-like"))
}

func TestHintMatcher_AppliesToScoping(t *testing.T) {
	matcher := NewHintMatcher(DefaultHintRules())

	// salary-like is a column rule and must not tag tables.
	assert.NotContains(t, matcher.TableHints("salaries"), models.Hint("salary-like"))
}

func TestHintMatcher_NoMatch(t *testing.T) {
	matcher := NewHintMatcher(DefaultHintRules())
	assert.Empty(t, matcher.TableHints("xyzzy_quux"))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in  string
		out string
	}{
		{"Employees", "employee"},
		{"EMPLOYEE_RECORDS", "employee record"},
		{"join-date", "join date"},
		{"departments", "department"},
		{"  ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.out, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestLoadHintRules_ExtendsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
- hint: invoice-like
  patterns: [invoice, bill, receipt]
- hint: customer-like
  patterns: [customer, client]
  applies_to: table
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadHintRules(path)
	require.NoError(t, err)
	assert.Greater(t, len(rules), len(DefaultHintRules()))

	matcher := NewHintMatcher(rules)
	assert.Contains(t, matcher.TableHints("invoices"), models.Hint("invoice-like"))
	assert.Contains(t, matcher.TableHints("customers"), models.Hint("customer-like"))
	assert.NotContains(t, matcher.ColumnHints("customer_ref"), models.Hint("customer-like"))
}

func TestLoadHintRules_RejectsIncompleteRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- hint: broken\n"), 0o600))

	_, err := LoadHintRules(path)
	assert.Error(t, err)
}

func TestLoadHintRules_EmptyPathReturnsDefaults(t *testing.T) {
	rules, err := LoadHintRules("")
	require.NoError(t, err)
	assert.Len(t, rules, len(DefaultHintRules()))
}
