package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/xrash/smetrics"
	"gopkg.in/yaml.v3"

	"github.com/nlq-engine/nlq-engine/pkg/models"
)

// fuzzyHintThreshold is the Jaro-Winkler similarity a normalized token
// must reach to match a synonym pattern.
const fuzzyHintThreshold = 0.85

// HintRule maps name patterns to a semantic hint. Rules are data, not
// code: extending the vocabulary for a new domain means adding rules, not
// touching the matcher.
type HintRule struct {
	Hint      models.Hint `yaml:"hint"`
	Patterns  []string    `yaml:"patterns"`
	AppliesTo string      `yaml:"applies_to,omitempty"` // "table", "column", or empty for both
}

// DefaultHintRules returns the built-in synonym vocabulary.
func DefaultHintRules() []HintRule {
	return []HintRule{
		{Hint: "employee-like", Patterns: []string{"employee", "staff", "personnel", "worker", "people"}},
		{Hint: "department-like", Patterns: []string{"department", "dept", "division", "team", "unit"}},
		{Hint: "salary-like", Patterns: []string{"salary", "compensation", "pay", "wage", "income"}, AppliesTo: "column"},
		{Hint: "name-like", Patterns: []string{"name", "title", "label"}, AppliesTo: "column"},
		{Hint: "date-like", Patterns: []string{"date", "join date", "hired on", "start date", "created at", "updated at"}, AppliesTo: "column"},
		{Hint: "manager-like", Patterns: []string{"manager", "supervisor", "lead", "boss"}},
		{Hint: "project-like", Patterns: []string{"project", "assignment", "initiative"}},
		{Hint: "location-like", Patterns: []string{"location", "office", "city", "region", "site"}},
	}
}

// LoadHintRules reads additional rules from a YAML file and appends them
// to the defaults. An empty path returns the defaults alone.
func LoadHintRules(path string) ([]HintRule, error) {
	rules := DefaultHintRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hint rules %s: %w", path, err)
	}

	var extra []HintRule
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse hint rules %s: %w", path, err)
	}
	for i, r := range extra {
		if r.Hint == "" || len(r.Patterns) == 0 {
			return nil, fmt.Errorf("hint rule %d in %s: hint and patterns are required", i, path)
		}
	}

	return append(rules, extra...), nil
}

// HintMatcher assigns semantic hints to table and column names.
type HintMatcher struct {
	rules []HintRule
}

// NewHintMatcher creates a matcher over the given rule set.
func NewHintMatcher(rules []HintRule) *HintMatcher {
	return &HintMatcher{rules: rules}
}

// TableHints returns the sorted hint set for a table name.
func (m *HintMatcher) TableHints(name string) []models.Hint {
	return m.match(name, "table")
}

// ColumnHints returns the sorted hint set for a column name.
func (m *HintMatcher) ColumnHints(name string) []models.Hint {
	return m.match(name, "column")
}

func (m *HintMatcher) match(name, kind string) []models.Hint {
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil
	}
	tokens := strings.Fields(normalized)

	seen := make(map[models.Hint]bool)
	for _, rule := range m.rules {
		if rule.AppliesTo != "" && rule.AppliesTo != kind {
			continue
		}
		if seen[rule.Hint] {
			continue
		}
		if ruleMatches(rule, normalized, tokens) {
			seen[rule.Hint] = true
		}
	}

	if len(seen) == 0 {
		return nil
	}
	hints := make([]models.Hint, 0, len(seen))
	for h := range seen {
		hints = append(hints, h)
	}
	sort.Slice(hints, func(i, j int) bool { return hints[i] < hints[j] })
	return hints
}

func ruleMatches(rule HintRule, normalized string, tokens []string) bool {
	for _, pattern := range rule.Patterns {
		pattern = NormalizeName(pattern)
		if pattern == "" {
			continue
		}
		if strings.Contains(normalized, pattern) {
			return true
		}
		for _, token := range tokens {
			if smetrics.JaroWinkler(token, pattern, 0.7, 4) >= fuzzyHintThreshold {
				return true
			}
		}
	}
	return false
}

// NormalizeName lowercases an identifier, replaces punctuation with
// spaces and singularizes each token, so "Employees", "employee" and
// "EMPLOYEE_RECORDS" all expose comparable tokens.
func NormalizeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte(' ')
		}
	}

	tokens := strings.Fields(sb.String())
	for i, token := range tokens {
		tokens[i] = inflection.Singular(token)
	}
	return strings.Join(tokens, " ")
}
