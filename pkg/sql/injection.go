package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/nlq-engine/nlq-engine/pkg/models"
)

// InjectionCheckResult describes a predicate value that looked like a SQL
// injection attempt.
type InjectionCheckResult struct {
	IsSQLi      bool   // true if an injection pattern was detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Column      string // column the predicate targets
	Value       any    // the value that was checked
}

// CheckValueForInjection runs libinjection over a single predicate value.
//
// Values flow into queries as bound parameters, so an injection string
// could never execute, but a value that scans as SQL almost always means
// the literal extractor grabbed the wrong span of the question. Rejecting
// it early gives the caller a clear error instead of a garbage result.
//
// Only strings are checked; numbers, booleans and nil cannot carry
// injection patterns and return nil.
func CheckValueForInjection(column string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Column:      column,
		Value:       value,
	}
}

// CheckPredicates validates every filter value in a plan's predicate list.
// It returns one result per offending predicate, or nil when all values
// are clean.
func CheckPredicates(filters []models.FilterPredicate) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, f := range filters {
		if result := CheckValueForInjection(f.Column, f.Value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
