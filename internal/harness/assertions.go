package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/store"
)

// AssertionError describes a failed assertion. Trace, when set, is printed
// below the expected and actual lines.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	b.WriteString("Assertion failed: " + e.Type + "\n")
	b.WriteString("  Expected: " + e.Expected + "\n")
	b.WriteString("  Actual: " + e.Actual + "\n")
	if len(e.Trace) == 0 {
		return b.String()
	}
	b.WriteString("\nFull trace:\n")
	n := 0
	for _, ev := range e.Trace {
		if ev.Type != EventInvocation {
			continue
		}
		n++
		fmt.Fprintf(&b, "  [%d] %s %v\n", n, ev.Action, ev.Args)
	}
	return b.String()
}

func traceFailure(kind, expected, actual string, trace []TraceEvent) *AssertionError {
	return &AssertionError{Type: kind, Expected: expected, Actual: actual, Trace: trace}
}

func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want, err := canonicalMap(assertion.Args)
	if err != nil {
		return fmt.Errorf("trace_contains: args: %w", err)
	}
	for _, ev := range invocations(trace) {
		if ev.Action == assertion.Action && matchArgs(ev.Args, want) {
			return nil
		}
	}
	return traceFailure(AssertTraceContains,
		fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		"not found in trace", trace)
}

// assertTraceOrder compares first occurrences. Other actions may sit
// between the listed ones.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	first := make(map[string]int)
	for i, ev := range invocations(trace) {
		if _, seen := first[ev.Action]; !seen {
			first[ev.Action] = i + 1
		}
	}

	for _, action := range assertion.Actions {
		if _, ok := first[action]; !ok {
			return traceFailure(AssertTraceOrder,
				fmt.Sprintf("all actions present: %v", assertion.Actions),
				"missing action: "+action, trace)
		}
	}
	for i := 1; i < len(assertion.Actions); i++ {
		prev, next := assertion.Actions[i-1], assertion.Actions[i]
		if first[prev] < first[next] {
			continue
		}
		return traceFailure(AssertTraceOrder,
			fmt.Sprintf("actions in order: %v", assertion.Actions),
			fmt.Sprintf("%s (pos %d) should be before %s (pos %d)", prev, first[prev], next, first[next]),
			trace)
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	got := 0
	for _, ev := range invocations(trace) {
		if ev.Action == assertion.Action {
			got++
		}
	}
	if got == assertion.Count {
		return nil
	}
	return traceFailure(AssertTraceCount,
		fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
		fmt.Sprintf("%d occurrences", got), trace)
}

// assertFinalState checks that exactly one record in the collection matches
// Where and that it carries the expected field values (subset semantics).
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	where, err := wherePredicates(assertion.Where)
	if err != nil {
		return err
	}
	expected, err := canonicalMap(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state: expect: %w", err)
	}

	var matches []record.Record
	for rec, err := range st.Query(ctx, store.Query{Collection: assertion.Table, Where: where, Limit: 2}) {
		if err != nil {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("query collection %s", assertion.Table),
				Actual:   fmt.Sprintf("query error: %v", err),
			}
		}
		matches = append(matches, rec)
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(matches) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("record in %s where %s", assertion.Table, whereDesc),
			Actual:   "record not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one record in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple records matched (assertion is ambiguous)",
		}
	}

	actual := map[string]any(matches[0])
	for _, key := range sortedKeys(expected) {
		actualValue, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in record %s", key, matches[0].ID()),
			}
		}
		if !valuesEqual(actualValue, expected[key]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expected[key], expected[key]),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// assertRowCount checks the number of records in the collection matching Where.
func assertRowCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	where, err := wherePredicates(assertion.Where)
	if err != nil {
		return err
	}
	n, err := st.Count(ctx, store.Query{Collection: assertion.Table, Where: where})
	if err != nil {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("count collection %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if n != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d records in %s where %s", assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d records", n),
		}
	}
	return nil
}

// wherePredicates turns a where map into equality predicates. Keys are
// sorted for deterministic query generation; the store validates field names.
func wherePredicates(where map[string]any) ([]store.Predicate, error) {
	canon, err := canonicalMap(where)
	if err != nil {
		return nil, fmt.Errorf("where: %w", err)
	}
	preds := make([]store.Predicate, 0, len(canon))
	for _, key := range sortedKeys(canon) {
		preds = append(preds, store.Equals{Field: key, Value: canon[key]})
	}
	return preds, nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func canonicalMap(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	v, err := canonical(m)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// matchArgs checks if actual contains all expected keys (subset match).
// Both sides must already be canonical. Extra keys in actual are ignored.
func matchArgs(actual any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}

	actualMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}

	for key, expectedVal := range expected {
		actualVal, exists := actualMap[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two canonical values, including nested maps and slices.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return reflect.DeepEqual(actual, expected)
}

// EvaluateAssertions evaluates all assertions against the result and the
// final store state. Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, st *store.Store, result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if st == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a store", i)
			} else {
				err = assertFinalState(ctx, st, assertion)
			}
		case AssertRowCount:
			if st == nil {
				err = fmt.Errorf("assertion[%d]: row_count requires a store", i)
			} else {
				err = assertRowCount(ctx, st, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
