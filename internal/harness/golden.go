package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/kasir/internal/record"
)

// goldenDir holds trace fixtures, relative to the test's package.
const goldenDir = "testdata/golden"

// TraceSnapshot is the golden-file form of a run: the scenario name and its
// trace, serialized as canonical JSON.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// Marshal renders the snapshot through the record data model, so empty
// event fields are dropped and every number is an integer.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	rec, err := record.From(s)
	if err != nil {
		return nil, err
	}
	return record.MarshalCanonical(rec)
}

// RunWithGolden runs scenario and compares its trace with
// testdata/golden/{scenario.Name}.golden. Regenerate fixtures with
//
//	go test ./internal/harness -update
//
// An error means the scenario could not run; a trace mismatch fails t.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace with the named fixture.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := TraceSnapshot{ScenarioName: name, Trace: result.Trace}.Marshal()
	if err != nil {
		return err
	}
	goldie.New(t,
		goldie.WithFixtureDir(goldenDir),
		goldie.WithNameSuffix(".golden"),
	).Assert(t, name, data)
	return nil
}
