package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartDiscountCommit() *Scenario {
	return &Scenario{
		Name:        "cart_discount_commit",
		Description: "Two units with a manual discount, paid in cash",
		Setup: []ActionStep{
			{
				Action: "seed",
				Args: map[string]any{
					"collection": "products",
					"record": map[string]any{
						"id":        "p1",
						"name":      "Teh",
						"price":     8000,
						"stock":     5,
						"min_stock": 1,
						"is_active": true,
					},
				},
			},
		},
		Flow: []FlowStep{
			{Invoke: "cart.add", Args: map[string]any{"product": "p1", "quantity": 2}},
			{Invoke: "cart.set_discount", Args: map[string]any{"amount": 1000}},
			{Invoke: "checkout.commit", Args: map[string]any{"payment_amount": 20000}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Table: "products", Where: map[string]any{"id": "p1"}, Expect: map[string]any{"stock": 3}},
		},
	}
}

// To regenerate golden files, run:
//
//	go test ./internal/harness -run Golden -update
func TestRunWithGolden_CartDiscountCommit(t *testing.T) {
	result, err := RunWithGolden(t, cartDiscountCommit())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertGolden_FromResult(t *testing.T) {
	result, err := Run(cartDiscountCommit())
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "cart_discount_commit", result))
}

func TestCanonicalJSONDeterminism(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "determinism",
		Trace: []TraceEvent{
			{Type: "invocation", Action: "cart.add", Args: map[string]any{"quantity": int64(1), "product": "p1"}, Seq: 1},
			{Type: "completion", OutputCase: CaseOK, Seq: 2},
		},
	}

	first, err := snapshot.Marshal()
	require.NoError(t, err)
	for range 10 {
		again, err := snapshot.Marshal()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t,
		`{"scenario_name":"determinism","trace":[{"action":"cart.add","args":{"product":"p1","quantity":1},"seq":1,"type":"invocation"},{"output_case":"ok","seq":2,"type":"completion"}]}`,
		string(first))
}

func TestTraceSnapshot_RejectsFloats(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "floats",
		Trace:        []TraceEvent{{Type: "completion", OutputCase: CaseOK, Result: map[string]any{"total": 1.5}, Seq: 1}},
	}
	_, err := snapshot.Marshal()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-integer number 1.5")
}
