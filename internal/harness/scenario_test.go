package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioDir holds the till scenarios, relative to this package.
const scenarioDir = "../../testdata/scenarios"

func TestScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join(scenarioDir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "file name and scenario name should agree")

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
			assert.NotEmpty(t, result.Trace)
		})
	}
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Test scenario for validation"
now: "2024-06-01T08:30:00+07:00"
cashier: kasir-7
setup:
  - action: seed
    args:
      collection: products
      record: {id: p1, name: Kopi, price: 10000}
flow:
  - invoke: cart.add
    args:
      product: p1
    expect:
      case: ok
      result:
        subtotal: 10000
assertions:
  - type: trace_contains
    action: cart.add
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "kasir-7", scenario.cashier())
	assert.Len(t, scenario.Setup, 1)
	require.Len(t, scenario.Flow, 1)
	assert.Equal(t, "cart.add", scenario.Flow[0].Invoke)
	assert.Equal(t, "p1", scenario.Flow[0].Args["product"])
	assert.Equal(t, 10000, scenario.Flow[0].Expect.Result["subtotal"])

	start, err := scenario.startTime()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T01:30:00Z", start.UTC().Format("2006-01-02T15:04:05Z07:00"))
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestScenarioDefaults(t *testing.T) {
	s := &Scenario{}
	start, err := s.startTime()
	require.NoError(t, err)
	assert.Equal(t, DefaultNow, start)
	assert.Equal(t, DefaultCashier, s.cashier())
}

func TestParseScenario_Invalid(t *testing.T) {
	const flow = `
flow:
  - invoke: cart.clear
    args: {}
`
	const assertions = `
assertions:
  - type: trace_contains
    action: cart.clear
`
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown top-level field",
			yaml:    "name: x\ndescription: y\nassertion: []\n" + flow + assertions,
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: y\n" + flow + assertions,
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\n" + flow + assertions,
			wantErr: "description is required",
		},
		{
			name:    "bad now",
			yaml:    "name: x\ndescription: y\nnow: yesterday\n" + flow + assertions,
			wantErr: "now:",
		},
		{
			name:    "empty flow",
			yaml:    "name: x\ndescription: y\nflow: []\n" + assertions,
			wantErr: "flow list is required",
		},
		{
			name:    "empty assertions",
			yaml:    "name: x\ndescription: y\n" + flow + "assertions: []\n",
			wantErr: "assertions list is required",
		},
		{
			name: "unknown flow action",
			yaml: `name: x
description: y
flow:
  - invoke: cart.explode
    args: {}
` + assertions,
			wantErr: `flow[0]: unknown action "cart.explode"`,
		},
		{
			name: "unknown setup action",
			yaml: `name: x
description: y
setup:
  - action: db.drop
    args: {}
` + flow + assertions,
			wantErr: `setup[0]: unknown action "db.drop"`,
		},
		{
			name: "missing args",
			yaml: `name: x
description: y
flow:
  - invoke: cart.clear
` + assertions,
			wantErr: "flow[0]: args is required",
		},
		{
			name: "expect without case",
			yaml: `name: x
description: y
flow:
  - invoke: cart.clear
    args: {}
    expect:
      result: {total: 0}
` + assertions,
			wantErr: "flow[0].expect: case is required",
		},
		{
			name: "unknown assertion type",
			yaml: "name: x\ndescription: y\n" + flow + `
assertions:
  - type: eventually
`,
			wantErr: `unknown assertion type "eventually"`,
		},
		{
			name: "final_state without expect",
			yaml: "name: x\ndescription: y\n" + flow + `
assertions:
  - type: final_state
    table: products
`,
			wantErr: "expect is required for final_state",
		},
		{
			name: "row_count without table",
			yaml: "name: x\ndescription: y\n" + flow + `
assertions:
  - type: row_count
    count: 1
`,
			wantErr: "table is required for row_count",
		},
		{
			name: "trace_order without actions",
			yaml: "name: x\ndescription: y\n" + flow + `
assertions:
  - type: trace_order
`,
			wantErr: "actions list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
