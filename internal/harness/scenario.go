package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one till session written as YAML: a clock start, setup
// steps that must succeed, a flow of steps with optional expectations, and
// assertions over the trace and the stored records.
type Scenario struct {
	Name        string       `yaml:"name"` // also the golden file name
	Description string       `yaml:"description"`
	Now         string       `yaml:"now,omitempty"`     // RFC 3339; empty means DefaultNow
	Cashier     string       `yaml:"cashier,omitempty"` // empty means DefaultCashier
	Setup       []ActionStep `yaml:"setup,omitempty"`
	Flow        []FlowStep   `yaml:"flow"`
	Assertions  []Assertion  `yaml:"assertions"`
}

var (
	DefaultNow     = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	DefaultCashier = "kasir-1"
)

type ActionStep struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args"`
}

// FlowStep invokes one action. A nil Expect means the step must succeed.
type FlowStep struct {
	Invoke string         `yaml:"invoke"`
	Args   map[string]any `yaml:"args"`
	Expect *ExpectClause  `yaml:"expect,omitempty"`
}

// ExpectClause names the outcome of a step: CaseOK or a domain error code.
// Result fields are matched as a subset of the step's result.
type ExpectClause struct {
	Case   string         `yaml:"case"`
	Result map[string]any `yaml:"result,omitempty"`
}

const CaseOK = "ok"

// Assertion checks the trace or the store once the flow has finished.
// Which fields apply depends on Type.
type Assertion struct {
	Type    string         `yaml:"type"`
	Action  string         `yaml:"action,omitempty"`
	Args    map[string]any `yaml:"args,omitempty"`
	Table   string         `yaml:"table,omitempty"`
	Where   map[string]any `yaml:"where,omitempty"`
	Expect  map[string]any `yaml:"expect,omitempty"`
	Count   int            `yaml:"count,omitempty"`
	Actions []string       `yaml:"actions,omitempty"`
}

const (
	AssertTraceContains = "trace_contains" // Action, optional Args
	AssertTraceOrder    = "trace_order"    // Actions
	AssertTraceCount    = "trace_count"    // Action, Count
	AssertFinalState    = "final_state"    // Table, Where, Expect
	AssertRowCount      = "row_count"      // Table, optional Where, Count
)

// LoadScenario reads and validates the scenario at path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML. Unknown keys are rejected so a
// misspelled section fails loudly instead of being skipped.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func (s *Scenario) startTime() (time.Time, error) {
	if s.Now == "" {
		return DefaultNow, nil
	}
	t, err := time.Parse(time.RFC3339, s.Now)
	if err != nil {
		return time.Time{}, fmt.Errorf("now: %w", err)
	}
	return t, nil
}

func (s *Scenario) cashier() string {
	if s.Cashier == "" {
		return DefaultCashier
	}
	return s.Cashier
}

func (s *Scenario) validate() error {
	switch {
	case s.Name == "":
		return errors.New("name is required")
	case s.Description == "":
		return errors.New("description is required")
	case len(s.Flow) == 0:
		return errors.New("flow list is required and must be non-empty")
	case len(s.Assertions) == 0:
		return errors.New("assertions list is required and must be non-empty")
	}
	if _, err := s.startTime(); err != nil {
		return err
	}

	for i, step := range s.Setup {
		if err := checkStep(fmt.Sprintf("setup[%d]", i), step.Action, step.Args); err != nil {
			return err
		}
	}
	for i, step := range s.Flow {
		at := fmt.Sprintf("flow[%d]", i)
		if err := checkStep(at, step.Invoke, step.Args); err != nil {
			return err
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("%s.expect: case is required", at)
		}
	}
	for i := range s.Assertions {
		if err := s.Assertions[i].validate(); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func checkStep(at, action string, args map[string]any) error {
	switch {
	case action == "":
		return fmt.Errorf("%s: action is required", at)
	case !knownAction(action):
		return fmt.Errorf("%s: unknown action %q", at, action)
	case args == nil:
		return fmt.Errorf("%s: args is required (use {} when there are none)", at)
	}
	return nil
}

func (a *Assertion) validate() error {
	need := func(ok bool, what string) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%s is required for %s", what, a.Type)
	}

	switch a.Type {
	case "":
		return errors.New("type is required")
	case AssertTraceContains:
		return need(a.Action != "", "action")
	case AssertTraceOrder:
		return need(len(a.Actions) > 0, "actions list")
	case AssertTraceCount:
		if err := need(a.Action != "", "action"); err != nil {
			return err
		}
	case AssertFinalState:
		if err := need(a.Table != "", "table"); err != nil {
			return err
		}
		return need(len(a.Expect) > 0, "expect")
	case AssertRowCount:
		if err := need(a.Table != "", "table"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("count must be non-negative for %s", a.Type)
	}
	return nil
}
