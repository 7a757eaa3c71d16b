package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/kasir/internal/cart"
	"github.com/roach88/kasir/internal/checkout"
	"github.com/roach88/kasir/internal/discount"
	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/ident"
	"github.com/roach88/kasir/internal/inventory"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/shift"
	"github.com/roach88/kasir/internal/store"
	"github.com/roach88/kasir/internal/syncer"
	"github.com/roach88/kasir/internal/testutil"
)

// CaseError is the output case of a step that failed without a domain code.
const CaseError = "ERROR"

// Harness is the scenario execution environment: one till with its cart,
// services, remote and connectivity flag.
type Harness struct {
	store     *store.Store
	clock     *testutil.DeterministicClock
	cashier   string
	cart      *cart.Cart
	code      string // discount code applied to the cart
	committer *checkout.Committer
	resolver  *discount.Resolver
	shifts    *shift.Manager
	inventory *inventory.Service
	processor *syncer.Processor
	remote    *MemoryRemote
	conn      *syncer.Flag
	logger    *slog.Logger
	seq       int64
}

// Run executes a scenario against a fresh in-memory database and returns
// the result. An error means the scenario could not be executed at all;
// failed expectations and assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(st, scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range EvaluateAssertions(ctx, st, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(st *store.Store, scenario *Scenario) (*Harness, error) {
	start, err := scenario.startTime()
	if err != nil {
		return nil, err
	}

	clock := testutil.NewDeterministicClock(start)
	ids := testutil.NewSequenceGenerator("id")
	codes := ident.Codes{Rand: testutil.ZeroReader{}, Location: time.UTC}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	shifts := shift.NewManager(st,
		shift.WithIDGenerator(ids),
		shift.WithClock(clock),
		shift.WithLogger(logger),
	)
	inv := inventory.NewService(st,
		inventory.WithIDGenerator(ids),
		inventory.WithClock(clock),
		inventory.WithLocation(time.UTC),
		inventory.WithLogger(logger),
	)
	remote := NewMemoryRemote()

	return &Harness{
		store:   st,
		clock:   clock,
		cashier: scenario.cashier(),
		cart:    cart.New(),
		committer: checkout.NewCommitter(st,
			checkout.WithShifts(shifts),
			checkout.WithInventory(inv),
			checkout.WithIDGenerator(ids),
			checkout.WithCodes(codes),
			checkout.WithClock(clock),
			checkout.WithLocation(time.UTC),
			checkout.WithLogger(logger),
		),
		resolver: discount.NewResolver(st,
			discount.WithClock(clock),
			discount.WithLocation(time.UTC),
			discount.WithLogger(logger),
		),
		shifts:    shifts,
		inventory: inv,
		processor: syncer.NewProcessor(st, remote,
			syncer.WithConfig(syncer.Config{
				MaxRetries:  3,
				BaseBackoff: time.Minute,
				MaxBackoff:  time.Hour,
			}),
			syncer.WithClock(clock),
			syncer.WithRand(func() float64 { return 0.5 }),
			syncer.WithLogger(logger),
		),
		remote: remote,
		conn:   syncer.NewFlag(true),
		logger: logger,
	}, nil
}

// executeSetup runs all setup steps. Any failure aborts the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		outcome, _, err := h.step(ctx, step.Action, step.Args, result)
		if err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		if outcome != CaseOK {
			return fmt.Errorf("setup step %d (%s): failed with %s", i, step.Action, outcome)
		}
	}
	return nil
}

// executeFlow runs all flow steps and validates their expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		outcome, got, err := h.step(ctx, step.Invoke, step.Args, result)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		want := &ExpectClause{Case: CaseOK}
		if step.Expect != nil {
			want = step.Expect
		}
		if outcome != want.Case {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Invoke, want.Case, outcome))
			continue
		}
		if want.Result != nil {
			expected, err := canonical(want.Result)
			if err != nil {
				return fmt.Errorf("flow step %d: expected result: %w", i, err)
			}
			if !matchArgs(got, expected.(map[string]any)) {
				result.AddError(fmt.Sprintf("flow[%d] %s: result %v does not match expected %v", i, step.Invoke, got, expected))
			}
		}

		h.logger.Info("flow step completed", "step", i, "action", step.Invoke, "output_case", outcome)
	}
	return nil
}

// step runs one action and records it in the trace. A refused action is an
// outcome, not an error; err is reserved for malformed steps.
func (h *Harness) step(ctx context.Context, action string, args map[string]any, result *Result) (string, any, error) {
	fn, ok := actions[action]
	if !ok {
		return "", nil, fmt.Errorf("unknown action %q", action)
	}
	traceArgs, err := canonical(args)
	if err != nil {
		return "", nil, fmt.Errorf("%s: args: %w", action, err)
	}

	h.seq++
	result.AddInvocationTrace(action, traceArgs, h.seq)

	out, runErr := fn(ctx, h, args)
	var argErr *argError
	if asArgError(runErr, &argErr) {
		return "", nil, fmt.Errorf("%s: %w", action, runErr)
	}

	outcome := CaseOK
	var got any
	if runErr != nil {
		outcome = domain.CodeOf(runErr)
		if outcome == "" {
			outcome = CaseError
		}
	} else if out != nil {
		if got, err = canonical(out); err != nil {
			return "", nil, fmt.Errorf("%s: result: %w", action, err)
		}
	}

	h.seq++
	result.AddCompletionTrace(outcome, got, h.seq)
	return outcome, got, nil
}

// canonical normalizes v to the JSON data model the store uses: maps,
// slices, strings, bools and int64.
func canonical(v any) (any, error) {
	r, err := record.From(map[string]any{"v": v})
	if err != nil {
		return nil, err
	}
	return r["v"], nil
}
