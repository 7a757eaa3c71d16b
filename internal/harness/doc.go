// Package harness runs end-to-end till scenarios written in YAML.
//
// A scenario seeds the local store, then drives the cart, discount
// resolver, checkout committer, shift manager, stock service and sync
// processor through a sequence of steps, checking each step's outcome and
// finally asserting on the trace and on stored records.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	now: "2024-03-15T10:00:00Z"
//	setup:
//	  - action: seed
//	    args: { collection: products, record: { id: p1, price: 10000 } }
//	flow:
//	  - invoke: cart.add
//	    args: { product: p1 }
//	    expect:
//	      case: ok
//	      result: { subtotal: 10000 }
//	assertions:
//	  - type: trace_contains
//	    action: cart.add
//	    args: { product: p1 }
//	  - type: final_state
//	    table: products
//	    where: { id: p1 }
//	    expect: { stock: 9 }
//
// An expect case is "ok" for success or the domain error code the step
// must fail with (for example INSUFFICIENT_PAYMENT). Result matching is a
// subset match after canonical JSON normalization.
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: exactly one stored record matches where and has expect
//   - row_count: the number of stored records matching where
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite database with a
// deterministic clock, sequential ids and zero randomness, so traces are
// byte-identical across runs and can be compared with golden files.
package harness
