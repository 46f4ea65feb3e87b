// Package harness provides conformance testing for the traversal engine.
//
// The harness loads YAML scenarios, runs each one through the engine,
// persists the trace to an isolated in-memory store, and checks the stored
// trace against the scenario's expectations and assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: three_positions
//	description: "Inclusive bound over three lines"
//	config: { start: 1, max: 3 }
//	expect:
//	  reason: BOUND_EXCEEDED
//	  events:
//	    - { phase: crawl, position: 1 }
//	    - { phase: analyze, position: 1 }
//	assertions:
//	  - type: trace_count
//	    phase: crawl
//	    count: 3
//	  - type: alternation
//
// Expected events are compared in order, with seq implied by the index.
//
// # Assertion Types
//
//   - trace_count: a phase appears exactly count times
//   - trace_order: the trace starts with the listed phases
//   - alternation: phases strictly alternate, starting with crawl
//   - reason: the run terminated with the given reason
//   - last_position: the final event is at the given position
//   - seq_contiguous: seq numbers run 0, 1, 2, ... without gaps
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID (scenario.run_id, or one derived
// from the name) and a fresh in-memory SQLite database, so identical
// scenarios produce byte-identical golden snapshots.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/three_positions.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range result.Errors {
//	    log.Println(e)
//	}
package harness
