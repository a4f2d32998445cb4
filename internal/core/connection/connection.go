// Package connection owns endpoint selection and the connection state machine.
//
// # State Machine
//
// Only the following transitions are allowed:
//
//	CONNECTING   → CONNECTED | ERROR
//	CONNECTED    → RECONNECTING
//	RECONNECTING → CONNECTED | DISCONNECTED
//	DISCONNECTED → CONNECTING   (manual retry)
//	ERROR        → CONNECTING   (manual retry)
//
// No state is terminal: Retry always leads back to CONNECTING.
//
// # Quick Start
//
//	registry, _ := connection.NewRegistry(urls, connection.DefaultPolicy())
//	machine := connection.NewMachine(connection.NewSelector(connection.SelectSticky), 3)
//
//	// Feed sweep results into the machine
//	outcome := machine.Evaluate(results)
//	if outcome.Status == domain.StatusConnected {
//	    log.Printf("using %s", outcome.Endpoint)
//	}
//
// # Package Structure
//
//   - state.go     - Valid transitions and transition records
//   - registry.go  - Ordered endpoint list and health-check policy
//   - selection.go - Endpoint selection policies
//   - machine.go   - Machine reacting to sweep results
//   - history.go   - Bounded transition history
package connection
