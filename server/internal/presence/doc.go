// Package presence implements the presence state machine for tracked values.
//
// Store is the mutex-guarded map from tracked value to its last-seen time.
// A record exists for a value if and only if the value is present.
//
// Tracker drives the two transitions:
//
//	ABSENT  --Observe (first match)-->  PRESENT   emits HOME
//	PRESENT --Observe (repeat match)--> PRESENT   refreshes LastSeen
//	PRESENT --Sweep (age >= window)-->  ABSENT    emits AWAY
//
// Observe is called once per inbound event and may run concurrently from many
// goroutines. Sweep is called by a single ticker goroutine (Tracker.Run).
// The store lock covers only the map mutation; counters and notifications run
// after it is released, and notification failures are logged, never returned.
package presence
