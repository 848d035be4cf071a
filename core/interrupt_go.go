//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// Simulated ISRs run on their own goroutines, so "interrupts off" is a lock
var irqMu sync.Mutex

// disableInterrupts excludes simulated ISRs. Not reentrant.
func disableInterrupts() State {
	irqMu.Lock()
	return 0
}

// restoreInterrupts re-admits simulated ISRs
func restoreInterrupts(state State) {
	_ = state
	irqMu.Unlock()
}

// inInterrupt is always false on regular Go
func inInterrupt() bool {
	return false
}
