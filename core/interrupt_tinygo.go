//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts and returns the previous state.
// Nesting inside an ISR is allowed.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}

// inInterrupt reports whether the caller runs in interrupt context
func inInterrupt() bool {
	return interrupt.In()
}
