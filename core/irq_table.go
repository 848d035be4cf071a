package core

import "sync/atomic"

// Callback is a handler the runtime registers for a pin. Identity is the
// pointer: the same *Callback read back from a slot is the one stored.
type Callback struct {
	name string
	fn   func(gpio GPIOPin)
}

// NewCallback creates a handler. fn runs on the main context, never in an ISR.
func NewCallback(name string, fn func(gpio GPIOPin)) *Callback {
	return &Callback{name: name, fn: fn}
}

// Name returns the label given at creation
func (c *Callback) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Call invokes the handler with the pin that fired
func (c *Callback) Call(gpio GPIOPin) {
	if c == nil || c.fn == nil {
		return
	}
	c.fn(gpio)
}

// SlotState is the tag of a handler slot
type SlotState uint8

const (
	SlotUnregistered SlotState = iota
	SlotArmed
	SlotFired
)

func (s SlotState) String() string {
	switch s {
	case SlotArmed:
		return "armed"
	case SlotFired:
		return "fired"
	default:
		return "unregistered"
	}
}

// firedSlot marks a slot whose lightsleep interrupt fired and has not been
// re-armed. Never handed to a caller.
var firedSlot = &Callback{name: "<fired>"}

// handlerTable holds one handler per GPIO. Slots are only ever replaced
// with an atomic store or CAS so ISRs never wait on the main context.
type handlerTable struct {
	slots [NumGPIO]atomic.Pointer[Callback]
}

// store puts cb in the slot; nil marks it unregistered
func (t *handlerTable) store(gpio GPIOPin, cb *Callback) {
	t.slots[gpio].Store(cb)
}

// load returns the armed handler, or nil when unregistered or fired
func (t *handlerTable) load(gpio GPIOPin) *Callback {
	cb := t.slots[gpio].Load()
	if cb == firedSlot {
		return nil
	}
	return cb
}

func (t *handlerTable) state(gpio GPIOPin) SlotState {
	_, s := t.snapshot(gpio)
	return s
}

// snapshot returns the armed handler and the slot state from a single load
func (t *handlerTable) snapshot(gpio GPIOPin) (*Callback, SlotState) {
	switch cb := t.slots[gpio].Load(); cb {
	case nil:
		return nil, SlotUnregistered
	case firedSlot:
		return nil, SlotFired
	default:
		return cb, SlotArmed
	}
}

// take swaps an armed handler for the fired marker and returns it.
// Unregistered and fired slots are left alone and yield nil.
func (t *handlerTable) take(gpio GPIOPin) *Callback {
	slot := &t.slots[gpio]
	for {
		cb := slot.Load()
		if cb == nil || cb == firedSlot {
			return nil
		}
		if slot.CompareAndSwap(cb, firedSlot) {
			return cb
		}
	}
}
