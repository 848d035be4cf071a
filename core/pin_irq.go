package core

// PinTrigger selects the edge for a plain pin interrupt
type PinTrigger uint8

const (
	PinRising  PinTrigger = PinTrigger(IntrPosEdge)
	PinFalling PinTrigger = PinTrigger(IntrNegEdge)
	PinToggle  PinTrigger = PinTrigger(IntrAnyEdge)
)

// SetPinIRQ registers cb as the pin's edge interrupt handler, the way the
// general pin subsystem does. It uses the same slot as SetLightsleepIRQ, so
// either call replaces whatever the other registered. Unlike the lightsleep
// path the interrupt stays enabled and the slot keeps cb after each firing.
// A nil cb removes the handler and disables the interrupt.
func (b *Bridge) SetPinIRQ(pin Pin, trigger PinTrigger, cb *Callback) error {
	gpio, err := ResolvePin(pin)
	if err != nil {
		return err
	}
	if cb != nil {
		switch trigger {
		case PinRising, PinFalling, PinToggle:
		default:
			return ErrInvalidArgument
		}
	}

	if err := b.drv.ISRHandlerRemove(gpio); err != nil {
		return err
	}

	if cb == nil {
		b.handlers.store(gpio, nil)
		return b.drv.SetIntrType(gpio, IntrDisable)
	}

	b.handlers.store(gpio, cb)
	if err := b.drv.SetIntrType(gpio, IntrType(trigger)); err != nil {
		return err
	}
	return b.drv.ISRHandlerAdd(gpio, b.edgeISR)
}

// handleEdgeIRQ runs in interrupt context
func (b *Bridge) handleEdgeIRQ(gpio GPIOPin) {
	cb := b.handlers.load(gpio)
	if cb == nil {
		return
	}
	if b.sched.Schedule(cb, gpio) {
		RecordIRQEvent(EvtEdge, gpio, 0)
	} else {
		RecordIRQEvent(EvtQueueFull, gpio, 0)
	}
	b.sched.WakeMainTask()
}
