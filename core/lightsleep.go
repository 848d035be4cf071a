package core

// Bridge owns the per-pin handler table and forwards peripheral control to
// the platform driver. There is one Bridge per firmware image; the lightsleep
// wake path and the edge-interrupt path share its table.
type Bridge struct {
	drv      Driver
	sched    *Scheduler
	handlers handlerTable

	lightsleepISR ISRFunc
	edgeISR       ISRFunc
}

// NewBridge creates a bridge over drv that defers handlers to sched
func NewBridge(drv Driver, sched *Scheduler) *Bridge {
	b := &Bridge{drv: drv, sched: sched}
	// Bound once so installing an ISR never allocates a closure
	b.lightsleepISR = b.handleLightsleepIRQ
	b.edgeISR = b.handleEdgeIRQ
	return b
}

// Scheduler returns the scheduler the bridge defers handlers to
func (b *Bridge) Scheduler() *Scheduler {
	return b.sched
}

// SetLightsleepIRQ arms pin as a level-triggered light-sleep wake source
// whose interrupt runs cb on the main context. level 0 wakes on low, any
// other value on high. A nil cb disarms the pin.
//
// After cb is scheduled the pin is left disarmed: interrupt and wake source
// are disabled and the slot reads as empty. cb decides whether to call
// SetLightsleepIRQ again.
//
// Driver failures abort the remaining steps and are returned as-is; steps
// already done are not undone.
func (b *Bridge) SetLightsleepIRQ(pin Pin, level int, cb *Callback) error {
	gpio, err := ResolvePin(pin)
	if err != nil {
		return err
	}

	// Also disables the interrupt
	if err := b.drv.ISRHandlerRemove(gpio); err != nil {
		return err
	}

	if cb == nil {
		b.handlers.store(gpio, nil)
		RecordIRQEvent(EvtDisarm, gpio, 0)
		DebugPrintln("[lightsleep] disarm gpio=" + itoa(int(gpio)))
		return b.drv.WakeupDisable(gpio)
	}

	// Must be visible before the interrupt can be enabled below
	b.handlers.store(gpio, cb)

	trigger := IntrLowLevel
	if level != 0 {
		trigger = IntrHighLevel
	}
	// Sets the interrupt type too; the interrupt stays disabled
	if err := b.drv.WakeupEnable(gpio, trigger); err != nil {
		return err
	}

	if err := b.drv.ISRHandlerAdd(gpio, b.lightsleepISR); err != nil {
		return err
	}

	RecordIRQEvent(EvtArm, gpio, uint32(trigger))
	DebugPrintln("[lightsleep] arm gpio=" + itoa(int(gpio)) + " handler=" + cb.Name())
	return nil
}

// handleLightsleepIRQ runs in interrupt context
func (b *Bridge) handleLightsleepIRQ(gpio GPIOPin) {
	// The trigger is level-sensitive: left enabled it refires for as long as
	// the level holds and the interrupt watchdog resets the chip.
	_ = b.drv.IntrDisable(gpio)

	// Sleep sensing stays on; the pad can still wake the chip, it just
	// won't reach this ISR.
	_ = b.drv.WakeupDisable(gpio)

	cb := b.handlers.take(gpio)
	if cb == nil {
		RecordIRQEvent(EvtSpurious, gpio, 0)
		return
	}

	if !b.sched.Schedule(cb, gpio) {
		RecordIRQEvent(EvtQueueFull, gpio, 0)
	} else {
		RecordIRQEvent(EvtFire, gpio, 0)
	}
	b.sched.WakeMainTask()
}

// InterruptEnable turns the pin's hardware interrupt on or off. The handler
// slot and the wake configuration are not touched.
func (b *Bridge) InterruptEnable(pin Pin, enable bool) error {
	gpio, err := ResolvePin(pin)
	if err != nil {
		return err
	}
	if enable {
		return b.drv.IntrEnable(gpio)
	}
	return b.drv.IntrDisable(gpio)
}

// GetIRQHandler returns the handler registered for pin, or nil when none is
// registered or its lightsleep interrupt already fired
func (b *Bridge) GetIRQHandler(pin Pin) (*Callback, error) {
	gpio, err := ResolvePin(pin)
	if err != nil {
		return nil, err
	}
	return b.handlers.load(gpio), nil
}

// SlotState reports the tag of the pin's handler slot
func (b *Bridge) SlotState(pin Pin) (SlotState, error) {
	gpio, err := ResolvePin(pin)
	if err != nil {
		return SlotUnregistered, err
	}
	return b.handlers.state(gpio), nil
}
