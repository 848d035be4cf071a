package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// IRQEvent captures an interrupt-path event for post-mortem analysis
type IRQEvent struct {
	EventType uint8   // Event type code
	GPIO      GPIOPin // Pin involved
	Value     uint32  // Context-dependent value
}

// Event type codes
const (
	EvtArm       = 1 // set_lightsleep_irq armed a pin
	EvtDisarm    = 2 // set_lightsleep_irq disarmed a pin
	EvtFire      = 3 // lightsleep ISR handed a handler to the scheduler
	EvtSpurious  = 4 // lightsleep ISR found no handler
	EvtQueueFull = 5 // scheduler refused a deferred call
	EvtEdge      = 6 // edge ISR scheduled a handler
	EvtWake      = 7 // returned from light sleep, Value = wake cause
)

const (
	IRQRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	irqRing     [IRQRingSize]IRQEvent
	irqRingHead uint8
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Never call from interrupt context; use RecordIRQEvent there.
func DebugPrintln(msg string) {
	if inInterrupt() {
		return
	}
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordIRQEvent stores an event in the ring buffer.
// Allocation-free and safe from interrupt context.
func RecordIRQEvent(eventType uint8, gpio GPIOPin, value uint32) {
	state := disableInterrupts()
	idx := irqRingHead
	irqRing[idx] = IRQEvent{EventType: eventType, GPIO: gpio, Value: value}
	irqRingHead = (idx + 1) % IRQRingSize
	restoreInterrupts(state)
}

// IRQEvents returns the recorded events, oldest first
func IRQEvents() []IRQEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	events := make([]IRQEvent, 0, IRQRingSize)
	start := irqRingHead
	for i := uint8(0); i < IRQRingSize; i++ {
		evt := irqRing[(start+i)%IRQRingSize]
		if evt.EventType == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

// DumpIRQEvents outputs the event ring (call from the main context)
func DumpIRQEvents() {
	if !debugEnabled || debugPrintln == nil {
		return
	}

	debugPrintln("[IRQ] === Event Ring Dump ===")
	for _, evt := range IRQEvents() {
		var name string
		switch evt.EventType {
		case EvtArm:
			name = "ARM"
		case EvtDisarm:
			name = "DISARM"
		case EvtFire:
			name = "FIRE"
		case EvtSpurious:
			name = "SPURIOUS"
		case EvtQueueFull:
			name = "QUEUE_FULL!"
		case EvtEdge:
			name = "EDGE"
		case EvtWake:
			name = "WAKE"
		default:
			name = "UNKNOWN"
		}
		debugPrintln("[IRQ] " + name + " gpio=" + itoa(int(evt.GPIO)) + " v=" + itoa(int(evt.Value)))
	}
	debugPrintln("[IRQ] === End Dump ===")
}

// ClearIRQEvents clears the event ring
func ClearIRQEvents() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	for i := range irqRing {
		irqRing[i] = IRQEvent{}
	}
	irqRingHead = 0
}
