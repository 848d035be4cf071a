package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// NumGPIO is the number of GPIO pads on the ESP32-S2 (GPIO0-GPIO46)
const NumGPIO = 47

// PinHandle is an opaque pin capability owned by the pin subsystem.
// It only needs to report which pad it drives.
type PinHandle interface {
	GPIO() GPIOPin
}

type pinKind uint8

const (
	pinNone pinKind = iota
	pinRaw
	pinHandle
)

// Pin is a pin argument as received from a caller: either a raw GPIO number
// or a pin handle. The zero value is not a valid pin.
type Pin struct {
	kind   pinKind
	num    int
	handle PinHandle
}

// RawPin wraps an integer GPIO number.
func RawPin(n int) Pin {
	return Pin{kind: pinRaw, num: n}
}

// HandlePin wraps a pin handle.
func HandlePin(h PinHandle) Pin {
	return Pin{kind: pinHandle, handle: h}
}

// ResolvePin turns a pin argument into a hardware GPIO number.
func ResolvePin(p Pin) (GPIOPin, error) {
	var n int
	switch p.kind {
	case pinRaw:
		n = p.num
	case pinHandle:
		if p.handle == nil {
			return 0, ErrInvalidPin
		}
		n = int(p.handle.GPIO())
	default:
		return 0, ErrInvalidPin
	}
	if n < 0 || n >= NumGPIO {
		return 0, ErrInvalidPin
	}
	return GPIOPin(n), nil
}

// PinNumber returns the integer GPIO number a pin argument resolves to
func PinNumber(p Pin) (int, error) {
	gpio, err := ResolvePin(p)
	if err != nil {
		return 0, err
	}
	return int(gpio), nil
}
