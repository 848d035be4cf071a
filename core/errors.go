package core

import "errors"

var (
	// ErrInvalidArgument is the class of all caller argument errors
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidPin is returned when a pin argument is neither a GPIO number
	// nor a pin handle, or is out of range
	ErrInvalidPin = &argError{msg: "expecting a pin or integer pin number"}

	// ErrOutOfRange is returned when a wire argument does not fit the
	// enumeration it selects from
	ErrOutOfRange = &argError{msg: "argument out of range"}

	// ErrDriver is the class of all errors reported by the hardware driver
	ErrDriver = errors.New("driver error")
)

type argError struct {
	msg string
}

func (e *argError) Error() string        { return e.msg }
func (e *argError) Is(target error) bool { return target == ErrInvalidArgument }

// ESP-IDF esp_err_t values the drivers report
const (
	ESP_OK                = 0
	ESP_FAIL              = -1
	ESP_ERR_NO_MEM        = 0x101
	ESP_ERR_INVALID_ARG   = 0x102
	ESP_ERR_INVALID_STATE = 0x103
	ESP_ERR_INVALID_SIZE  = 0x104
	ESP_ERR_NOT_FOUND     = 0x105
	ESP_ERR_NOT_SUPPORTED = 0x106
	ESP_ERR_TIMEOUT       = 0x107
)

// DriverError is a non-success status from an underlying driver call.
// The status code is kept as-is.
type DriverError struct {
	Op   string // Driver call that failed, e.g. "gpio_wakeup_enable"
	Code int32  // esp_err_t
}

func (e *DriverError) Error() string {
	if e.Code < 0 {
		return e.Op + ": " + errName(e.Code) + " (" + itoa(int(e.Code)) + ")"
	}
	return e.Op + ": " + errName(e.Code) + " (" + hex32(uint32(e.Code)) + ")"
}

// Is reports whether target is the ErrDriver class
func (e *DriverError) Is(target error) bool {
	return target == ErrDriver
}

// CheckErr converts an esp_err_t into an error, nil for ESP_OK
func CheckErr(op string, code int32) error {
	if code == ESP_OK {
		return nil
	}
	return &DriverError{Op: op, Code: code}
}

func errName(code int32) string {
	switch code {
	case ESP_FAIL:
		return "ESP_FAIL"
	case ESP_ERR_NO_MEM:
		return "ESP_ERR_NO_MEM"
	case ESP_ERR_INVALID_ARG:
		return "ESP_ERR_INVALID_ARG"
	case ESP_ERR_INVALID_STATE:
		return "ESP_ERR_INVALID_STATE"
	case ESP_ERR_INVALID_SIZE:
		return "ESP_ERR_INVALID_SIZE"
	case ESP_ERR_NOT_FOUND:
		return "ESP_ERR_NOT_FOUND"
	case ESP_ERR_NOT_SUPPORTED:
		return "ESP_ERR_NOT_SUPPORTED"
	case ESP_ERR_TIMEOUT:
		return "ESP_ERR_TIMEOUT"
	default:
		return "esp_err"
	}
}
