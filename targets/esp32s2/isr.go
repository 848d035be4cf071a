//go:build esp32s2 && tinygo

package main

import (
	"unsafe"

	"tidal/core"
)

var (
	// Written only while the pin's handler is uninstalled
	isrFuncs [core.NumGPIO]core.ISRFunc

	shutdownFuncs []func()
)

// tidalGPIOISR is the C handler IDF calls for every armed pin. arg carries
// the GPIO number.
//
//export tidal_gpio_isr
func tidalGPIOISR(arg unsafe.Pointer) {
	gpio := core.GPIOPin(uintptr(arg))
	if int(gpio) >= core.NumGPIO {
		return
	}
	if fn := isrFuncs[gpio]; fn != nil {
		fn(gpio)
	}
}

//export tidal_shutdown
func tidalShutdown() {
	for _, fn := range shutdownFuncs {
		fn()
	}
}
