//go:build esp32s2 && tinygo

package main

import "machine"

// InitUSB configures the USB CDC-ACM console the host tool talks to
func InitUSB() {
	// machine.Serial is the TinyUSB CDC interface on this target
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// USBAvailable returns the number of bytes available to read from USB
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads a single byte from USB
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes writes multiple bytes to USB
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}

// debugWrite sends debug text to the ROM console UART so it never mixes
// with protocol frames on USB
func debugWrite(s string) {
	machine.DefaultUART.Write([]byte(s))
	machine.DefaultUART.Write([]byte("\r\n"))
}
