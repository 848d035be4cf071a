//go:build !wasm

// Package serial opens a badge's USB CDC port and finds badges among the
// host's serial devices.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is an open link to a badge
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error

	// Device returns the path the port was opened on
	Device() string
}

// Config describes how to open a badge port
type Config struct {
	Device      string        // e.g. "/dev/ttyACM0", "COM3"
	Baud        int           // ignored by USB CDC
	ReadTimeout time.Duration // 0 blocks
}

type tarmPort struct {
	*serial.Port
	device string
}

func (p *tarmPort) Device() string {
	return p.device
}

// Open opens the port described by cfg
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, errors.New("no serial device given")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return &tarmPort{Port: port, device: cfg.Device}, nil
}
