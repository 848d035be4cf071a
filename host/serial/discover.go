//go:build !wasm

package serial

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.bug.st/serial/enumerator"
	"golang.org/x/time/rate"
)

// EspressifVID is the USB vendor ID of the ESP32-S2 USB-OTG peripheral
const EspressifVID = "303A"

// ErrNoDevice is returned when no badge is attached
var ErrNoDevice = errors.New("no tidal device found")

// PortInfo describes one candidate serial port
type PortInfo struct {
	Name    string
	VID     string
	PID     string
	Serial  string
	Product string
}

// listPorts is swapped out by tests
var listPorts = enumerator.GetDetailedPortsList

// Discover lists the attached USB serial ports with the Espressif vendor ID
func Discover() ([]PortInfo, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return matchPorts(ports), nil
}

func matchPorts(ports []*enumerator.PortDetails) []PortInfo {
	var found []PortInfo
	for _, p := range ports {
		if p == nil || !p.IsUSB || !strings.EqualFold(p.VID, EspressifVID) {
			continue
		}
		found = append(found, PortInfo{
			Name:    p.Name,
			VID:     strings.ToUpper(p.VID),
			PID:     strings.ToUpper(p.PID),
			Serial:  p.SerialNumber,
			Product: p.Product,
		})
	}
	return found
}

// FindDevice returns the first attached badge
func FindDevice() (string, error) {
	ports, err := Discover()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNoDevice
	}
	return ports[0].Name, nil
}

// WaitForDevice blocks until a badge shows up, watching dir (usually /dev)
// for new device nodes. A badge that is already attached is returned at once.
// One hotplug creates a burst of nodes, so enumeration is rate limited.
func WaitForDevice(ctx context.Context, dir string) (string, error) {
	if name, err := FindDevice(); err == nil {
		return name, nil
	} else if !errors.Is(err, ErrNoDevice) {
		return "", err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return "", fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	limiter := rate.NewLimiter(rate.Every(250*time.Millisecond), 1)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err, ok := <-watcher.Errors:
			if !ok {
				return "", ErrNoDevice
			}
			return "", fmt.Errorf("watching %s: %w", dir, err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return "", ErrNoDevice
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
			name, err := FindDevice()
			if err == nil {
				return name, nil
			}
			if !errors.Is(err, ErrNoDevice) {
				return "", err
			}
		}
	}
}
