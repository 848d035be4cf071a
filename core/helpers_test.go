package core

import (
	"errors"
	"testing"
)

func TestGetVariant(t *testing.T) {
	b, _ := newTestBridge()
	switch b.GetVariant() {
	case VariantDevboard, VariantPrototype, VariantProduction:
	default:
		t.Errorf("Unknown variant %q", b.GetVariant())
	}
}

func TestUSBConnected(t *testing.T) {
	b, drv := newTestBridge()
	if b.USBConnected() {
		t.Error("Expected disconnected")
	}
	drv.usb = true
	if !b.USBConnected() {
		t.Error("Expected connected")
	}
}

func TestGPIOWakeup(t *testing.T) {
	b, drv := newTestBridge()

	if err := b.GPIOWakeup(RawPin(1), IntrLowLevel); err != nil {
		t.Fatal(err)
	}
	if !drv.wakeOn[1] || drv.wakeType[1] != IntrLowLevel {
		t.Error("Expected low level wake on gpio 1")
	}

	if err := b.GPIOWakeup(RawPin(1), IntrDisable); err != nil {
		t.Fatal(err)
	}
	if drv.wakeOn[1] {
		t.Error("Wake source should be removed")
	}

	// Edge triggers are refused by the driver
	err := b.GPIOWakeup(RawPin(1), IntrPosEdge)
	var de *DriverError
	if !errors.As(err, &de) || de.Code != ESP_ERR_INVALID_ARG {
		t.Errorf("Expected ESP_ERR_INVALID_ARG, got %v", err)
	}
}

func TestGPIOHold(t *testing.T) {
	b, drv := newTestBridge()

	if err := b.GPIOHold(RawPin(14), true); err != nil {
		t.Fatal(err)
	}
	if !drv.held[14] {
		t.Error("Expected gpio 14 held")
	}
	if err := b.GPIOHold(HandlePin(testHandle(14)), false); err != nil {
		t.Fatal(err)
	}
	if drv.held[14] {
		t.Error("Expected gpio 14 released")
	}

	if err := b.GPIOHold(RawPin(99), true); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument, got %v", err)
	}
}

func TestGPIOSleepSelect(t *testing.T) {
	b, drv := newTestBridge()

	b.GPIOSleepSelect(RawPin(2), true)
	if !drv.sleepSel[2] {
		t.Error("Expected sleep select enabled")
	}
	b.GPIOSleepSelect(RawPin(2), false)
	if drv.sleepSel[2] {
		t.Error("Expected sleep select disabled")
	}

	drv.failOn["gpio_sleep_sel_en"] = ESP_ERR_INVALID_ARG
	if err := b.GPIOSleepSelect(RawPin(2), true); !errors.Is(err, ErrDriver) {
		t.Errorf("Expected driver error, got %v", err)
	}
}

func TestUARTFlush(t *testing.T) {
	b, drv := newTestBridge()

	if err := b.UARTFlush(0); err != nil {
		t.Fatal(err)
	}
	if !equalCalls(drv.calls, []string{"uart_wait_tx_idle_polling(0)"}) {
		t.Errorf("Driver calls = %v", drv.calls)
	}

	if err := b.UARTFlush(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument, got %v", err)
	}

	drv.failOn["uart_wait_tx_idle_polling"] = ESP_FAIL
	if err := b.UARTFlush(3); !errors.Is(err, ErrDriver) {
		t.Errorf("Expected driver error, got %v", err)
	}
}

func TestRebootBootloader(t *testing.T) {
	b, drv := newTestBridge()

	if err := b.RebootBootloader(); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"esp_register_shutdown_handler",
		"esp_restart",
		"usb_persist_prepare",
		"usb_persist_flags",
		"force_download_boot",
	}
	if !equalCalls(drv.calls, want) {
		t.Errorf("Driver calls = %v, want %v", drv.calls, want)
	}
}

func TestRebootBootloaderRegisterFails(t *testing.T) {
	b, drv := newTestBridge()
	drv.failOn["esp_register_shutdown_handler"] = ESP_ERR_NO_MEM

	if err := b.RebootBootloader(); !errors.Is(err, ErrDriver) {
		t.Fatalf("Expected driver error, got %v", err)
	}
	if drv.restarts != 0 {
		t.Error("Must not restart when the shutdown handler was not registered")
	}
}
