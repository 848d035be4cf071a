package core

import (
	"errors"
	"testing"
)

func TestLightsleepNoTimer(t *testing.T) {
	b, drv := newTestBridge()
	drv.cause = WakeupGPIO

	cause, err := b.Lightsleep(0)
	if err != nil {
		t.Fatal(err)
	}
	if cause != WakeupGPIO {
		t.Errorf("cause = %s, want gpio", cause)
	}
	if !equalCalls(drv.calls, []string{"esp_light_sleep_start"}) {
		t.Errorf("Driver calls = %v", drv.calls)
	}
}

func TestLightsleepTimer(t *testing.T) {
	for _, cause := range []WakeupCause{WakeupTimer, WakeupGPIO, WakeupUART} {
		b, drv := newTestBridge()
		drv.cause = cause

		var timerDuringSleep bool
		drv.onSleep = func() { timerDuringSleep = drv.timerOn }

		got, err := b.Lightsleep(250)
		if err != nil {
			t.Fatal(err)
		}
		if got != cause {
			t.Errorf("cause = %s, want %s", got, cause)
		}
		if drv.timerUs != 250000 {
			t.Errorf("Timer = %dus, want 250000", drv.timerUs)
		}
		if !timerDuringSleep {
			t.Error("Timer wake source should be active while asleep")
		}
		if drv.timerOn {
			t.Errorf("Timer wake source left installed after %s wake", cause)
		}
	}
}

func TestLightsleepTimerRemovedOnFailure(t *testing.T) {
	b, drv := newTestBridge()
	drv.failOn["esp_light_sleep_start"] = ESP_ERR_INVALID_STATE

	_, err := b.Lightsleep(10)
	if !errors.Is(err, ErrDriver) {
		t.Fatalf("Expected driver error, got %v", err)
	}
	if drv.timerOn {
		t.Error("Timer wake source must be removed even when sleep fails")
	}
}

func TestLightsleepNegative(t *testing.T) {
	b, drv := newTestBridge()
	if _, err := b.Lightsleep(-5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected invalid argument, got %v", err)
	}
	if len(drv.calls) != 0 {
		t.Errorf("Driver calls = %v", drv.calls)
	}
}

func TestLightsleepWakesArmedPin(t *testing.T) {
	b, drv := newTestBridge()
	drv.cause = WakeupGPIO

	var fired []GPIOPin
	h := NewCallback("wake", func(gpio GPIOPin) { fired = append(fired, gpio) })
	b.SetLightsleepIRQ(RawPin(0), 0, h)
	drv.onSleep = func() { drv.Fire(0) }

	if _, err := b.Lightsleep(0); err != nil {
		t.Fatal(err)
	}
	if len(fired) != 0 {
		t.Error("Handler must wait for the main loop")
	}
	b.Scheduler().RunPending()
	if len(fired) != 1 || fired[0] != 0 {
		t.Errorf("fired = %v, want [0]", fired)
	}
}

func TestSleepPDConfig(t *testing.T) {
	b, drv := newTestBridge()

	if err := b.SleepPDConfig(PDDomainRTCPeriph, PDOptionOn); err != nil {
		t.Fatal(err)
	}
	if drv.pd[PDDomainRTCPeriph] != PDOptionOn {
		t.Error("RTC periph domain should be forced on")
	}
	if err := b.SleepPDConfig(PDDomainRTCPeriph, PDOption(9)); !errors.Is(err, ErrDriver) {
		t.Errorf("Expected driver error, got %v", err)
	}
}

func TestEnableGPIOWakeupAndSwitch(t *testing.T) {
	b, drv := newTestBridge()

	if err := b.EnableGPIOWakeup(); err != nil {
		t.Fatal(err)
	}
	if !drv.gpioWake {
		t.Error("GPIO wake class not enabled")
	}

	b.EnableGPIOSwitch(true)
	if !drv.gpioSwtch {
		t.Error("GPIO switch not enabled")
	}
	b.EnableGPIOSwitch(false)
	if drv.gpioSwtch {
		t.Error("GPIO switch not disabled")
	}
}

func TestWakeupCauseString(t *testing.T) {
	if WakeupTimer.String() != "timer" || WakeupGPIO.String() != "gpio" {
		t.Error("Unexpected wake cause names")
	}
	if WakeupCause(200).String() != "undefined" {
		t.Error("Unknown cause should be undefined")
	}
}
