// Package sim runs the tidal firmware core against an in-memory ESP32-S2,
// for trying the host tool and for end-to-end tests without a badge.
package sim

import (
	"sync"
	"time"

	"tidal/core"
)

// Driver is an in-memory core.Driver. Pad state follows the ESP-IDF GPIO
// driver closely enough for the bridge: installing an ISR enables the
// interrupt, a wake source sets the interrupt type.
type Driver struct {
	mu sync.Mutex

	isr      [core.NumGPIO]core.ISRFunc
	intrOn   [core.NumGPIO]bool
	intrType [core.NumGPIO]core.IntrType
	wakeOn   [core.NumGPIO]bool
	held     [core.NumGPIO]bool
	sleepSel [core.NumGPIO]bool

	gpioWake   bool
	gpioSwitch bool
	pd         map[core.PDDomain]core.PDOption
	timer      time.Duration
	timerOn    bool

	usb      bool
	wake     chan core.WakeupCause
	cause    core.WakeupCause
	shutdown []func()
	restarts int
}

func NewDriver() *Driver {
	return &Driver{
		pd:   make(map[core.PDDomain]core.PDOption),
		wake: make(chan core.WakeupCause, 1),
		usb:  true,
	}
}

// PadState is a snapshot of one pad
type PadState struct {
	IntrEnabled bool
	IntrType    core.IntrType
	WakeEnabled bool
	Held        bool
	SleepSel    bool
}

// Pad returns the state of gpio
func (d *Driver) Pad(gpio core.GPIOPin) PadState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return PadState{
		IntrEnabled: d.intrOn[gpio],
		IntrType:    d.intrType[gpio],
		WakeEnabled: d.wakeOn[gpio],
		Held:        d.held[gpio],
		SleepSel:    d.sleepSel[gpio],
	}
}

// Restarts returns how often the chip was restarted
func (d *Driver) Restarts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.restarts
}

// Assert drives gpio to its trigger level. A wake-enabled pad ends a light
// sleep; an enabled interrupt runs the installed ISR on the caller's
// goroutine, the way a real interrupt preempts the main task.
func (d *Driver) Assert(gpio core.GPIOPin) bool {
	if gpio >= core.NumGPIO {
		return false
	}
	d.mu.Lock()
	wake := d.wakeOn[gpio]
	isr := d.isr[gpio]
	fire := d.intrOn[gpio] && isr != nil
	d.mu.Unlock()

	// The pending interrupt is serviced before the woken task resumes
	if fire {
		isr(gpio)
	}
	if wake {
		select {
		case d.wake <- core.WakeupGPIO:
		default:
		}
	}
	return fire
}

// SetUSBConnected sets what USBConnected reports
func (d *Driver) SetUSBConnected(connected bool) {
	d.mu.Lock()
	d.usb = connected
	d.mu.Unlock()
}

func (d *Driver) checkPin(op string, gpio core.GPIOPin) error {
	if gpio >= core.NumGPIO {
		return core.CheckErr(op, core.ESP_ERR_INVALID_ARG)
	}
	return nil
}

func (d *Driver) IntrEnable(gpio core.GPIOPin) error {
	if err := d.checkPin("gpio_intr_enable", gpio); err != nil {
		return err
	}
	d.mu.Lock()
	d.intrOn[gpio] = true
	d.mu.Unlock()
	return nil
}

func (d *Driver) IntrDisable(gpio core.GPIOPin) error {
	if err := d.checkPin("gpio_intr_disable", gpio); err != nil {
		return err
	}
	d.mu.Lock()
	d.intrOn[gpio] = false
	d.mu.Unlock()
	return nil
}

func (d *Driver) SetIntrType(gpio core.GPIOPin, t core.IntrType) error {
	if err := d.checkPin("gpio_set_intr_type", gpio); err != nil {
		return err
	}
	if t > core.IntrHighLevel {
		return core.CheckErr("gpio_set_intr_type", core.ESP_ERR_INVALID_ARG)
	}
	d.mu.Lock()
	d.intrType[gpio] = t
	d.mu.Unlock()
	return nil
}

func (d *Driver) ISRHandlerAdd(gpio core.GPIOPin, isr core.ISRFunc) error {
	if err := d.checkPin("gpio_isr_handler_add", gpio); err != nil {
		return err
	}
	d.mu.Lock()
	d.isr[gpio] = isr
	d.intrOn[gpio] = true
	d.mu.Unlock()
	return nil
}

func (d *Driver) ISRHandlerRemove(gpio core.GPIOPin) error {
	if err := d.checkPin("gpio_isr_handler_remove", gpio); err != nil {
		return err
	}
	d.mu.Lock()
	d.isr[gpio] = nil
	d.intrOn[gpio] = false
	d.mu.Unlock()
	return nil
}

func (d *Driver) WakeupEnable(gpio core.GPIOPin, t core.IntrType) error {
	if err := d.checkPin("gpio_wakeup_enable", gpio); err != nil {
		return err
	}
	if t != core.IntrLowLevel && t != core.IntrHighLevel {
		return core.CheckErr("gpio_wakeup_enable", core.ESP_ERR_INVALID_ARG)
	}
	d.mu.Lock()
	d.wakeOn[gpio] = true
	d.intrType[gpio] = t
	d.mu.Unlock()
	return nil
}

func (d *Driver) WakeupDisable(gpio core.GPIOPin) error {
	if err := d.checkPin("gpio_wakeup_disable", gpio); err != nil {
		return err
	}
	d.mu.Lock()
	d.wakeOn[gpio] = false
	d.intrType[gpio] = core.IntrDisable
	d.mu.Unlock()
	return nil
}

func (d *Driver) HoldEnable(gpio core.GPIOPin) error {
	return d.setFlag("gpio_hold_en", gpio, &d.held, true)
}

func (d *Driver) HoldDisable(gpio core.GPIOPin) error {
	return d.setFlag("gpio_hold_dis", gpio, &d.held, false)
}

func (d *Driver) SleepSelEnable(gpio core.GPIOPin) error {
	return d.setFlag("gpio_sleep_sel_en", gpio, &d.sleepSel, true)
}

func (d *Driver) SleepSelDisable(gpio core.GPIOPin) error {
	return d.setFlag("gpio_sleep_sel_dis", gpio, &d.sleepSel, false)
}

func (d *Driver) setFlag(op string, gpio core.GPIOPin, flags *[core.NumGPIO]bool, v bool) error {
	if err := d.checkPin(op, gpio); err != nil {
		return err
	}
	d.mu.Lock()
	flags[gpio] = v
	d.mu.Unlock()
	return nil
}

func (d *Driver) EnableGPIOWakeup() error {
	d.mu.Lock()
	d.gpioWake = true
	d.mu.Unlock()
	return nil
}

func (d *Driver) EnableGPIOSwitch(enable bool) {
	d.mu.Lock()
	d.gpioSwitch = enable
	d.mu.Unlock()
}

func (d *Driver) PDConfig(domain core.PDDomain, option core.PDOption) error {
	if domain != core.PDDomainRTCPeriph || option > core.PDOptionAuto {
		return core.CheckErr("esp_sleep_pd_config", core.ESP_ERR_INVALID_ARG)
	}
	d.mu.Lock()
	d.pd[domain] = option
	d.mu.Unlock()
	return nil
}

func (d *Driver) EnableTimerWakeup(us uint64) error {
	d.mu.Lock()
	d.timer = time.Duration(us) * time.Microsecond
	d.timerOn = true
	d.mu.Unlock()
	return nil
}

func (d *Driver) DisableWakeupSource(src core.WakeupCause) error {
	if src != core.WakeupTimer {
		return core.CheckErr("esp_sleep_disable_wakeup_source", core.ESP_ERR_INVALID_STATE)
	}
	d.mu.Lock()
	d.timerOn = false
	d.mu.Unlock()
	return nil
}

// LightSleepStart blocks until a wake-enabled pad is asserted or the timer
// runs out
func (d *Driver) LightSleepStart() error {
	d.mu.Lock()
	timerOn, timeout := d.timerOn, d.timer
	gpioWake := d.gpioWake
	anyPad := false
	for _, on := range d.wakeOn {
		anyPad = anyPad || on
	}
	d.mu.Unlock()

	if !timerOn && !(gpioWake && anyPad) {
		// Nothing could ever wake the chip
		return core.CheckErr("esp_light_sleep_start", core.ESP_ERR_INVALID_STATE)
	}

	var timerC <-chan time.Time
	if timerOn {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timerC = t.C
	}

	var cause core.WakeupCause
	select {
	case cause = <-d.wake:
		if !gpioWake {
			// GPIO wake class disabled: keep sleeping on the timer
			<-timerC
			cause = core.WakeupTimer
		}
	case <-timerC:
		cause = core.WakeupTimer
	}

	d.mu.Lock()
	d.cause = cause
	d.mu.Unlock()
	return nil
}

func (d *Driver) WakeupCause() core.WakeupCause {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cause
}

func (d *Driver) USBConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.usb
}

func (d *Driver) UARTTxFlush(id int) error {
	if id > 1 {
		return core.CheckErr("uart_wait_tx_idle_polling", core.ESP_ERR_INVALID_ARG)
	}
	return nil
}

func (d *Driver) PrepareUSBPersist()  {}
func (d *Driver) SetUSBPersistFlags() {}
func (d *Driver) ForceDownloadBoot()  {}

func (d *Driver) RegisterShutdownHandler(fn func()) error {
	d.mu.Lock()
	d.shutdown = append(d.shutdown, fn)
	d.mu.Unlock()
	return nil
}

// Restart runs the shutdown handlers and counts a restart. Pad state is
// kept; the simulated USB link stays up.
func (d *Driver) Restart() {
	d.mu.Lock()
	handlers := d.shutdown
	d.shutdown = nil
	d.restarts++
	d.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}
