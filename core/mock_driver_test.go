package core

import "strconv"

// MockDriver is a test implementation of Driver. It records every call in
// order and keeps per-pin interrupt and wake state like the real pad driver.
type MockDriver struct {
	calls []string

	isr       [NumGPIO]ISRFunc
	intrOn    [NumGPIO]bool
	intrType  [NumGPIO]IntrType
	wakeOn    [NumGPIO]bool
	wakeType  [NumGPIO]IntrType
	held      [NumGPIO]bool
	sleepSel  [NumGPIO]bool
	gpioWake  bool
	gpioSwtch bool
	pd        map[PDDomain]PDOption
	timerUs   uint64
	timerOn   bool

	usb      bool
	cause    WakeupCause
	shutdown []func()
	restarts int

	// failOn makes the named driver call return the given esp_err_t
	failOn map[string]int32

	// onSleep runs inside LightSleepStart, e.g. to fire an interrupt
	onSleep func()

	// fireOnAdd delivers the interrupt as soon as an ISR is installed
	fireOnAdd bool
}

func NewMockDriver() *MockDriver {
	return &MockDriver{
		pd:     make(map[PDDomain]PDOption),
		failOn: make(map[string]int32),
		cause:  WakeupUndefined,
	}
}

func (m *MockDriver) record(op string, gpio GPIOPin) error {
	m.calls = append(m.calls, op+"("+strconv.Itoa(int(gpio))+")")
	if code, ok := m.failOn[op]; ok {
		return &DriverError{Op: op, Code: code}
	}
	return nil
}

func (m *MockDriver) recordOp(op string) error {
	m.calls = append(m.calls, op)
	if code, ok := m.failOn[op]; ok {
		return &DriverError{Op: op, Code: code}
	}
	return nil
}

func (m *MockDriver) resetCalls() {
	m.calls = nil
}

// Fire simulates the pad interrupt: the installed ISR runs only while the
// interrupt is enabled.
func (m *MockDriver) Fire(gpio GPIOPin) bool {
	if !m.intrOn[gpio] || m.isr[gpio] == nil {
		return false
	}
	m.isr[gpio](gpio)
	return true
}

func (m *MockDriver) IntrEnable(gpio GPIOPin) error {
	if err := m.record("gpio_intr_enable", gpio); err != nil {
		return err
	}
	m.intrOn[gpio] = true
	return nil
}

func (m *MockDriver) IntrDisable(gpio GPIOPin) error {
	if err := m.record("gpio_intr_disable", gpio); err != nil {
		return err
	}
	m.intrOn[gpio] = false
	return nil
}

func (m *MockDriver) SetIntrType(gpio GPIOPin, t IntrType) error {
	if err := m.record("gpio_set_intr_type", gpio); err != nil {
		return err
	}
	m.intrType[gpio] = t
	return nil
}

func (m *MockDriver) ISRHandlerAdd(gpio GPIOPin, isr ISRFunc) error {
	if err := m.record("gpio_isr_handler_add", gpio); err != nil {
		return err
	}
	m.isr[gpio] = isr
	m.intrOn[gpio] = true
	if m.fireOnAdd {
		isr(gpio)
	}
	return nil
}

func (m *MockDriver) ISRHandlerRemove(gpio GPIOPin) error {
	if err := m.record("gpio_isr_handler_remove", gpio); err != nil {
		return err
	}
	m.isr[gpio] = nil
	m.intrOn[gpio] = false
	return nil
}

func (m *MockDriver) WakeupEnable(gpio GPIOPin, t IntrType) error {
	if err := m.record("gpio_wakeup_enable", gpio); err != nil {
		return err
	}
	if t != IntrLowLevel && t != IntrHighLevel {
		return &DriverError{Op: "gpio_wakeup_enable", Code: ESP_ERR_INVALID_ARG}
	}
	m.wakeOn[gpio] = true
	m.wakeType[gpio] = t
	m.intrType[gpio] = t
	return nil
}

func (m *MockDriver) WakeupDisable(gpio GPIOPin) error {
	if err := m.record("gpio_wakeup_disable", gpio); err != nil {
		return err
	}
	m.wakeOn[gpio] = false
	m.intrType[gpio] = IntrDisable
	return nil
}

func (m *MockDriver) HoldEnable(gpio GPIOPin) error {
	if err := m.record("gpio_hold_en", gpio); err != nil {
		return err
	}
	m.held[gpio] = true
	return nil
}

func (m *MockDriver) HoldDisable(gpio GPIOPin) error {
	if err := m.record("gpio_hold_dis", gpio); err != nil {
		return err
	}
	m.held[gpio] = false
	return nil
}

func (m *MockDriver) SleepSelEnable(gpio GPIOPin) error {
	if err := m.record("gpio_sleep_sel_en", gpio); err != nil {
		return err
	}
	m.sleepSel[gpio] = true
	return nil
}

func (m *MockDriver) SleepSelDisable(gpio GPIOPin) error {
	if err := m.record("gpio_sleep_sel_dis", gpio); err != nil {
		return err
	}
	m.sleepSel[gpio] = false
	return nil
}

func (m *MockDriver) EnableGPIOWakeup() error {
	if err := m.recordOp("esp_sleep_enable_gpio_wakeup"); err != nil {
		return err
	}
	m.gpioWake = true
	return nil
}

func (m *MockDriver) EnableGPIOSwitch(enable bool) {
	m.recordOp("esp_sleep_enable_gpio_switch")
	m.gpioSwtch = enable
}

func (m *MockDriver) PDConfig(domain PDDomain, option PDOption) error {
	if err := m.recordOp("esp_sleep_pd_config"); err != nil {
		return err
	}
	if option > PDOptionAuto {
		return &DriverError{Op: "esp_sleep_pd_config", Code: ESP_ERR_INVALID_ARG}
	}
	m.pd[domain] = option
	return nil
}

func (m *MockDriver) EnableTimerWakeup(us uint64) error {
	if err := m.recordOp("esp_sleep_enable_timer_wakeup"); err != nil {
		return err
	}
	m.timerUs = us
	m.timerOn = true
	return nil
}

func (m *MockDriver) DisableWakeupSource(src WakeupCause) error {
	if err := m.recordOp("esp_sleep_disable_wakeup_source"); err != nil {
		return err
	}
	if src == WakeupTimer {
		m.timerOn = false
	}
	return nil
}

func (m *MockDriver) LightSleepStart() error {
	if err := m.recordOp("esp_light_sleep_start"); err != nil {
		return err
	}
	if m.onSleep != nil {
		m.onSleep()
	}
	return nil
}

func (m *MockDriver) WakeupCause() WakeupCause {
	return m.cause
}

func (m *MockDriver) USBConnected() bool {
	return m.usb
}

func (m *MockDriver) UARTTxFlush(id int) error {
	return m.record("uart_wait_tx_idle_polling", GPIOPin(id))
}

func (m *MockDriver) PrepareUSBPersist() {
	m.recordOp("usb_persist_prepare")
}

func (m *MockDriver) SetUSBPersistFlags() {
	m.recordOp("usb_persist_flags")
}

func (m *MockDriver) ForceDownloadBoot() {
	m.recordOp("force_download_boot")
}

func (m *MockDriver) RegisterShutdownHandler(fn func()) error {
	if err := m.recordOp("esp_register_shutdown_handler"); err != nil {
		return err
	}
	m.shutdown = append(m.shutdown, fn)
	return nil
}

func (m *MockDriver) Restart() {
	m.recordOp("esp_restart")
	m.restarts++
	for _, fn := range m.shutdown {
		fn()
	}
}

// newTestBridge returns a bridge over a fresh mock with an empty scheduler
func newTestBridge() (*Bridge, *MockDriver) {
	drv := NewMockDriver()
	return NewBridge(drv, NewScheduler(nil)), drv
}

func equalCalls(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

type testHandle GPIOPin

func (h testHandle) GPIO() GPIOPin { return GPIOPin(h) }
