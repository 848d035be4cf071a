package core

// IntrType mirrors gpio_int_type_t
type IntrType uint8

const (
	IntrDisable   IntrType = 0
	IntrPosEdge   IntrType = 1
	IntrNegEdge   IntrType = 2
	IntrAnyEdge   IntrType = 3
	IntrLowLevel  IntrType = 4
	IntrHighLevel IntrType = 5
)

// ISRFunc is invoked in interrupt context with the pin that fired
type ISRFunc func(gpio GPIOPin)

// GPIODriver is the abstract pad-level GPIO interface used by the bridge.
// Platform-specific implementations forward to the SoC driver and report
// failures as *DriverError.
type GPIODriver interface {
	// IntrEnable enables the pin's interrupt line
	IntrEnable(gpio GPIOPin) error

	// IntrDisable disables the pin's interrupt line
	IntrDisable(gpio GPIOPin) error

	// SetIntrType sets the interrupt trigger without enabling it
	SetIntrType(gpio GPIOPin, t IntrType) error

	// ISRHandlerAdd installs a per-pin ISR and enables the interrupt
	ISRHandlerAdd(gpio GPIOPin, isr ISRFunc) error

	// ISRHandlerRemove uninstalls the per-pin ISR, disabling the interrupt
	ISRHandlerRemove(gpio GPIOPin) error

	// WakeupEnable makes the pin a light-sleep wake source. Only level
	// triggers are accepted. This also sets the interrupt type.
	WakeupEnable(gpio GPIOPin, t IntrType) error

	// WakeupDisable removes the pin as a wake source
	WakeupDisable(gpio GPIOPin) error

	HoldEnable(gpio GPIOPin) error
	HoldDisable(gpio GPIOPin) error

	SleepSelEnable(gpio GPIOPin) error
	SleepSelDisable(gpio GPIOPin) error
}

// SleepDriver controls sleep modes, wake sources and power domains
type SleepDriver interface {
	EnableGPIOWakeup() error
	EnableGPIOSwitch(enable bool)
	PDConfig(domain PDDomain, option PDOption) error
	EnableTimerWakeup(us uint64) error
	DisableWakeupSource(src WakeupCause) error

	// LightSleepStart suspends the main context until a wake source fires
	LightSleepStart() error
	WakeupCause() WakeupCause
}

// SystemDriver covers USB, UART and restart control
type SystemDriver interface {
	USBConnected() bool
	UARTTxFlush(id int) error

	// PrepareUSBPersist keeps the USB device state across the next restart
	PrepareUSBPersist()
	SetUSBPersistFlags()
	ForceDownloadBoot()

	RegisterShutdownHandler(fn func()) error
	Restart()
}

// Driver is everything the bridge needs from the platform
type Driver interface {
	GPIODriver
	SleepDriver
	SystemDriver
}
