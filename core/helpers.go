package core

// Variant identifies the board revision the firmware was built for
type Variant string

const (
	VariantDevboard   Variant = "devboard"
	VariantPrototype  Variant = "prototype"
	VariantProduction Variant = "production"
)

// GetVariant returns the board variant selected at build time
func (b *Bridge) GetVariant() Variant {
	return buildVariant
}

// USBConnected reports whether any USB packets arrived since the last bus reset
func (b *Bridge) USBConnected() bool {
	return b.drv.USBConnected()
}

// GPIOWakeup makes pin a light-sleep wake source for the given level
// trigger (IntrLowLevel or IntrHighLevel). IntrDisable removes it.
func (b *Bridge) GPIOWakeup(pin Pin, trigger IntrType) error {
	gpio, err := ResolvePin(pin)
	if err != nil {
		return err
	}
	if trigger == IntrDisable {
		return b.drv.WakeupDisable(gpio)
	}
	return b.drv.WakeupEnable(gpio, trigger)
}

// GPIOHold latches the pin state so it survives sleep, or releases it
func (b *Bridge) GPIOHold(pin Pin, hold bool) error {
	gpio, err := ResolvePin(pin)
	if err != nil {
		return err
	}
	if hold {
		return b.drv.HoldEnable(gpio)
	}
	return b.drv.HoldDisable(gpio)
}

// GPIOSleepSelect toggles the pin's separate sleep-mode configuration
func (b *Bridge) GPIOSleepSelect(pin Pin, enable bool) error {
	gpio, err := ResolvePin(pin)
	if err != nil {
		return err
	}
	if enable {
		return b.drv.SleepSelEnable(gpio)
	}
	return b.drv.SleepSelDisable(gpio)
}

// UARTFlush blocks until the UART transmit buffer has drained
func (b *Bridge) UARTFlush(id int) error {
	if id < 0 {
		return ErrInvalidArgument
	}
	return b.drv.UARTTxFlush(id)
}

// RebootBootloader restarts into the ROM download mode with the USB device
// kept alive, so the host sees no re-enumeration. On hardware it does not
// return.
func (b *Bridge) RebootBootloader() error {
	err := b.drv.RegisterShutdownHandler(func() {
		b.drv.PrepareUSBPersist()
		b.drv.SetUSBPersistFlags()
		b.drv.ForceDownloadBoot()
	})
	if err != nil {
		return err
	}
	DebugPrintln("[system] restarting to bootloader")
	b.drv.Restart()
	return nil
}
