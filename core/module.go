package core

import (
	"errors"

	"tidal/protocol"
)

// Module publishes the bridge operations as wire entry points
type Module struct {
	bridge    *Bridge
	reg       *CommandRegistry
	transport *protocol.Transport

	// One prebuilt handler per pin for wire-armed wake and edge interrupts
	wireHandlers [NumGPIO]*Callback
	edgeHandlers [NumGPIO]*Callback

	rebootPending bool
}

// NewModule registers every entry point of b in a fresh registry
func NewModule(b *Bridge) *Module {
	m := &Module{bridge: b, reg: NewCommandRegistry()}
	for i := range m.wireHandlers {
		m.wireHandlers[i] = NewCallback("host", m.reportLightsleepIRQ)
		m.edgeHandlers[i] = NewCallback("host-edge", m.reportPinIRQ)
	}
	m.registerCommands()
	return m
}

// Registry returns the module's command registry
func (m *Module) Registry() *CommandRegistry {
	return m.reg
}

// SetTransport sets where responses and events are sent
func (m *Module) SetTransport(t *protocol.Transport) {
	m.transport = t
}

func (m *Module) registerCommands() {
	r := m.reg
	r.SetHeader(protocol.Version + " variant=" + string(m.bridge.GetVariant()))

	// Bootstrap messages - fixed IDs the host relies on before it has the dictionary
	r.RegisterResponse("identify_response", "offset=%u data=%*s")  // ID 0
	r.Register("identify", "offset=%u count=%c", m.handleIdentify) // ID 1
	r.RegisterResponse("error", "cmd=%s op=%s code=%i")            // ID 2

	r.Register("get_variant", "", m.handleGetVariant)
	r.Register("usb_connected", "", m.handleUSBConnected)
	r.Register("esp_sleep_enable_gpio_wakeup", "", m.handleEnableGPIOWakeup)
	r.Register("esp_sleep_pd_config", "domain=%u option=%u", m.handleSleepPDConfig)
	r.Register("gpio_wakeup", "pin=%u level=%u", m.handleGPIOWakeup)
	r.Register("gpio_hold", "pin=%u flag=%c", m.handleGPIOHold)
	r.Register("set_lightsleep_irq", "pin=%u level=%c enable=%c", m.handleSetLightsleepIRQ)
	r.Register("gpio_intr_enable", "pin=%u flag=%c", m.handleGPIOIntrEnable)
	r.Register("gpio_sleep_sel", "pin=%u flag=%c", m.handleGPIOSleepSel)
	r.Register("esp_sleep_enable_gpio_switch", "flag=%c", m.handleEnableGPIOSwitch)
	r.Register("uart_tx_flush", "id=%c", m.handleUARTTxFlush)
	r.Register("lightsleep", "time_ms=%u", m.handleLightsleep)
	r.Register("get_irq_handler", "pin=%u", m.handleGetIRQHandler)
	r.Register("pin_number", "pin=%u", m.handlePinNumber)
	r.Register("reboot_bootloader", "", m.handleRebootBootloader)
	r.Register("set_pin_irq", "pin=%u trigger=%c enable=%c", m.handleSetPinIRQ)
	r.Register("dump_irq_events", "", m.handleDumpIRQEvents)

	r.RegisterResponse("variant", "name=%s")
	r.RegisterResponse("usb_state", "connected=%c")
	r.RegisterResponse("wakeup", "cause=%u")
	r.RegisterResponse("irq_handler", "pin=%u state=%c name=%s")
	r.RegisterResponse("pin_number_result", "gpio=%u")
	r.RegisterResponse("lightsleep_irq", "gpio=%u")
	r.RegisterResponse("pin_irq", "gpio=%u")
	r.RegisterResponse("irq_events", "count=%u dropped=%u")

	r.RegisterConstant("ESP_PD_DOMAIN_RTC_PERIPH", int(PDDomainRTCPeriph))
	r.RegisterConstant("ESP_PD_OPTION_OFF", int(PDOptionOff))
	r.RegisterConstant("ESP_PD_OPTION_ON", int(PDOptionOn))
	r.RegisterConstant("ESP_PD_OPTION_AUTO", int(PDOptionAuto))
	r.RegisterConstant("GPIO_INTR_POSEDGE", int(IntrPosEdge))
	r.RegisterConstant("GPIO_INTR_NEGEDGE", int(IntrNegEdge))
	r.RegisterConstant("GPIO_INTR_ANYEDGE", int(IntrAnyEdge))
	r.RegisterConstant("GPIO_INTR_LOW_LEVEL", int(IntrLowLevel))
	r.RegisterConstant("GPIO_INTR_HIGH_LEVEL", int(IntrHighLevel))
	r.RegisterConstant("NUM_GPIO", NumGPIO)
}

// HandleCommand dispatches one decoded command; it is the transport's handler
func (m *Module) HandleCommand(cmdID uint16, data *[]byte) error {
	return m.reg.Dispatch(cmdID, data)
}

// ReportError tells the host an entry point failed
func (m *Module) ReportError(cmdID uint16, err error) {
	name := "?"
	if cmd, ok := m.reg.GetCommand(cmdID); ok {
		name = cmd.Name
	}
	op, code := "firmware", int32(ESP_FAIL)
	var drvErr *DriverError
	switch {
	case errors.As(err, &drvErr):
		op, code = drvErr.Op, drvErr.Code
	case errors.Is(err, ErrInvalidArgument):
		op, code = "argument", ESP_ERR_INVALID_ARG
	case errors.Is(err, ErrUnknownCommand):
		op, code = "dispatch", ESP_ERR_NOT_FOUND
	}
	DebugPrintln("[module] " + name + " failed: " + err.Error())
	m.send("error", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQString(output, name)
		protocol.EncodeVLQString(output, op)
		protocol.EncodeVLQInt(output, code)
	})
}

// send emits a registered response. Responses are registered at start-up,
// so a missing name is a programming error.
func (m *Module) send(name string, args func(output protocol.OutputBuffer)) {
	if m.transport == nil {
		return
	}
	cmd, ok := m.reg.GetCommandByName(name)
	if !ok {
		panic("Response not registered: " + name)
	}
	if err := m.transport.SendCommand(cmd.ID, args); err != nil {
		DebugPrintln("[module] dropped " + name + ": " + err.Error())
	}
}

// reportLightsleepIRQ runs on the main context after a wire-armed pin fired
func (m *Module) reportLightsleepIRQ(gpio GPIOPin) {
	m.send("lightsleep_irq", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(gpio))
	})
}

// reportPinIRQ runs on the main context after a wire-registered edge fired
func (m *Module) reportPinIRQ(gpio GPIOPin) {
	m.send("pin_irq", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(gpio))
	})
}

// CheckPendingReboot performs a requested bootloader reboot. Call it from the
// main loop after output has been flushed so the ACK reaches the host first.
func (m *Module) CheckPendingReboot() error {
	if !m.rebootPending {
		return nil
	}
	m.rebootPending = false
	return m.bridge.RebootBootloader()
}

func decodePin(data *[]byte) (Pin, error) {
	v, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return Pin{}, err
	}
	return RawPin(int(v)), nil
}

// decodeEnum reads a value that must not exceed limit
func decodeEnum(data *[]byte, limit uint32) (uint32, error) {
	v, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	if v > limit {
		return 0, ErrOutOfRange
	}
	return v, nil
}

func decodePinFlag(data *[]byte) (Pin, bool, error) {
	pin, err := decodePin(data)
	if err != nil {
		return Pin{}, false, err
	}
	flag, err := protocol.DecodeVLQBool(data)
	return pin, flag, err
}

func (m *Module) handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	// Keep each chunk inside one frame
	if count > 40 {
		count = 40
	}
	chunk := m.reg.GetChunk(offset, uint8(count))
	m.send("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func (m *Module) handleGetVariant(data *[]byte) error {
	variant := string(m.bridge.GetVariant())
	m.send("variant", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQString(output, variant)
	})
	return nil
}

func (m *Module) handleUSBConnected(data *[]byte) error {
	connected := m.bridge.USBConnected()
	m.send("usb_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQBool(output, connected)
	})
	return nil
}

func (m *Module) handleEnableGPIOWakeup(data *[]byte) error {
	return m.bridge.EnableGPIOWakeup()
}

func (m *Module) handleSleepPDConfig(data *[]byte) error {
	// Unknown domains and options that fit are left to the driver to refuse
	domain, err := decodeEnum(data, 0xFF)
	if err != nil {
		return err
	}
	option, err := decodeEnum(data, 0xFF)
	if err != nil {
		return err
	}
	return m.bridge.SleepPDConfig(PDDomain(domain), PDOption(option))
}

func (m *Module) handleGPIOWakeup(data *[]byte) error {
	pin, err := decodePin(data)
	if err != nil {
		return err
	}
	level, err := decodeEnum(data, uint32(IntrHighLevel))
	if err != nil {
		return err
	}
	return m.bridge.GPIOWakeup(pin, IntrType(level))
}

func (m *Module) handleGPIOHold(data *[]byte) error {
	pin, flag, err := decodePinFlag(data)
	if err != nil {
		return err
	}
	return m.bridge.GPIOHold(pin, flag)
}

func (m *Module) handleSetLightsleepIRQ(data *[]byte) error {
	pin, err := decodePin(data)
	if err != nil {
		return err
	}
	level, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	enable, err := protocol.DecodeVLQBool(data)
	if err != nil {
		return err
	}

	var cb *Callback
	if enable {
		gpio, err := ResolvePin(pin)
		if err != nil {
			return err
		}
		cb = m.wireHandlers[gpio]
	}
	return m.bridge.SetLightsleepIRQ(pin, int(level), cb)
}

func (m *Module) handleGPIOIntrEnable(data *[]byte) error {
	pin, flag, err := decodePinFlag(data)
	if err != nil {
		return err
	}
	return m.bridge.InterruptEnable(pin, flag)
}

func (m *Module) handleGPIOSleepSel(data *[]byte) error {
	pin, flag, err := decodePinFlag(data)
	if err != nil {
		return err
	}
	return m.bridge.GPIOSleepSelect(pin, flag)
}

func (m *Module) handleEnableGPIOSwitch(data *[]byte) error {
	flag, err := protocol.DecodeVLQBool(data)
	if err != nil {
		return err
	}
	m.bridge.EnableGPIOSwitch(flag)
	return nil
}

func (m *Module) handleUARTTxFlush(data *[]byte) error {
	id, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	return m.bridge.UARTFlush(int(id))
}

func (m *Module) handleLightsleep(data *[]byte) error {
	timeMs, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	cause, err := m.bridge.Lightsleep(int(timeMs))
	if err != nil {
		return err
	}
	m.send("wakeup", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(cause))
	})
	return nil
}

func (m *Module) handleGetIRQHandler(data *[]byte) error {
	pin, err := decodePin(data)
	if err != nil {
		return err
	}
	gpio, err := ResolvePin(pin)
	if err != nil {
		return err
	}
	// One load, so name and state agree even if the ISR fires meanwhile
	cb, state := m.bridge.handlers.snapshot(gpio)
	m.send("irq_handler", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(gpio))
		protocol.EncodeVLQUint(output, uint32(state))
		protocol.EncodeVLQString(output, cb.Name())
	})
	return nil
}

func (m *Module) handlePinNumber(data *[]byte) error {
	pin, err := decodePin(data)
	if err != nil {
		return err
	}
	n, err := PinNumber(pin)
	if err != nil {
		return err
	}
	m.send("pin_number_result", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(n))
	})
	return nil
}

func (m *Module) handleRebootBootloader(data *[]byte) error {
	m.rebootPending = true
	return nil
}

func (m *Module) handleSetPinIRQ(data *[]byte) error {
	pin, err := decodePin(data)
	if err != nil {
		return err
	}
	trigger, err := decodeEnum(data, uint32(IntrAnyEdge))
	if err != nil {
		return err
	}
	enable, err := protocol.DecodeVLQBool(data)
	if err != nil {
		return err
	}

	var cb *Callback
	if enable {
		gpio, err := ResolvePin(pin)
		if err != nil {
			return err
		}
		cb = m.edgeHandlers[gpio]
	}
	return m.bridge.SetPinIRQ(pin, PinTrigger(trigger), cb)
}

// handleDumpIRQEvents writes the event ring to the debug output and tells
// the host how much it held
func (m *Module) handleDumpIRQEvents(data *[]byte) error {
	events := IRQEvents()
	DumpIRQEvents()
	m.send("irq_events", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(len(events)))
		protocol.EncodeVLQUint(output, m.bridge.Scheduler().Dropped())
	})
	return nil
}
