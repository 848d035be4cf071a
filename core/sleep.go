package core

// PDDomain mirrors esp_sleep_pd_domain_t
type PDDomain uint8

// PDOption mirrors esp_sleep_pd_option_t
type PDOption uint8

const (
	PDDomainRTCPeriph PDDomain = 0

	PDOptionOff  PDOption = 0
	PDOptionOn   PDOption = 1
	PDOptionAuto PDOption = 2
)

// WakeupCause mirrors esp_sleep_source_t
type WakeupCause uint8

const (
	WakeupUndefined WakeupCause = iota
	WakeupAll
	WakeupExt0
	WakeupExt1
	WakeupTimer
	WakeupTouchpad
	WakeupULP
	WakeupGPIO
	WakeupUART
	WakeupWiFi
	WakeupCOCPU
	WakeupCOCPUTrap
)

func (c WakeupCause) String() string {
	switch c {
	case WakeupAll:
		return "all"
	case WakeupExt0:
		return "ext0"
	case WakeupExt1:
		return "ext1"
	case WakeupTimer:
		return "timer"
	case WakeupTouchpad:
		return "touchpad"
	case WakeupULP:
		return "ulp"
	case WakeupGPIO:
		return "gpio"
	case WakeupUART:
		return "uart"
	case WakeupWiFi:
		return "wifi"
	case WakeupCOCPU:
		return "cocpu"
	case WakeupCOCPUTrap:
		return "cocpu_trap"
	default:
		return "undefined"
	}
}

// Lightsleep enters light sleep for up to timeoutMs milliseconds and returns
// why it woke. A zero timeout arms no timer, so only other wake sources end
// the sleep. The timer source is always removed again before returning.
func (b *Bridge) Lightsleep(timeoutMs int) (WakeupCause, error) {
	if timeoutMs < 0 {
		return WakeupUndefined, ErrInvalidArgument
	}
	if timeoutMs > 0 {
		if err := b.drv.EnableTimerWakeup(uint64(timeoutMs) * 1000); err != nil {
			return WakeupUndefined, err
		}
	}

	sleepErr := b.drv.LightSleepStart()

	if timeoutMs > 0 {
		if err := b.drv.DisableWakeupSource(WakeupTimer); err != nil && sleepErr == nil {
			sleepErr = err
		}
	}
	if sleepErr != nil {
		return WakeupUndefined, sleepErr
	}

	cause := b.drv.WakeupCause()
	RecordIRQEvent(EvtWake, 0, uint32(cause))
	return cause, nil
}

// EnableGPIOWakeup enables GPIO as a light-sleep wake source class
func (b *Bridge) EnableGPIOWakeup() error {
	return b.drv.EnableGPIOWakeup()
}

// EnableGPIOSwitch toggles automatic GPIO configuration switching in sleep
func (b *Bridge) EnableGPIOSwitch(enable bool) {
	b.drv.EnableGPIOSwitch(enable)
}

// SleepPDConfig sets the power-down option of a sleep power domain
func (b *Bridge) SleepPDConfig(domain PDDomain, option PDOption) error {
	return b.drv.PDConfig(domain, option)
}
