//go:build esp32s2 && tinygo

package main

/*
#include <stdbool.h>
#include <stdint.h>
#include "driver/gpio.h"
#include "esp_sleep.h"
#include "esp_system.h"
#include "device/usbd.h"
#include "rom/uart.h"
#include "soc/rtc_cntl_reg.h"
#include "esp32s2/rom/usb/usb_dc.h"
#include "esp32s2/rom/usb/chip_usb_dw_wrapper.h"
#include "esp32s2/rom/usb/usb_persist.h"

extern void tidal_gpio_isr(void *arg);
extern void tidal_shutdown(void);

static esp_err_t tidal_isr_handler_add(gpio_num_t gpio) {
	return gpio_isr_handler_add(gpio, tidal_gpio_isr, (void *)(uintptr_t)gpio);
}

static esp_err_t tidal_register_shutdown(void) {
	return esp_register_shutdown_handler(tidal_shutdown);
}

static void tidal_set_persist_flags(void) {
	chip_usb_set_persist_flags(USBDC_PERSIST_ENA);
}

static void tidal_force_download_boot(void) {
	REG_WRITE(RTC_CNTL_OPTION1_REG, RTC_CNTL_FORCE_DOWNLOAD_BOOT);
}
*/
import "C"

import "tidal/core"

// IDFDriver implements core.Driver on the ESP-IDF gpio, sleep and system
// APIs. Every esp_err_t is passed through core.CheckErr unchanged.
type IDFDriver struct {
	shutdownRegistered bool
}

// NewIDFDriver returns the driver. The GPIO ISR service is installed by the
// IDF startup code before main runs.
func NewIDFDriver() *IDFDriver {
	return &IDFDriver{}
}

func gpioNum(gpio core.GPIOPin) C.gpio_num_t {
	return C.gpio_num_t(gpio)
}

func (d *IDFDriver) IntrEnable(gpio core.GPIOPin) error {
	return core.CheckErr("gpio_intr_enable", int32(C.gpio_intr_enable(gpioNum(gpio))))
}

func (d *IDFDriver) IntrDisable(gpio core.GPIOPin) error {
	return core.CheckErr("gpio_intr_disable", int32(C.gpio_intr_disable(gpioNum(gpio))))
}

func (d *IDFDriver) SetIntrType(gpio core.GPIOPin, t core.IntrType) error {
	return core.CheckErr("gpio_set_intr_type",
		int32(C.gpio_set_intr_type(gpioNum(gpio), C.gpio_int_type_t(t))))
}

// ISRHandlerAdd publishes isr for the trampoline before IDF can call it
func (d *IDFDriver) ISRHandlerAdd(gpio core.GPIOPin, isr core.ISRFunc) error {
	if int(gpio) >= core.NumGPIO {
		return core.CheckErr("gpio_isr_handler_add", core.ESP_ERR_INVALID_ARG)
	}
	isrFuncs[gpio] = isr
	return core.CheckErr("gpio_isr_handler_add", int32(C.tidal_isr_handler_add(gpioNum(gpio))))
}

func (d *IDFDriver) ISRHandlerRemove(gpio core.GPIOPin) error {
	err := core.CheckErr("gpio_isr_handler_remove", int32(C.gpio_isr_handler_remove(gpioNum(gpio))))
	if err == nil {
		isrFuncs[gpio] = nil
	}
	return err
}

func (d *IDFDriver) WakeupEnable(gpio core.GPIOPin, t core.IntrType) error {
	return core.CheckErr("gpio_wakeup_enable",
		int32(C.gpio_wakeup_enable(gpioNum(gpio), C.gpio_int_type_t(t))))
}

func (d *IDFDriver) WakeupDisable(gpio core.GPIOPin) error {
	return core.CheckErr("gpio_wakeup_disable", int32(C.gpio_wakeup_disable(gpioNum(gpio))))
}

func (d *IDFDriver) HoldEnable(gpio core.GPIOPin) error {
	return core.CheckErr("gpio_hold_en", int32(C.gpio_hold_en(gpioNum(gpio))))
}

func (d *IDFDriver) HoldDisable(gpio core.GPIOPin) error {
	return core.CheckErr("gpio_hold_dis", int32(C.gpio_hold_dis(gpioNum(gpio))))
}

func (d *IDFDriver) SleepSelEnable(gpio core.GPIOPin) error {
	return core.CheckErr("gpio_sleep_sel_en", int32(C.gpio_sleep_sel_en(gpioNum(gpio))))
}

func (d *IDFDriver) SleepSelDisable(gpio core.GPIOPin) error {
	return core.CheckErr("gpio_sleep_sel_dis", int32(C.gpio_sleep_sel_dis(gpioNum(gpio))))
}

func (d *IDFDriver) EnableGPIOWakeup() error {
	return core.CheckErr("esp_sleep_enable_gpio_wakeup", int32(C.esp_sleep_enable_gpio_wakeup()))
}

func (d *IDFDriver) EnableGPIOSwitch(enable bool) {
	C.esp_sleep_enable_gpio_switch(C.bool(enable))
}

func (d *IDFDriver) PDConfig(domain core.PDDomain, option core.PDOption) error {
	return core.CheckErr("esp_sleep_pd_config",
		int32(C.esp_sleep_pd_config(C.esp_sleep_pd_domain_t(domain), C.esp_sleep_pd_option_t(option))))
}

func (d *IDFDriver) EnableTimerWakeup(us uint64) error {
	return core.CheckErr("esp_sleep_enable_timer_wakeup",
		int32(C.esp_sleep_enable_timer_wakeup(C.uint64_t(us))))
}

func (d *IDFDriver) DisableWakeupSource(src core.WakeupCause) error {
	return core.CheckErr("esp_sleep_disable_wakeup_source",
		int32(C.esp_sleep_disable_wakeup_source(C.esp_sleep_source_t(src))))
}

func (d *IDFDriver) LightSleepStart() error {
	return core.CheckErr("esp_light_sleep_start", int32(C.esp_light_sleep_start()))
}

func (d *IDFDriver) WakeupCause() core.WakeupCause {
	return core.WakeupCause(C.esp_sleep_get_wakeup_cause())
}

// USBConnected reports whether TinyUSB saw traffic since the last bus reset
func (d *IDFDriver) USBConnected() bool {
	return bool(C.tud_connected())
}

// UARTTxFlush waits for the ROM UART FIFO to drain
func (d *IDFDriver) UARTTxFlush(id int) error {
	if id > 1 {
		return core.CheckErr("uart_tx_flush", core.ESP_ERR_INVALID_ARG)
	}
	C.uart_tx_flush(C.uint8_t(id))
	return nil
}

func (d *IDFDriver) PrepareUSBPersist() {
	C.usb_dc_prepare_persist()
}

func (d *IDFDriver) SetUSBPersistFlags() {
	C.tidal_set_persist_flags()
}

func (d *IDFDriver) ForceDownloadBoot() {
	C.tidal_force_download_boot()
}

// RegisterShutdownHandler queues fn for esp_restart. IDF refuses a second
// registration of the same function, so one trampoline runs them all.
func (d *IDFDriver) RegisterShutdownHandler(fn func()) error {
	shutdownFuncs = append(shutdownFuncs, fn)
	if d.shutdownRegistered {
		return nil
	}
	if err := core.CheckErr("esp_register_shutdown_handler", int32(C.tidal_register_shutdown())); err != nil {
		shutdownFuncs = shutdownFuncs[:len(shutdownFuncs)-1]
		return err
	}
	d.shutdownRegistered = true
	return nil
}

func (d *IDFDriver) Restart() {
	C.esp_restart()
}
