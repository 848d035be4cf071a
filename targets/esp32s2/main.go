//go:build esp32s2 && tinygo

package main

import (
	"time"

	"tidal/core"
	"tidal/protocol"
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	msgerrors uint32
)

func main() {
	InitUSB()

	core.SetDebugWriter(debugWrite)
	core.SetDebugEnabled(true)

	// Deferred calls are polled from the main loop, so no waker is needed
	bridge := core.NewBridge(NewIDFDriver(), core.NewScheduler(nil))
	module := core.NewModule(bridge)

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, module.HandleCommand)
	transport.SetErrorCallback(module.ReportError)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	// The host expects each ACK before it sends more
	transport.SetFlushCallback(writeUSB)
	module.SetTransport(transport)

	core.DebugPrintln("[tidal] ready, variant " + string(bridge.GetVariant()))

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			readUSB()

			if inputBuffer.Available() > 0 {
				n := transport.Receive(inputBuffer.Data())
				inputBuffer.Pop(n)
			}

			// Handlers scheduled by the lightsleep ISR; they may send events
			sched := bridge.Scheduler()
			if sched.TakeWake() || sched.Pending() > 0 {
				sched.RunPending()
			}

			writeUSB()

			// Runs only after the ACK has gone out
			if err := module.CheckPendingReboot(); err != nil {
				core.DebugPrintln("[tidal] reboot failed: " + err.Error())
			}
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// readUSB moves whatever the CDC endpoint holds into the input FIFO
func readUSB() {
	for USBAvailable() > 0 && inputBuffer.Free() > 0 {
		b, err := USBRead()
		if err != nil {
			msgerrors++
			return
		}
		inputBuffer.Write([]byte{b})
	}
}

func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}
	if _, err := USBWriteBytes(result); err != nil {
		msgerrors++
	}
	outputBuffer.Reset()
}
