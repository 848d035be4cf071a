package sim

import (
	"context"
	"net"
	"sync"

	"tidal/core"
	"tidal/protocol"
)

// Device is a simulated badge: the firmware core wired to a Driver and a
// transport, with the host end exposed as a net.Conn.
type Device struct {
	Driver *Driver
	Bridge *core.Bridge
	Module *core.Module

	transport *protocol.Transport
	waker     *core.ChanWaker
	dev       net.Conn
	host      net.Conn

	stopOnce sync.Once
	done     chan struct{}
}

// connOutput writes transport output to the device end of the pipe
type connOutput struct {
	conn net.Conn
}

func (c connOutput) Output(data []byte) {
	// Write fails only once the host end is closed
	_, _ = c.conn.Write(data)
}

// NewDevice builds a simulated badge. Call Run to start its main loop.
func NewDevice() *Device {
	d := &Device{
		Driver: NewDriver(),
		waker:  core.NewChanWaker(),
		done:   make(chan struct{}),
	}
	d.dev, d.host = net.Pipe()
	d.Bridge = core.NewBridge(d.Driver, core.NewScheduler(d.waker))
	d.Module = core.NewModule(d.Bridge)
	d.transport = protocol.NewTransport(connOutput{d.dev}, d.Module.HandleCommand)
	d.transport.SetErrorCallback(d.Module.ReportError)
	d.Module.SetTransport(d.transport)
	return d
}

// Conn returns the host end of the link
func (d *Device) Conn() net.Conn {
	return d.host
}

// Run is the firmware main loop: feed received bytes to the transport and
// drain the scheduler whenever an ISR woke us. It returns when ctx is done
// or the host end is closed.
func (d *Device) Run(ctx context.Context) error {
	defer d.stop()

	rx := make(chan []byte)
	rxErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := d.dev.Read(buf)
			if err != nil {
				rxErr <- err
				return
			}
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case rx <- chunk:
			case <-d.done:
				return
			}
		}
	}()

	input := protocol.NewFifoBuffer(1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-rxErr:
			return err
		case chunk := <-rx:
			input.Write(chunk)
			n := d.transport.Receive(input.Data())
			input.Pop(n)
			restarts := d.Driver.Restarts()
			if err := d.Module.CheckPendingReboot(); err != nil {
				core.DebugPrintln("[sim] reboot failed: " + err.Error())
			} else if d.Driver.Restarts() != restarts {
				// Came back up in the bootloader; the host starts over
				d.transport.Reset()
				input.Reset()
			}
		case <-d.waker.C():
		}
		if d.Bridge.Scheduler().TakeWake() || d.Bridge.Scheduler().Pending() > 0 {
			d.Bridge.Scheduler().RunPending()
		}
	}
}

func (d *Device) stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.dev.Close()
	})
}

// Close shuts the simulated link down from the device side
func (d *Device) Close() error {
	d.stop()
	return nil
}
