package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTransportClosed is returned by calls made after Close
var ErrTransportClosed = errors.New("transport stopped")

// ResponseHandler is called from the read loop for every message the
// firmware sends. data starts after the command ID.
type ResponseHandler func(cmdID uint16, data *[]byte)

// HostTransport is the host side of the protocol: it sends command frames,
// waits for their ACK and collects responses and events.
type HostTransport struct {
	port io.ReadWriteCloser

	seq    atomic.Uint32 // sequence of the next frame we send
	synced atomic.Bool

	input *FifoBuffer

	ackChan      chan uint8
	responseChan chan []byte

	handlerMu       sync.RWMutex
	responseHandler ResponseHandler

	writeMu  sync.Mutex
	sendMu   sync.Mutex // one command in flight
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewHostTransport creates a host-side transport and starts its reader
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		input:        NewFifoBuffer(1024),
		ackChan:      make(chan uint8, 1),
		responseChan: make(chan []byte, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	t.seq.Store(MessageDest)
	t.synced.Store(true)

	go t.readLoop()
	return t
}

// SendCommand sends a command to the firmware and waits for its ACK
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

// SendCommandWithTimeout sends a command with a custom ACK timeout
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	if scratch.Overflow() > 0 {
		return ErrFrameTooLong
	}

	seq := uint8(t.seq.Load())
	msg, err := AppendFrame(nil, seq, scratch.Result())
	if err != nil {
		return fmt.Errorf("failed to build command: %w", err)
	}

	// Drop a stale ACK from an earlier timed-out command
	select {
	case <-t.ackChan:
	default:
	}

	if err := t.write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return t.waitForAck(nextSeq(seq), timeout)
}

func (t *HostTransport) write(msg []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	n, err := t.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

func (t *HostTransport) waitForAck(want uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case got := <-t.ackChan:
		// Either way the firmware told us what it expects next
		t.seq.Store(uint32(got))
		if got != want {
			return fmt.Errorf("NAK: firmware expects sequence 0x%02x, wanted 0x%02x", got, want)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("ACK timeout after %v", timeout)
	case <-t.stopChan:
		return ErrTransportClosed
	}
}

// ReceiveResponse returns the payload of the next message from the
// firmware, command ID included
func (t *HostTransport) ReceiveResponse(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return nil, ErrTransportClosed
	}
}

// SetResponseHandler sets a callback for messages from the firmware.
// It runs on the read loop and must not block.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.responseHandler = handler
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)
	for {
		n, err := t.port.Read(buffer)
		if n > 0 {
			t.input.Write(buffer[:n])
			t.processMessages()
		}
		if err != nil {
			select {
			case <-t.stopChan:
				return
			default:
			}
			if errors.Is(err, io.ErrClosedPipe) {
				return
			}
			// Read timeouts surface as EOF on some ports
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) processMessages() {
	data := t.input.Data()
	total := len(data)

	for len(data) > 0 {
		if !t.synced.Load() {
			rest, ok := resync(data)
			data = rest
			if ok {
				t.synced.Store(true)
			}
			continue
		}
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		frame, n, err := ParseFrame(data)
		if err == ErrShortFrame {
			break
		}
		if err != nil {
			t.synced.Store(false)
			continue
		}
		data = data[n:]
		t.dispatchMessage(frame)
	}

	t.input.Pop(total - len(data))
}

func (t *HostTransport) dispatchMessage(frame Frame) {
	if len(frame.Payload) == 0 {
		select {
		case t.ackChan <- frame.Seq:
		default:
		}
		return
	}

	payload := make([]byte, len(frame.Payload))
	copy(payload, frame.Payload)

	t.handlerMu.RLock()
	handler := t.responseHandler
	t.handlerMu.RUnlock()
	if handler != nil {
		data := payload
		if cmdID, err := DecodeVLQUint(&data); err == nil {
			handler(uint16(cmdID), &data)
		}
	}

	select {
	case t.responseChan <- payload:
	default:
		// Full: drop the oldest
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- payload
	}
}

// DrainResponses discards queued responses
func (t *HostTransport) DrainResponses() {
	for {
		select {
		case <-t.responseChan:
		default:
			return
		}
	}
}

// Close stops the transport and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		err = t.port.Close()
		<-t.doneChan
	})
	return err
}

// CurrentSequence returns the sequence of the next frame to send
func (t *HostTransport) CurrentSequence() uint8 {
	return uint8(t.seq.Load())
}
