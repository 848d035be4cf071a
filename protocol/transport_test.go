package protocol

import (
	"errors"
	"net"
	"testing"
	"time"
)

// collectOutput records everything the transport writes
type collectOutput struct {
	data []byte
}

func (c *collectOutput) Output(data []byte) {
	c.data = append(c.data, data...)
}

// frames parses every frame in the collected output
func (c *collectOutput) frames(t *testing.T) []Frame {
	t.Helper()
	var frames []Frame
	data := c.data
	for len(data) > 0 {
		f, n, err := ParseFrame(data)
		if err != nil {
			t.Fatalf("unparseable output %v: %v", data, err)
		}
		f.Payload = append([]byte(nil), f.Payload...)
		frames = append(frames, f)
		data = data[n:]
	}
	return frames
}

func commandFrame(t *testing.T, seq uint8, cmdID uint32, args ...uint32) []byte {
	t.Helper()
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, cmdID)
	for _, a := range args {
		EncodeVLQUint(scratch, a)
	}
	msg, err := AppendFrame(nil, seq, scratch.Result())
	if err != nil {
		t.Fatalf("AppendFrame: %v", err)
	}
	return msg
}

func TestTransportDispatchAndAck(t *testing.T) {
	out := &collectOutput{}
	var gotID uint16
	var gotArg uint32
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		gotID = cmdID
		v, err := DecodeVLQUint(data)
		gotArg = v
		return err
	})

	msg := commandFrame(t, MessageDest, 7, 33)
	if n := tr.Receive(msg); n != len(msg) {
		t.Errorf("Expected %d bytes consumed, got %d", len(msg), n)
	}
	if gotID != 7 || gotArg != 33 {
		t.Errorf("Handler got cmd=%d arg=%d, expected cmd=7 arg=33", gotID, gotArg)
	}

	frames := out.frames(t)
	if len(frames) != 1 || len(frames[0].Payload) != 0 {
		t.Fatalf("Expected one ACK, got %+v", frames)
	}
	if frames[0].Seq != MessageDest|1 {
		t.Errorf("ACK should carry next sequence 0x11, got 0x%02x", frames[0].Seq)
	}
}

func TestTransportPartialFrame(t *testing.T) {
	out := &collectOutput{}
	calls := 0
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		calls++
		_, err := DecodeVLQUint(data)
		return err
	})

	msg := commandFrame(t, MessageDest, 1, 2)
	if n := tr.Receive(msg[:4]); n != 0 {
		t.Errorf("Partial frame should not be consumed, got %d", n)
	}
	if n := tr.Receive(msg); n != len(msg) || calls != 1 {
		t.Errorf("Full frame: consumed %d, calls %d", n, calls)
	}
}

func TestTransportWrongSequenceNaks(t *testing.T) {
	out := &collectOutput{}
	calls := 0
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		calls++
		return nil
	})

	tr.Receive(commandFrame(t, MessageDest, 1))
	tr.Receive(commandFrame(t, MessageDest|5, 1))

	if calls != 1 {
		t.Errorf("Out-of-sequence frame should not dispatch, calls=%d", calls)
	}
	frames := out.frames(t)
	if len(frames) != 2 || frames[1].Seq != MessageDest|1 {
		t.Errorf("Expected NAK with sequence 0x11, got %+v", frames)
	}
}

func TestTransportResyncAfterGarbage(t *testing.T) {
	out := &collectOutput{}
	calls := 0
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		calls++
		return nil
	})

	data := append([]byte{0x03, 0x99, 0x42, MessageValueSync}, commandFrame(t, MessageDest, 4)...)
	tr.Receive(data)

	if calls != 1 {
		t.Errorf("Expected frame after garbage to dispatch once, got %d", calls)
	}
	if !tr.Synchronized() {
		t.Error("Transport should be synchronized after a valid frame")
	}
}

func TestTransportHostReset(t *testing.T) {
	out := &collectOutput{}
	resets := 0
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error { return nil })
	tr.SetResetCallback(func() { resets++ })

	tr.Receive(commandFrame(t, MessageDest, 1))
	tr.Receive(commandFrame(t, MessageDest|1, 1))
	tr.Receive(commandFrame(t, MessageDest, 1))

	if resets != 1 {
		t.Errorf("Expected one reset callback, got %d", resets)
	}
}

func TestTransportErrorCallback(t *testing.T) {
	out := &collectOutput{}
	failure := errors.New("boom")
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error { return failure })

	var gotID uint16
	var gotErr error
	tr.SetErrorCallback(func(cmdID uint16, err error) {
		gotID, gotErr = cmdID, err
	})

	tr.Receive(commandFrame(t, MessageDest, 9))
	if gotID != 9 || gotErr != failure {
		t.Errorf("Error callback got cmd=%d err=%v", gotID, gotErr)
	}
	if !tr.Synchronized() {
		t.Error("Handler errors must not desynchronize the transport")
	}
}

func TestTransportRejectsOversizedCommandID(t *testing.T) {
	out := &collectOutput{}
	called := false
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		called = true
		return nil
	})

	var gotID uint16
	var gotErr error
	tr.SetErrorCallback(func(cmdID uint16, err error) {
		gotID, gotErr = cmdID, err
	})

	// 65536+5 must not alias command 5
	tr.Receive(commandFrame(t, MessageDest, 0x10005, 1))
	if called {
		t.Error("Handler ran for an out-of-range command ID")
	}
	if gotID != MaxCommandID || !errors.Is(gotErr, ErrUnknownCommand) {
		t.Errorf("Error callback got cmd=%d err=%v", gotID, gotErr)
	}
	if !tr.Synchronized() {
		t.Error("Out-of-range IDs must not desynchronize the transport")
	}
	if frames := out.frames(t); len(frames) != 1 || len(frames[0].Payload) != 0 {
		t.Errorf("Expected a single ACK, got %d frames", len(frames))
	}
}

func TestTransportSendCommand(t *testing.T) {
	out := &collectOutput{}
	tr := NewTransport(out, nil)

	err := tr.SendCommand(3, func(output OutputBuffer) {
		EncodeVLQString(output, "devboard")
	})
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	frames := out.frames(t)
	if len(frames) != 1 {
		t.Fatalf("Expected one frame, got %d", len(frames))
	}
	payload := frames[0].Payload
	id, _ := DecodeVLQUint(&payload)
	name, _ := DecodeVLQString(&payload)
	if id != 3 || name != "devboard" {
		t.Errorf("Got id=%d name=%q", id, name)
	}

	if err := tr.SendCommand(3, func(output OutputBuffer) {
		output.Output(make([]byte, MessageLengthMax))
	}); err == nil {
		t.Error("Expected error for oversized payload")
	}
}

// serveDevice runs a firmware-side Transport on one end of a pipe
func serveDevice(t *testing.T, conn net.Conn, handler CommandHandler) *Transport {
	t.Helper()
	out := &collectOutput{}
	tr := NewTransport(out, handler)
	go func() {
		buf := make([]byte, 256)
		pending := NewFifoBuffer(512)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			pending.Write(buf[:n])
			pending.Pop(tr.Receive(pending.Data()))
			if len(out.data) > 0 {
				reply := out.data
				out.data = nil
				if _, err := conn.Write(reply); err != nil {
					return
				}
			}
		}
	}()
	return tr
}

func TestHostTransportRoundTrip(t *testing.T) {
	hostEnd, deviceEnd := net.Pipe()
	defer deviceEnd.Close()

	var device *Transport
	device = serveDevice(t, deviceEnd, func(cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		return device.SendCommand(cmdID+1, func(output OutputBuffer) {
			EncodeVLQUint(output, v*2)
		})
	})

	host := NewHostTransport(hostEnd)
	defer host.Close()

	events := make(chan uint16, 4)
	host.SetResponseHandler(func(cmdID uint16, data *[]byte) {
		events <- cmdID
	})

	err := host.SendCommand(4, func(output OutputBuffer) {
		EncodeVLQUint(output, 21)
	})
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if host.CurrentSequence() != MessageDest|1 {
		t.Errorf("Sequence should advance to 0x11, got 0x%02x", host.CurrentSequence())
	}

	resp, err := host.ReceiveResponse(time.Second)
	if err != nil {
		t.Fatalf("ReceiveResponse: %v", err)
	}
	id, _ := DecodeVLQUint(&resp)
	val, _ := DecodeVLQUint(&resp)
	if id != 5 || val != 42 {
		t.Errorf("Expected response 5/42, got %d/%d", id, val)
	}

	select {
	case got := <-events:
		if got != 5 {
			t.Errorf("Response handler got cmd %d", got)
		}
	case <-time.After(time.Second):
		t.Error("Response handler not called")
	}
}

func TestHostTransportAckTimeout(t *testing.T) {
	hostEnd, deviceEnd := net.Pipe()
	defer deviceEnd.Close()
	go func() {
		// Swallow everything, never ACK
		buf := make([]byte, 64)
		for {
			if _, err := deviceEnd.Read(buf); err != nil {
				return
			}
		}
	}()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	if err := host.SendCommandWithTimeout(1, nil, 50*time.Millisecond); err == nil {
		t.Error("Expected ACK timeout")
	}
}
