package protocol

import (
	"errors"
	"sync/atomic"
)

// MaxCommandID is the largest command ID a frame may carry
const MaxCommandID = 0xFFFF

// ErrUnknownCommand is returned for a command ID with no handler
var ErrUnknownCommand = errors.New("unknown command ID")

// CommandHandler handles one decoded command; it decodes its own arguments
// from data and must leave data positioned after them
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware side of the protocol: it parses host frames,
// dispatches the commands inside them and acknowledges each frame.
type Transport struct {
	synced  atomic.Bool
	nextSeq atomic.Uint32 // expected from host; also stamped on replies

	output  OutputBuffer
	handler CommandHandler

	resetCallback func() // host restarted its sequence
	flushCallback func() // push an ACK out immediately
	errorCallback func(cmdID uint16, err error)

	frame   []byte // reused encode buffers
	scratch *ScratchOutput
}

// NewTransport creates a new Transport instance
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		output:  output,
		handler: handler,
		frame:   make([]byte, 0, MessageLengthMax),
		scratch: NewScratchOutput(),
	}
	t.synced.Store(true)
	t.nextSeq.Store(MessageDest)
	return t
}

// Receive processes buffered host bytes and returns how many were consumed.
// A trailing partial frame is left for the next call.
func (t *Transport) Receive(data []byte) int {
	total := len(data)

	for len(data) > 0 {
		if !t.synced.Load() {
			rest, ok := resync(data)
			data = rest
			if ok {
				t.synced.Store(true)
				t.encodeAckNak()
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
		if err != nil || frame.Seq&^MessageSeqMask != MessageDest {
			t.synced.Store(false)
			continue
		}
		data = data[n:]

		expected := uint8(t.nextSeq.Load())
		if frame.Seq == MessageDest && expected != MessageDest {
			// Host restarted
			t.nextSeq.Store(MessageDest)
			expected = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if frame.Seq == expected {
			t.nextSeq.Store(uint32(nextSeq(frame.Seq)))
			t.dispatch(frame.Payload)
		}
		// A mismatched sequence is answered too; the ACK then acts as a
		// NAK carrying the sequence we expect.
		t.encodeAckNak()
	}

	return total - len(data)
}

// dispatch runs every command in a frame payload
func (t *Transport) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.synced.Store(false)
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.synced.Store(false)
			return
		}
		if t.handler == nil {
			return
		}
		if cmdID > MaxCommandID {
			// Its arguments cannot be skipped without a handler
			if t.errorCallback != nil {
				t.errorCallback(MaxCommandID, ErrUnknownCommand)
			}
			return
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			// Arguments of the failed command may be half-consumed;
			// the rest of the frame cannot be trusted.
			if t.errorCallback != nil {
				t.errorCallback(uint16(cmdID), err)
			}
			return
		}
	}
}

func (t *Transport) encodeAckNak() {
	seq := uint8(t.nextSeq.Load())
	t.frame, _ = AppendFrame(t.frame[:0], seq, nil)
	t.output.Output(t.frame)
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// SendCommand encodes a message from the firmware (a response or an event)
// with its arguments. Payloads that do not fit one frame are dropped.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	scratch := t.scratch
	scratch.Reset()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	if scratch.Overflow() > 0 {
		return ErrFrameTooLong
	}
	frame, err := AppendFrame(t.frame[:0], uint8(t.nextSeq.Load()), scratch.Result())
	if err != nil {
		return err
	}
	t.frame = frame
	t.output.Output(frame)
	return nil
}

// Reset resets the transport state (useful after USB disconnect/reconnect)
func (t *Transport) Reset() {
	t.synced.Store(true)
	t.nextSeq.Store(MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback to be called when host reset is detected
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback to immediately flush ACK messages
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorCallback sets a callback for commands whose handler failed
func (t *Transport) SetErrorCallback(callback func(cmdID uint16, err error)) {
	t.errorCallback = callback
}

// Synchronized reports whether the transport is locked onto frame boundaries
func (t *Transport) Synchronized() bool {
	return t.synced.Load()
}
