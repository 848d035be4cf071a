package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"tidal/host/serial"
	"tidal/protocol"
)

// Bootstrap message IDs, fixed before the dictionary is known
const (
	identifyResponseID = 0
	identifyID         = 1
)

var (
	ErrNotConnected = errors.New("not connected to device")
	ErrNoDictionary = errors.New("dictionary not loaded")
	ErrReplyTimeout = errors.New("timed out waiting for reply")
	ErrUnknownName  = errors.New("unknown command")
)

// Message is a decoded response or event from the firmware
type Message struct {
	Name string
	Args map[string]interface{}
}

// Uint returns a numeric argument, 0 when missing
func (m *Message) Uint(name string) uint32 {
	v, _ := m.Args[name].(int64)
	return uint32(v)
}

// Text returns a string argument
func (m *Message) Text(name string) string {
	s, _ := m.Args[name].(string)
	return s
}

// RemoteError is a failure the firmware reported for a command
type RemoteError struct {
	Command string
	Op      string
	Code    int32
}

func (e *RemoteError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("%s failed in %s: %d", e.Command, e.Op, e.Code)
	}
	return fmt.Sprintf("%s failed in %s: 0x%x", e.Command, e.Op, e.Code)
}

// Device is a connection to a tidal badge
type Device struct {
	transport *protocol.HostTransport
	port      io.ReadWriteCloser
	timeout   time.Duration

	dict           atomic.Pointer[Dictionary]
	dictionaryData []byte

	replies chan *Message
	events  chan *Message
	dropped atomic.Uint32

	closeOnce sync.Once
	connected atomic.Bool
}

// New wraps an open link to the firmware. timeout bounds ACK and reply waits.
func New(port io.ReadWriteCloser, timeout time.Duration) *Device {
	d := &Device{
		port:    port,
		timeout: timeout,
		replies: make(chan *Message, 16),
		events:  make(chan *Message, 32),
	}
	d.transport = protocol.NewHostTransport(port)
	d.transport.SetResponseHandler(d.handleMessage)
	d.connected.Store(true)
	return d
}

// Connect opens the serial port described by cfg
func Connect(cfg *serial.Config, timeout time.Duration) (*Device, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", cfg.Device, err)
	}
	return New(port, timeout), nil
}

// Close closes the connection
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.connected.Store(false)
		err = d.transport.Close()
	})
	return err
}

// IsConnected returns whether the device link is open
func (d *Device) IsConnected() bool {
	return d.connected.Load()
}

// RetrieveDictionary fetches and parses the firmware dictionary
func (d *Device) RetrieveDictionary() error {
	if !d.IsConnected() {
		return ErrNotConnected
	}

	var dictBuffer bytes.Buffer
	offset := uint32(0)
	chunkSize := uint8(40)
	maxIterations := 1000 // Safety limit

	d.transport.DrainResponses()
	for i := 0; i < maxIterations; i++ {
		chunk, err := d.sendIdentify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}
		if len(chunk) == 0 {
			break
		}
		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))
	}

	dict, err := ParseDictionary(dictBuffer.Bytes())
	if err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}
	d.dictionaryData = dictBuffer.Bytes()
	d.dict.Store(dict)
	return nil
}

// sendIdentify sends an identify command and waits for its response
func (d *Device) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := d.transport.SendCommandWithTimeout(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	}, d.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	for {
		payload, err := d.transport.ReceiveResponse(d.timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to receive identify response: %w", err)
		}

		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response command ID: %w", err)
		}
		if cmdID != identifyResponseID {
			// An event that raced the request
			continue
		}

		respOffset, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response offset: %w", err)
		}
		if respOffset != offset {
			return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
		}
		return protocol.DecodeVLQBytes(&payload)
	}
}

// Dictionary returns the parsed dictionary, nil before RetrieveDictionary
func (d *Device) Dictionary() *Dictionary {
	return d.dict.Load()
}

// DictionaryRaw returns the dictionary text as received
func (d *Device) DictionaryRaw() []byte {
	return d.dictionaryData
}

// Events delivers lightsleep_irq and pin_irq messages
func (d *Device) Events() <-chan *Message {
	return d.events
}

// DroppedEvents returns how many events arrived while the queue was full
func (d *Device) DroppedEvents() uint32 {
	return d.dropped.Load()
}

// handleMessage runs on the transport read loop
func (d *Device) handleMessage(cmdID uint16, data *[]byte) {
	dict := d.dict.Load()
	if dict == nil {
		return
	}
	entry, ok := dict.Lookup(cmdID)
	if !ok || !entry.Response {
		return
	}
	args, err := protocol.DecodeArgs(data, entry.Params)
	if err != nil {
		return
	}
	msg := &Message{Name: entry.Name, Args: args}

	ch := d.replies
	if msg.Name == "lightsleep_irq" || msg.Name == "pin_irq" {
		ch = d.events
	}
	select {
	case ch <- msg:
	default:
		if ch == d.events {
			d.dropped.Add(1)
		}
	}
}

func (d *Device) send(name string, args map[string]string, timeout time.Duration) error {
	if !d.IsConnected() {
		return ErrNotConnected
	}
	dict := d.dict.Load()
	if dict == nil {
		return ErrNoDictionary
	}
	entry, ok := dict.Commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownName, name)
	}

	// Encode up front so a bad argument never reaches the wire
	encoded := protocol.NewScratchOutput()
	if err := protocol.EncodeArgs(encoded, entry.Params, args); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return d.transport.SendCommandWithTimeout(entry.ID, func(output protocol.OutputBuffer) {
		output.Output(encoded.Result())
	}, timeout)
}

func (d *Device) drainReplies() {
	for {
		select {
		case <-d.replies:
		default:
			return
		}
	}
}

// Call runs a command that has no reply. A failure the firmware reports is
// returned as *RemoteError.
func (d *Device) Call(name string, args map[string]string) error {
	d.drainReplies()
	if err := d.send(name, args, d.timeout); err != nil {
		return err
	}
	// The firmware sends its error report before the ACK, so it is queued by now
	for {
		select {
		case msg := <-d.replies:
			if msg.Name == "error" {
				return remoteError(msg)
			}
		default:
			return nil
		}
	}
}

// Query runs a command and waits for the named reply
func (d *Device) Query(name string, args map[string]string, reply string) (*Message, error) {
	return d.QueryTimeout(name, args, reply, d.timeout)
}

// QueryTimeout is Query with its own timeout, for commands that block the
// firmware such as lightsleep
func (d *Device) QueryTimeout(name string, args map[string]string, reply string, timeout time.Duration) (*Message, error) {
	d.drainReplies()
	if err := d.send(name, args, timeout); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case msg := <-d.replies:
			switch msg.Name {
			case reply:
				return msg, nil
			case "error":
				return nil, remoteError(msg)
			}
		case <-timer.C:
			return nil, fmt.Errorf("%s: %w", reply, ErrReplyTimeout)
		}
	}
}

func remoteError(msg *Message) error {
	code, _ := msg.Args["code"].(int64)
	return &RemoteError{
		Command: msg.Text("cmd"),
		Op:      msg.Text("op"),
		Code:    int32(code),
	}
}
