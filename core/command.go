package core

import (
	"strings"
	"sync"

	"tidal/protocol"
)

// CommandHandler is a function that handles a command with raw frame data
// The handler is responsible for decoding its own arguments from the data pointer
type CommandHandler func(data *[]byte) error

// Command is one entry point (handler set) or one message the firmware
// sends back (handler nil)
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "pin=%u flag=%c"
	Handler CommandHandler
}

// Constant is a named value published with the dictionary
type Constant struct {
	Name  string
	Value interface{}
}

// CommandRegistry holds registered entry points, responses and constants
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[uint16]*Command
	nameToID   map[string]uint16
	constants  []Constant
	nextID     uint16
	header     string
	dictionary string // Serialized dictionary for host
}

// ErrUnknownCommand is returned when dispatching an unregistered ID
var ErrUnknownCommand = protocol.ErrUnknownCommand

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command to the registry. Registering a name twice returns
// the existing ID.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := r.nextID
	r.nextID++

	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id
	r.rebuildDictionary()

	return id
}

// RegisterResponse registers a message the firmware sends to the host
func (r *CommandRegistry) RegisterResponse(name string, format string) uint16 {
	return r.Register(name, format, nil)
}

// RegisterConstant publishes a constant in the dictionary
func (r *CommandRegistry) RegisterConstant(name string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.constants {
		if r.constants[i].Name == name {
			r.constants[i].Value = value
			r.rebuildDictionary()
			return
		}
	}
	r.constants = append(r.constants, Constant{Name: name, Value: value})
	r.rebuildDictionary()
}

// SetHeader sets the first dictionary line (firmware identification)
func (r *CommandRegistry) SetHeader(header string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.header = header
	r.rebuildDictionary()
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the appropriate command handler
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// GetDictionary returns the dictionary text sent to the host
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// GetChunk returns up to count bytes of the dictionary starting at offset
func (r *CommandRegistry) GetChunk(offset uint32, count uint8) []byte {
	dict := r.GetDictionary()
	if offset >= uint32(len(dict)) {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(dict)) {
		end = uint32(len(dict))
	}
	return []byte(dict[offset:end])
}

// rebuildDictionary rebuilds the dictionary string.
// One line per entry:
//
//	cmd <id> <name> [format]
//	resp <id> <name> [format]
//	const <name> <value>
//
// Must be called with lock held
func (r *CommandRegistry) rebuildDictionary() {
	var sb strings.Builder
	if r.header != "" {
		sb.WriteString(r.header)
		sb.WriteByte('\n')
	}
	for i := uint16(0); i < r.nextID; i++ {
		cmd, ok := r.commands[i]
		if !ok {
			continue
		}
		if cmd.Handler != nil {
			sb.WriteString("cmd ")
		} else {
			sb.WriteString("resp ")
		}
		sb.WriteString(itoa(int(cmd.ID)))
		sb.WriteByte(' ')
		sb.WriteString(cmd.Name)
		if cmd.Format != "" {
			sb.WriteByte(' ')
			sb.WriteString(cmd.Format)
		}
		sb.WriteByte('\n')
	}
	for _, c := range r.constants {
		sb.WriteString("const ")
		sb.WriteString(c.Name)
		sb.WriteByte(' ')
		sb.WriteString(valueToString(c.Value))
		sb.WriteByte('\n')
	}
	r.dictionary = sb.String()
}
