package device

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tidal/protocol"
)

// Entry is one command or response from the firmware dictionary
type Entry struct {
	ID       uint16
	Name     string
	Format   string
	Params   []protocol.Param
	Response bool
}

// Dictionary is the parsed firmware dictionary
type Dictionary struct {
	Header    string
	Commands  map[string]*Entry
	Responses map[string]*Entry
	Constants map[string]string

	byID map[uint16]*Entry
}

// ParseDictionary parses the text the firmware returns through identify
func ParseDictionary(data []byte) (*Dictionary, error) {
	dict := &Dictionary{
		Commands:  make(map[string]*Entry),
		Responses: make(map[string]*Entry),
		Constants: make(map[string]string),
		byID:      make(map[uint16]*Entry),
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	first := true
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if first {
			first = false
			dict.Header = line
			continue
		}
		if line == "" {
			continue
		}

		kind, rest, _ := strings.Cut(line, " ")
		switch kind {
		case "cmd", "resp":
			fields := strings.SplitN(rest, " ", 3)
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: malformed %s entry", lineNo, kind)
			}
			id, err := strconv.ParseUint(fields[0], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad id: %w", lineNo, err)
			}
			entry := &Entry{ID: uint16(id), Name: fields[1], Response: kind == "resp"}
			if len(fields) == 3 {
				entry.Format = fields[2]
			}
			if entry.Params, err = protocol.ParseFormat(entry.Format); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", lineNo, entry.Name, err)
			}
			if entry.Response {
				dict.Responses[entry.Name] = entry
			} else {
				dict.Commands[entry.Name] = entry
			}
			dict.byID[entry.ID] = entry
		case "const":
			name, value, ok := strings.Cut(rest, " ")
			if !ok {
				return nil, fmt.Errorf("line %d: malformed constant", lineNo)
			}
			dict.Constants[name] = value
		default:
			return nil, fmt.Errorf("line %d: unknown entry %q", lineNo, kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if dict.Header == "" {
		return nil, fmt.Errorf("empty dictionary")
	}
	return dict, nil
}

// Lookup returns the entry with the given ID
func (d *Dictionary) Lookup(id uint16) (*Entry, bool) {
	e, ok := d.byID[id]
	return e, ok
}

// CommandNames returns the command names in ID order
func (d *Dictionary) CommandNames() []string {
	names := make([]string, 0, len(d.Commands))
	for name := range d.Commands {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return d.Commands[names[i]].ID < d.Commands[names[j]].ID
	})
	return names
}
