package protocol

import (
	"errors"
	"strconv"
	"strings"
)

// ParamType is the wire type of one command parameter
type ParamType uint8

const (
	ParamUint   ParamType = iota // %u
	ParamInt                     // %i
	ParamByte                    // %c
	ParamUint16                  // %hu
	ParamString                  // %s or %*s
)

var ErrBadFormat = errors.New("bad parameter format")

// Param is one name=%type entry of a command format string
type Param struct {
	Name string
	Type ParamType
}

// ParseFormat splits a format like "pin=%u flag=%c" into its parameters
func ParseFormat(format string) ([]Param, error) {
	fields := strings.Fields(format)
	params := make([]Param, 0, len(fields))
	for _, field := range fields {
		name, verb, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return nil, ErrBadFormat
		}
		var t ParamType
		switch verb {
		case "%u":
			t = ParamUint
		case "%i":
			t = ParamInt
		case "%c":
			t = ParamByte
		case "%hu":
			t = ParamUint16
		case "%s", "%*s", "%.*s":
			t = ParamString
		default:
			return nil, ErrBadFormat
		}
		params = append(params, Param{Name: name, Type: t})
	}
	return params, nil
}

// EncodeArgs encodes textual argument values in parameter order.
// Every parameter must have a value in args.
func EncodeArgs(output OutputBuffer, params []Param, args map[string]string) error {
	for _, p := range params {
		raw, ok := args[p.Name]
		if !ok {
			return errors.New("missing argument " + p.Name)
		}
		switch p.Type {
		case ParamString:
			EncodeVLQString(output, raw)
		case ParamInt:
			v, err := strconv.ParseInt(raw, 0, 32)
			if err != nil {
				return errors.New("argument " + p.Name + ": " + err.Error())
			}
			EncodeVLQInt(output, int32(v))
		default:
			v, err := strconv.ParseUint(raw, 0, 32)
			if err != nil {
				return errors.New("argument " + p.Name + ": " + err.Error())
			}
			EncodeVLQUint(output, uint32(v))
		}
	}
	return nil
}

// DecodeArgs decodes parameters into a map. Integer types decode as int64,
// strings as string.
func DecodeArgs(data *[]byte, params []Param) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params))
	for _, p := range params {
		switch p.Type {
		case ParamString:
			s, err := DecodeVLQString(data)
			if err != nil {
				return nil, err
			}
			out[p.Name] = s
		case ParamInt:
			v, err := DecodeVLQInt(data)
			if err != nil {
				return nil, err
			}
			out[p.Name] = int64(v)
		default:
			v, err := DecodeVLQUint(data)
			if err != nil {
				return nil, err
			}
			out[p.Name] = int64(v)
		}
	}
	return out, nil
}
