package protocol

import "errors"

var (
	// ErrShortFrame means more bytes are needed before the frame can be parsed
	ErrShortFrame = errors.New("incomplete frame")

	// ErrBadFrame means the bytes at the front are not a valid frame
	ErrBadFrame = errors.New("malformed frame")

	// ErrFrameTooLong is returned when a payload does not fit in one frame
	ErrFrameTooLong = errors.New("payload exceeds frame size")
)

// Frame is one parsed message
type Frame struct {
	Seq     uint8
	Payload []byte // aliases the input; copy before keeping it
}

// CRC16 calculates the CRC16-CCITT checksum used by the frame trailer
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc & 0xFF)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

// AppendFrame appends a complete frame carrying payload to dst
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return dst, ErrFrameTooLong
	}
	start := len(dst)
	dst = append(dst, uint8(msgLen), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync), nil
}

// ParseFrame parses the frame at the front of data and returns it with the
// number of bytes it occupies. Leading sync bytes must already be skipped.
func ParseFrame(data []byte) (Frame, int, error) {
	if len(data) < MessageLengthMin {
		return Frame{}, 0, ErrShortFrame
	}
	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return Frame{}, 0, ErrBadFrame
	}
	if len(data) < msgLen {
		return Frame{}, 0, ErrShortFrame
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return Frame{}, 0, ErrBadFrame
	}
	want := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
	if CRC16(data[:msgLen-MessageTrailerSize]) != want {
		return Frame{}, 0, ErrBadFrame
	}
	return Frame{
		Seq:     data[MessagePositionSeq],
		Payload: data[MessageHeaderSize : msgLen-MessageTrailerSize],
	}, msgLen, nil
}

// resync drops bytes up to and including the next sync byte.
// ok is false when no sync byte was found.
func resync(data []byte) (rest []byte, ok bool) {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:], true
		}
	}
	return nil, false
}
