// Package protocol implements the framed command protocol spoken between
// tidal firmware and the host over USB-CDC.
//
// A frame is [len][seq][payload][crc_hi][crc_lo][0x7E]. The payload is a
// sequence of VLQ-encoded command IDs, each followed by its arguments.
package protocol

// Version represents the protocol version reported in the dictionary
const Version = "tidal-0.2.0"

// Frame layout
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10

	// MessageMax bounds one burst of output (several frames)
	MessageMax = 512

	MessageSeqMask = 0x0F
)

// nextSeq advances a sequence number, keeping the destination bits
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
