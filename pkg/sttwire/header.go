// Package sttwire implements the bit-packed binary protocol header used by
// Volcengine's speech APIs, shared by the streaming and legacy recognizer
// adapters in pkg/stt.
package sttwire

import (
	"bytes"
	"encoding/binary"
)

type (
	ProtocolVersion          byte
	MessageType              byte
	MessageTypeSpecificFlags byte
	SerializationType        byte
	CompressionType          byte
)

const (
	ProtocolVersion1 = ProtocolVersion(0b0001)
	DefaultHeaderLen = 0b0001

	ClientFullRequest      = MessageType(0b0001)
	ClientAudioOnlyRequest = MessageType(0b0010)
	ServerFullResponse     = MessageType(0b1001)
	ServerACK              = MessageType(0b1011)
	ServerErrorResponse    = MessageType(0b1111)

	NoSequence   = MessageTypeSpecificFlags(0b0000)
	PosSequence  = MessageTypeSpecificFlags(0b0001)
	NegSequence  = MessageTypeSpecificFlags(0b0010)
	NegSequence1 = MessageTypeSpecificFlags(0b0011)

	NoSerialization = SerializationType(0b0000)
	JSON            = SerializationType(0b0001)

	NoCompression = CompressionType(0b0000)
	Gzip          = CompressionType(0b0001)
)

// Header describes the 4-byte fixed header preceding every Volcengine ASR
// websocket message (excluding the optional 4-byte big-endian payload size
// that follows it, which callers append separately per message kind).
type Header struct {
	MessageType              MessageType
	MessageTypeSpecificFlags MessageTypeSpecificFlags
	SerializationType        SerializationType
	CompressionType          CompressionType
	ReservedData             []byte
}

// Bytes packs the header into its 4-byte wire form.
func (h Header) Bytes() []byte {
	buf := bytes.NewBuffer(nil)
	buf.WriteByte(byte(ProtocolVersion1<<4 | DefaultHeaderLen))
	buf.WriteByte(byte(h.MessageType<<4) | byte(h.MessageTypeSpecificFlags))
	buf.WriteByte(byte(h.SerializationType<<4) | byte(h.CompressionType))
	buf.Write(h.ReservedData)
	return buf.Bytes()
}

// DefaultFullClientHeader is the header for the initial full-client request.
func DefaultFullClientHeader() Header {
	return Header{
		MessageType:              ClientFullRequest,
		MessageTypeSpecificFlags: PosSequence,
		SerializationType:        JSON,
		CompressionType:          Gzip,
		ReservedData:             []byte{0x00},
	}
}

// DefaultAudioOnlyHeader is the header for a non-terminal audio-only chunk.
func DefaultAudioOnlyHeader() Header {
	return Header{
		MessageType:              ClientAudioOnlyRequest,
		MessageTypeSpecificFlags: PosSequence,
		SerializationType:        NoSerialization,
		CompressionType:          Gzip,
		ReservedData:             []byte{0x00},
	}
}

// AppendPayload appends a big-endian uint32 payload length followed by the
// payload itself, the framing every Volcengine message body uses after its
// fixed header.
func AppendPayload(header []byte, payload []byte) []byte {
	msg := make([]byte, len(header), len(header)+4+len(payload))
	copy(msg, header)
	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(payload)))
	msg = append(msg, size...)
	msg = append(msg, payload...)
	return msg
}
