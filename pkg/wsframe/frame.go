// Package wsframe implements the fixed binary header used on every
// uplink/downlink WebSocket message between firmware and server.
package wsframe

import (
	"encoding/binary"
	"fmt"
)

// Frame kinds.
const (
	KindPCM          = byte(1)
	KindWAV          = byte(2)
	KindStateCmd     = byte(3)
	KindWakewordEvt  = byte(4)
	KindStateEvt     = byte(5)
	KindSpeakDoneEvt = byte(6)
)

// Message types.
const (
	MsgStart = byte(1)
	MsgData  = byte(2)
	MsgEnd   = byte(3)
)

// HeaderSize is the number of bytes in the fixed header preceding the payload.
const HeaderSize = 7

// Frame is a decoded wire message: kind, msg_type, seq and payload. The
// reserved byte is never meaningful and is dropped on decode.
type Frame struct {
	Kind    byte
	MsgType byte
	Seq     uint16
	Payload []byte
}

// ErrMalformedFrame is returned by Decode when the buffer is shorter than
// the header or declares a payload length that does not match what follows.
type ErrMalformedFrame struct {
	Reason string
}

func (e *ErrMalformedFrame) Error() string {
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}

// Encode serializes kind, msgType, seq and payload into the wire format:
// header (7 bytes, little-endian) followed by the raw payload.
func Encode(kind, msgType byte, seq uint16, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = kind
	buf[1] = msgType
	buf[2] = 0 // reserved
	binary.LittleEndian.PutUint16(buf[3:5], seq)
	binary.LittleEndian.PutUint16(buf[5:7], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decode parses a raw WebSocket binary message into a Frame. It fails with
// *ErrMalformedFrame if the buffer is shorter than the header or the
// declared payload_bytes disagrees with the remaining byte count.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, &ErrMalformedFrame{Reason: "header too short"}
	}
	kind := buf[0]
	msgType := buf[1]
	seq := binary.LittleEndian.Uint16(buf[3:5])
	payloadBytes := binary.LittleEndian.Uint16(buf[5:7])
	payload := buf[HeaderSize:]
	if int(payloadBytes) != len(payload) {
		return Frame{}, &ErrMalformedFrame{Reason: "payload length mismatch"}
	}
	if len(payload) == 0 {
		// A frame with no payload decodes with a nil Payload.
		payload = nil
	}
	return Frame{Kind: kind, MsgType: msgType, Seq: seq, Payload: payload}, nil
}

// EncodeStateCommand builds a STATE_CMD/DATA frame carrying a single-byte
// firmware state.
func EncodeStateCommand(seq uint16, stateID byte) []byte {
	return Encode(KindStateCmd, MsgData, seq, []byte{stateID})
}

// EncodeWavStart builds the downlink WAV/START frame payload:
// <u32 sampleRate, u16 channels>.
func EncodeWavStart(seq uint16, sampleRate uint32, channels uint16) []byte {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint32(payload[0:4], sampleRate)
	binary.LittleEndian.PutUint16(payload[4:6], channels)
	return Encode(KindWAV, MsgStart, seq, payload)
}
