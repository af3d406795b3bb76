package audio

import "encoding/binary"

// ulawByteToLinear converts a single G.711 mu-law byte to a 16-bit PCM
// sample. Ported from the original CoreS3 HTTP ingestion path; kept only
// for the legacy /api/v1/audio endpoint, not the WebSocket protocol.
func ulawByteToLinear(sample byte) int16 {
	uVal := ^sample
	t := (int(uVal&0x0f) << 3) + 0x84
	t <<= (uVal & 0x70) >> 4
	if uVal&0x80 != 0 {
		return int16(0x84 - t)
	}
	return int16(t - 0x84)
}

// MulawToPCM16 decodes a mu-law payload into little-endian 16-bit PCM.
func MulawToPCM16(payload []byte) []byte {
	out := make([]byte, len(payload)*2)
	for i, b := range payload {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(ulawByteToLinear(b)))
	}
	return out
}
