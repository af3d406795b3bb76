// Package uplink reconstructs a single PCM capture from the PCM/START,
// PCM/DATA and PCM/END frame sequence and validates it against the fixed
// uplink audio parameters.
package uplink

import "fmt"

// Fixed uplink audio parameters: the wire protocol carries only 16kHz mono
// 16-bit signed little-endian PCM.
const (
	SampleRateHz   = 16000
	Channels       = 1
	SampleWidth    = 2 // bytes
	frameAlignment = SampleWidth * Channels
)

// ErrNotStreaming is returned by HandleData/HandleEnd when no START has
// been seen (or a prior END already closed the stream).
type ErrNotStreaming struct{ During string }

func (e *ErrNotStreaming) Error() string {
	return fmt.Sprintf("%s received before start", e.During)
}

// ErrMisaligned is returned when a payload's length is not a multiple of
// the sample frame size, or when the fully accumulated buffer isn't.
type ErrMisaligned struct{ Reason string }

func (e *ErrMisaligned) Error() string { return e.Reason }

// Assembler owns the PCM accumulation buffer for one session. It is not
// safe for concurrent use; the receive loop is its sole caller.
type Assembler struct {
	buffer    []byte
	streaming bool
}

// NewAssembler returns an empty, non-streaming assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// HandleStart clears the buffer and begins a new capture.
func (a *Assembler) HandleStart() {
	a.buffer = a.buffer[:0]
	a.streaming = true
}

// HandleData validates and appends a DATA payload. It reports whether the
// payload was non-empty (the caller uses this to drive the DATA-frame
// counter used by Listen's inactivity timeout).
func (a *Assembler) HandleData(payload []byte) (nonEmpty bool, err error) {
	if !a.streaming {
		return false, &ErrNotStreaming{During: "data"}
	}
	if len(payload)%frameAlignment != 0 {
		return false, &ErrMisaligned{Reason: "invalid pcm chunk length"}
	}
	a.buffer = append(a.buffer, payload...)
	return len(payload) > 0, nil
}

// HandleEnd appends the trailing payload, validates the fully accumulated
// buffer, and returns a copy of it while resetting the assembler to its
// initial (non-streaming, empty) state.
func (a *Assembler) HandleEnd(payload []byte) ([]byte, error) {
	if !a.streaming {
		return nil, &ErrNotStreaming{During: "end"}
	}
	if len(payload)%frameAlignment != 0 {
		return nil, &ErrMisaligned{Reason: "invalid pcm tail length"}
	}
	a.buffer = append(a.buffer, payload...)

	if len(a.buffer) == 0 || len(a.buffer)%frameAlignment != 0 {
		return nil, &ErrMisaligned{Reason: "invalid accumulated pcm length"}
	}

	pcm := make([]byte, len(a.buffer))
	copy(pcm, a.buffer)
	a.buffer = a.buffer[:0]
	a.streaming = false
	return pcm, nil
}

// Frames returns how many 16-bit mono samples pcm contains.
func Frames(pcm []byte) int {
	return len(pcm) / frameAlignment
}

// DurationSeconds returns the playback duration of pcm at the fixed uplink
// sample rate, rounded to 3 decimal places.
func DurationSeconds(pcm []byte) float64 {
	frames := Frames(pcm)
	seconds := float64(frames) / float64(SampleRateHz)
	return roundTo3(seconds)
}

func roundTo3(v float64) float64 {
	const scale = 1000.0
	if v < 0 {
		return -roundTo3(-v)
	}
	return float64(int64(v*scale+0.5)) / scale
}
