package session

import "errors"

// Application-layer errors surfaced to user-written talk_session code.
var (
	// ErrEmptyTranscript is returned by Listen when STT produced no text.
	ErrEmptyTranscript = errors.New("speech recognition result is empty")

	// ErrTimeout is returned by Listen (audio inactivity) and Speak
	// (playback acknowledgement) when their respective deadlines expire.
	ErrTimeout = errors.New("timed out")

	// ErrDisconnect is returned by any Session API call that is waiting
	// when the underlying WebSocket connection closes.
	ErrDisconnect = errors.New("websocket disconnected")
)

// ProtocolViolation is a protocol-layer error. It always carries the close
// code and reason the caller should use to terminate the WebSocket; the
// orchestrator never forwards it to user code.
type ProtocolViolation struct {
	Code   int
	Reason string
}

func (e *ProtocolViolation) Error() string {
	return e.Reason
}

func newProtocolViolation(reason string) *ProtocolViolation {
	return &ProtocolViolation{Code: 1003, Reason: reason}
}
