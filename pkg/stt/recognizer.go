// Package stt adapts external speech-to-text providers behind a single
// synchronous interface the session dispatches to on a background
// goroutine once an uplink recording completes, so recognition never
// blocks frame reception.
package stt

import "context"

// SampleRateHz is the fixed uplink sample rate the recognizer is called
// with; the wire protocol carries no other rate.
const SampleRateHz = 16000

// LanguageCode is the fixed recognition language, matching the firmware's
// target locale.
const LanguageCode = "ja-JP"

// Recognizer converts linear PCM16LE audio into text. Implementations must
// be safe to call from multiple goroutines concurrently (one call per
// session at a time, but sessions run concurrently).
type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte) (string, error)
}
