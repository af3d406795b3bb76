// Package tts obtains synthesized speech from a text-to-speech provider and
// paces its PCM onto the downlink in fixed-duration segments matching the
// firmware's playback cadence.
package tts

import "context"

// Synthesizer turns text into a WAV container. Implementations own their
// own connection lifecycle (Close releases it).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (wav []byte, err error)
	Close() error
}
