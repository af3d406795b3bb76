// Package audio holds the PCM/WAV plumbing shared by the uplink recorder and
// the TTS segmenter: persisting a 16-bit PCM capture as a WAV file, and
// pulling PCM back out of a synthesizer's WAV container.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// PCM16ToIntSamples reinterprets little-endian 16-bit PCM bytes as a slice
// of ints, the sample representation go-audio/wav's encoder expects.
func PCM16ToIntSamples(pcm []byte) []int {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
	}
	return samples
}

// IntSamplesToPCM16 converts decoded samples back into little-endian 16-bit
// PCM bytes.
func IntSamplesToPCM16(samples []int) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(int16(s)))
	}
	return pcm
}

// WriteWAV16 persists raw 16-bit little-endian PCM as a mono/stereo WAV file
// at the given sample rate.
func WriteWAV16(path string, pcm []byte, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           PCM16ToIntSamples(pcm),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return f.Close()
}

// ExtractPCM parses a WAV container and returns its raw PCM payload along
// with the sample rate, channel count and sample width (bytes/sample) the
// container declares.
func ExtractPCM(wavBytes []byte) (pcm []byte, sampleRate, channels, sampleWidth int, err error) {
	dec := wav.NewDecoder(bytes.NewReader(wavBytes))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, 0, fmt.Errorf("decode wav: %w", err)
	}
	sampleWidth = int(dec.BitDepth) / 8
	if sampleWidth != 2 {
		// Non-16-bit containers are still surfaced to the caller, who
		// decides whether to reject them (TTS segmenter requires width 2).
		return pcmFromSamples(buf.Data, sampleWidth), int(dec.SampleRate), int(dec.NumChans), sampleWidth, nil
	}
	return IntSamplesToPCM16(buf.Data), int(dec.SampleRate), int(dec.NumChans), sampleWidth, nil
}

func pcmFromSamples(samples []int, sampleWidth int) []byte {
	if sampleWidth == 1 {
		out := make([]byte, len(samples))
		for i, s := range samples {
			out[i] = byte(s)
		}
		return out
	}
	// Fall back to the 16-bit packing for any other declared width; the
	// caller rejects anything other than 2 before using this PCM.
	return IntSamplesToPCM16(samples)
}
