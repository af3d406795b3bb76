package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"stackchan/pkg/wsframe"
)

// Downlink pacing constants, matching the firmware's playback buffer size.
const (
	DownWavChunk             = 4096
	DownSegmentMillis        = 2000
	DownSegmentStaggerMillis = DownSegmentMillis / 2
)

// FrameSender emits one downlink frame and assigns it the session's next
// monotonically increasing seq. Implemented by *session.Session.
type FrameSender interface {
	SendFrame(kind, msgType byte, payload []byte) error
}

// Segmenter splits synthesized PCM into DownSegmentMillis-long chunks and
// emits them on the staggered schedule the firmware's playback buffer
// expects: segment 0 immediately, segment 1 half an interval later so the
// device has its second buffer queued before the first finishes, and every
// subsequent segment one full interval after that.
type Segmenter struct {
	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// NewSegmenter returns a Segmenter using the real clock.
func NewSegmenter() *Segmenter {
	return &Segmenter{Now: time.Now}
}

// Stream splits pcm into segments and emits them to sender as
// WAV/START-DATA*-END triples on the staggered schedule. It reports whether
// any segment was actually sent (false when pcm is empty or validation
// fails before the first segment); spoke can be true alongside a non-nil
// error if the stream failed partway through.
func (s *Segmenter) Stream(ctx context.Context, sender FrameSender, pcm []byte, sampleRate, channels, sampleWidth int) (spoke bool, err error) {
	if len(pcm) == 0 {
		return false, nil
	}
	if sampleWidth != 2 {
		return false, fmt.Errorf("unsupported sample width %d", sampleWidth)
	}

	segmentBytes := int(float64(sampleRate) * float64(channels) * float64(sampleWidth) * (float64(DownSegmentMillis) / 1000.0))
	if segmentBytes <= 0 {
		return false, fmt.Errorf("invalid segment size computed")
	}

	segments := splitPCM(pcm, segmentBytes)

	now := s.Now
	if now == nil {
		now = time.Now
	}
	base := now()

	for idx, segment := range segments {
		var targetMillis int
		switch {
		case idx == 0:
			targetMillis = 0
		case idx == 1:
			targetMillis = DownSegmentStaggerMillis
		default:
			targetMillis = DownSegmentStaggerMillis + (idx-1)*DownSegmentMillis
		}

		target := base.Add(time.Duration(targetMillis) * time.Millisecond)
		if d := time.Until(target); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return spoke, ctx.Err()
			}
		}

		if err := s.sendSegment(sender, segment, sampleRate, channels); err != nil {
			return spoke, fmt.Errorf("send segment %d: %w", idx, err)
		}
		spoke = true
	}
	return spoke, nil
}

func (s *Segmenter) sendSegment(sender FrameSender, segment []byte, sampleRate, channels int) error {
	startPayload := make([]byte, 6)
	binary.LittleEndian.PutUint32(startPayload[0:4], uint32(sampleRate))
	binary.LittleEndian.PutUint16(startPayload[4:6], uint16(channels))
	if err := sender.SendFrame(wsframe.KindWAV, wsframe.MsgStart, startPayload); err != nil {
		return err
	}

	for offset := 0; offset < len(segment); offset += DownWavChunk {
		end := offset + DownWavChunk
		if end > len(segment) {
			end = len(segment)
		}
		if err := sender.SendFrame(wsframe.KindWAV, wsframe.MsgData, segment[offset:end]); err != nil {
			return err
		}
	}

	return sender.SendFrame(wsframe.KindWAV, wsframe.MsgEnd, nil)
}

func splitPCM(pcm []byte, segmentBytes int) [][]byte {
	var segments [][]byte
	for offset := 0; offset < len(pcm); offset += segmentBytes {
		end := offset + segmentBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		segments = append(segments, pcm[offset:end])
	}
	return segments
}

