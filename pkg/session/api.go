package session

import (
	"context"
	"fmt"
	"time"

	"stackchan/pkg/audio"
)

// Listen issues STATE_CMD LISTENING and waits for the next completed
// uplink recording. It returns ErrEmptyTranscript, ErrTimeout or
// ErrDisconnect rather than raising a protocol-layer error: those remain
// the caller's to handle by returning from talk_session.
func (s *Session) Listen(ctx context.Context) (string, error) {
	if err := s.SendStateCommand(StateListening); err != nil {
		return "", fmt.Errorf("send listening state: %w", err)
	}

	timer := time.NewTimer(s.ListenTimeout)
	defer timer.Stop()

	for {
		select {
		case r := <-s.transcriptCh:
			return r.text, r.err

		case <-s.dataActivity:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.ListenTimeout)

		case <-timer.C:
			_ = s.SendStateCommand(StateIdle)
			return "", ErrTimeout

		case <-s.disconnectCh:
			return "", ErrDisconnect

		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Speak synthesizes text and streams it to the firmware in timed WAV
// segments, then waits for the firmware's speak-done acknowledgement
// before issuing STATE_CMD IDLE. It returns nil (without waiting) when the
// synthesized PCM is empty; a synthesis, WAV-parsing or segmenting failure
// is reported to the firmware as a JSON error frame and returned as an
// error.
func (s *Session) Speak(ctx context.Context, text string) error {
	start := s.speakDoneCounter.Load()

	wav, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		_ = s.SendJSON(map[string]string{"error": fmt.Sprintf("voicevox synthesis failed: %v", err)})
		return fmt.Errorf("synthesize: %w", err)
	}

	pcm, sampleRate, channels, sampleWidth, err := audio.ExtractPCM(wav)
	if err != nil {
		_ = s.SendJSON(map[string]string{"error": fmt.Sprintf("voicevox synthesis failed: %v", err)})
		return fmt.Errorf("extract pcm: %w", err)
	}

	s.speaking.Store(true)
	spoke, err := s.segmenter.Stream(ctx, s, pcm, sampleRate, channels, sampleWidth)
	if err != nil {
		s.speaking.Store(false)
		_ = s.SendJSON(map[string]string{"error": err.Error()})
		return fmt.Errorf("stream segments: %w", err)
	}
	if !spoke {
		s.speaking.Store(false)
		return nil
	}

	timer := time.NewTimer(s.SpeakTimeout)
	defer timer.Stop()

	for {
		if s.speakDoneCounter.Load() >= start+1 {
			break
		}
		select {
		case <-s.speakDoneNot:
			continue
		case <-timer.C:
			return ErrTimeout
		case <-s.disconnectCh:
			return ErrDisconnect
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if !s.Closed() {
		return s.SendStateCommand(StateIdle)
	}
	return nil
}

// WaitForTalkSession blocks until a wake-word event arrives (consuming the
// latch) or the session disconnects.
func (s *Session) WaitForTalkSession(ctx context.Context) error {
	select {
	case <-s.wakewordCh:
		return nil
	case <-s.disconnectCh:
		return ErrDisconnect
	case <-ctx.Done():
		return ctx.Err()
	}
}
