package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"

	"stackchan/pkg/audio"
	"stackchan/pkg/uplink"
	"stackchan/pkg/wsframe"
)

// recordingSummary is the JSON text frame sent as soon as an uplink
// recording is persisted, before STT has run. Text is a file-save
// confirmation ("Saved as <filename>"), not the transcript: recognition is
// reported to talk_session code via Listen, not by rewriting this frame.
type recordingSummary struct {
	Text            string  `json:"text"`
	SampleRate      int     `json:"sample_rate"`
	Frames          int     `json:"frames"`
	Channels        int     `json:"channels"`
	DurationSeconds float64 `json:"duration_seconds"`
	Path            string  `json:"path,omitempty"`
}

// receiveLoop is the sole reader of the WebSocket connection and the sole
// writer of the uplink assembler's buffer. It never blocks on STT: an END
// frame hands the accumulated PCM to a background worker and keeps reading.
func (s *Session) receiveLoop() {
	defer close(s.receiveDone)
	defer s.Close()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.log != nil {
				s.log.Printf("session: read error: %v", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		frame, err := wsframe.Decode(data)
		if err != nil {
			reason := err.Error()
			var malformed *wsframe.ErrMalformedFrame
			if errors.As(err, &malformed) {
				reason = malformed.Reason
			}
			s.closeWithViolation(newProtocolViolation(reason))
			return
		}

		if violation := s.dispatch(frame); violation != nil {
			s.closeWithViolation(violation)
			return
		}
	}
}

// dispatch applies one decoded frame to session state. A non-nil return is
// always a *ProtocolViolation the caller must close the connection with.
func (s *Session) dispatch(frame wsframe.Frame) *ProtocolViolation {
	switch frame.Kind {
	case wsframe.KindPCM:
		return s.handlePCM(frame)
	case wsframe.KindWakewordEvt:
		if frame.MsgType == wsframe.MsgData && len(frame.Payload) >= 1 {
			s.notifyWakeword()
		}
	case wsframe.KindStateEvt:
		if frame.MsgType == wsframe.MsgData && len(frame.Payload) >= 1 {
			if s.log != nil {
				s.log.Printf("session: firmware state event: %v", frame.Payload)
			}
		}
	case wsframe.KindSpeakDoneEvt:
		if frame.MsgType == wsframe.MsgData && len(frame.Payload) >= 1 {
			s.speaking.Store(false)
			s.speakDoneCounter.Add(1)
			s.notifySpeakDone()
		}
	default:
		return newProtocolViolation("unsupported kind")
	}
	return nil
}

func (s *Session) handlePCM(frame wsframe.Frame) *ProtocolViolation {
	switch frame.MsgType {
	case wsframe.MsgStart:
		s.clearPendingTranscript()
		s.assembler.HandleStart()
		return nil
	case wsframe.MsgData:
		nonEmpty, err := s.assembler.HandleData(frame.Payload)
		if err != nil {
			return newProtocolViolation(err.Error())
		}
		if nonEmpty {
			s.dataCounter.Add(1)
			s.notifyDataActivity()
		}
		return nil
	case wsframe.MsgEnd:
		pcm, err := s.assembler.HandleEnd(frame.Payload)
		if err != nil {
			return newProtocolViolation(err.Error())
		}
		go s.finishRecording(pcm)
		return nil
	default:
		return newProtocolViolation("unknown msg_type")
	}
}

// finishRecording issues STATE_CMD THINKING, persists the capture, reports
// a JSON summary, then runs STT and delivers the outcome to whichever
// goroutine is inside Listen. It runs
// on its own goroutine so a slow recognizer never stalls frame reception.
func (s *Session) finishRecording(pcm []byte) {
	_ = s.SendStateCommand(StateThinking)

	frames := uplink.Frames(pcm)
	duration := uplink.DurationSeconds(pcm)

	path, writeErr := s.persistRecording(pcm)
	if writeErr != nil && s.log != nil {
		s.log.Printf("session: failed to persist recording: %v", writeErr)
	}

	var text string
	if path != "" {
		text = fmt.Sprintf("Saved as %s", filepath.Base(path))
	}

	summary := recordingSummary{
		Text:            text,
		SampleRate:      uplink.SampleRateHz,
		Frames:          frames,
		Channels:        uplink.Channels,
		DurationSeconds: duration,
		Path:            path,
	}
	_ = s.SendJSON(summary)

	if s.recognizer == nil {
		s.deliverTranscript(transcriptResult{err: ErrEmptyTranscript})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), listenAudioTimeout)
	defer cancel()

	text, err := s.recognizer.Recognize(ctx, pcm)
	if err != nil {
		s.deliverTranscript(transcriptResult{err: fmt.Errorf("recognize: %w", err)})
		return
	}
	if text == "" {
		s.deliverTranscript(transcriptResult{err: ErrEmptyTranscript})
		return
	}

	s.deliverTranscript(transcriptResult{text: text})
}

func (s *Session) persistRecording(pcm []byte) (string, error) {
	if s.recordingsDir == "" || len(pcm) == 0 {
		return "", nil
	}
	path := recordingPath(s.recordingsDir, time.Now())
	if err := audio.WriteWAV16(path, pcm, uplink.SampleRateHz, uplink.Channels); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Session) closeWithViolation(v *ProtocolViolation) {
	if s.log != nil {
		s.log.Printf("session: protocol violation: %s", v.Reason)
	}
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(v.Code, v.Reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
}
