package proxy

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stackchan/pkg/audio"
	"stackchan/pkg/config"
	"stackchan/pkg/session"
	"stackchan/pkg/tts"
	"stackchan/pkg/wsframe"
)

type stubRecognizer struct{ text string }

func (s *stubRecognizer) Recognize(ctx context.Context, pcm []byte) (string, error) {
	return s.text, nil
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) { return nil, nil }
func (stubSynthesizer) Close() error                                                { return nil }

// wavSynthesizer returns a fixed WAV container of mono 16kHz 16-bit PCM for
// whatever text it's asked to synthesize, letting tests exercise the real
// Speak()/Segmenter path instead of stubbing it out.
type wavSynthesizer struct{ wav []byte }

func (w wavSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return w.wav, nil
}
func (wavSynthesizer) Close() error { return nil }

func makeWAV(t *testing.T, pcm []byte, sampleRate, channels int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "synth.wav")
	if err := audio.WriteWAV16(path, pcm, sampleRate, channels); err != nil {
		t.Fatalf("WriteWAV16: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read synth wav: %v", err)
	}
	return b
}

func tone(n int) []byte {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16((i % 100) * 300)
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(v))
	}
	return pcm
}

func readFrameOrText(t *testing.T, conn *websocket.Conn, deadline time.Duration) (wsframe.Frame, []byte, bool) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(deadline))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if msgType == websocket.TextMessage {
		return wsframe.Frame{}, data, true
	}
	frame, err := wsframe.Decode(data)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame, nil, false
}

func sendPCM(t *testing.T, conn *websocket.Conn, msgType byte, seq uint16, payload []byte) {
	t.Helper()
	wire := wsframe.Encode(wsframe.KindPCM, msgType, seq, payload)
	if err := conn.WriteMessage(websocket.BinaryMessage, wire); err != nil {
		t.Fatalf("write pcm frame: %v", err)
	}
}

func newTestApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	logger := log.New(&discard{}, "", 0)
	cfg := config.Default()
	cfg.RecordingsDir = t.TempDir()

	app := New(cfg, logger, &stubRecognizer{text: "hello"}, func() tts.Synthesizer { return stubSynthesizer{} })
	srv := httptest.NewServer(app.Mux())
	t.Cleanup(srv.Close)
	return app, srv
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stackchan"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendWakeword(t *testing.T, conn *websocket.Conn, seq uint16) {
	t.Helper()
	wire := wsframe.Encode(wsframe.KindWakewordEvt, wsframe.MsgData, seq, []byte{1})
	if err := conn.WriteMessage(websocket.BinaryMessage, wire); err != nil {
		t.Fatalf("write wakeword: %v", err)
	}
}

func TestWakewordGating(t *testing.T) {
	var invocations atomic.Int32
	var mu sync.Mutex
	release := make(chan struct{})

	app, srv := newTestApp(t)
	app.OnTalkSession(func(ctx context.Context, p *session.Proxy) error {
		invocations.Add(1)
		mu.Lock()
		ch := release
		mu.Unlock()
		<-ch
		return nil
	})

	conn := dialWS(t, srv)

	// No talk_session before any wake-word.
	time.Sleep(50 * time.Millisecond)
	if got := invocations.Load(); got != 0 {
		t.Fatalf("invocations before wakeword = %d, want 0", got)
	}

	sendWakeword(t, conn, 0)
	time.Sleep(100 * time.Millisecond)
	if got := invocations.Load(); got != 1 {
		t.Fatalf("invocations after first wakeword = %d, want 1", got)
	}

	// A second wake-word while talk_session is running must coalesce/queue,
	// not re-enter immediately.
	sendWakeword(t, conn, 1)
	time.Sleep(50 * time.Millisecond)
	if got := invocations.Load(); got != 1 {
		t.Fatalf("invocations while first talk_session still running = %d, want 1 (queued, not re-entered)", got)
	}

	close(release)
	time.Sleep(100 * time.Millisecond)
	if got := invocations.Load(); got != 2 {
		t.Fatalf("invocations after releasing first talk_session = %d, want 2 (queued wakeword consumed)", got)
	}
}

func TestMalformedFrameClosesConnection(t *testing.T) {
	_, srv := newTestApp(t)
	conn := dialWS(t, srv)

	// Header too short: a valid binary message must be at least HeaderSize bytes.
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write malformed frame: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected connection to be closed after malformed frame")
	}
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected *websocket.CloseError, got %T: %v", err, err)
	}
	if closeErr.Code != 1003 {
		t.Errorf("close code = %d, want 1003", closeErr.Code)
	}
}

func TestDataBeforeStartClosesConnection(t *testing.T) {
	_, srv := newTestApp(t)
	conn := dialWS(t, srv)

	sendPCM(t, conn, wsframe.MsgData, 0, tone(4))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected *websocket.CloseError, got %T: %v", err, err)
	}
	if closeErr.Code != 1003 {
		t.Errorf("close code = %d, want 1003", closeErr.Code)
	}
	if closeErr.Text != "data received before start" {
		t.Errorf("close reason = %q, want %q", closeErr.Text, "data received before start")
	}
}

// TestEchoRoundTrip exercises scenario 1: a wake-word, a one-second PCM
// capture, a stubbed "hello" transcript, and a real Speak() through the
// Segmenter, ending back at STATE_CMD IDLE.
func TestEchoRoundTrip(t *testing.T) {
	wav := makeWAV(t, tone(16000), 16000, 1)

	logger := log.New(&discard{}, "", 0)
	cfg := config.Default()
	cfg.RecordingsDir = t.TempDir()
	app := New(cfg, logger, &stubRecognizer{text: "hello"}, func() tts.Synthesizer {
		return wavSynthesizer{wav: wav}
	})

	app.OnTalkSession(func(ctx context.Context, p *session.Proxy) error {
		text, err := p.Listen(ctx)
		if err != nil {
			return nil
		}
		return p.Speak(ctx, text)
	})

	srv := httptest.NewServer(app.Mux())
	t.Cleanup(srv.Close)
	conn := dialWS(t, srv)

	sendWakeword(t, conn, 0)
	sendPCM(t, conn, wsframe.MsgStart, 1, nil)
	sendPCM(t, conn, wsframe.MsgData, 2, tone(16000))
	sendPCM(t, conn, wsframe.MsgEnd, 3, nil)

	var sawThinking, sawSummary, sawWavStart, sawIdleAfterWav bool
	var summary struct {
		Text            string  `json:"text"`
		SampleRate      int     `json:"sample_rate"`
		Frames          int     `json:"frames"`
		Channels        int     `json:"channels"`
		DurationSeconds float64 `json:"duration_seconds"`
		Path            string  `json:"path"`
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		frame, text, isText := readFrameOrText(t, conn, 2*time.Second)
		if isText {
			if err := json.Unmarshal(text, &summary); err != nil {
				t.Fatalf("unmarshal summary: %v", err)
			}
			sawSummary = true
			continue
		}
		switch {
		case frame.Kind == wsframe.KindStateCmd && frame.Payload[0] == session.StateThinking:
			sawThinking = true
		case frame.Kind == wsframe.KindWAV && frame.MsgType == wsframe.MsgStart:
			sawWavStart = true
			sr := binary.LittleEndian.Uint32(frame.Payload[0:4])
			ch := binary.LittleEndian.Uint16(frame.Payload[4:6])
			if sr != 16000 || ch != 1 {
				t.Errorf("WAV/START payload = (%d,%d), want (16000,1)", sr, ch)
			}
		case frame.Kind == wsframe.KindWAV && frame.MsgType == wsframe.MsgEnd:
			// Acknowledge playback the way the firmware does, so Speak()
			// can move on to STATE_CMD(IDLE).
			done := wsframe.Encode(wsframe.KindSpeakDoneEvt, wsframe.MsgData, 4, []byte{1})
			if err := conn.WriteMessage(websocket.BinaryMessage, done); err != nil {
				t.Fatalf("write speak-done: %v", err)
			}
		case frame.Kind == wsframe.KindStateCmd && frame.Payload[0] == session.StateIdle && sawWavStart:
			sawIdleAfterWav = true
		}
		if sawThinking && sawSummary && sawWavStart && sawIdleAfterWav {
			break
		}
	}

	if !sawThinking {
		t.Error("never saw STATE_CMD(THINKING)")
	}
	if !sawSummary {
		t.Error("never saw JSON recording summary")
	}
	if sawSummary {
		if summary.Frames != 16000 {
			t.Errorf("summary.Frames = %d, want 16000", summary.Frames)
		}
		if summary.SampleRate != 16000 {
			t.Errorf("summary.SampleRate = %d, want 16000", summary.SampleRate)
		}
		if summary.Channels != 1 {
			t.Errorf("summary.Channels = %d, want 1", summary.Channels)
		}
		if summary.DurationSeconds != 1.0 {
			t.Errorf("summary.DurationSeconds = %v, want 1.0", summary.DurationSeconds)
		}
		wantText := "Saved as " + filepath.Base(summary.Path)
		if summary.Text != wantText {
			t.Errorf("summary.Text = %q, want %q", summary.Text, wantText)
		}
	}
	if !sawWavStart {
		t.Error("never saw a WAV/START segment")
	}
	if !sawIdleAfterWav {
		t.Error("never saw STATE_CMD(IDLE) after the WAV segment")
	}
}

// TestListenTimeout exercises scenario 3: no DATA arrives after LISTENING
// is entered, so Listen() must time out and issue STATE_CMD(IDLE).
func TestListenTimeout(t *testing.T) {
	logger := log.New(&discard{}, "", 0)
	cfg := config.Default()
	cfg.RecordingsDir = t.TempDir()
	app := New(cfg, logger, &stubRecognizer{text: "hello"}, func() tts.Synthesizer { return stubSynthesizer{} })
	app.ListenTimeout = 200 * time.Millisecond

	talkSessionReturned := make(chan error, 1)
	app.OnTalkSession(func(ctx context.Context, p *session.Proxy) error {
		_, err := p.Listen(ctx)
		talkSessionReturned <- err
		return nil
	})

	srv := httptest.NewServer(app.Mux())
	t.Cleanup(srv.Close)
	conn := dialWS(t, srv)

	sendWakeword(t, conn, 0)

	var sawListening, sawIdle bool
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && !sawIdle {
		frame, _, isText := readFrameOrText(t, conn, 2*time.Second)
		if isText {
			continue
		}
		if frame.Kind == wsframe.KindStateCmd {
			switch frame.Payload[0] {
			case session.StateListening:
				sawListening = true
			case session.StateIdle:
				sawIdle = true
			}
		}
	}
	if !sawListening {
		t.Error("never saw STATE_CMD(LISTENING)")
	}
	if !sawIdle {
		t.Error("never saw STATE_CMD(IDLE) after timeout")
	}

	select {
	case err := <-talkSessionReturned:
		if err != session.ErrTimeout {
			t.Errorf("Listen() error = %v, want ErrTimeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("talk_session never returned")
	}
}

// TestEmptyTranscript exercises scenario 4: STT returns no text, so
// Listen() must surface ErrEmptyTranscript and the reference talk_session
// never calls Speak.
func TestEmptyTranscript(t *testing.T) {
	logger := log.New(&discard{}, "", 0)
	cfg := config.Default()
	cfg.RecordingsDir = t.TempDir()
	app := New(cfg, logger, &stubRecognizer{text: ""}, func() tts.Synthesizer { return stubSynthesizer{} })

	var spokeCalled atomic.Bool
	talkSessionReturned := make(chan error, 1)
	app.OnTalkSession(func(ctx context.Context, p *session.Proxy) error {
		text, err := p.Listen(ctx)
		if err == nil {
			spokeCalled.Store(true)
			_ = p.Speak(ctx, text)
		}
		talkSessionReturned <- err
		return nil
	})

	srv := httptest.NewServer(app.Mux())
	t.Cleanup(srv.Close)
	conn := dialWS(t, srv)

	sendWakeword(t, conn, 0)
	sendPCM(t, conn, wsframe.MsgStart, 1, nil)
	sendPCM(t, conn, wsframe.MsgData, 2, tone(1600))
	sendPCM(t, conn, wsframe.MsgEnd, 3, nil)

	var sawIdle bool
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && !sawIdle {
		frame, _, isText := readFrameOrText(t, conn, 2*time.Second)
		if isText {
			continue
		}
		if frame.Kind == wsframe.KindStateCmd && frame.Payload[0] == session.StateIdle {
			sawIdle = true
		}
	}
	if !sawIdle {
		t.Error("never saw STATE_CMD(IDLE) after empty transcript")
	}

	select {
	case err := <-talkSessionReturned:
		if err != session.ErrEmptyTranscript {
			t.Errorf("Listen() error = %v, want ErrEmptyTranscript", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("talk_session never returned")
	}
	if spokeCalled.Load() {
		t.Error("Speak() was called despite an empty transcript")
	}
}
