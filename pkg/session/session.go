// Package session implements the per-connection protocol state machine: the
// uplink assembler's buffer ownership, the wake-word/transcript/speak-done
// event routing, and the listen/speak API exposed to user conversation
// code.
package session

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"stackchan/pkg/stt"
	"stackchan/pkg/tts"
	"stackchan/pkg/uplink"
	"stackchan/pkg/wsframe"
)

// Proxy is the type user-written setup/talk_session handlers are given.
// It is the same type as Session: the alias exists so application code
// reads in terms of the role (a handle onto the talk session) rather than
// the connection-management type that implements it.
type Proxy = Session

// Firmware states transmitted via STATE_CMD.
const (
	StateIdle      = byte(0)
	StateListening = byte(1)
	StateThinking  = byte(2)
)

const (
	listenAudioTimeout = 10 * time.Second
	speakTimeout       = 120 * time.Second
)

// transcriptResult is posted on transcriptCh by the finishRecording worker
// the receive loop starts once an uplink recording finishes: either a
// non-empty transcript, ErrEmptyTranscript, or the recognizer's error.
type transcriptResult struct {
	text string
	err  error
}

// Session owns one accepted WebSocket connection: the PCM accumulation
// buffer and streaming flag (exclusively written by the receive goroutine),
// the downlink seq counter, and the channels the receive goroutine uses to
// hand events to whichever goroutine is running user code.
type Session struct {
	conn          *websocket.Conn
	log           *log.Logger
	recordingsDir string

	assembler  *uplink.Assembler
	recognizer stt.Recognizer
	synth      tts.Synthesizer
	segmenter  *tts.Segmenter

	// ListenTimeout and SpeakTimeout default to the fixed 10s/120s
	// deadlines; overridable so timeout-path tests don't need to wait for
	// the real deadlines.
	ListenTimeout time.Duration
	SpeakTimeout  time.Duration

	writeMu sync.Mutex // serializes websocket writes and downSeq increments
	downSeq uint16

	dataCounter      atomic.Int64
	speakDoneCounter atomic.Int64
	speaking         atomic.Bool
	closed           atomic.Bool

	wakewordCh    chan struct{}
	transcriptCh  chan transcriptResult
	speakDoneNot  chan struct{}
	dataActivity  chan struct{}
	disconnectCh  chan struct{}
	closeOnce     sync.Once

	receiveDone chan struct{}
}

// New constructs a Session around an already-accepted WebSocket connection.
func New(conn *websocket.Conn, logger *log.Logger, recordingsDir string, recognizer stt.Recognizer, synth tts.Synthesizer) *Session {
	s := &Session{
		conn:          conn,
		log:           logger,
		recordingsDir: recordingsDir,
		recognizer:    recognizer,
		synth:         synth,
		segmenter:     tts.NewSegmenter(),
		ListenTimeout: listenAudioTimeout,
		SpeakTimeout:  speakTimeout,
		wakewordCh:    make(chan struct{}, 1),
		transcriptCh:  make(chan transcriptResult, 1),
		speakDoneNot:  make(chan struct{}, 1),
		dataActivity:  make(chan struct{}, 1),
		disconnectCh:  make(chan struct{}),
		receiveDone:   make(chan struct{}),
	}
	s.assembler = uplink.NewAssembler()
	return s
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// ReceiveDone returns a channel closed once the receive loop has exited.
func (s *Session) ReceiveDone() <-chan struct{} {
	return s.receiveDone
}

// Start launches the receive loop in its own goroutine.
func (s *Session) Start() {
	go s.receiveLoop()
}

// Close marks the session closed, unblocking every pending API call with
// ErrDisconnect, and closes the underlying connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.disconnectCh)
		_ = s.conn.Close()
	})
}

// SendFrame assigns the next downlink seq and writes one frame, satisfying
// tts.FrameSender. Safe for concurrent use.
func (s *Session) SendFrame(kind, msgType byte, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	wire := wsframe.Encode(kind, msgType, s.downSeq, payload)
	s.downSeq++
	return s.conn.WriteMessage(websocket.BinaryMessage, wire)
}

// SendJSON writes a JSON text frame (recording summaries, TTS error
// reports), using sonic rather than encoding/json for the hot path every
// uplink recording passes through.
func (s *Session) SendJSON(v any) error {
	body, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, body)
}

// SendStateCommand emits a STATE_CMD/DATA frame with the given firmware
// state.
func (s *Session) SendStateCommand(stateID byte) error {
	return s.SendFrame(wsframe.KindStateCmd, wsframe.MsgData, []byte{stateID})
}

// ResetState issues STATE_CMD IDLE.
func (s *Session) ResetState() error {
	return s.SendStateCommand(StateIdle)
}

func (s *Session) notifySpeakDone() {
	select {
	case s.speakDoneNot <- struct{}{}:
	default:
	}
}

func (s *Session) notifyDataActivity() {
	select {
	case s.dataActivity <- struct{}{}:
	default:
	}
}

func (s *Session) notifyWakeword() {
	select {
	case s.wakewordCh <- struct{}{}:
	default:
		// Level-triggered-with-consume: a pending wake-word already
		// queued coalesces additional events into the same slot.
	}
}

// clearPendingTranscript drops an unconsumed result left over from a prior
// recording; a new START supersedes it.
func (s *Session) clearPendingTranscript() {
	select {
	case <-s.transcriptCh:
	default:
	}
}

func (s *Session) deliverTranscript(r transcriptResult) {
	// Drain any stale unconsumed result before pushing the latest one: a
	// new recording always supersedes a prior uncollected transcript.
	select {
	case <-s.transcriptCh:
	default:
	}
	s.transcriptCh <- r
}

