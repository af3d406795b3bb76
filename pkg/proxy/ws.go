package proxy

import (
	"net/http"

	"github.com/gorilla/websocket"

	"stackchan/pkg/session"
)

// upgrader uses a permissive CheckOrigin (the firmware is not a browser
// client) and buffer sizes matched to PCM/WAV frame traffic.
var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

func (a *App) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Printf("proxy: upgrade failed: %v", err)
		return
	}

	sess := session.New(conn, a.log, a.cfg.RecordingsDir, a.recog, a.synth())
	if a.ListenTimeout > 0 {
		sess.ListenTimeout = a.ListenTimeout
	}
	if a.SpeakTimeout > 0 {
		sess.SpeakTimeout = a.SpeakTimeout
	}
	a.runOrchestrator(r.Context(), sess)
}
