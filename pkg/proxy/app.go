// Package proxy wires an accepted WebSocket connection to user-written
// setup/talk_session handlers: it owns the HTTP mux, the upgrade handshake,
// and the per-connection orchestration loop. Handlers are registered with
// explicit setter methods on the App builder before serving traffic.
package proxy

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"stackchan/pkg/config"
	"stackchan/pkg/httpapi"
	"stackchan/pkg/session"
	"stackchan/pkg/stt"
	"stackchan/pkg/tts"
)

// Config is the proxy's construction-time settings; an alias of
// config.Config so callers write proxy.Config without importing
// pkg/config directly.
type Config = config.Config

// SetupFunc runs once per accepted connection before the wake-word loop
// starts.
type SetupFunc func(ctx context.Context, p *session.Proxy) error

// TalkSessionFunc runs once per wake-word event.
type TalkSessionFunc func(ctx context.Context, p *session.Proxy) error

// App is the talking-doll server: one HTTP mux serving the WebSocket
// upgrade endpoint plus the supplemented HTTP surface (health check,
// legacy audio endpoint), and the registered application handlers.
type App struct {
	cfg   config.Config
	log   *log.Logger
	mux   *http.ServeMux
	synth func() tts.Synthesizer
	recog stt.Recognizer

	onSetup       SetupFunc
	onTalkSession TalkSessionFunc

	// ListenTimeout/SpeakTimeout override the per-session Listen/Speak
	// deadlines when non-zero; tests shorten them to exercise the timeout
	// paths without waiting out the real 10s/120s deadlines.
	ListenTimeout time.Duration
	SpeakTimeout  time.Duration
}

// New constructs an App. logger may be nil (defaults to log.Default()).
// synthFactory is called once per connection since VOICEVOX clients are
// cheap and stateless; recognizer is shared across connections and must
// be safe for concurrent use (stt.Recognizer's contract).
func New(cfg config.Config, logger *log.Logger, recognizer stt.Recognizer, synthFactory func() tts.Synthesizer) *App {
	if logger == nil {
		logger = log.Default()
	}
	a := &App{
		cfg:   cfg,
		log:   logger,
		recog: recognizer,
		synth: synthFactory,
		mux:   http.NewServeMux(),
	}
	a.registerRoutes()
	return a
}

// OnSetup registers the optional per-connection setup handler.
func (a *App) OnSetup(fn SetupFunc) {
	a.onSetup = fn
}

// OnTalkSession registers the per-wake-word conversation handler.
func (a *App) OnTalkSession(fn TalkSessionFunc) {
	a.onTalkSession = fn
}

// Mux returns the HTTP mux so callers can add their own routes or wrap it
// in middleware before serving.
func (a *App) Mux() *http.ServeMux {
	return a.mux
}

func (a *App) registerRoutes() {
	a.mux.HandleFunc("GET /ws/stackchan", a.handleUpgrade)
	httpapi.RegisterHealth(a.mux)
	httpapi.RegisterLegacyAudio(a.mux, a.cfg.RecordingsDir)
}

// Run serves the app on addr until ctx is cancelled.
func (a *App) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: a.mux}

	errCh := make(chan error, 1)
	go func() {
		a.log.Printf("proxy: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	}
}
