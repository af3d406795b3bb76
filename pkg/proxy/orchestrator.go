package proxy

import (
	"context"
	"errors"
	"time"

	"stackchan/pkg/session"
)

// noTalkSessionPollIdle is the re-check cadence when no talk_session
// handler is registered: an app using only OnSetup has nothing
// event-driven to wait on here, and the registration never changes after
// startup.
const noTalkSessionPollIdle = 50 * time.Millisecond

// runOrchestrator drives one connection's lifecycle: setup, then repeated
// wake-word-gated talk_session invocations, until disconnect.
func (a *App) runOrchestrator(ctx context.Context, sess *session.Proxy) {
	sess.Start()
	defer sess.Close()

	if a.onSetup != nil {
		if err := a.onSetup(ctx, sess); err != nil {
			a.log.Printf("proxy: setup failed: %v", err)
			return
		}
	}

	for !sess.Closed() {
		if a.onTalkSession == nil {
			select {
			case <-time.After(noTalkSessionPollIdle):
				continue
			case <-sess.ReceiveDone():
				return
			}
		}

		if err := sess.WaitForTalkSession(ctx); err != nil {
			if errors.Is(err, session.ErrDisconnect) {
				return
			}
			a.log.Printf("proxy: wait for talk session: %v", err)
			return
		}

		if err := a.onTalkSession(ctx, sess); err != nil {
			if errors.Is(err, session.ErrDisconnect) {
				return
			}
			a.log.Printf("proxy: talk_session error: %v", err)
		}

		if !sess.Closed() {
			if err := sess.ResetState(); err != nil {
				a.log.Printf("proxy: reset state failed: %v", err)
			}
		}

		select {
		case <-sess.ReceiveDone():
			return
		default:
		}
	}
}
