// Command echoapp is the minimal worked example: it speaks back whatever
// it hears (no LLM backend, just Listen then Speak).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"stackchan/pkg/config"
	"stackchan/pkg/proxy"
	"stackchan/pkg/session"
	"stackchan/pkg/stt"
	"stackchan/pkg/tts"
)

func main() {
	var (
		addr          string
		recordingsDir string
		voicevoxURL   string
		speakerID     int
	)

	cfg := config.Default()
	flag.StringVar(&addr, "addr", cfg.ListenAddr, "address to listen on")
	flag.StringVar(&recordingsDir, "recordings-dir", cfg.RecordingsDir, "directory to save uplink recordings")
	flag.StringVar(&voicevoxURL, "voicevox-url", cfg.VoicevoxBaseURI, "VOICEVOX engine base URL")
	flag.IntVar(&speakerID, "speaker-id", cfg.TTSSpeakerID, "VOICEVOX speaker id")
	flag.Parse()

	cfg.ListenAddr = addr
	cfg.RecordingsDir = recordingsDir
	cfg.VoicevoxBaseURI = voicevoxURL
	cfg.TTSSpeakerID = speakerID

	_ = godotenv.Load()

	if err := os.MkdirAll(cfg.RecordingsDir, 0o755); err != nil {
		log.Fatalf("create recordings dir: %v", err)
	}

	logger := log.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	recognizer, err := stt.NewGoogleSpeechRecognizer(ctx)
	if err != nil {
		log.Fatalf("init recognizer: %v", err)
	}

	app := proxy.New(cfg, logger, recognizer, func() tts.Synthesizer {
		return tts.NewVoicevoxClient(cfg.VoicevoxBaseURI, cfg.TTSSpeakerID)
	})

	app.OnSetup(func(ctx context.Context, p *session.Proxy) error {
		logger.Printf("echoapp: websocket connected")
		return nil
	})

	app.OnTalkSession(func(ctx context.Context, p *session.Proxy) error {
		text, err := p.Listen(ctx)
		if err != nil {
			logger.Printf("echoapp: listen: %v", err)
			return nil
		}
		logger.Printf("echoapp: heard: %s", text)
		return p.Speak(ctx, text)
	})

	if err := app.Run(ctx, cfg.ListenAddr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
