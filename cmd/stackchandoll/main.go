// Command stackchandoll is the full worked example: a talking-doll server
// that listens for a wake word, transcribes what it hears, asks an LLM for
// a short reply, and speaks it back. The `-llm-provider` flag selects
// between the Gemini backend wired directly here and the Ark backend in
// pkg/llmdemo, the same way `-stt-provider` branches the speech recognizer
// below.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"google.golang.org/genai"

	"stackchan/pkg/config"
	"stackchan/pkg/llmdemo"
	"stackchan/pkg/proxy"
	"stackchan/pkg/session"
	"stackchan/pkg/stt"
	"stackchan/pkg/tts"
)

const systemInstruction = "あなたは親切な音声アシスタントです。音声で返答するため、マークダウンは記述せず、簡潔に答えてください。だいたい3文程度で答えてください。"

// replier answers one conversational turn given the user's transcribed
// utterance. Both the Gemini and Ark backends satisfy this shape.
type replier func(ctx context.Context, text string) (string, error)

func main() {
	var (
		addr          string
		recordingsDir string
		voicevoxURL   string
		speakerID     int
		sttProvider   string
		llmProvider   string
		geminiModel   string
		arkModel      string
	)

	cfg := config.Default()
	flag.StringVar(&addr, "addr", cfg.ListenAddr, "address to listen on")
	flag.StringVar(&recordingsDir, "recordings-dir", cfg.RecordingsDir, "directory to save uplink recordings")
	flag.StringVar(&voicevoxURL, "voicevox-url", cfg.VoicevoxBaseURI, "VOICEVOX engine base URL")
	flag.IntVar(&speakerID, "speaker-id", cfg.TTSSpeakerID, "VOICEVOX speaker id")
	flag.StringVar(&sttProvider, "stt-provider", cfg.STTProvider, "speech recognizer: google or volcengine")
	flag.StringVar(&llmProvider, "llm-provider", "gemini", "conversational reply backend: gemini or ark")
	flag.StringVar(&geminiModel, "gemini-model", "gemini-3-flash-preview", "Gemini model, used when -llm-provider=gemini")
	flag.StringVar(&arkModel, "ark-model", "doubao-pro-32k", "Ark model, used when -llm-provider=ark")
	flag.Parse()

	cfg.ListenAddr = addr
	cfg.RecordingsDir = recordingsDir
	cfg.VoicevoxBaseURI = voicevoxURL
	cfg.TTSSpeakerID = speakerID
	cfg.STTProvider = sttProvider

	_ = godotenv.Load()

	if err := os.MkdirAll(cfg.RecordingsDir, 0o755); err != nil {
		log.Fatalf("create recordings dir: %v", err)
	}

	logger := log.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	recognizer, err := newRecognizer(ctx, cfg)
	if err != nil {
		log.Fatalf("init recognizer: %v", err)
	}

	reply, err := newReplier(ctx, llmProvider, geminiModel, arkModel)
	if err != nil {
		log.Fatalf("init llm backend: %v", err)
	}

	app := proxy.New(cfg, logger, recognizer, func() tts.Synthesizer {
		return tts.NewVoicevoxClient(cfg.VoicevoxBaseURI, cfg.TTSSpeakerID)
	})

	app.OnSetup(func(ctx context.Context, p *session.Proxy) error {
		logger.Printf("stackchandoll: websocket connected")
		return nil
	})

	app.OnTalkSession(func(ctx context.Context, p *session.Proxy) error {
		text, err := p.Listen(ctx)
		if err != nil {
			logger.Printf("stackchandoll: listen: %v", err)
			return nil
		}
		logger.Printf("stackchandoll: heard: %s", text)

		replyText, err := reply(ctx, text)
		if err != nil {
			logger.Printf("stackchandoll: %s reply error: %v", llmProvider, err)
			replyText = "すみません、うまく答えられませんでした。"
		}
		logger.Printf("stackchandoll: replying: %s", replyText)

		return p.Speak(ctx, replyText)
	})

	if err := app.Run(ctx, cfg.ListenAddr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func newRecognizer(ctx context.Context, cfg config.Config) (stt.Recognizer, error) {
	switch cfg.STTProvider {
	case config.STTProviderVolcengine:
		return stt.NewVolcengineStreamingRecognizer("wss://openspeech.bytedance.com/api/v2/asr", config.VolcAppKey(), config.VolcAccessKey()), nil
	default:
		return stt.NewGoogleSpeechRecognizer(ctx)
	}
}

// newReplier selects the conversational reply backend named by provider:
// "ark" wires pkg/llmdemo.ArkChat (Volcengine Ark), anything else (the
// default) wires Gemini directly through google.golang.org/genai.
func newReplier(ctx context.Context, provider, geminiModel, arkModel string) (replier, error) {
	if provider == "ark" {
		chat := llmdemo.NewArkChat(config.ArkAPIKey(), arkModel)
		return chat.Reply, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: config.GeminiAPIKey()})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, text string) (string, error) {
		return askGemini(ctx, client, geminiModel, text)
	}, nil
}

func askGemini(ctx context.Context, client *genai.Client, model, text string) (string, error) {
	contents := []*genai.Content{
		{Parts: []*genai.Part{genai.NewPartFromText(text)}},
	}
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)}},
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, genConfig)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
