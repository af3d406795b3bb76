package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleSpeechRecognizer wraps the Google Cloud Speech-to-Text v1 client,
// the provider the firmware's original deployment targets: LINEAR16 at
// 16kHz, language ja-JP, concatenating every result's first alternative.
type GoogleSpeechRecognizer struct {
	client *speech.Client
}

// NewGoogleSpeechRecognizer dials the Speech-to-Text client. Credentials are
// resolved the usual way (GOOGLE_APPLICATION_CREDENTIALS env var).
func NewGoogleSpeechRecognizer(ctx context.Context) (*GoogleSpeechRecognizer, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &GoogleSpeechRecognizer{client: client}, nil
}

// Recognize performs a synchronous recognition call and concatenates every
// returned result's top alternative. It returns an empty string, not an
// error, when the recognizer produced no results.
func (g *GoogleSpeechRecognizer) Recognize(ctx context.Context, pcm []byte) (string, error) {
	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: SampleRateHz,
			LanguageCode:    LanguageCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}

	var transcript string
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		transcript += result.Alternatives[0].Transcript
	}
	return transcript, nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleSpeechRecognizer) Close() error {
	return g.client.Close()
}
