package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// VoicevoxClient is a scoped HTTP client against a local VOICEVOX engine,
// driving its two-step audio_query -> synthesis API.
type VoicevoxClient struct {
	baseURI   string
	speakerID int
	http      *http.Client
}

// NewVoicevoxClient opens a scoped client against baseURI (e.g.
// "http://localhost:50021") for the given default speaker id.
func NewVoicevoxClient(baseURI string, speakerID int) *VoicevoxClient {
	return &VoicevoxClient{
		baseURI:   baseURI,
		speakerID: speakerID,
		http:      &http.Client{},
	}
}

// Synthesize creates an audio query for text at the configured speaker id
// and synthesizes it into a WAV container.
func (c *VoicevoxClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	query, err := c.audioQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("create audio query: %w", err)
	}
	wav, err := c.synthesis(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	return wav, nil
}

func (c *VoicevoxClient) audioQuery(ctx context.Context, text string) ([]byte, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("speaker", strconv.Itoa(c.speakerID))

	endpoint := c.baseURI + "/audio_query?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post audio_query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio_query status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *VoicevoxClient) synthesis(ctx context.Context, query []byte) ([]byte, error) {
	q := url.Values{}
	q.Set("speaker", strconv.Itoa(c.speakerID))

	endpoint := c.baseURI + "/synthesis?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post synthesis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Close is a no-op: VoicevoxClient holds no connection beyond the pooled
// http.Client transport, but implements Synthesizer's scoped-acquisition
// contract for callers that defer Close unconditionally.
func (c *VoicevoxClient) Close() error {
	return nil
}
