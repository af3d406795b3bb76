package stt

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stackchan/pkg/sttwire"
)

// VolcengineStreamingRecognizer is an alternate Recognizer backed by
// Volcengine's streaming ASR websocket API: it dials once per call, sends
// one full-client request, then paces fixed-size audio chunks on a ticker
// while a reader goroutine collects partial results.
type VolcengineStreamingRecognizer struct {
	URL             string
	AppKey          string
	AccessKey       string
	SegmentDuration time.Duration
	SegmentBytes    int
}

// NewVolcengineStreamingRecognizer builds a recognizer targeting the given
// Volcengine ASR endpoint, pacing 200ms (6400-byte) audio segments.
func NewVolcengineStreamingRecognizer(url, appKey, accessKey string) *VolcengineStreamingRecognizer {
	return &VolcengineStreamingRecognizer{
		URL:             url,
		AppKey:          appKey,
		AccessKey:       accessKey,
		SegmentDuration: 200 * time.Millisecond,
		SegmentBytes:    6400, // 200ms of 16kHz mono 16-bit PCM
	}
}

func (c *VolcengineStreamingRecognizer) authHeader() map[string][]string {
	return map[string][]string{
		"X-Api-Resource-Id": {"volc.seedasr.sauc.duration"},
		"X-Api-Connect-Id":  {uuid.New().String()},
		"X-Api-Access-Key":  {c.AccessKey},
		"X-Api-App-Key":     {c.AppKey},
	}
}

// Recognize dials the streaming endpoint, streams pcm in fixed windows at
// SegmentDuration cadence, and returns the concatenated text of every
// server response up to and including the final package.
func (c *VolcengineStreamingRecognizer) Recognize(ctx context.Context, pcm []byte) (string, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, c.authHeader())
	if err != nil {
		return "", fmt.Errorf("dial volcengine asr: %w", err)
	}
	defer conn.Close()

	if err := c.sendFullClientRequest(conn); err != nil {
		return "", fmt.Errorf("send full client request: %w", err)
	}

	segments := splitAudio(pcm, c.SegmentBytes)

	resultCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		text, err := c.recvLoop(conn)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- text
	}()

	if err := c.sendSegments(ctx, conn, segments); err != nil {
		return "", fmt.Errorf("send audio segments: %w", err)
	}

	select {
	case text := <-resultCh:
		return text, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *VolcengineStreamingRecognizer) sendFullClientRequest(conn *websocket.Conn) error {
	body, _ := json.Marshal(map[string]any{
		"app": map[string]string{"appid": c.AppKey},
		"request": map[string]any{
			"model_name":  "seedasr",
			"sample_rate": SampleRateHz,
			"language":    LanguageCode,
		},
	})
	payload := gzipCompress(body)
	header := sttwire.DefaultFullClientHeader().Bytes()
	msg := sttwire.AppendPayload(header, payload)
	return conn.WriteMessage(websocket.BinaryMessage, msg)
}

func (c *VolcengineStreamingRecognizer) sendSegments(ctx context.Context, conn *websocket.Conn, segments [][]byte) error {
	ticker := time.NewTicker(c.SegmentDuration)
	defer ticker.Stop()

	for _, segment := range segments {
		select {
		case <-ticker.C:
			header := sttwire.DefaultAudioOnlyHeader().Bytes()
			msg := sttwire.AppendPayload(header, gzipCompress(segment))
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *VolcengineStreamingRecognizer) recvLoop(conn *websocket.Conn) (string, error) {
	var transcript string
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if len(transcript) > 0 {
				return transcript, nil
			}
			return "", fmt.Errorf("read asr response: %w", err)
		}
		resp, isLast, err := parseStreamingResponse(raw)
		if err != nil {
			log.Printf("volcengine asr: parse response: %v", err)
			continue
		}
		transcript += resp
		if isLast {
			return transcript, nil
		}
	}
}

// streamingServerResponse mirrors the JSON payload Volcengine's ASR server
// returns inside a SERVER_FULL_RESPONSE frame.
type streamingServerResponse struct {
	Result struct {
		Text string `json:"text"`
	} `json:"result"`
	IsLastPackage bool `json:"is_last_package"`
}

func parseStreamingResponse(msg []byte) (text string, isLast bool, err error) {
	if len(msg) < 4 {
		return "", false, fmt.Errorf("response too short")
	}
	headerSize := int(msg[0]&0x0f) * 4
	messageType := msg[1] >> 4
	compression := msg[2] & 0x0f
	if headerSize < 4 || headerSize > len(msg) {
		return "", false, fmt.Errorf("invalid header size")
	}
	payload := msg[headerSize:]

	switch sttwire.MessageType(messageType) {
	case sttwire.ServerErrorResponse:
		return "", false, fmt.Errorf("server error response: %s", string(payload))
	case sttwire.ServerACK:
		return "", false, nil
	}

	if len(payload) < 4 {
		return "", false, nil
	}
	body := payload[4:]
	if sttwire.CompressionType(compression) == sttwire.Gzip {
		body = gzipDecompress(body)
	}

	var resp streamingServerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", false, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp.Result.Text, resp.IsLastPackage, nil
}

func splitAudio(data []byte, segmentSize int) [][]byte {
	if segmentSize <= 0 {
		return nil
	}
	var segments [][]byte
	for i := 0; i < len(data); i += segmentSize {
		end := i + segmentSize
		if end > len(data) {
			end = len(data)
		}
		segments = append(segments, data[i:end])
	}
	return segments
}

func gzipCompress(input []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write(input)
	_ = w.Close()
	return buf.Bytes()
}

func gzipDecompress(input []byte) []byte {
	r, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil
	}
	defer r.Close()
	out, _ := io.ReadAll(r)
	return out
}
