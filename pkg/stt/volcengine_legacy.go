package stt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	uuid "github.com/satori/go.uuid"

	"stackchan/pkg/sttwire"
)

// VolcengineLegacyRecognizer implements the older single-shot Volcengine ASR
// protocol (whole-utterance requests, no incremental pacing). It is offered
// as a third Recognizer option for deployments still provisioned against
// that cluster.
type VolcengineLegacyRecognizer struct {
	URL      string
	AppID    string
	Token    string
	Cluster  string
	Workflow string
	SegSize  int
}

// NewVolcengineLegacyRecognizer builds a recognizer against the legacy
// wss://openspeech.bytedance.com/api/v2/asr endpoint.
func NewVolcengineLegacyRecognizer(appID, token, cluster string) *VolcengineLegacyRecognizer {
	return &VolcengineLegacyRecognizer{
		URL:      "wss://openspeech.bytedance.com/api/v2/asr",
		AppID:    appID,
		Token:    token,
		Cluster:  cluster,
		Workflow: "audio_in,resample,partition,vad,fe,decode",
		SegSize:  160000,
	}
}

var (
	fullClientWsHeader = []byte{0x11, 0x10, 0x11, 0x00}
	audioOnlyWsHeader  = []byte{0x11, 0x20, 0x11, 0x00}
	lastAudioWsHeader  = []byte{0x11, 0x22, 0x11, 0x00}
)

type legacyAsrResponse struct {
	Code   int `json:"code"`
	Result []struct {
		Text string `json:"text"`
	} `json:"result,omitempty"`
}

// Recognize uploads the whole PCM buffer in SegSize chunks and returns the
// text of the final server response.
func (c *VolcengineLegacyRecognizer) Recognize(ctx context.Context, pcm []byte) (string, error) {
	header := http.Header{"Authorization": []string{fmt.Sprintf("Bearer;%s", c.Token)}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, header)
	if err != nil {
		return "", fmt.Errorf("dial legacy asr: %w", err)
	}
	defer conn.Close()

	if err := c.sendFullClientRequest(conn); err != nil {
		return "", fmt.Errorf("send full client request: %w", err)
	}
	if _, err := c.readResponse(conn); err != nil {
		return "", fmt.Errorf("read full client response: %w", err)
	}

	var last legacyAsrResponse
	for sent := 0; sent < len(pcm); sent += c.SegSize {
		end := sent + c.SegSize
		lastChunk := end >= len(pcm)
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := c.sendAudioChunk(conn, pcm[sent:end], lastChunk); err != nil {
			return "", fmt.Errorf("send audio chunk: %w", err)
		}
		resp, err := c.readResponse(conn)
		if err != nil {
			return "", fmt.Errorf("read audio response: %w", err)
		}
		last = resp
	}

	var transcript string
	for _, r := range last.Result {
		transcript += r.Text
	}
	return transcript, nil
}

func (c *VolcengineLegacyRecognizer) sendFullClientRequest(conn *websocket.Conn) error {
	req := map[string]map[string]any{
		"app":     {"appid": c.AppID, "cluster": c.Cluster, "token": c.Token},
		"user":    {"uid": "stackchan"},
		"request": {"reqid": uuid.NewV4().String(), "nbest": 1, "workflow": c.Workflow, "result_type": "full", "sequence": 1},
		"audio":   {"format": "wav", "codec": "raw", "rate": SampleRateHz, "language": LanguageCode},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	payload := gzipCompress(body)

	msg := make([]byte, len(fullClientWsHeader))
	copy(msg, fullClientWsHeader)
	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(payload)))
	msg = append(msg, size...)
	msg = append(msg, payload...)
	return conn.WriteMessage(websocket.BinaryMessage, msg)
}

func (c *VolcengineLegacyRecognizer) sendAudioChunk(conn *websocket.Conn, chunk []byte, last bool) error {
	payload := gzipCompress(chunk)
	head := audioOnlyWsHeader
	if last {
		head = lastAudioWsHeader
	}
	msg := make([]byte, len(head))
	copy(msg, head)
	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(payload)))
	msg = append(msg, size...)
	msg = append(msg, payload...)
	return conn.WriteMessage(websocket.BinaryMessage, msg)
}

func (c *VolcengineLegacyRecognizer) readResponse(conn *websocket.Conn) (legacyAsrResponse, error) {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return legacyAsrResponse{}, fmt.Errorf("read message: %w", err)
	}

	headerSize := raw[0] & 0x0f
	messageType := sttwire.MessageType(raw[1] >> 4)
	compression := sttwire.CompressionType(raw[2] & 0x0f)
	payload := raw[headerSize*4:]

	var payloadMsg []byte
	switch messageType {
	case sttwire.ServerFullResponse:
		payloadMsg = payload[4:]
	case sttwire.ServerACK:
		if len(payload) >= 8 {
			payloadMsg = payload[8:]
		}
	case sttwire.ServerErrorResponse:
		code := int32(binary.BigEndian.Uint32(payload[:4]))
		return legacyAsrResponse{}, fmt.Errorf("server error response code=%d msg=%s", code, string(payload[8:]))
	}

	if len(payloadMsg) == 0 {
		return legacyAsrResponse{}, nil
	}
	if compression == sttwire.Gzip {
		payloadMsg = gzipDecompress(payloadMsg)
	}

	var resp legacyAsrResponse
	if err := json.Unmarshal(payloadMsg, &resp); err != nil {
		return legacyAsrResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp, nil
}

