package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"stackchan/pkg/audio"
)

type legacyAudioResponse struct {
	Text            string  `json:"text"`
	SampleRate      int     `json:"sample_rate"`
	Frames          int     `json:"frames"`
	DurationSeconds float64 `json:"duration_seconds"`
	Path            string  `json:"path"`
}

// RegisterLegacyAudio adds POST /api/v1/audio, the single-shot upload path
// kept for firmware builds that never adopted the WebSocket proxy: a raw
// PCM16LE or mu-law request body, decoded and saved as a WAV file.
func RegisterLegacyAudio(mux *http.ServeMux, recordingsDir string) {
	mux.HandleFunc("POST /api/v1/audio", func(w http.ResponseWriter, r *http.Request) {
		handleLegacyAudio(w, r, recordingsDir)
	})
}

func handleLegacyAudio(w http.ResponseWriter, r *http.Request, recordingsDir string) {
	codec := strings.ToLower(r.Header.Get("X-Codec"))
	if codec == "" {
		codec = "pcm16le"
	}
	switch codec {
	case "pcm16", "pcm16le", "mulaw", "ulaw":
	default:
		http.Error(w, "unsupported codec. use pcm16le (preferred) or mulaw", http.StatusBadRequest)
		return
	}

	sampleRateRaw := r.Header.Get("X-Sample-Rate")
	if sampleRateRaw == "" {
		sampleRateRaw = "16000"
	}
	sampleRate, err := strconv.Atoi(sampleRateRaw)
	if err != nil || sampleRate <= 0 {
		http.Error(w, "X-Sample-Rate must be a positive integer", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(payload) == 0 {
		http.Error(w, "request body is empty", http.StatusBadRequest)
		return
	}

	var pcm []byte
	switch codec {
	case "pcm16", "pcm16le":
		if len(payload)%2 != 0 {
			http.Error(w, "pcm16 payload size must be even", http.StatusBadRequest)
			return
		}
		pcm = payload
	default:
		pcm = audio.MulawToPCM16(payload)
	}

	frames := len(pcm) / 2
	durationSeconds := float64(frames) / float64(sampleRate)

	ts := time.Now().UTC().Format("20060102_150405.000000")
	ts = ts[:len("20060102_150405")] + "_" + ts[len("20060102_150405")+1:]
	filename := fmt.Sprintf("rec_%s.wav", ts)
	path := filepath.Join(recordingsDir, filename)
	if err := audio.WriteWAV16(path, pcm, sampleRate, 1); err != nil {
		http.Error(w, fmt.Sprintf("failed to save recording: %v", err), http.StatusInternalServerError)
		return
	}

	resp := legacyAudioResponse{
		Text:            fmt.Sprintf("Saved as %s", filename),
		SampleRate:      sampleRate,
		Frames:          frames,
		DurationSeconds: roundTo3(durationSeconds),
		Path:            path,
	}

	w.Header().Set("Content-Type", "application/json")
	body, _ := sonic.Marshal(resp)
	w.Write(body)
}

func roundTo3(v float64) float64 {
	const scale = 1000.0
	return float64(int64(v*scale+0.5)) / scale
}
