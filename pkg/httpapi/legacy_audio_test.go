package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLegacyAudioPCM16(t *testing.T) {
	dir := t.TempDir()
	mux := http.NewServeMux()
	RegisterLegacyAudio(mux, dir)

	pcm := make([]byte, 3200) // 100ms @ 16kHz mono 16-bit
	req := httptest.NewRequest(http.MethodPost, "/api/v1/audio", bytes.NewReader(pcm))
	req.Header.Set("X-Codec", "pcm16le")
	req.Header.Set("X-Sample-Rate", "16000")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp legacyAudioResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Frames != 1600 {
		t.Errorf("Frames = %d, want 1600", resp.Frames)
	}
	if resp.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", resp.SampleRate)
	}
	if resp.DurationSeconds != 0.1 {
		t.Errorf("DurationSeconds = %v, want 0.1", resp.DurationSeconds)
	}
}

func TestLegacyAudioRejectsUnsupportedCodec(t *testing.T) {
	dir := t.TempDir()
	mux := http.NewServeMux()
	RegisterLegacyAudio(mux, dir)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audio", bytes.NewReader([]byte{1, 2}))
	req.Header.Set("X-Codec", "opus")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLegacyAudioRejectsEmptyBody(t *testing.T) {
	dir := t.TempDir()
	mux := http.NewServeMux()
	RegisterLegacyAudio(mux, dir)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audio", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
