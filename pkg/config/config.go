// Package config centralizes the server's per-process dependencies: the
// listen address, recordings directory, STT/TTS provider selection and the
// provider credentials read from the environment.
package config

import "os"

// STT provider selectors for Config.STTProvider.
const (
	STTProviderGoogle     = "google"
	STTProviderVolcengine = "volcengine"
)

// Config holds the per-server settings injected into the proxy App at
// construction; one Config is shared across all sessions.
type Config struct {
	ListenAddr      string
	RecordingsDir   string
	VoicevoxBaseURI string
	TTSSpeakerID    int
	STTProvider     string
}

// Default returns the configuration used when no flags or environment
// overrides are present.
func Default() Config {
	return Config{
		ListenAddr:      "0.0.0.0:8000",
		RecordingsDir:   "recordings",
		VoicevoxBaseURI: "http://localhost:50021",
		TTSSpeakerID:    29,
		STTProvider:     STTProviderGoogle,
	}
}

// VolcAppKey returns the Volcengine app id used to authenticate the
// streaming/legacy ASR adapters.
func VolcAppKey() string {
	return os.Getenv("VOLC_APPID")
}

// VolcAccessKey returns the Volcengine access token.
func VolcAccessKey() string {
	return os.Getenv("VOLC_TOKEN")
}

// VolcCluster returns the legacy ASR cluster name.
func VolcCluster() string {
	return os.Getenv("VOLC_CLUSTER")
}

// ArkAPIKey returns the Volcengine Ark (LLM) API key used by the example
// conversation app.
func ArkAPIKey() string {
	return os.Getenv("ARK_API_KEY")
}

// GeminiAPIKey returns the Gemini API key used by the example conversation
// app's default backend.
func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// GoogleApplicationCredentials returns the path to the service account
// credentials file consumed implicitly by cloud.google.com/go/speech.
func GoogleApplicationCredentials() string {
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
}
