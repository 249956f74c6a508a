// Package tts turns the kiosk's spoken replies into audio.
//
// Example usage:
//
//	provider, _ := tts.NewOpenAI(
//	    tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    tts.WithVoice(tts.VoiceNova),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "장바구니에 담았습니다.")
//	// result.Audio holds MP3 bytes, result.ContentType is "audio/mpeg"
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to a complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// Audio contains the encoded audio.
	Audio []byte `json:"-"`

	// Format is the encoding of Audio.
	Format Format `json:"format"`

	// ContentType is the MIME type browsers need to play Audio.
	ContentType string `json:"contentType"`

	// Duration is an estimate of the playback duration, zero if unknown.
	Duration time.Duration `json:"duration,omitempty"`

	// CharCount is the number of characters synthesized.
	CharCount int `json:"charCount"`

	// LatencyMs is the request latency in milliseconds.
	LatencyMs int64 `json:"latencyMs"`
}

// Format is an audio container the provider can produce.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatOpus Format = "opus"
	FormatAAC  Format = "aac"
	FormatWAV  Format = "wav"
	FormatPCM  Format = "pcm" // 24kHz mono PCM16, no header
)

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatOpus:
		return "audio/ogg"
	case FormatAAC:
		return "audio/aac"
	case FormatWAV:
		return "audio/wav"
	case FormatPCM:
		return "audio/L16;rate=24000"
	default:
		return "audio/mpeg"
	}
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	switch f {
	case FormatMP3, FormatOpus, FormatAAC, FormatWAV, FormatPCM:
		return true
	}
	return false
}
