// Package stt transcribes recorded customer speech.
//
// The kiosk front end records with MediaRecorder, so uploads arrive as
// webm/opus, mp4 or ogg blobs, often without a usable file name. Whisper
// infers the codec from the file extension, which FilenameFor repairs from
// the content type.
package stt

import (
	"context"
	"mime"
	"path/filepath"
	"strings"
)

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio *Audio) (*Transcript, error)
}

// Audio is an uploaded recording.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Transcript is the recognised text of one recording.
type Transcript struct {
	Text      string `json:"text"`
	Language  string `json:"language,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

var extByType = map[string]string{
	"audio/webm": ".webm",
	"audio/mp4":  ".mp4",
	"audio/m4a":  ".m4a",
	"audio/mpeg": ".mp3",
	"audio/mp3":  ".mp3",
	"audio/wav":  ".wav",
	"audio/ogg":  ".ogg",
	"audio/oga":  ".oga",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

const defaultExt = ".webm"

// mediaType strips parameters such as ";codecs=opus" and lower-cases.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// Supported reports whether contentType is an audio or video type.
func Supported(contentType string) bool {
	mt := mediaType(contentType)
	return strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/")
}

// FilenameFor returns a file name whose extension matches the recording.
// A name that already has an extension is kept; otherwise the extension is
// derived from the content type, falling back to .webm.
func FilenameFor(filename, contentType string) string {
	base := filepath.Base(filename)
	if base == "." || base == "/" || base == "" {
		base = "audio"
	}
	if filepath.Ext(base) != "" {
		return base
	}
	ext, ok := extByType[mediaType(contentType)]
	if !ok {
		ext = defaultExt
	}
	return base + ext
}

func (a *Audio) validate() error {
	if a == nil || len(a.Data) == 0 {
		return ErrEmptyAudio
	}
	if !Supported(a.ContentType) {
		return &MediaError{ContentType: a.ContentType}
	}
	return nil
}
