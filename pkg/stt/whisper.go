package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/teslashibe/go-kiosk/internal/httpc"
)

const providerWhisper = "whisper"

// Whisper implements Transcriber for the OpenAI transcription endpoint.
type Whisper struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewWhisper creates a Whisper transcriber.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Whisper{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "stt.whisper"),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// Transcribe uploads the recording and returns the recognised text.
func (w *Whisper) Transcribe(ctx context.Context, audio *Audio) (*Transcript, error) {
	if err := audio.validate(); err != nil {
		return nil, err
	}
	if w.config.MaxBytes > 0 && len(audio.Data) > w.config.MaxBytes {
		return nil, ErrTooLarge
	}
	start := time.Now()

	filename := FilenameFor(audio.Filename, audio.ContentType)
	body, contentType, err := w.encode(audio, filename)
	if err != nil {
		return nil, WrapError(providerWhisper, err)
	}

	w.logger.Info("upload",
		"name", audio.Filename,
		"content_type", audio.ContentType,
		"sent_as", filename,
		"bytes", len(audio.Data),
	)

	resp, err := w.doWithRetry(ctx, body, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, w.parseError(resp)
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerWhisper, fmt.Errorf("decode response: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	w.logger.Info("transcribed",
		"text", preview(result.Text, 200),
		"latency_ms", latency,
	)

	return &Transcript{
		Text:      strings.TrimSpace(result.Text),
		Language:  result.Language,
		LatencyMs: latency,
	}, nil
}

func (w *Whisper) encode(audio *Audio, filename string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", mediaType(audio.ContentType))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", err
	}

	if err := mw.WriteField("model", w.config.Model); err != nil {
		return nil, "", err
	}
	if w.config.Language != "" {
		if err := mw.WriteField("language", w.config.Language); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (w *Whisper) doWithRetry(ctx context.Context, body []byte, contentType string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(providerWhisper, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := w.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(providerWhisper, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = w.parseError(resp)
			resp.Body.Close()
			w.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func (w *Whisper) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerWhisper,
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Verify Whisper implements Transcriber at compile time.
var _ Transcriber = (*Whisper)(nil)
