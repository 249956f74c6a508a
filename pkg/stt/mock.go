package stt

import (
	"context"
	"sync"
)

// Mock implements Transcriber for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked. If nil the mock
	// returns Text after validating the upload.
	TranscribeFunc func(ctx context.Context, audio *Audio) (*Transcript, error)

	// Text is the transcript returned when TranscribeFunc is nil.
	Text string

	mu     sync.Mutex
	inputs []*Audio
}

// NewMock creates a mock that always hears text.
func NewMock(text string) *Mock {
	return &Mock{Text: text}
}

// Transcribe records the upload and returns the canned transcript.
func (m *Mock) Transcribe(ctx context.Context, audio *Audio) (*Transcript, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, audio)
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio)
	}
	if err := audio.validate(); err != nil {
		return nil, err
	}
	return &Transcript{Text: m.Text}, nil
}

// Inputs returns every recording passed to Transcribe.
func (m *Mock) Inputs() []*Audio {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Audio, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// Verify Mock implements Transcriber at compile time.
var _ Transcriber = (*Mock)(nil)
