package voicegw

import (
	"encoding/json"
	"sync"
	"time"
)

// Metrics tracks latency at each stage of one voice turn.
// All durations are measured from the moment the client ends the utterance.
type Metrics struct {
	// Timestamps for key events
	SpeechEndTime  time.Time // When the end frame arrived
	TranscriptTime time.Time // When transcription completed
	ReplyTime      time.Time // When the turn was applied
	AudioTime      time.Time // When speech was written back
	DoneTime       time.Time // When the turn was fully delivered

	// Computed latencies (from speech end)
	ASRLatency   time.Duration
	TurnLatency  time.Duration
	AudioLatency time.Duration
	TotalLatency time.Duration

	// Upload size for this turn
	FramesIn int
	BytesIn  int
}

// MarshalJSON reports latencies in milliseconds.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type wire struct {
		ASR      int64 `json:"asrMs"`
		Turn     int64 `json:"turnMs"`
		Audio    int64 `json:"audioMs"`
		Total    int64 `json:"totalMs"`
		FramesIn int   `json:"framesIn"`
		BytesIn  int   `json:"bytesIn"`
	}
	return json.Marshal(wire{
		ASR:      m.ASRLatency.Milliseconds(),
		Turn:     m.TurnLatency.Milliseconds(),
		Audio:    m.AudioLatency.Milliseconds(),
		Total:    m.TotalLatency.Milliseconds(),
		FramesIn: m.FramesIn,
		BytesIn:  m.BytesIn,
	})
}

// MetricsCollector collects latency metrics across voice turns.
// It is goroutine-safe and shared by all connections of a gateway.
type MetricsCollector struct {
	mu      sync.Mutex
	history []Metrics // Recent turns for averaging
	now     func() time.Time
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, 100),
		now:     time.Now,
	}
}

// Turn measures one utterance. It is owned by a single connection.
type Turn struct {
	c *MetricsCollector
	m Metrics
}

// Begin starts measuring a turn at the end of speech.
func (c *MetricsCollector) Begin(frames, bytes int) *Turn {
	return &Turn{c: c, m: Metrics{SpeechEndTime: c.now(), FramesIn: frames, BytesIn: bytes}}
}

// MarkTranscript records when transcription completed.
func (t *Turn) MarkTranscript() {
	t.m.TranscriptTime = t.c.now()
	t.m.ASRLatency = t.m.TranscriptTime.Sub(t.m.SpeechEndTime)
}

// MarkReply records when the kiosk turn was applied.
func (t *Turn) MarkReply() {
	t.m.ReplyTime = t.c.now()
	t.m.TurnLatency = t.m.ReplyTime.Sub(t.m.SpeechEndTime)
}

// MarkAudio records when synthesized speech was sent.
func (t *Turn) MarkAudio() {
	t.m.AudioTime = t.c.now()
	t.m.AudioLatency = t.m.AudioTime.Sub(t.m.SpeechEndTime)
}

// Done archives the turn and returns its metrics.
func (t *Turn) Done() Metrics {
	t.m.DoneTime = t.c.now()
	t.m.TotalLatency = t.m.DoneTime.Sub(t.m.SpeechEndTime)

	t.c.mu.Lock()
	t.c.history = append(t.c.history, t.m)
	if len(t.c.history) > 100 {
		t.c.history = t.c.history[1:]
	}
	t.c.mu.Unlock()
	return t.m
}

// Turns returns how many turns are held for averaging.
func (c *MetricsCollector) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// Average returns average metrics over recent turns.
func (c *MetricsCollector) Average() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range c.history {
		avg.ASRLatency += h.ASRLatency
		avg.TurnLatency += h.TurnLatency
		avg.AudioLatency += h.AudioLatency
		avg.TotalLatency += h.TotalLatency
		avg.BytesIn += h.BytesIn
	}

	n := time.Duration(len(c.history))
	avg.ASRLatency /= n
	avg.TurnLatency /= n
	avg.AudioLatency /= n
	avg.TotalLatency /= n
	avg.BytesIn /= len(c.history)

	return avg
}

// FormatLatency returns a formatted string of the latencies.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.ASRLatency) + " ASR | " +
		formatDuration(m.TurnLatency) + " TURN | " +
		formatDuration(m.AudioLatency) + " TTS | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
