// Kiosk - voice-driven sandwich ordering server
// Serves the HTTP API, the status socket and the voice gateway.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-kiosk/internal/config"
	"github.com/teslashibe/go-kiosk/internal/log"
	"github.com/teslashibe/go-kiosk/pkg/backend"
	"github.com/teslashibe/go-kiosk/pkg/events"
	"github.com/teslashibe/go-kiosk/pkg/inference"
	"github.com/teslashibe/go-kiosk/pkg/intent"
	"github.com/teslashibe/go-kiosk/pkg/kiosk"
	"github.com/teslashibe/go-kiosk/pkg/session"
	"github.com/teslashibe/go-kiosk/pkg/stt"
	"github.com/teslashibe/go-kiosk/pkg/tts"
	"github.com/teslashibe/go-kiosk/pkg/voicegw"
	"github.com/teslashibe/go-kiosk/pkg/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error("kiosk stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn("close failed", "error", err)
			}
		}
	}()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	sessions := session.NewManager(store, session.WithLogger(log.L()))
	closers = append(closers, sessions)

	source, err := newSource(cfg)
	if err != nil {
		return err
	}

	opts := []kiosk.Option{kiosk.WithLogger(log.L())}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	closers = append(closers, publisher)
	opts = append(opts, kiosk.WithPublisher(publisher))

	if cfg.BackendURL != "" {
		client, err := backend.New(backend.WithBaseURL(cfg.BackendURL), backend.WithLogger(log.L()))
		if err != nil {
			return fmt.Errorf("backend: %w", err)
		}
		opts = append(opts, kiosk.WithBackend(client))
		log.Info("backend enabled", "url", cfg.BackendURL)
	}

	if cfg.TTSEnabled {
		speech, err := tts.NewOpenAI(
			tts.WithAPIKey(cfg.OpenAIKey),
			tts.WithVoice(cfg.TTSVoice),
			tts.WithLogger(log.L()),
		)
		if err != nil {
			return fmt.Errorf("tts: %w", err)
		}
		closers = append(closers, speech)
		opts = append(opts, kiosk.WithSpeech(speech))
		log.Info("speech enabled", "voice", speech.VoiceID())
	}

	svc := kiosk.New(sessions, source, opts...)

	var transcriber stt.Transcriber
	serverOpts := []web.Option{
		web.WithAddr(cfg.Addr()),
		web.WithStaticDir(cfg.StaticDir),
		web.WithLogger(log.L()),
	}
	if cfg.OpenAIKey != "" {
		whisper, err := stt.NewWhisper(stt.WithAPIKey(cfg.OpenAIKey), stt.WithLogger(log.L()))
		if err != nil {
			return fmt.Errorf("stt: %w", err)
		}
		transcriber = whisper
		serverOpts = append(serverOpts, web.WithTranscriber(whisper))
	}

	server := web.NewServer(svc, serverOpts...)
	if transcriber != nil {
		voicegw.New(svc, transcriber, voicegw.WithLogger(log.L())).RegisterRoutes(server.App())
	} else {
		log.Warn("voice disabled: OPENAI_API_KEY not set")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	log.Info("kiosk ready",
		"addr", cfg.Addr(),
		"intent", cfg.IntentMode,
		"sessions", storeName(cfg),
		"events", len(cfg.KafkaBrokers) > 0,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	done := make(chan error, 1)
	go func() { done <- server.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		return fmt.Errorf("shutdown timed out")
	}
}

func newStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryStore(cfg.SessionTTL), nil
	}
	store, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return store, nil
}

func storeName(cfg *config.Config) string {
	if cfg.RedisURL == "" {
		return "memory"
	}
	return "redis"
}

func newSource(cfg *config.Config) (intent.Source, error) {
	logger := log.L()
	if cfg.IntentMode == config.IntentRules {
		return intent.NewRules(intent.WithLogger(logger)), nil
	}
	client, err := inference.NewClient(
		inference.WithBaseURL(cfg.LLMBaseURL),
		inference.WithAPIKey(cfg.OpenAIKey),
		inference.WithModel(cfg.LLMModel),
		inference.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	return intent.NewLLM(client, intent.WithLogger(logger)), nil
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}, nil
	}
	p, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Logger:  log.L(),
	})
	if err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	return p, nil
}
