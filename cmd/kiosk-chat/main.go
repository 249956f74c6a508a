// Kiosk Chat - drive one ordering session from the terminal
//
// Every line is sent through the same turn pipeline the server uses.
// Lines starting with "/" are local commands: /state, /checkout, /reset, /quit.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-kiosk/internal/config"
	"github.com/teslashibe/go-kiosk/internal/log"
	"github.com/teslashibe/go-kiosk/pkg/backend"
	"github.com/teslashibe/go-kiosk/pkg/inference"
	"github.com/teslashibe/go-kiosk/pkg/intent"
	"github.com/teslashibe/go-kiosk/pkg/kiosk"
	"github.com/teslashibe/go-kiosk/pkg/order"
	"github.com/teslashibe/go-kiosk/pkg/session"
)

func main() {
	mode := flag.String("mode", "", "Intent source: llm or rules (default from INTENT_MODE)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *mode != "" {
		os.Setenv("INTENT_MODE", *mode)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	level := "warn"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	sessions := session.NewManager(session.NewMemoryStore(cfg.SessionTTL))
	defer sessions.Close()

	var source intent.Source = intent.NewRules()
	if cfg.IntentMode == config.IntentLLM {
		client, err := inference.NewClient(
			inference.WithBaseURL(cfg.LLMBaseURL),
			inference.WithAPIKey(cfg.OpenAIKey),
			inference.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return err
		}
		defer client.Close()
		source = intent.NewLLM(client)
	}

	var opts []kiosk.Option
	if cfg.BackendURL != "" {
		client, err := backend.New(backend.WithBaseURL(cfg.BackendURL))
		if err != nil {
			return err
		}
		opts = append(opts, kiosk.WithBackend(client))
	}
	svc := kiosk.New(sessions, source, opts...)

	snap, err := svc.Create(ctx)
	if err != nil {
		return err
	}
	id := snap.ID

	fmt.Println("🥪 Kiosk chat")
	fmt.Printf("   intent: %s, session: %s\n", cfg.IntentMode, id)
	fmt.Println("   /state /checkout /reset /quit")
	fmt.Println()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/state":
			printState(ctx, svc, id)
			continue
		case "/reset":
			svc.Delete(ctx, id)
			snap, err := svc.Create(ctx)
			if err != nil {
				return err
			}
			id = snap.ID
			fmt.Println("   new session", id)
			continue
		case "/checkout":
			res, err := svc.Checkout(ctx, id)
			if err != nil {
				fmt.Printf("   ❌ %v\n", err)
				continue
			}
			if res.Receipt != nil {
				fmt.Printf("   ✅ order #%d %s, total %d\n", res.Receipt.OrderID, res.Receipt.Status, res.Receipt.TotalCents)
			} else {
				fmt.Println("   ✅ order completed")
			}
			continue
		}

		start := time.Now()
		res, err := svc.Turn(ctx, id, line)
		if err != nil {
			fmt.Printf("   ❌ %v\n", err)
			continue
		}
		fmt.Printf("🤖 %s  (%s)\n", res.Reply, time.Since(start).Round(time.Millisecond))
		for _, r := range res.Results {
			mark := "✓"
			if !r.OK {
				mark = "✗"
			}
			fmt.Printf("   %s %s: %s\n", mark, r.Action, r.Message)
		}
		for _, r := range res.Rejected {
			fmt.Printf("   ⚠ %s rejected: %s\n", r.Command.Action, r.Reason)
		}
	}
}

func printState(ctx context.Context, svc *kiosk.Service, id string) {
	snap, err := svc.Get(ctx, id)
	if err != nil {
		fmt.Printf("   ❌ %v\n", err)
		return
	}
	s := &order.State{Cart: snap.Cart, CurrentItem: snap.CurrentItem, Status: snap.Status}
	for _, l := range strings.Split(strings.TrimRight(s.Summary(), "\n"), "\n") {
		fmt.Println("   " + l)
	}
}
