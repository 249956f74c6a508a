package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func chatHandler(t *testing.T, content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "test-id",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}
}

func TestClientChat(t *testing.T) {
	var got chatCompletionRequest
	handler := chatHandler(t, "햄 샌드위치를 시작할게요.")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected Bearer test-key, got %s", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, r)
	}))
	defer server.Close()

	client, err := NewClient(
		WithBaseURL(server.URL+"/"),
		WithAPIKey("test-key"),
		WithModel("gpt-4o-mini"),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			NewSystemMessage("You take sandwich orders."),
			NewUserMessage("햄 하나"),
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Message.Content != "햄 샌드위치를 시작할게요." {
		t.Errorf("Unexpected content: %s", resp.Message.Content)
	}
	if resp.Message.Role != RoleAssistant {
		t.Errorf("Expected assistant role, got %s", resp.Message.Role)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected 15 tokens, got %d", resp.Usage.TotalTokens)
	}
	if got.Model != "gpt-4o-mini" || len(got.Messages) != 2 || got.Messages[0].Role != RoleSystem {
		t.Errorf("Unexpected request payload: %+v", got)
	}
	if got.MaxTokens != DefaultConfig().MaxTokens {
		t.Errorf("Expected default max tokens, got %d", got.MaxTokens)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	ok := chatHandler(t, "ok")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		ok(w, r)
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL), WithRetry(3, time.Millisecond))
	resp, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Message.Content != "ok" {
		t.Errorf("Unexpected content: %s", resp.Message.Content)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL), WithRetry(0, 0))
	_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if !apiErr.IsUnauthorized() || apiErr.IsRetryable() {
		t.Errorf("Unexpected classification: %+v", apiErr)
	}
	if apiErr.Code != "invalid_api_key" || apiErr.Message != "bad key" {
		t.Errorf("Unexpected error fields: %+v", apiErr)
	}
}

func TestClientNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	_, err := client.Chat(context.Background(), &ChatRequest{})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient(WithModel("")); !errors.Is(err, ErrNoModel) {
		t.Errorf("Expected ErrNoModel, got %v", err)
	}
	if _, err := NewClient(WithBaseURL("")); !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("Expected ErrNoBaseURL, got %v", err)
	}
}
