package httpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostSendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"ok":true}` {
			t.Errorf("body = %q", b)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := Post(context.Background(), server.URL, "application/json", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestDoJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]int
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"doubled": in["n"] * 2})
	}))
	defer server.Close()

	var out struct {
		Doubled int `json:"doubled"`
	}
	err := DoJSON(context.Background(), nil, http.MethodPost, server.URL, map[string]int{"n": 21}, &out)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out.Doubled != 42 {
		t.Errorf("doubled = %d", out.Doubled)
	}
}

func TestDoJSONStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "order not found", http.StatusNotFound)
	}))
	defer server.Close()

	err := DoJSON(context.Background(), NewClient(DefaultTimeout), http.MethodGet, server.URL, nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", se.StatusCode)
	}
}
