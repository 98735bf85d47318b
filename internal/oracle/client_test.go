package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewDisabledForcesMock(t *testing.T) {
	c, err := New(Config{Enabled: false, Mode: "http", HTTPURL: "http://localhost:1/v1/chat/completions"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Name() != "mock" {
		t.Fatalf("Name() = %q, want mock", c.Name())
	}
}

func TestNewAutoFallsBackToMock(t *testing.T) {
	c, err := New(Config{Enabled: true, Mode: "auto"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Name() != "mock" {
		t.Fatalf("Name() = %q, want mock", c.Name())
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(Config{Enabled: true, Mode: "carrier-pigeon"}); err == nil {
		t.Fatalf("New() should reject unknown mode")
	}
}

func TestNewHTTPModeRequiresURL(t *testing.T) {
	if _, err := New(Config{Enabled: true, Mode: "http"}); err == nil {
		t.Fatalf("New() should require a url in http mode")
	}
}

func TestHTTPClientCompletes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "WRITE"}},
			},
		})
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "test-model", time.Second)
	res, err := c.Complete(context.Background(), Request{
		System:      "classify",
		Prompt:      "add apples",
		Temperature: 0,
		MaxTokens:   4,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if res.Text != "WRITE" {
		t.Fatalf("Text = %q, want WRITE", res.Text)
	}
}

func TestHTTPClientSurfacesStatusErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "", time.Second)
	if _, err := c.Complete(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatalf("Complete() should surface non-2xx status")
	}
}

func TestMockClientScriptedReply(t *testing.T) {
	c := &MockClient{Reply: "READ"}
	res, err := c.Complete(context.Background(), Request{Prompt: "what is in groceries"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if res.Text != "READ" {
		t.Fatalf("Text = %q, want READ", res.Text)
	}
}

func TestMockClientHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewMockClient()
	if _, err := c.Complete(ctx, Request{Prompt: "x"}); err == nil {
		t.Fatalf("Complete() should fail on cancelled context")
	}
}
