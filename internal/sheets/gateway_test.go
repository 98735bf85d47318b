package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewModeSelection(t *testing.T) {
	g, err := New(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("New(auto) error = %v", err)
	}
	if _, ok := g.(*MockGateway); !ok {
		t.Fatalf("auto without base url should yield mock, got %T", g)
	}

	g, err = New(Config{Mode: "auto", BaseURL: "http://localhost:9/api"})
	if err != nil {
		t.Fatalf("New(auto with url) error = %v", err)
	}
	if _, ok := g.(*HTTPGateway); !ok {
		t.Fatalf("auto with base url should yield http gateway, got %T", g)
	}

	if _, err := New(Config{Mode: "http"}); err == nil {
		t.Fatalf("http mode without url should fail")
	}
	if _, err := New(Config{Mode: "teleport"}); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}

func TestMockGatewayRoundTrip(t *testing.T) {
	g := NewMockGateway("groceries", "rent")
	ctx := context.Background()

	names, err := g.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections() error = %v", err)
	}
	if len(names) != 2 || names[0] != "groceries" || names[1] != "rent" {
		t.Fatalf("names = %v", names)
	}

	if err := g.AppendRow(ctx, "groceries", []string{"apples", "2.5", "1200", "pending"}); err != nil {
		t.Fatalf("AppendRow() error = %v", err)
	}
	rows, err := g.ReadCollection(ctx, "groceries")
	if err != nil {
		t.Fatalf("ReadCollection() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0]["col1"] != "apples" {
		t.Fatalf("row = %v", rows[0])
	}

	if err := g.AppendRow(ctx, "unknown", []string{"x"}); err == nil {
		t.Fatalf("append to unknown collection should fail")
	}
	if _, err := g.ReadCollection(ctx, "unknown"); err == nil {
		t.Fatalf("read of unknown collection should fail")
	}
}

func TestHTTPGatewayRoundTrip(t *testing.T) {
	var appended []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/collections":
			_ = json.NewEncoder(w).Encode(map[string]any{"collections": []string{"groceries", "rent"}})
		case r.Method == http.MethodGet && r.URL.Path == "/api/collections/groceries/rows":
			_ = json.NewEncoder(w).Encode(map[string]any{"rows": []map[string]any{{"item": "apples", "qty": 2.5}}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/collections/groceries/rows":
			var body struct {
				Values []string `json:"values"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			appended = body.Values
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	g := NewHTTPGateway(ts.URL+"/api/", "secret", time.Second)
	ctx := context.Background()

	names, err := g.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections() error = %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("names = %v", names)
	}

	rows, err := g.ReadCollection(ctx, "groceries")
	if err != nil {
		t.Fatalf("ReadCollection() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["item"] != "apples" {
		t.Fatalf("rows = %v", rows)
	}

	if err := g.AppendRow(ctx, "groceries", []string{"pears", "3", "500", "pending"}); err != nil {
		t.Fatalf("AppendRow() error = %v", err)
	}
	if len(appended) != 4 || appended[0] != "pears" {
		t.Fatalf("appended = %v", appended)
	}
}

func TestHTTPGatewaySurfacesStatusErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	g := NewHTTPGateway(ts.URL, "", time.Second)
	_, err := g.ListCollections(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusServiceUnavailable {
		t.Fatalf("Code = %d, want 503", se.Code)
	}
}
