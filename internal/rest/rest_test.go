package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestGetDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/widgets/1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(widget{ID: "1", Name: "sprocket"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := Get[widget](context.Background(), c, "/widgets/1")
	if err != nil {
		t.Fatal(err)
	}
	if got != (widget{ID: "1", Name: "sprocket"}) {
		t.Fatalf("unexpected widget: %+v", got)
	}
}

func TestPostSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		raw, _ := io.ReadAll(r.Body)
		var in widget
		if err := json.Unmarshal(raw, &in); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		in.ID = "assigned"
		json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := Post[widget](context.Background(), c, "/widgets", widget{Name: "cog"})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "assigned" || got.Name != "cog" {
		t.Fatalf("unexpected widget: %+v", got)
	}
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := Get[widget](context.Background(), c, "/widgets/missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", apiErr.Status)
	}
}

func TestHeaders(t *testing.T) {
	var auth, reqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		reqID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("s3cret"))
	if _, err := Get[map[string]any](context.Background(), c, "/"); err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer s3cret" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
	if reqID == "" {
		t.Fatal("every request should carry an X-Request-ID")
	}
}

func TestEmptyBodyYieldsZeroValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := Delete[widget](context.Background(), c, "/widgets/1")
	if err != nil {
		t.Fatal(err)
	}
	if got != (widget{}) {
		t.Fatalf("expected zero value for empty body, got %+v", got)
	}
}

func TestContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(srv.URL)
	if _, err := Get[widget](ctx, c, "/slow"); err == nil {
		t.Fatal("cancelled context should fail the request")
	}
}
