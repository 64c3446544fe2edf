package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestQueryDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if !strings.Contains(req.Query, "hero") {
			t.Errorf("unexpected query: %q", req.Query)
		}
		if req.Variables["episode"] != "JEDI" {
			t.Errorf("unexpected variables: %v", req.Variables)
		}
		w.Write([]byte(`{"data":{"hero":{"name":"R2-D2"}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	var out struct {
		Hero struct {
			Name string `json:"name"`
		} `json:"hero"`
	}
	err := c.Query(context.Background(),
		`query Hero($episode: Episode) { hero(episode: $episode) { name } }`,
		map[string]any{"episode": "JEDI"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if out.Hero.Name != "R2-D2" {
		t.Fatalf("unexpected hero: %+v", out)
	}
}

func TestQueryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"errors":[{"message":"field missing"},{"message":"bad cursor"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Query(context.Background(), `{ broken }`, nil, nil)
	var qerr QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if len(qerr) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(qerr))
	}
	if !strings.Contains(err.Error(), "field missing") || !strings.Contains(err.Error(), "bad cursor") {
		t.Fatalf("error message should include all messages: %q", err.Error())
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server on fire", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Query(context.Background(), `{ ok }`, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestTokenHeader(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	if err := c.Query(context.Background(), `{ ping }`, nil, nil); err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer tok" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
}

func TestNilOutSkipsDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"deleted":true}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Query(context.Background(), `mutation { deleted }`, nil, nil); err != nil {
		t.Fatal(err)
	}
}
