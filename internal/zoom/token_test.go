package zoom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func newTokenServer(t *testing.T, hits *atomic.Int32, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostFormValue("grant_type"); got != "account_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if user, _, ok := r.BasicAuth(); !ok || user != "client-id" {
			t.Errorf("basic auth user = %q, ok = %v", user, ok)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-123",
			"expires_in":   expiresIn,
		})
	}))
}

func TestTokenCachedUntilExpiry(t *testing.T) {
	var hits atomic.Int32
	srv := newTokenServer(t, &hits, 3600)
	defer srv.Close()

	ts := NewTokenSource(Config{
		ClientID: "client-id", ClientSecret: "secret", AccountID: "acc", TokenURL: srv.URL,
	}, srv.Client(), nil)

	for i := 0; i < 3; i++ {
		tok, err := ts.Token(context.Background())
		if err != nil {
			t.Fatalf("Token #%d: %v", i+1, err)
		}
		if tok != "tok-123" {
			t.Errorf("token = %q", tok)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("token endpoint hit %d times, want 1", hits.Load())
	}
}

func TestTokenRefreshesWhenExpired(t *testing.T) {
	var hits atomic.Int32
	// expires_in below the slack window, so every call needs a refresh
	srv := newTokenServer(t, &hits, 1)
	defer srv.Close()

	ts := NewTokenSource(Config{
		ClientID: "client-id", ClientSecret: "secret", AccountID: "acc", TokenURL: srv.URL,
	}, srv.Client(), nil)

	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("token endpoint hit %d times, want 2", hits.Load())
	}
}

func TestTokenConcurrentCallersShareRefresh(t *testing.T) {
	var hits atomic.Int32
	srv := newTokenServer(t, &hits, 3600)
	defer srv.Close()

	ts := NewTokenSource(Config{
		ClientID: "client-id", ClientSecret: "secret", AccountID: "acc", TokenURL: srv.URL,
	}, srv.Client(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ts.Token(context.Background()); err != nil {
				t.Errorf("Token: %v", err)
			}
		}()
	}
	wg.Wait()
	if hits.Load() != 1 {
		t.Errorf("token endpoint hit %d times under concurrency, want 1", hits.Load())
	}
}
