package indexnow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmitSendsHostKeyAndURLs(t *testing.T) {
	var got submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient("https://www.narkinsbuilders.com", "abc123", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	urls := []string{
		"https://www.narkinsbuilders.com/blog/2024/06/bahria-town-guide",
		"https://www.narkinsbuilders.com/blog/2025/01/hmr-waterfront",
	}
	if err := client.Submit(context.Background(), urls); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if got.Host != "www.narkinsbuilders.com" {
		t.Errorf("host = %q, want www.narkinsbuilders.com", got.Host)
	}
	if got.Key != "abc123" {
		t.Errorf("key = %q, want abc123", got.Key)
	}
	if len(got.URLList) != 2 || got.URLList[0] != urls[0] {
		t.Errorf("urlList = %v, want %v", got.URLList, urls)
	}
}

func TestSubmitErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := NewClient("https://example.com", "key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Submit(context.Background(), []string{"https://example.com/a"}); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client, err := NewClient("https://example.com", "", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Enabled() {
		t.Error("client without key should be disabled")
	}
	if err := client.Submit(context.Background(), []string{"https://example.com/a"}); err != nil {
		t.Errorf("Submit on disabled client: %v", err)
	}
	if called {
		t.Error("disabled client should not hit the endpoint")
	}
}

func TestSubmitEmptyListIsNoop(t *testing.T) {
	client, err := NewClient("https://example.com", "key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Submit(context.Background(), nil); err != nil {
		t.Errorf("Submit with no urls: %v", err)
	}
}
