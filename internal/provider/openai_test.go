package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const okResponse = `{"choices":[{"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`

func TestChatParsesResponse(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okResponse))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(StaticToken("sk-test"), srv.URL, "test-model")
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "hello" || resp.Usage.TotalTokens != 7 {
		t.Fatalf("resp = %+v", resp)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth = %q", gotAuth)
	}
}

type refreshableToken struct {
	refreshes int32
}

func (r *refreshableToken) Token(context.Context) (string, error) { return "expired", nil }
func (r *refreshableToken) Refresh(context.Context) (string, error) {
	atomic.AddInt32(&r.refreshes, 1)
	return "fresh", nil
}

func TestChatRefreshesOnceOn401(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(okResponse))
	}))
	defer srv.Close()

	tokens := &refreshableToken{}
	p := NewOpenAIProvider(tokens, srv.URL, "test-model")
	resp, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "hello" {
		t.Fatalf("content = %q", resp.Content)
	}
	if tokens.refreshes != 1 || calls != 2 {
		t.Fatalf("refreshes = %d calls = %d", tokens.refreshes, calls)
	}
}

func TestChatSurfacesPersistent401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(&refreshableToken{}, srv.URL, "test-model")
	if _, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
		t.Fatal("expected error after refresh retry failed")
	}
}

func TestDefaultsApplied(t *testing.T) {
	p := NewOpenAIProvider(StaticToken("k"), "", "")
	if p.DefaultModel() != "gpt-4o-mini" {
		t.Fatalf("default model = %s", p.DefaultModel())
	}
	if p.apiBase != "https://api.openai.com/v1" {
		t.Fatalf("api base = %s", p.apiBase)
	}
}
