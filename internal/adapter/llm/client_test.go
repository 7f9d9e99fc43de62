package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/tafsirnet/internal/entity"
)

func newTestClient(url string, retries int) *Client {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(Options{
		BaseURL:        url,
		APIKey:         "test-key",
		Model:          "gpt-test",
		MaxTokens:      100,
		MaxRetries:     retries,
		SpeechModel:    "tts-test",
		Voice:          "nova",
		InitialBackoff: time.Millisecond,
	}, log)
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-test" || len(req.Messages) != 2 || req.Messages[1].Content != "the prompt" {
			t.Errorf("unexpected request: %+v", req)
		}
		if !strings.Contains(req.Messages[0].Content, "Arabic") || !strings.Contains(req.Messages[0].Content, "scholarly") {
			t.Errorf("system message missing language/style: %q", req.Messages[0].Content)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  explanation  "}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	got, err := c.Generate(context.Background(), "the prompt", entity.LanguageArabic, entity.StyleScholarly)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "explanation" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	got, err := c.Generate(context.Background(), "p", entity.LanguageEnglish, entity.StyleSimple)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "ok" || calls.Load() != 3 {
		t.Fatalf("got %q after %d calls", got, calls.Load())
	}
}

func TestGenerate_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	_, err := c.Generate(context.Background(), "p", entity.LanguageEnglish, entity.StyleSimple)
	if !errors.Is(err, entity.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestGenerate_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2)
	_, err := c.Generate(context.Background(), "p", entity.LanguageEnglish, entity.StyleSimple)
	if !errors.Is(err, entity.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Generate(context.Background(), "p", entity.LanguageEnglish, entity.StyleSimple)
	if !errors.Is(err, entity.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Voice != "nova" || req.Model != "tts-test" || req.Input != "hello" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	audio, err := newTestClient(srv.URL, 0).Synthesize(context.Background(), "hello", entity.LanguageEnglish)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "ID3audio" {
		t.Fatalf("unexpected audio %q", audio)
	}
}
