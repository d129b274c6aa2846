package tts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/text-to-speech" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	audio, err := c.Synthesize(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio) != "audio-bytes" {
		t.Errorf("Unexpected audio %q", audio)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	c := New("http://unused")
	if _, err := c.Synthesize(context.Background(), "", ""); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestSynthesize429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Synthesize(context.Background(), "hello", "")
	if err == nil {
		t.Fatal("Expected error")
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("Expected RateLimitError, got %T: %v", err, err)
	}
	if !IsRateLimit(err) {
		t.Error("IsRateLimit should classify a RateLimitError")
	}
}

func TestIsRateLimitByMessage(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("tts http 500: boom"), false},
		{errors.New("upstream said 429"), true},
		{errors.New("openai: rate_limit_exceeded"), true},
		{errors.New("Rate limit reached for requests"), true},
	}
	for _, tc := range cases {
		if got := IsRateLimit(tc.err); got != tc.want {
			t.Errorf("IsRateLimit(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
