package stt

import (
	"context"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/capture"
)

func testRecording(mimeType string) *capture.Recording {
	return &capture.Recording{
		Data:     []byte("opus-frames"),
		MimeType: mimeType,
	}
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/asr" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("Expected multipart form, got %q", r.Header.Get("Content-Type"))
		}
		if _, _, err := r.FormFile("audio_file"); err != nil {
			t.Errorf("Missing audio_file part: %v", err)
		}
		w.Write([]byte(`{"text": "hello there", "language": "en"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Logger.BuildLogger(false))
	resp, err := c.Transcribe(context.Background(), testRecording("audio/webm;codecs=opus"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if resp.Text != "hello there" {
		t.Errorf("Unexpected text %q", resp.Text)
	}
	if resp.Language != "en" {
		t.Errorf("Unexpected language %q", resp.Language)
	}
	if resp.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not stamped")
	}
}

func TestTranscribePlainTextFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  just some words\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Logger.BuildLogger(false))
	resp, err := c.Transcribe(context.Background(), testRecording("audio/webm"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if resp.Text != "just some words" {
		t.Errorf("Unexpected text %q", resp.Text)
	}
}

func TestTranscribeEmptyRecording(t *testing.T) {
	c := NewClient("http://unused", Logger.BuildLogger(false))
	if _, err := c.Transcribe(context.Background(), nil); err == nil {
		t.Error("Expected error for nil recording")
	}
	if _, err := c.Transcribe(context.Background(), &capture.Recording{}); err == nil {
		t.Error("Expected error for empty recording")
	}
}

func TestTranscribeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Logger.BuildLogger(false))
	if _, err := c.Transcribe(context.Background(), testRecording("audio/mp4")); err == nil {
		t.Fatal("Expected error for 500 response")
	}
}

func TestFileName(t *testing.T) {
	cases := []struct {
		mime string
		want string
	}{
		{"audio/webm;codecs=opus", "audio.webm"},
		{"audio/webm", "audio.webm"},
		{"audio/mp4", "audio.mp4"},
		{"audio/wav", "audio.wav"},
		{"application/octet-stream", "audio.bin"},
	}
	for _, tc := range cases {
		if got := fileName(tc.mime); got != tc.want {
			t.Errorf("fileName(%q) = %q, want %q", tc.mime, got, tc.want)
		}
	}
}
