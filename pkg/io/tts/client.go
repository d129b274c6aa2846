// Package tts is the HTTP client for the text-to-speech collaborator.
// A rate-limited response is surfaced as a typed error so the playback
// pipeline can abort a chunk sequence instead of skipping one chunk.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RateLimitError marks an HTTP 429 or equivalent signal from the TTS
// service.
type RateLimitError struct {
	Status  int
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("tts rate limited (status %d): %s", e.Status, e.Message)
}

// IsRateLimit classifies an error as a rate-limit signal: either a
// typed RateLimitError or a message mentioning 429 / rate_limit /
// Rate limit.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "Rate limit")
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Client talks to the TTS endpoint.
type Client struct {
	BaseURL string
	Client  *http.Client  // inject; default if nil
	Voice   string        // default voice (override per-call)
	Timeout time.Duration // request timeout per chunk
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL}
}

// Synthesize converts one text chunk into raw audio bytes.
func (c *Client) Synthesize(ctx context.Context, text, optVoice string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}
	voice := c.Voice
	if optVoice != "" {
		voice = optVoice
	}

	payload, err := json.Marshal(synthesizeRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, "POST", c.BaseURL+"/api/text-to-speech", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")

	hc := c.Client
	if hc == nil {
		hc = &http.Client{}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		b, _ := io.ReadAll(resp.Body)
		return nil, &RateLimitError{Status: resp.StatusCode, Message: string(b)}
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts http %d: %s (dur=%s)", resp.StatusCode, string(b), time.Since(start))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts read body: %w", err)
	}
	return audio, nil
}
