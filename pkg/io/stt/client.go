// Package stt is the HTTP client for the speech-to-text collaborator.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/capture"
)

// TranscriptionResponse is the STT service reply.
type TranscriptionResponse struct {
	Text        string                 `json:"text"`
	Language    string                 `json:"language"`
	Segments    []TranscriptionSegment `json:"segments,omitempty"`
	GeneratedAt time.Time
}

// TranscriptionSegment is a timed piece of the transcript.
type TranscriptionSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	ID    int     `json:"id"`
}

// Client handles communication with the STT service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *Logger.Logger
}

func NewClient(baseURL string, logger *Logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Transcribe uploads a finished recording and returns its transcript.
func (c *Client) Transcribe(ctx context.Context, rec *capture.Recording) (*TranscriptionResponse, error) {
	if rec == nil || len(rec.Data) == 0 {
		return nil, fmt.Errorf("empty recording")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio_file", fileName(rec.MimeType))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(rec.Data); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	requestURL := c.baseURL + "/asr?encode=true&task=transcribe&output=json"
	req, err := http.NewRequestWithContext(ctx, "POST", requestURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Errorf("stt service error (status %d): %s", resp.StatusCode, string(responseBody))
		return nil, fmt.Errorf("stt service returned status %d: %s", resp.StatusCode, string(responseBody))
	}
	if len(responseBody) == 0 {
		return nil, fmt.Errorf("stt service returned empty response")
	}

	var transcription TranscriptionResponse
	if err := json.Unmarshal(responseBody, &transcription); err != nil {
		// some deployments answer with plain text
		text := strings.TrimSpace(string(responseBody))
		if text != "" {
			return &TranscriptionResponse{
				Text:        text,
				GeneratedAt: time.Now(),
			}, nil
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	transcription.GeneratedAt = time.Now()

	c.logger.Debugf("transcription: %s (language: %s)", transcription.Text, transcription.Language)
	return &transcription, nil
}

func fileName(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/webm"):
		return "audio.webm"
	case strings.HasPrefix(mimeType, "audio/mp4"):
		return "audio.mp4"
	case strings.HasPrefix(mimeType, "audio/wav"):
		return "audio.wav"
	default:
		return "audio.bin"
	}
}
