// Package media handles voice-note processing: transcription of inbound
// audio, speech synthesis of replies, and the short-lived object storage
// that makes synthesized audio fetchable by the transport.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hakimhealth/hakim/internal/config"
)

const maxAudioBytes = 25 << 20

// Transcriber converts audio into text via an OpenAI-compatible
// transcriptions endpoint.
type Transcriber struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// NewTranscriber creates a transcription client from config.
func NewTranscriber(log *slog.Logger, cfg config.SpeechConfig) *Transcriber {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Transcriber{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.TranscriptionModel,
		http:    &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("service", "transcribe")),
	}
}

// Enabled reports whether a transcription backend is configured.
func (t *Transcriber) Enabled() bool {
	return t.baseURL != ""
}

// TranscribeURL fetches the audio at mediaURL and returns its transcript.
// languageHint is optional ("ar", "en", or empty for auto-detect).
func (t *Transcriber) TranscribeURL(ctx context.Context, mediaURL, languageHint string) (string, error) {
	if !t.Enabled() {
		return "", fmt.Errorf("transcription backend not configured")
	}

	audio, err := t.fetch(ctx, mediaURL)
	if err != nil {
		return "", err
	}
	return t.Transcribe(ctx, audio, "voice-note.ogg", languageHint)
}

// Transcribe sends raw audio bytes to the transcription endpoint.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename, languageHint string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if languageHint != "" {
		if err := writer.WriteField("language", languageHint); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call transcription service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}

func (t *Transcriber) fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media fetch returned %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	return audio, nil
}
