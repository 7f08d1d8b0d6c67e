package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hakimhealth/hakim/internal/config"
)

// Synthesizer turns reply text into audio via an OpenAI-compatible
// speech endpoint.
type Synthesizer struct {
	baseURL string
	apiKey  string
	model   string
	voice   string
	http    *http.Client
	logger  *slog.Logger
}

// NewSynthesizer creates a speech-synthesis client from config.
func NewSynthesizer(log *slog.Logger, cfg config.SpeechConfig) *Synthesizer {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Synthesizer{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.SynthesisModel,
		voice:   cfg.Voice,
		http:    &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("service", "speech")),
	}
}

// Enabled reports whether a synthesis backend is configured.
func (s *Synthesizer) Enabled() bool {
	return s.baseURL != ""
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize returns audio bytes for the given text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("speech backend not configured")
	}

	body, err := json.Marshal(speechRequest{Model: s.model, Input: text, Voice: s.voice})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call speech service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, fmt.Errorf("speech service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	return audio, nil
}
