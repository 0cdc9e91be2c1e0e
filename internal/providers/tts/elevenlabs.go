package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	elevenLabsBaseURL    = "https://api.elevenlabs.io"
	elevenLabsModel      = "eleven_multilingual_v2"
	elevenLabsVoice      = "21m00Tcm4TlvDq8ikWAM" // Rachel
	elevenLabsSampleRate = 16000
)

type ElevenLabs struct {
	apiKey     string
	baseURL    string
	model      string
	voice      string
	httpClient *http.Client
}

func NewElevenLabs(apiKey, voice, model string) *ElevenLabs {
	if voice == "" {
		voice = elevenLabsVoice
	}
	if model == "" {
		model = elevenLabsModel
	}
	return &ElevenLabs{
		apiKey:     apiKey,
		baseURL:    elevenLabsBaseURL,
		model:      model,
		voice:      voice,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at another host. Tests use it.
func (e *ElevenLabs) WithBaseURL(url string) *ElevenLabs {
	e.baseURL = strings.TrimSuffix(url, "/")
	return e
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: e.model})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=pcm_%d", e.baseURL, e.voice, elevenLabsSampleRate)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	pcm, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read body: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("elevenlabs: empty audio")
	}
	return WrapPCM16(pcm, elevenLabsSampleRate), nil
}
