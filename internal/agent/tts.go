package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// TTSClient turns the assessment text back into speech for voice consultations.
type TTSClient interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Ping(ctx context.Context) error
}

type ttsClient struct {
	baseURL    string
	voice      string
	httpClient *http.Client
}

// NewTTSClient talks to the local speech synthesis sidecar.
func NewTTSClient(baseURL, voice string) TTSClient {
	return &ttsClient{
		baseURL: baseURL,
		voice:   voice,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

func (c *ttsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("tts text cannot be empty")
	}

	jsonBody, err := json.Marshal(ttsRequest{Text: text, Voice: c.voice})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "tts request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tts service error: %s - %s", resp.Status, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading tts audio")
	}
	if len(audio) == 0 {
		return nil, errors.New("tts service returned empty audio")
	}
	return audio, nil
}

func (c *ttsClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "tts service unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts service unhealthy: %s", resp.Status)
	}
	return nil
}
