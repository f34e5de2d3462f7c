package agent

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// ASRClient converts patient voice recordings to text.
type ASRClient interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Ping(ctx context.Context) error
}

type whisperClient struct {
	client *openai.Client
	model  string
}

// NewWhisperClient talks to a Whisper-compatible transcription service.
// baseURL points at the local sidecar, e.g. http://asr:9000/v1.
func NewWhisperClient(baseURL, apiKey, model string) ASRClient {
	if model == "" {
		model = openai.Whisper1
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	return &whisperClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *whisperClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("empty audio payload")
	}
	if filename == "" {
		filename = "audio.wav"
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", errors.Wrap(err, "transcription request failed")
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.New("transcription returned empty text")
	}
	return text, nil
}

// Ping verifies the service accepts requests. Whisper sidecars expose the
// models list on the same OpenAI-compatible surface.
func (c *whisperClient) Ping(ctx context.Context) error {
	_, err := c.client.ListModels(ctx)
	return errors.Wrap(err, "asr service unreachable")
}
