// Package inference talks to hosted language-model endpoints. Both supported
// endpoint shapes sit behind Generator so callers never branch on backend.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

const (
	BackendText = "text"
	BackendChat = "chat"
)

const maxErrorBodyChars = 512

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	Backend           string
	BaseURL           string
	APIToken          string
	Model             string
	MaxNewTokens      int
	Temperature       float64
	RepetitionPenalty float64
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// New builds the adapter named by cfg.Backend. An empty token is accepted
// here; it is reported by Generate so a misconfigured server still starts.
func New(cfg Config) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendText, "":
		return NewTextClient(cfg)
	case BackendChat:
		return NewChatClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported inference backend %q (supported: %s, %s)", cfg.Backend, BackendText, BackendChat)
	}
}

type endpoint struct {
	baseURL string
	token   string
	model   string
	client  *http.Client
}

func newEndpoint(cfg Config, defaultModel string) (endpoint, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return endpoint{}, fmt.Errorf("base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return endpoint{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.APIToken),
		model:   model,
		client:  client,
	}, nil
}

func (e endpoint) checkCredential() error {
	if e.token == "" {
		return apperr.Config("inference API token is not set; export HUGGINGFACE_API_KEY or HUGGINGFACE_API_TOKEN")
	}
	return nil
}

// post sends payload as JSON with bearer auth and returns the body of a 2xx
// response. Every failure is an InferenceFailure.
func (e endpoint) post(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Inference("encode inference request", 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Inference("build inference request", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperr.Inference("inference request failed", 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Inference("read inference response", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Inference("inference endpoint returned "+errorDetail(raw), resp.StatusCode, nil)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperr.Inference("inference endpoint returned an empty body", resp.StatusCode, nil)
	}
	return raw, nil
}

// errorDetail pulls a readable message out of an error body. Hugging Face
// sends {"error": "..."}; OpenAI-compatible servers send
// {"error": {"message": "..."}}.
func errorDetail(raw []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Error) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Error, &text); err == nil && text != "" {
			return text
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "an error with no body"
	}
	if len(text) > maxErrorBodyChars {
		text = text[:maxErrorBodyChars] + "..."
	}
	return text
}

func finalText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.Inference("model returned empty text", 0, nil)
	}
	return text, nil
}
