package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

const (
	DefaultTextModel         = "google/flan-t5-xl"
	DefaultMaxNewTokens      = 200
	DefaultTemperature       = 0.3
	DefaultRepetitionPenalty = 1.2
)

// TextClient calls a Hugging Face text-generation endpoint:
// POST {base}/models/{model}.
type TextClient struct {
	endpoint
	maxNewTokens      int
	temperature       float64
	repetitionPenalty float64
}

var _ Generator = (*TextClient)(nil)

func NewTextClient(cfg Config) (*TextClient, error) {
	ep, err := newEndpoint(cfg, DefaultTextModel)
	if err != nil {
		return nil, err
	}
	c := &TextClient{
		endpoint:          ep,
		maxNewTokens:      cfg.MaxNewTokens,
		temperature:       cfg.Temperature,
		repetitionPenalty: cfg.RepetitionPenalty,
	}
	if c.maxNewTokens <= 0 {
		c.maxNewTokens = DefaultMaxNewTokens
	}
	if c.repetitionPenalty <= 0 {
		c.repetitionPenalty = DefaultRepetitionPenalty
	}
	return c, nil
}

type textParameters struct {
	MaxNewTokens      int     `json:"max_new_tokens"`
	Temperature       float64 `json:"temperature"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	ReturnFullText    bool    `json:"return_full_text"`
}

type textRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters textParameters `json:"parameters"`
}

type textGeneration struct {
	GeneratedText *string `json:"generated_text"`
}

func (c *TextClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.checkCredential(); err != nil {
		return "", err
	}
	raw, err := c.post(ctx, c.baseURL+"/models/"+c.model, textRequest{
		Inputs: prompt,
		Parameters: textParameters{
			MaxNewTokens:      c.maxNewTokens,
			Temperature:       c.temperature,
			RepetitionPenalty: c.repetitionPenalty,
		},
	})
	if err != nil {
		return "", err
	}
	text, err := parseTextGeneration(raw)
	if err != nil {
		return "", err
	}
	return finalText(text)
}

func (c *TextClient) Model() string {
	return c.model
}

// parseTextGeneration accepts the list form [{"generated_text": ...}], the
// single-object form, and a bare JSON string.
func parseTextGeneration(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	switch trimmed[0] {
	case '[':
		var items []textGeneration
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return "", apperr.Inference("decode text-generation response", 0, err)
		}
		if len(items) == 0 || items[0].GeneratedText == nil {
			return "", apperr.Inference("text-generation response has no generated_text", 0, nil)
		}
		return *items[0].GeneratedText, nil
	case '{':
		var item textGeneration
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return "", apperr.Inference("decode text-generation response", 0, err)
		}
		if item.GeneratedText == nil {
			return "", apperr.Inference("text-generation response has no generated_text", 0, nil)
		}
		return *item.GeneratedText, nil
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", apperr.Inference("decode text-generation response", 0, err)
		}
		return text, nil
	default:
		return "", apperr.Inference("decode text-generation response", 0, fmt.Errorf("unexpected body %q", truncate(string(trimmed))))
	}
}

func truncate(s string) string {
	if len(s) > maxErrorBodyChars {
		return s[:maxErrorBodyChars] + "..."
	}
	return s
}
