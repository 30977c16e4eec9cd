package inference

import (
	"context"
	"encoding/json"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

const DefaultChatModel = "meta-llama/Llama-3.1-8B-Instruct"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient calls an OpenAI-compatible chat-completion endpoint:
// POST {base}/v1/chat/completions.
type ChatClient struct {
	endpoint
}

var _ Generator = (*ChatClient)(nil)

func NewChatClient(cfg Config) (*ChatClient, error) {
	ep, err := newEndpoint(cfg, DefaultChatModel)
	if err != nil {
		return nil, err
	}
	return &ChatClient{endpoint: ep}, nil
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Generate sends prompt as a single user message and returns the content of
// the first choice.
func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []Message{{Role: "user", Content: prompt}})
}

func (c *ChatClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := c.checkCredential(); err != nil {
		return "", err
	}
	raw, err := c.post(ctx, c.baseURL+"/v1/chat/completions", chatRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperr.Inference("decode chat completion response", 0, err)
	}
	if len(parsed.Choices) == 0 {
		return "", apperr.Inference("chat completion returned no choices", 0, nil)
	}
	return finalText(parsed.Choices[0].Message.Content)
}

func (c *ChatClient) Model() string {
	return c.model
}
