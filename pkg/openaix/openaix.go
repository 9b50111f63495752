// Package openaix wraps the OpenAI REST API for the non-realtime work:
// post-call summarization, fact extraction, and text embeddings.
package openaix

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Config struct {
	APIKey         string `envconfig:"API_KEY" split_words:"true" required:"true"`
	BaseURL        string `envconfig:"BASE_URL" split_words:"true"`
	ChatModel      string `envconfig:"CHAT_MODEL" split_words:"true" default:"gpt-4o-mini"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-ada-002"`
}

type Client struct {
	cfg Config
	sdk *openaisdk.Client
}

func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	sdk := openaisdk.NewClient(opts...)
	return &Client{cfg: cfg, sdk: &sdk}
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.cfg.ChatModel),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(user),
		},
		MaxTokens:   openaisdk.Int(int64(maxTokens)),
		Temperature: openaisdk.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Summarize condenses a "Speaker: text" dialogue into a short third-person
// summary, greetings excluded.
func (c *Client) Summarize(ctx context.Context, dialogue string) (string, error) {
	return c.complete(ctx,
		"You are an assistant that summarizes phone conversations in two or three "+
			"sentences, in the third person, without including greetings or pleasantries.",
		dialogue, 150)
}

// ExtractName pulls the caller's name out of a summary. Empty means the
// summary names nobody.
func (c *Client) ExtractName(ctx context.Context, summary string) (string, error) {
	out, err := c.complete(ctx,
		"Extract the user's name from the conversation summary. Reply with the name "+
			"only. If no name is mentioned, reply exactly: Name not found",
		summary, 30)
	if err != nil {
		return "", err
	}
	if out == "" || strings.EqualFold(out, "Name not found") {
		return "", nil
	}
	return out, nil
}

// ExtractEmail pulls the caller's email address out of a summary. Empty
// means none was mentioned; anything not shaped like an address is
// discarded.
func (c *Client) ExtractEmail(ctx context.Context, summary string) (string, error) {
	out, err := c.complete(ctx,
		"Extract the user's email address from the conversation summary. Reply with "+
			"the address only. If no email is mentioned, reply exactly: Email not found",
		summary, 30)
	if err != nil {
		return "", err
	}
	out = strings.ToLower(out)
	if out == "" || strings.Contains(out, "not found") || !strings.Contains(out, "@") {
		return "", nil
	}
	return out, nil
}

// Fact fields the extractor may return. Anything else is dropped.
var allowedFactFields = map[string]bool{
	"agentic_frameworks": true,
	"preferred_llms":     true,
	"birthday":           true,
	"address":            true,
	"company":            true,
}

// ExtractFacts mines a dialogue for long-term personal facts and returns
// them as field -> value. Only whitelisted fields survive.
func (c *Client) ExtractFacts(ctx context.Context, dialogue string) (map[string]string, error) {
	out, err := c.complete(ctx,
		"Extract long-term facts about the user from the conversation. Reply with a "+
			"JSON object whose keys are chosen from: agentic_frameworks, preferred_llms, "+
			"birthday, address, company. Include only keys the user actually mentioned. "+
			"Reply with {} if there are none.",
		dialogue, 200)
	if err != nil {
		return nil, err
	}
	return parseFacts(out)
}

// parseFacts decodes the extractor's JSON reply, tolerating markdown code
// fences and dropping unknown or empty fields.
func parseFacts(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]string{}, nil
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("parse facts: %w", err)
	}

	facts := make(map[string]string, len(decoded))
	for k, v := range decoded {
		v = strings.TrimSpace(v)
		if allowedFactFields[k] && v != "" {
			facts[k] = v
		}
	}
	return facts, nil
}

// Embed returns the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(c.cfg.EmbeddingModel),
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: empty response")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}
