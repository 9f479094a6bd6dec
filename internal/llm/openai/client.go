package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"leaselens-backend/internal/llm"
	"leaselens-backend/internal/shared/telemetry"
)

const maxOutputTokens = 4096

// Client implements llm.Client against the OpenAI Chat Completions API or any
// server that speaks it.
type Client struct {
	api   *goopenai.Client
	model string
}

// NewClient constructs a new OpenAI client. baseURL may be empty.
func NewClient(apiKey, baseURL, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = newHTTPClient(timeout)

	return &Client{
		api:   goopenai.NewClientWithConfig(cfg),
		model: model,
	}, nil
}

// newHTTPClient bounds the wait for response headers only. Streamed replies
// run as long as the request context allows.
func newHTTPClient(headerTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: headerTimeout,
		},
	}
}

// ExtractTerms requests a JSON object with the lease terms of documentText.
func (c *Client) ExtractTerms(ctx context.Context, documentText string) (string, error) {
	req := c.request([]goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleUser, Content: llm.ExtractionPrompt(documentText)},
	})
	req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
		Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	logUsage(c.model, resp.Usage)
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai response empty content")
	}
	return content, nil
}

// StreamChat streams the assistant reply for history under the system prompt.
func (c *Client) StreamChat(ctx context.Context, system string, history []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		messages := make([]goopenai.ChatCompletionMessage, 0, len(history)+1)
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
		for _, m := range history {
			messages = append(messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		}
		req := c.request(messages)
		req.Stream = true

		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("openai chat stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("openai chat stream: %w", err))
				return
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}
	}
}

func (c *Client) request(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if isGPT5(c.model) {
		req.MaxCompletionTokens = maxOutputTokens
	} else {
		req.MaxTokens = maxOutputTokens
	}
	return req
}

func logUsage(model string, usage goopenai.Usage) {
	telemetry.Info("llm.response", map[string]any{
		"model":             model,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	})
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Client = (*Client)(nil)
