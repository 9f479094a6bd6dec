// Package ollama implements llm.Client against a local Ollama server using
// its NDJSON chat API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"leaselens-backend/internal/llm"
)

// DefaultHost is used when no host is configured.
const DefaultHost = "http://localhost:11434"

// Client talks to the Ollama /api/chat endpoint.
type Client struct {
	host   string
	model  string
	client *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Message llm.Message `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

// NewClient constructs a Client. The HTTP client has no overall timeout so
// long chat streams are bounded only by the request context.
func NewClient(host, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for Ollama")
	}
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		host:  host,
		model: model,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 120 * time.Second,
			},
		},
	}, nil
}

// ExtractTerms asks the model for the lease terms as a JSON object.
func (c *Client) ExtractTerms(ctx context.Context, documentText string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: llm.ExtractionPrompt(documentText)},
		},
		Stream: false,
		Format: "json",
	}
	resp, err := c.post(ctx, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama chat error: %s", parsed.Error)
	}
	return strings.TrimSpace(parsed.Message.Content), nil
}

// StreamChat streams the reply one NDJSON line at a time.
func (c *Client) StreamChat(ctx context.Context, system string, history []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		messages := make([]llm.Message, 0, len(history)+1)
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
		messages = append(messages, history...)

		resp, err := c.post(ctx, chatRequest{Model: c.model, Messages: messages, Stream: true})
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		dec := json.NewDecoder(resp.Body)
		for {
			var chunk chatResponse
			if err := dec.Decode(&chunk); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield("", fmt.Errorf("decode ollama stream response: %w", err))
				return
			}
			if chunk.Error != "" {
				yield("", fmt.Errorf("ollama chat error: %s", chunk.Error))
				return
			}
			if chunk.Message.Content != "" {
				if !yield(chunk.Message.Content, nil) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}
	}
}

func (c *Client) post(ctx context.Context, payload chatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ollama chat API: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("read ollama chat error body: %w", readErr)
		}
		if len(data) > 0 {
			return nil, fmt.Errorf("ollama chat API error (http status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return nil, fmt.Errorf("ollama chat API returned http status %d", resp.StatusCode)
	}
	return resp, nil
}

var _ llm.Client = (*Client)(nil)
