package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HandsomeSB/Askit/internal/model"
)

// Config configures the OpenAI-compatible client.
type Config struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	Timeout        time.Duration
}

// Client talks to an OpenAI-compatible API for both embeddings and chat
// completions. Rate-limited and 5xx responses are retried with backoff;
// timeouts surface as *model.TimeoutError so callers can report the
// dependency by name.
type Client struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	chatModel      string
	timeout        time.Duration
	client         *http.Client
	maxRetries     int

	dimension int
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		timeout:        t,
		client:         &http.Client{Timeout: t},
		maxRetries:     3,
	}, nil
}

// Dimension returns the embedding dimensionality, set lazily on the first
// successful Embed call.
func (c *Client) Dimension() int { return c.dimension }

// Embed embeds a batch of texts in one request, preserving input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"input": texts,
		"model": c.embeddingModel,
	}
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/embeddings", body, &out, "embedding service"); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(out.Data), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings response has out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		if c.dimension == 0 {
			c.dimension = len(v)
		}
	}
	return vectors, nil
}

const answerSystemPrompt = "You answer questions using only the provided context passages. " +
	"If the context does not contain the answer, say that no relevant documents were found. " +
	"Be concise and do not invent facts."

// Generate asks the chat model for an answer grounded in the contexts.
func (c *Client) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	var sb strings.Builder
	if len(contexts) == 0 {
		sb.WriteString("(no context passages were retrieved)\n")
	}
	for i, passage := range contexts {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, passage)
	}
	sb.WriteString("Question: " + question)

	body := map[string]any{
		"model": c.chatModel,
		"messages": []map[string]string{
			{"role": "system", "content": answerSystemPrompt},
			{"role": "user", "content": sb.String()},
		},
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", body, &out, "generation service"); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, path string, body, out any, dependency string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
				return &model.TimeoutError{Dependency: dependency, Err: err}
			}
			lastErr = err
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("%s request failed: %s", dependency, resp.Status)
			if attempt < c.maxRetries {
				time.Sleep(delay)
				continue
			}
			return lastErr
		}

		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return fmt.Errorf("%s request failed: %s", dependency, resp.Status)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode %s response: %w", dependency, err)
		}
		return nil
	}
	return lastErr
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func retryDelay(attempt int) time.Duration {
	return time.Duration(1<<attempt) * 500 * time.Millisecond
}
