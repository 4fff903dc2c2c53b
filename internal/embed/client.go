package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds embedding client settings. Separate instances can carry
// separate configurations; nothing here is global.
type Config struct {
	BaseURL       string
	Model         string
	Dimensions    int
	Timeout       time.Duration
	BatchSize     int
	MaxTextLen    int
	MinEmbedChars int
}

func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:11434",
		Model:         "nomic-embed-text",
		Dimensions:    768,
		Timeout:       60 * time.Second,
		BatchSize:     32,
		MaxTextLen:    8192,
		MinEmbedChars: 10,
	}
}

// Client talks to an Ollama-compatible embedding service.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// EmbedSingle generates a normalized embedding for one text. Empty or
// whitespace-only input short-circuits to a zero vector without a network
// call. Transport and API errors surface to the caller.
func (c *Client) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	processed := c.preprocess(text)
	if processed == "" {
		return c.ZeroVector(), nil
	}

	body, err := json.Marshal(embeddingRequest{Model: c.cfg.Model, Prompt: processed})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp embeddingResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(apiResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}

	return Normalize(apiResp.Embedding), nil
}

// IsModelAvailable checks whether the configured model is present on the
// embedding service.
func (c *Client) IsModelAvailable(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("api error %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}

	for _, m := range tags.Models {
		if strings.Contains(m.Name, c.cfg.Model) {
			return true, nil
		}
	}
	return false, nil
}

// ModelInfo fetches the service's metadata for the configured model.
func (c *Client) ModelInfo(ctx context.Context) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"name": c.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/show", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// ZeroVector returns an all-zero vector of the configured dimensionality.
func (c *Client) ZeroVector() []float32 {
	return make([]float32, c.cfg.Dimensions)
}

// preprocess collapses whitespace and truncates to the configured maximum.
func (c *Client) preprocess(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if c.cfg.MaxTextLen > 0 && len(text) > c.cfg.MaxTextLen {
		c.logger.Debug("truncating text for embedding", "from", len(text), "to", c.cfg.MaxTextLen)
		text = text[:c.cfg.MaxTextLen]
	}
	return text
}
