package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tg-topic-digest/internal/infra/metrics"
)

const defaultBaseURL = "http://localhost:11434"

// Client выполняет запросы к /api/generate локального Ollama.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient создаёт клиента Ollama. timeout ограничивает весь запрос целиком.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// GenerateRequest описывает тело запроса /api/generate.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// GenerateResponse описывает непотоковый ответ модели.
type GenerateResponse struct {
	Model           string  `json:"model"`
	Response        *string `json:"response"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Generate вызывает /api/generate без стриминга.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	req.Stream = false
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", req.Model, start, err)
		return "", fmt.Errorf("ollama: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", req.Model, start, err)
		return "", fmt.Errorf("ollama: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		err = fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			err = fmt.Errorf("ollama: status %d: %s", resp.StatusCode, apiErr.Error)
		}
		metrics.ObserveNetworkRequest("ollama", "generate", req.Model, start, err)
		return "", err
	}
	var generated GenerateResponse
	if err := json.Unmarshal(respBody, &generated); err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", req.Model, start, err)
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if generated.Response == nil {
		err := fmt.Errorf("ollama: response field is missing")
		metrics.ObserveNetworkRequest("ollama", "generate", req.Model, start, err)
		return "", err
	}
	metrics.ObserveNetworkRequest("ollama", "generate", req.Model, start, nil)
	metrics.ObserveLLMGeneration(req.Model, time.Since(start), generated.PromptEvalCount, generated.EvalCount)
	return *generated.Response, nil
}
