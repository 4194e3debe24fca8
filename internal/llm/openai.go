package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OpenAIConfig configures an OpenAI chat completions client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// AzureConfig configures an Azure OpenAI deployment.
type AzureConfig struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
	Timeout    time.Duration
}

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint with a JSON schema
// response format. The same client serves Azure deployments.
type OpenAIClient struct {
	provider   string
	endpoint   string
	model      string
	authHeader string
	authValue  string
	httpClient *http.Client
	logger     *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatJSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *chatJSONSchema `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string              `json:"model,omitempty"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    *float64            `json:"temperature,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient returns a client for api.openai.com or a compatible base URL.
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is empty", ErrProviderNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		provider:   "openai",
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		model:      cfg.Model,
		authHeader: "Authorization",
		authValue:  "Bearer " + cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// NewAzureOpenAIClient returns a client for an Azure OpenAI deployment. The deployment
// selects the model, so no model name is sent.
func NewAzureOpenAIClient(cfg AzureConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" || cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT are required", ErrProviderNotConfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(cfg.Endpoint, "/"), url.PathEscape(cfg.Deployment), url.QueryEscape(cfg.APIVersion))
	return &OpenAIClient{
		provider:   "azure",
		endpoint:   endpoint,
		authHeader: "api-key",
		authValue:  cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

func (c *OpenAIClient) Provider() string { return c.provider }

// CompleteJSON posts a two-message chat with a strict json_schema response format and
// returns the first choice's content.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, req Request) (out string, err error) {
	start := time.Now()
	defer func() { observe(c.provider, start, err) }()

	temperature := req.Temperature
	body := chatRequest{
		Model:       c.model,
		Temperature: &temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.Schema != nil {
		body.ResponseFormat = &chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &chatJSONSchema{
				Name:   req.SchemaName,
				Strict: true,
				Schema: req.Schema,
			},
		}
	} else {
		body.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(c.authHeader, c.authValue)
	if corrID, ok := ctx.Value("correlation_id").(string); ok && corrID != "" {
		httpReq.Header.Set("X-Correlation-ID", corrID)
	}

	c.logger.Debug("generation request",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Int("prompt_len", len(req.Prompt)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	var parsed chatResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("%s API error (HTTP %d): %s", c.provider, resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("%s API error (HTTP %d): %s", c.provider, resp.StatusCode, truncate(string(respBody), 200))
	}

	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode %s response: %v", ErrParse, c.provider, err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrNoCompletion
	}
	msg := parsed.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("%w: model refused: %s", ErrNoCompletion, msg.Refusal)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return "", ErrNoCompletion
	}
	return msg.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
