package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini API client. BaseURL is for tests and proxies.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient generates structured output with the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is empty", ErrProviderNotConfigured)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (g *GeminiClient) Provider() string { return "gemini" }

// CompleteJSON sends the prompt with a JSON response MIME type and the converted schema.
func (g *GeminiClient) CompleteJSON(ctx context.Context, req Request) (out string, err error) {
	start := time.Now()
	defer func() { observe("gemini", start, err) }()

	if _, ok := ctx.Deadline(); !ok && g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	gc := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType: "application/json",
	}
	if req.Schema != nil {
		gc.ResponseSchema = toGenaiSchema(req.Schema)
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	g.logger.Debug("generation request",
		zap.String("provider", "gemini"),
		zap.String("model", g.model),
		zap.Int("prompt_len", len(req.Prompt)),
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), gc)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrNoCompletion
	}
	return text, nil
}

// toGenaiSchema converts the JSON-schema subset used by this package: type (a string or
// [type, "null"]), description, properties, required, items, minimum and maximum.
func toGenaiSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{}
	switch t := m["type"].(type) {
	case string:
		s.Type = genaiType(t)
	case []string:
		applyTypeList(s, t)
	case []any:
		names := make([]string, 0, len(t))
		for _, v := range t {
			if name, ok := v.(string); ok {
				names = append(names, name)
			}
		}
		applyTypeList(s, names)
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if v, ok := toFloat(m["minimum"]); ok {
		s.Minimum = genai.Ptr(v)
	}
	if v, ok := toFloat(m["maximum"]); ok {
		s.Maximum = genai.Ptr(v)
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(pm)
			}
		}
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = append([]string(nil), req...)
	case []any:
		for _, v := range req {
			if name, ok := v.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	return s
}

func applyTypeList(s *genai.Schema, names []string) {
	for _, n := range names {
		if n == "null" {
			s.Nullable = genai.Ptr(true)
			continue
		}
		s.Type = genaiType(n)
	}
}

func genaiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeUnspecified
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
