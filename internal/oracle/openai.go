package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/groktime-project/groktime/internal/core"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI calls the Responses API with a strict json_schema output format.
type OpenAI struct {
	url       string
	model     string
	maxTokens int
	t         *transport
	logger    zerolog.Logger
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model           string                 `json:"model"`
	Input           []openAIMessage        `json:"input"`
	Text            map[string]interface{} `json:"text"`
	Reasoning       map[string]string      `json:"reasoning,omitempty"`
	MaxOutputTokens int                    `json:"max_output_tokens,omitempty"`
}

type openAIResponse struct {
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAI builds an OpenAI client. It fails without at least one API key.
func NewOpenAI(cfg core.OracleConfig, keys []string, logger zerolog.Logger) (*OpenAI, error) {
	ring := newKeyRing(keys, logger)
	if ring.size() == 0 {
		return nil, fmt.Errorf("no OpenAI API key configured (set OPENAI_API_KEY or oracle.api_keys)")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-5-nano"
	}
	log := logger.With().Str("component", "oracle").Str("provider", "openai").Logger()
	return &OpenAI{
		url:       base + "/responses",
		model:     model,
		maxTokens: cfg.MaxOutputTokens,
		t:         newTransport("OpenAI", cfg.Timeout, cfg.RequestsPerMinute, ring, openAIKeyFault, log),
		logger:    log,
	}, nil
}

// Suggest implements Oracle.
func (o *OpenAI) Suggest(ctx context.Context, req Request) (string, error) {
	body := openAIRequest{
		Model: o.model,
		Input: []openAIMessage{
			{Role: "system", Content: Instructions(req.Vocabulary)},
			{Role: "user", Content: req.Line},
		},
		Text: map[string]interface{}{
			"format": map[string]interface{}{
				"type":   "json_schema",
				"name":   "grok",
				"strict": true,
				"schema": SchemaDocument(),
			},
		},
		MaxOutputTokens: o.maxTokens,
	}
	if reasoningModel(o.model) {
		body.Reasoning = map[string]string{"effort": "low"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	o.logger.Debug().Str("model", o.model).Int("line_bytes", len(req.Line)).Msg("requesting pattern")
	return o.t.call(ctx, func(ctx context.Context, key string) (int, []byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(payload))
		if err != nil {
			return 0, nil, fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+key)
		return do(o.t.client, httpReq)
	}, extractOpenAIText)
}

// reasoningModels are the model families that accept a reasoning effort.
var reasoningModels = []string{"gpt-5", "o1", "o3", "o4"}

func reasoningModel(model string) bool {
	for _, family := range reasoningModels {
		if model == family || strings.HasPrefix(model, family+"-") {
			return true
		}
	}
	return false
}

// openAIKeyFault reads the structured error code OpenAI sends with a
// refused request.
func openAIKeyFault(status int, body []byte) (time.Duration, string) {
	var resp openAIResponse
	json.Unmarshal(body, &resp)
	code := ""
	if resp.Error != nil {
		code = resp.Error.Code
	}
	switch code {
	case "insufficient_quota":
		return quotaRest, code
	case "rate_limit_exceeded":
		return rateLimitRest, code
	case "invalid_api_key":
		return invalidKeyRest, code
	}
	switch status {
	case http.StatusTooManyRequests:
		return rateLimitRest, "status 429"
	case http.StatusUnauthorized:
		return invalidKeyRest, "status 401"
	}
	return 0, ""
}

func extractOpenAIText(body []byte) (string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing OpenAI response: %w", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("OpenAI API error: %s", resp.Error.Message)
	}
	var b strings.Builder
	for _, item := range resp.Output {
		for _, c := range item.Content {
			if c.Type == "output_text" {
				b.WriteString(c.Text)
			}
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty response from OpenAI (status %q)", resp.Status)
	}
	return b.String(), nil
}

func do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}
