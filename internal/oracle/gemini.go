package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/groktime-project/groktime/internal/core"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.0-flash"
)

// Gemini calls generateContent with a JSON response type.
type Gemini struct {
	url       string
	model     string
	maxTokens int
	t         *transport
	logger    zerolog.Logger
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  map[string]interface{} `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

// NewGemini builds a Gemini client. It fails without at least one API key.
func NewGemini(cfg core.OracleConfig, keys []string, logger zerolog.Logger) (*Gemini, error) {
	ring := newKeyRing(keys, logger)
	if ring.size() == 0 {
		return nil, fmt.Errorf("no Gemini API key configured (set GEMINI_API_KEY or oracle.api_keys)")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultGeminiModel
	}
	log := logger.With().Str("component", "oracle").Str("provider", "gemini").Logger()
	return &Gemini{
		url:       fmt.Sprintf("%s/models/%s:generateContent", base, model),
		model:     model,
		maxTokens: cfg.MaxOutputTokens,
		t:         newTransport("Gemini", cfg.Timeout, cfg.RequestsPerMinute, ring, geminiKeyFault, log),
		logger:    log,
	}, nil
}

// Suggest implements Oracle.
func (g *Gemini) Suggest(ctx context.Context, req Request) (string, error) {
	genCfg := map[string]interface{}{
		"temperature":      0.1,
		"responseMimeType": "application/json",
	}
	if g.maxTokens > 0 {
		genCfg["maxOutputTokens"] = g.maxTokens
	}
	body := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: Instructions(req.Vocabulary)}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Line}}},
		},
		GenerationConfig: genCfg,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	g.logger.Debug().Str("model", g.model).Int("line_bytes", len(req.Line)).Msg("requesting pattern")
	return g.t.call(ctx, func(ctx context.Context, key string) (int, []byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
		if err != nil {
			return 0, nil, fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", key)
		return do(g.t.client, httpReq)
	}, extractGeminiText)
}

// geminiKeyFault reads the google.rpc status Gemini sends with a refused
// request.
func geminiKeyFault(status int, body []byte) (time.Duration, string) {
	var resp geminiResponse
	json.Unmarshal(body, &resp)
	if resp.Error != nil {
		for _, d := range resp.Error.Details {
			if d.Reason == "API_KEY_INVALID" {
				return invalidKeyRest, d.Reason
			}
		}
		switch resp.Error.Status {
		case "RESOURCE_EXHAUSTED":
			return rateLimitRest, resp.Error.Status
		case "UNAUTHENTICATED", "PERMISSION_DENIED":
			return invalidKeyRest, resp.Error.Status
		}
	}
	if status == http.StatusTooManyRequests {
		return rateLimitRest, "status 429"
	}
	return 0, ""
}

func extractGeminiText(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing Gemini response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("Gemini API error: %s", resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
