package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"querymesh/internal/domain"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	synthMaxTokens     = 1024
)

// OpenAI synthesizes queries through an OpenAI-compatible chat
// completions API.
type OpenAI struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type OpenAIConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &OpenAI{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("synthesizer", "openai"),
	}
}

func (o *OpenAI) Name() string { return "openai" }

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	Stream      bool         `json:"stream"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

func (o *OpenAI) Synthesize(ctx context.Context, req domain.SynthRequest) (domain.SynthCandidate, error) {
	temperature := 0.0
	body := oaiRequest{
		Model: o.model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		MaxTokens:   synthMaxTokens,
		Temperature: &temperature,
		Stream:      false,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return domain.SynthCandidate{}, fmt.Errorf("marshal: %w", err)
	}

	resp, err := postJSON(ctx, o.client, o.Name(), o.apiBase+"/chat/completions", jsonBody,
		http.Header{"Authorization": []string{"Bearer " + o.apiKey}}, o.logger)
	if err != nil {
		return domain.SynthCandidate{}, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.SynthCandidate{}, fmt.Errorf("openai %d: %s", resp.StatusCode, string(respBody))
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return domain.SynthCandidate{}, fmt.Errorf("decode: %w", err)
	}
	if len(oaiResp.Choices) == 0 {
		return domain.SynthCandidate{}, fmt.Errorf("openai returned no choices")
	}

	return ParseCandidate(oaiResp.Choices[0].Message.Content)
}
