package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"querymesh/internal/domain"
)

const (
	anthropicAPIVersion   = "2023-06-01"
	anthropicDefaultModel = "claude-3-5-haiku-20241022"
)

// Anthropic synthesizes queries through the Anthropic messages API.
type Anthropic struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type AnthropicConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = anthropicDefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &Anthropic{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("synthesizer", "anthropic"),
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []anthMsg `json:"messages"`
}

type anthMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthResponse struct {
	Content    []anthContent `json:"content"`
	StopReason string        `json:"stop_reason"`
}

type anthContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (a *Anthropic) Synthesize(ctx context.Context, req domain.SynthRequest) (domain.SynthCandidate, error) {
	body := anthRequest{
		Model:     a.model,
		MaxTokens: synthMaxTokens,
		System:    systemPrompt,
		Messages:  []anthMsg{{Role: "user", Content: userPrompt(req)}},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return domain.SynthCandidate{}, fmt.Errorf("marshal: %w", err)
	}

	resp, err := postJSON(ctx, a.client, a.Name(), a.apiBase+"/v1/messages", jsonBody,
		http.Header{
			"X-Api-Key":         []string{a.apiKey},
			"Anthropic-Version": []string{anthropicAPIVersion},
		}, a.logger)
	if err != nil {
		return domain.SynthCandidate{}, fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.SynthCandidate{}, fmt.Errorf("anthropic %d: %s", resp.StatusCode, string(respBody))
	}

	var anthResp anthResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthResp); err != nil {
		return domain.SynthCandidate{}, fmt.Errorf("decode: %w", err)
	}

	var textParts []string
	for _, block := range anthResp.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}
	if len(textParts) == 0 {
		return domain.SynthCandidate{}, fmt.Errorf("anthropic returned no text content")
	}

	return ParseCandidate(strings.Join(textParts, "\n"))
}
