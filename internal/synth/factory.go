package synth

import (
	"fmt"
	"log/slog"
	"time"

	"querymesh/internal/config"
	"querymesh/internal/domain"
)

// NewFromConfig builds the synthesizer the configuration selects: the
// default provider alone, or a failover chain when one is configured.
// An unconfigured setup falls back to the rule engine so the planner
// always has something to work with.
func NewFromConfig(cfg config.SynthesizerConfig, logger *slog.Logger) (domain.Synthesizer, error) {
	names := cfg.FailoverChain
	if len(names) == 0 {
		name := cfg.Default
		if name == "" {
			name = "rule"
		}
		names = []string{name}
	}

	if len(names) == 1 {
		return buildProvider(cfg, names[0], logger)
	}

	chain := make([]domain.Synthesizer, 0, len(names))
	for _, name := range names {
		s, err := buildProvider(cfg, name, logger)
		if err != nil {
			return nil, err
		}
		chain = append(chain, s)
	}
	return NewFailover(chain, logger), nil
}

func buildProvider(cfg config.SynthesizerConfig, name string, logger *slog.Logger) (domain.Synthesizer, error) {
	pc, ok := cfg.Providers[name]
	if !ok {
		// The rule engine needs no configuration, so a bare reference
		// to it always works.
		if name == "rule" {
			return NewRule(logger), nil
		}
		return nil, fmt.Errorf("synthesizer %q is not configured", name)
	}

	kind := pc.Kind
	if kind == "" {
		kind = name
	}
	timeout := time.Duration(pc.TimeoutS) * time.Second

	switch kind {
	case "rule":
		return NewRule(logger), nil
	case "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:  pc.APIKey,
			APIBase: pc.BaseURL,
			Model:   pc.Model,
			Timeout: timeout,
			Logger:  logger,
		}), nil
	case "anthropic":
		return NewAnthropic(AnthropicConfig{
			APIKey:  pc.APIKey,
			APIBase: pc.BaseURL,
			Model:   pc.Model,
			Timeout: timeout,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown synthesizer kind %q for provider %q", kind, name)
	}
}
