package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"querymesh/internal/domain"
)

// Failover tries multiple synthesizers in order, falling back to the
// next one when the current fails. A typical chain puts an LLM provider
// first and the rule engine last so synthesis degrades instead of dying
// with the provider.
type Failover struct {
	chain  []domain.Synthesizer
	logger *slog.Logger
}

func NewFailover(chain []domain.Synthesizer, logger *slog.Logger) *Failover {
	return &Failover{
		chain:  chain,
		logger: logger,
	}
}

func (f *Failover) Name() string {
	names := make([]string, len(f.chain))
	for i, s := range f.chain {
		names[i] = s.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

// Synthesize tries each synthesizer in order and returns the first
// successful candidate.
func (f *Failover) Synthesize(ctx context.Context, req domain.SynthRequest) (domain.SynthCandidate, error) {
	var lastErr error
	for i, s := range f.chain {
		candidate, err := s.Synthesize(ctx, req)
		if err == nil {
			if i > 0 {
				f.logger.Info("failover: used fallback synthesizer",
					"synthesizer", s.Name(),
					"attempt", i+1,
				)
			}
			return candidate, nil
		}
		lastErr = err
		f.logger.Warn("failover: synthesizer failed, trying next",
			"synthesizer", s.Name(),
			"attempt", i+1,
			"error", err,
		)
	}
	if lastErr == nil {
		return domain.SynthCandidate{}, fmt.Errorf("failover chain is empty")
	}
	return domain.SynthCandidate{}, fmt.Errorf("all synthesizers in failover chain failed: %w", lastErr)
}
