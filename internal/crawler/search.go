package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"querymesh/internal/bus"
	"querymesh/internal/rpc"
)

// Search is the thin agent in front of the crawler. It owns no data:
// it discovers the crawler through the registry, forwards the query,
// and relabels the results with source attribution.
type Search struct {
	caller *rpc.Caller
	logger *slog.Logger
}

func NewSearch(caller *rpc.Caller, logger *slog.Logger) *Search {
	return &Search{caller: caller, logger: logger.With("agent", "search_agent")}
}

// Dispatcher mounts search_candidates.
func (s *Search) Dispatcher(events *bus.EventBus) *rpc.Dispatcher {
	d := rpc.NewDispatcher("search_agent", s.logger, events)
	d.Handle("search_candidates", s.searchCandidates)
	return d
}

func (s *Search) searchCandidates(ctx context.Context, params rpc.Params) (any, error) {
	query, envErr := params.RequiredString("query")
	if envErr != nil {
		return nil, envErr
	}
	limit := params.IntDefault("limit", defaultCandidates)

	result, err := s.caller.CallAgent(ctx, "crawler_agent", "crawl_candidates", map[string]any{
		"query": query,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("crawler call: %w", err)
	}
	return map[string]any{
		"query":      query,
		"candidates": result,
		"count":      candidateCount(result),
		"source":     "crawler_agent",
	}, nil
}

// candidateCount handles both shapes a crawler result arrives in:
// typed slices from in-process dispatch, decoded []any off the wire.
func candidateCount(result any) int {
	switch v := result.(type) {
	case []Candidate:
		return len(v)
	case []any:
		return len(v)
	}
	return 0
}
