package front

import (
	"log/slog"
	"strings"
)

// Intents the front door answers without the planner.
const (
	intentHelp   = "help"
	intentStatus = "status"
	intentAgents = "agents"
	intentSinks  = "sinks"
)

// Router classifies chat messages onto the local intents. Matching is
// keyword scoring over the fence-stripped lowercased text; zero score
// means no local intent and the caller falls back to the default reply.
type Router struct {
	keywords map[string][]string
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		keywords: map[string][]string{
			intentHelp:   {"help", "what can you do", "how do i", "usage"},
			intentStatus: {"status", "health", "uptime", "are you up"},
			intentAgents: {"agents", "agent list", "list agents", "capabilities", "who is registered"},
			intentSinks:  {"sinks", "sink list", "list sinks", "data sources", "databases"},
		},
		logger: logger,
	}
}

// Route returns the best-scoring intent name, or "" when nothing fits.
func (r *Router) Route(message string) string {
	lower := strings.ToLower(stripCodeFences(message))

	var bestMatch string
	var bestScore int
	for name, keywords := range r.keywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestMatch = name
		}
	}

	if bestScore > 0 {
		r.logger.Debug("intent matched", "intent", bestMatch, "score", bestScore)
	}
	return bestMatch
}

// stripCodeFences removes ```fenced``` blocks so quoted SQL or shell
// text cannot trigger intent keywords.
func stripCodeFences(message string) string {
	var b strings.Builder
	rest := message
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:open])
		rest = rest[open+3:]
		end := strings.Index(rest, "```")
		if end < 0 {
			return b.String()
		}
		rest = rest[end+3:]
	}
}
