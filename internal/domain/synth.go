package domain

import "context"

// SynthRequest is the input to the query-synthesis collaborator: the
// raw intent, a formatted description of whatever schema information
// was available (best effort, possibly empty), and optional hints from
// earlier pipeline stages.
type SynthRequest struct {
	Intent            string
	SchemaDescription string
	Hints             map[string]string
}

// SynthCandidate is the collaborator's answer: one candidate query
// string plus optional named parameters. The planner re-validates the
// candidate independently; nothing here is trusted.
type SynthCandidate struct {
	QueryString string
	Parameters  map[string]any
}

// Synthesizer turns an intent plus schema context into a candidate
// query. Implementations are interchangeable: rule based, LLM backed,
// or a failover chain over several of them.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req SynthRequest) (SynthCandidate, error)
}
