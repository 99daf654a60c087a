package synth

import (
	"fmt"
	"sort"
	"strings"

	"querymesh/internal/domain"
)

const systemPrompt = `You generate database queries. Respond with a single JSON object of the form {"query": "...", "params": {...}} and nothing else. The query must be one read-only statement starting with SELECT or WITH, using named parameters like :name for every literal value taken from the request. Never generate INSERT, UPDATE, DELETE, DDL, or multiple statements.`

// userPrompt renders a SynthRequest for an LLM provider. Hints are
// emitted in sorted order so the prompt is stable for a given request.
func userPrompt(req domain.SynthRequest) string {
	var b strings.Builder
	b.WriteString("Intent: ")
	b.WriteString(req.Intent)
	if req.SchemaDescription != "" {
		b.WriteString("\n\nSchema:\n")
		b.WriteString(req.SchemaDescription)
	}
	if len(req.Hints) > 0 {
		keys := make([]string, 0, len(req.Hints))
		for k := range req.Hints {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n\nHints:")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %s", k, req.Hints[k])
		}
	}
	return b.String()
}
