// Package synth turns an intent plus a schema description into one
// candidate query. Implementations range from a deterministic rule
// engine to hosted LLM providers behind a failover chain; the planner
// treats them all as the same opaque function and re-validates whatever
// they return.
package synth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"querymesh/internal/domain"
)

// ErrNoCandidate means the text contained nothing usable as a query.
var ErrNoCandidate = errors.New("response contains no query candidate")

// ParseCandidate extracts a query candidate from free-form model text.
// It is the single boundary between untrusted provider output and the
// planner: text in, {query, params} or an explicit failure out.
//
// Accepted forms, tried in order:
//  1. a fenced code block containing either of the forms below
//  2. one JSON object {"query": "...", "params": {...}} ("parameters"
//     is accepted as an alias)
//  3. query text lines, optionally followed by a JSON object holding
//     the parameters from the first line starting with "{"
//
// Trailing semicolons are trimmed; an empty query is a failure, never a
// zero-value candidate.
func ParseCandidate(text string) (domain.SynthCandidate, error) {
	text = stripFence(strings.TrimSpace(text))
	if text == "" {
		return domain.SynthCandidate{}, ErrNoCandidate
	}

	if strings.HasPrefix(text, "{") {
		candidate, err := parseJSONCandidate(text)
		if err != nil {
			return domain.SynthCandidate{}, err
		}
		return candidate, nil
	}

	return parseLineCandidate(text)
}

type jsonCandidate struct {
	Query      string         `json:"query"`
	Params     map[string]any `json:"params"`
	Parameters map[string]any `json:"parameters"`
}

func parseJSONCandidate(text string) (domain.SynthCandidate, error) {
	var raw jsonCandidate
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return domain.SynthCandidate{}, fmt.Errorf("malformed candidate object: %w", err)
	}

	query := normalizeQuery(raw.Query)
	if query == "" {
		return domain.SynthCandidate{}, ErrNoCandidate
	}
	params := raw.Params
	if params == nil {
		params = raw.Parameters
	}
	return domain.SynthCandidate{QueryString: query, Parameters: params}, nil
}

func parseLineCandidate(text string) (domain.SynthCandidate, error) {
	var queryLines []string
	var paramsText string

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "{") {
			paramsText = strings.Join(lines[i:], "\n")
			break
		}
		queryLines = append(queryLines, line)
	}

	query := normalizeQuery(strings.Join(queryLines, " "))
	if query == "" {
		return domain.SynthCandidate{}, ErrNoCandidate
	}

	candidate := domain.SynthCandidate{QueryString: query}
	if paramsText != "" {
		var params map[string]any
		if err := json.Unmarshal([]byte(paramsText), &params); err != nil {
			return domain.SynthCandidate{}, fmt.Errorf("malformed parameter object: %w", err)
		}
		candidate.Parameters = params
	}
	return candidate, nil
}

// stripFence unwraps the first ``` code fence when one is present,
// dropping an optional language tag on the opening line.
func stripFence(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		// A language tag is a single bare word like "sql" or "json".
		if firstLine == "" || !strings.ContainsAny(firstLine, " \t{},;") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func normalizeQuery(query string) string {
	query = strings.TrimSpace(query)
	for strings.HasSuffix(query, ";") {
		query = strings.TrimSpace(strings.TrimSuffix(query, ";"))
	}
	return query
}
