package synth

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCandidate_JSONObject(t *testing.T) {
	text := `{"query": "SELECT * FROM candidates WHERE title = :title", "params": {"title": "Engineer"}}`

	candidate, err := ParseCandidate(text)
	if err != nil {
		t.Fatalf("ParseCandidate: %v", err)
	}
	if candidate.QueryString != "SELECT * FROM candidates WHERE title = :title" {
		t.Errorf("query = %q", candidate.QueryString)
	}
	if got := candidate.Parameters["title"]; got != "Engineer" {
		t.Errorf("params[title] = %v", got)
	}
}

func TestParseCandidate_ParametersAlias(t *testing.T) {
	text := `{"query": "SELECT 1", "parameters": {"a": 2}}`

	candidate, err := ParseCandidate(text)
	if err != nil {
		t.Fatalf("ParseCandidate: %v", err)
	}
	if got := candidate.Parameters["a"]; got != float64(2) {
		t.Errorf("params[a] = %v (%T)", got, got)
	}
}

func TestParseCandidate_FencedJSON(t *testing.T) {
	text := "Here is the query:\n```json\n{\"query\": \"SELECT name FROM candidates\", \"params\": {}}\n```\nLet me know if you need anything else."

	candidate, err := ParseCandidate(text)
	if err != nil {
		t.Fatalf("ParseCandidate: %v", err)
	}
	if candidate.QueryString != "SELECT name FROM candidates" {
		t.Errorf("query = %q", candidate.QueryString)
	}
}

func TestParseCandidate_FencedSQL(t *testing.T) {
	text := "```sql\nSELECT COUNT(*) AS n FROM candidates;\n```"

	candidate, err := ParseCandidate(text)
	if err != nil {
		t.Fatalf("ParseCandidate: %v", err)
	}
	if candidate.QueryString != "SELECT COUNT(*) AS n FROM candidates" {
		t.Errorf("query = %q", candidate.QueryString)
	}
	if candidate.Parameters != nil {
		t.Errorf("params = %v, want none", candidate.Parameters)
	}
}

func TestParseCandidate_QueryLinesThenParamsObject(t *testing.T) {
	text := "SELECT *\nFROM candidates\nWHERE skills LIKE :skill1\n{\"skill1\": \"%Go%\"}"

	candidate, err := ParseCandidate(text)
	if err != nil {
		t.Fatalf("ParseCandidate: %v", err)
	}
	if candidate.QueryString != "SELECT * FROM candidates WHERE skills LIKE :skill1" {
		t.Errorf("query = %q", candidate.QueryString)
	}
	if got := candidate.Parameters["skill1"]; got != "%Go%" {
		t.Errorf("params[skill1] = %v", got)
	}
}

func TestParseCandidate_TrailingSemicolonTrimmed(t *testing.T) {
	for _, text := range []string{
		"SELECT 1;",
		`{"query": "SELECT 1;"}`,
		"SELECT 1 ;  ",
	} {
		candidate, err := ParseCandidate(text)
		if err != nil {
			t.Fatalf("ParseCandidate(%q): %v", text, err)
		}
		if candidate.QueryString != "SELECT 1" {
			t.Errorf("ParseCandidate(%q) query = %q", text, candidate.QueryString)
		}
	}
}

func TestParseCandidate_EmptyIsError(t *testing.T) {
	for _, text := range []string{
		"",
		"   \n  ",
		"```\n```",
		"{}",
		`{"query": ""}`,
		`{"query": "  ;  "}`,
	} {
		_, err := ParseCandidate(text)
		if !errors.Is(err, ErrNoCandidate) {
			t.Errorf("ParseCandidate(%q) err = %v, want ErrNoCandidate", text, err)
		}
	}
}

func TestParseCandidate_MalformedJSONIsError(t *testing.T) {
	for _, text := range []string{
		`{"query": "SELECT 1"`,
		"SELECT 1\n{not json}",
	} {
		if _, err := ParseCandidate(text); err == nil {
			t.Errorf("ParseCandidate(%q) succeeded, want error", text)
		}
	}
}

func FuzzParseCandidate(f *testing.F) {
	f.Add(`{"query": "SELECT 1", "params": {"a": 1}}`)
	f.Add("SELECT * FROM t;\n{\"x\": \"y\"}")
	f.Add("```sql\nSELECT 1\n```")
	f.Add("```json\n{\"query\": \"WITH c AS (SELECT 1) SELECT * FROM c\"}\n```")
	f.Add("")
	f.Add("{")
	f.Add(";;;")
	f.Add("\x00\xff")

	f.Fuzz(func(t *testing.T, text string) {
		candidate, err := ParseCandidate(text)
		if err != nil {
			return
		}
		// A successful parse must never hand the planner an empty or
		// unterminated query.
		if candidate.QueryString == "" {
			t.Errorf("ParseCandidate(%q) returned empty query without error", text)
		}
		if strings.TrimSpace(candidate.QueryString) != candidate.QueryString {
			t.Errorf("ParseCandidate(%q) returned untrimmed query %q", text, candidate.QueryString)
		}
		if strings.HasSuffix(candidate.QueryString, ";") {
			t.Errorf("ParseCandidate(%q) kept trailing semicolon in %q", text, candidate.QueryString)
		}
	})
}
