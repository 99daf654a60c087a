package synth

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"querymesh/internal/domain"
)

// Rule is a deterministic synthesizer that needs no network access. It
// picks a table from the schema description, extracts filter values
// from the intent with fixed patterns, and emits a parameterized
// SELECT. It is the default provider and the usual tail of a failover
// chain.
type Rule struct {
	logger *slog.Logger
}

func NewRule(logger *slog.Logger) *Rule {
	return &Rule{logger: logger.With("synthesizer", "rule")}
}

func (r *Rule) Name() string { return "rule" }

var (
	titleRe    = regexp.MustCompile(`\b(?:all|every)\s+([a-z]+)s\b`)
	yearsRe    = regexp.MustCompile(`(\d+)\+?\s*years?`)
	limitRe    = regexp.MustCompile(`\b(?:top|first|limit)\s+(\d+)\b`)
	locationRe = regexp.MustCompile(`(?:\bin|\bfrom|based in)\s+([A-Z][A-Za-z]+)`)
	wordRe     = regexp.MustCompile(`[a-z0-9+#]+`)
)

// skillTerms maps intent tokens to the spelling stored in the data.
// Kept in a slice so parameter numbering is stable across runs.
var skillTerms = []struct {
	word    string
	display string
}{
	{"python", "Python"},
	{"java", "Java"},
	{"sql", "SQL"},
	{"aws", "AWS"},
	{"react", "React"},
	{"go", "Go"},
	{"golang", "Go"},
	{"rust", "Rust"},
	{"cobol", "COBOL"},
	{"javascript", "JavaScript"},
	{"typescript", "TypeScript"},
}

// titleStopWords are plural nouns that mean "rows", not a job title.
var titleStopWords = map[string]bool{
	"record": true,
	"row":    true,
	"result": true,
	"item":   true,
	"entrie": true,
	"value":  true,
	"thing":  true,
}

func (r *Rule) Synthesize(ctx context.Context, req domain.SynthRequest) (domain.SynthCandidate, error) {
	tables := parseSchemaTables(req.SchemaDescription)
	if len(tables) == 0 {
		return domain.SynthCandidate{}, fmt.Errorf("rule synthesizer: schema description names no tables")
	}

	intent := strings.ToLower(req.Intent)
	table := pickTable(tables, intent)
	words := intentWords(intent)

	var conds []string
	params := make(map[string]any)

	if table.hasColumn("title") {
		if m := titleRe.FindStringSubmatch(intent); m != nil {
			singular := m[1]
			if !titleStopWords[singular] && singular != strings.TrimSuffix(strings.ToLower(table.name), "s") {
				conds = append(conds, "title = :title")
				params["title"] = capitalize(singular)
			}
		}
	}

	if table.hasColumn("skills") {
		seen := make(map[string]bool)
		for _, term := range skillTerms {
			if !words[term.word] || seen[term.display] {
				continue
			}
			seen[term.display] = true
			name := fmt.Sprintf("skill%d", len(seen))
			conds = append(conds, "skills LIKE :"+name)
			params[name] = "%" + term.display + "%"
		}
	}

	for _, col := range []string{"experience", "years_experience"} {
		if !table.hasColumn(col) {
			continue
		}
		if m := yearsRe.FindStringSubmatch(intent); m != nil {
			years, err := strconv.Atoi(m[1])
			if err == nil {
				conds = append(conds, col+" >= :min_experience")
				params["min_experience"] = years
			}
		}
		break
	}

	if table.hasColumn("location") {
		if m := locationRe.FindStringSubmatch(req.Intent); m != nil {
			conds = append(conds, "location = :location")
			params["location"] = m[1]
		}
	}

	var b strings.Builder
	if strings.Contains(intent, "how many") || words["count"] {
		b.WriteString("SELECT COUNT(*) AS n FROM ")
		b.WriteString(table.name)
		writeWhere(&b, conds)
	} else {
		b.WriteString("SELECT * FROM ")
		b.WriteString(table.name)
		writeWhere(&b, conds)
		if m := limitRe.FindStringSubmatch(intent); m != nil {
			b.WriteString(" LIMIT ")
			b.WriteString(m[1])
		}
	}

	if len(params) == 0 {
		params = nil
	}
	r.logger.Debug("synthesized query",
		"table", table.name,
		"conditions", len(conds),
	)
	return domain.SynthCandidate{QueryString: b.String(), Parameters: params}, nil
}

func writeWhere(b *strings.Builder, conds []string) {
	if len(conds) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(conds, " AND "))
}

// schemaTable is one line of the planner's schema description,
// "table: <name> (<col> <TYPE> [flags], ...)".
type schemaTable struct {
	name    string
	columns map[string]bool
}

func (t schemaTable) hasColumn(name string) bool { return t.columns[name] }

var flagSpanRe = regexp.MustCompile(`\[[^\]]*\]`)

func parseSchemaTables(desc string) []schemaTable {
	var tables []schemaTable
	for _, line := range strings.Split(desc, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "table: ")
		if !ok {
			continue
		}
		name := strings.TrimSpace(rest)
		var colsPart string
		if open := strings.Index(rest, "("); open >= 0 {
			name = strings.TrimSpace(rest[:open])
			colsPart = rest[open+1:]
			if end := strings.LastIndex(colsPart, ")"); end >= 0 {
				colsPart = colsPart[:end]
			}
		}
		if name == "" {
			continue
		}
		t := schemaTable{name: name, columns: make(map[string]bool)}
		for _, col := range strings.Split(flagSpanRe.ReplaceAllString(colsPart, ""), ",") {
			fields := strings.Fields(col)
			if len(fields) == 0 {
				continue
			}
			t.columns[strings.ToLower(fields[0])] = true
		}
		tables = append(tables, t)
	}
	return tables
}

// pickTable prefers a table whose name (or its singular) appears in the
// intent, falling back to the first one described.
func pickTable(tables []schemaTable, intent string) schemaTable {
	for _, t := range tables {
		name := strings.ToLower(t.name)
		if strings.Contains(intent, name) || strings.Contains(intent, strings.TrimSuffix(name, "s")) {
			return t
		}
	}
	return tables[0]
}

func intentWords(intent string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range wordRe.FindAllString(intent, -1) {
		words[w] = true
	}
	return words
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
