// Package crawler produces candidate leads for the search side of the
// mesh. Without a configured source page it generates mock candidates
// seeded by the query text, so the same search always sees the same
// data; with one, it scrapes names off the live page through a
// headless browser and falls back to the generated set when the
// browser fails.
package crawler

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"
)

// Candidate is one lead produced by the crawler.
type Candidate struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Skills     []string `json:"skills"`
	Experience string   `json:"experience"`
}

const (
	defaultCandidates = 5
	maxCandidates     = 20
)

var (
	firstNames = []string{"Alice", "Bob", "Charlie", "Diana", "Ethan", "Fatima", "George", "Hana"}
	lastNames  = []string{"Smith", "Johnson", "Lee", "Patel", "Garcia", "Mori", "Chen", "Brown"}

	// extraSkills is the soft-skill pool; every profile gets one.
	extraSkills = []string{"Communication", "Team Leadership", "Project Management", "Problem Solving"}

	titleWords = []string{"engineer", "developer", "analyst", "manager", "designer", "scientist", "architect", "administrator"}

	skillWords = map[string]string{
		"python":     "Python",
		"java":       "Java",
		"go":         "Go",
		"golang":     "Go",
		"sql":        "SQL",
		"react":      "React",
		"aws":        "AWS",
		"kubernetes": "Kubernetes",
		"rust":       "Rust",
		"typescript": "TypeScript",
	}
)

// Generate returns limit mock candidates for the query. The generator
// is seeded from the normalized query text, so repeating a query
// reproduces the exact same candidates.
func Generate(query string, limit int) []Candidate {
	limit = clampLimit(limit)
	rng := rand.New(rand.NewPCG(querySeed(query), 0))

	title := titleFromQuery(query)
	base := skillsFromQuery(query)

	out := make([]Candidate, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, Candidate{
			ID:         fmt.Sprintf("cand_%d", i+1),
			Name:       firstNames[rng.IntN(len(firstNames))] + " " + lastNames[rng.IntN(len(lastNames))],
			Title:      title,
			Skills:     append(append([]string{}, base...), extraSkills[rng.IntN(len(extraSkills))]),
			Experience: fmt.Sprintf("%d years", rng.IntN(20)+1),
		})
	}
	return out
}

// CandidatesFromPage turns scraped anchor texts into candidate leads.
// Titles, skills and experience come from the same seeded generator so
// live and generated output have the same shape; only the names are
// taken from the page.
func CandidatesFromPage(page *PageSnapshot, query string, limit int) []Candidate {
	limit = clampLimit(limit)
	rng := rand.New(rand.NewPCG(querySeed(query), 0))

	title := titleFromQuery(query)
	base := skillsFromQuery(query)

	out := make([]Candidate, 0, limit)
	for _, link := range page.Links {
		name := strings.TrimSpace(link)
		if name == "" || len(name) > 80 {
			continue
		}
		out = append(out, Candidate{
			ID:         fmt.Sprintf("cand_%d", len(out)+1),
			Name:       name,
			Title:      title,
			Skills:     append(append([]string{}, base...), extraSkills[rng.IntN(len(extraSkills))]),
			Experience: fmt.Sprintf("%d years", rng.IntN(20)+1),
		})
		if len(out) == limit {
			break
		}
	}
	return out
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultCandidates
	case limit > maxCandidates:
		return maxCandidates
	}
	return limit
}

// querySeed hashes the normalized query so casing and spacing do not
// change the generated set.
func querySeed(query string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.Join(strings.Fields(strings.ToLower(query)), " ")))
	return h.Sum64()
}

func titleFromQuery(query string) string {
	lowered := strings.ToLower(query)
	for _, w := range titleWords {
		if strings.Contains(lowered, w) {
			return strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return "Specialist"
}

// skillsFromQuery matches whole tokens, not substrings; "go" would
// otherwise hit inside half the dictionary.
func skillsFromQuery(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.Trim(tok, ".,;:!?")
		display, ok := skillWords[tok]
		if ok && !seen[display] {
			seen[display] = true
			out = append(out, display)
		}
	}
	return out
}
