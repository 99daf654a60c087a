package crawler

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"testing"
)

func TestGenerate_DeterministicForSameQuery(t *testing.T) {
	a := Generate("senior python engineer", 5)
	b := Generate("senior python engineer", 5)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same query generated different candidates:\n%v\n%v", a, b)
	}
}

func TestGenerate_NormalizesQueryBeforeSeeding(t *testing.T) {
	a := Generate("Senior   Python Engineer", 5)
	b := Generate("senior python engineer", 5)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("casing and spacing changed the generated set:\n%v\n%v", a, b)
	}
}

func TestGenerate_DifferentQueriesDiffer(t *testing.T) {
	a := Generate("python engineer", 5)
	b := Generate("java analyst", 5)
	if reflect.DeepEqual(a, b) {
		t.Fatalf("distinct queries generated identical candidates: %v", a)
	}
}

func TestGenerate_LimitBounds(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: defaultCandidates},
		{limit: -3, want: defaultCandidates},
		{limit: 3, want: 3},
		{limit: 100, want: maxCandidates},
	}
	for _, tt := range tests {
		if got := len(Generate("python engineer", tt.limit)); got != tt.want {
			t.Errorf("Generate(limit=%d) returned %d candidates, want %d", tt.limit, got, tt.want)
		}
	}
}

var experienceRe = regexp.MustCompile(`^([1-9]|1[0-9]|20) years$`)

func TestGenerate_ProfileShape(t *testing.T) {
	cands := Generate("senior python engineer with sql", 5)
	for i, c := range cands {
		if want := fmt.Sprintf("cand_%d", i+1); c.ID != want {
			t.Errorf("candidate %d id = %q, want %q", i, c.ID, want)
		}
		if c.Title != "Engineer" {
			t.Errorf("candidate %d title = %q, want Engineer", i, c.Title)
		}
		if !strings.Contains(c.Name, " ") {
			t.Errorf("candidate %d name %q has no surname", i, c.Name)
		}
		if !experienceRe.MatchString(c.Experience) {
			t.Errorf("candidate %d experience %q out of band", i, c.Experience)
		}
		if !hasSkill(c, "Python") || !hasSkill(c, "SQL") {
			t.Errorf("candidate %d skills %v missing query skills", i, c.Skills)
		}
		if !hasSoftSkill(c) {
			t.Errorf("candidate %d skills %v carry no soft skill", i, c.Skills)
		}
	}
}

func hasSkill(c Candidate, skill string) bool {
	for _, s := range c.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

func hasSoftSkill(c Candidate) bool {
	for _, extra := range extraSkills {
		if hasSkill(c, extra) {
			return true
		}
	}
	return false
}

func TestTitleFromQuery(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"senior python engineer", "Engineer"},
		{"React Developer in Berlin", "Developer"},
		{"data scientist", "Scientist"},
		{"somebody who knows sql", "Specialist"},
	}
	for _, tt := range tests {
		if got := titleFromQuery(tt.query); got != tt.want {
			t.Errorf("titleFromQuery(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestSkillsFromQuery(t *testing.T) {
	got := skillsFromQuery("Golang and python, plus SQL!")
	want := []string{"Go", "Python", "SQL"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("skillsFromQuery = %v, want %v", got, want)
	}
	if skills := skillsFromQuery("someone friendly"); skills != nil {
		t.Fatalf("skillsFromQuery on plain text = %v, want none", skills)
	}
}

func TestCandidatesFromPage(t *testing.T) {
	page := &PageSnapshot{
		URL:   "http://example.test/board",
		Title: "Board",
		Links: []string{"  Jane Doe  ", "", "John Smith", strings.Repeat("x", 100)},
	}
	cands := CandidatesFromPage(page, "python engineer", 5)
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2: %v", len(cands), cands)
	}
	if cands[0].Name != "Jane Doe" || cands[1].Name != "John Smith" {
		t.Fatalf("names = %q, %q", cands[0].Name, cands[1].Name)
	}
	if cands[0].ID != "cand_1" || cands[1].ID != "cand_2" {
		t.Fatalf("ids = %q, %q", cands[0].ID, cands[1].ID)
	}
	if cands[0].Title != "Engineer" {
		t.Fatalf("title = %q, want Engineer", cands[0].Title)
	}
	if !hasSkill(cands[0], "Python") {
		t.Fatalf("skills = %v, want Python from the query", cands[0].Skills)
	}
}

func TestCandidatesFromPage_HonorsLimit(t *testing.T) {
	page := &PageSnapshot{Links: []string{"A B", "C D", "E F"}}
	if got := len(CandidatesFromPage(page, "engineer", 2)); got != 2 {
		t.Fatalf("got %d candidates, want 2", got)
	}
}
