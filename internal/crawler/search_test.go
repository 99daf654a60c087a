package crawler

import (
	"net/http/httptest"
	"testing"
	"time"

	"querymesh/internal/domain"
	"querymesh/internal/rpc"
)

type stubRegistry struct {
	cards map[string]domain.AgentDescriptor
}

func (r *stubRegistry) Register(domain.AgentDescriptor) error { return nil }

func (r *stubRegistry) GetAgent(name string) (*domain.AgentDescriptor, error) {
	card, ok := r.cards[name]
	if !ok {
		return nil, nil
	}
	return &card, nil
}

func (r *stubRegistry) ListAgents() ([]domain.AgentDescriptor, error) {
	out := make([]domain.AgentDescriptor, 0, len(r.cards))
	for _, card := range r.cards {
		out = append(out, card)
	}
	return out, nil
}

func (r *stubRegistry) GetMethodDetails(string, string) (*domain.Capability, error) {
	return nil, nil
}

func TestSearch_ProxiesCrawlerOverTheMesh(t *testing.T) {
	crawlAgent := New(Config{Logger: testLogger()})
	srv := rpc.NewServer(rpc.ServerConfig{Logger: testLogger()})
	srv.Mount(crawlAgent.Dispatcher(nil))
	web := httptest.NewServer(srv.Handler())
	defer web.Close()

	reg := &stubRegistry{cards: map[string]domain.AgentDescriptor{
		"crawler_agent": {Name: "crawler_agent", InternalAddress: web.URL},
	}}
	caller := rpc.NewCaller(reg, rpc.NewClient(2*time.Second, testLogger()))
	search := NewSearch(caller, testLogger())

	resp := dispatch(t, search.Dispatcher(nil), "search_candidates", map[string]any{"query": "python engineer", "limit": 3})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	got, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want map", resp.Result)
	}
	if got["source"] != "crawler_agent" {
		t.Fatalf("source = %v, want crawler_agent", got["source"])
	}
	if got["query"] != "python engineer" {
		t.Fatalf("query = %v", got["query"])
	}
	cands, ok := got["candidates"].([]any)
	if !ok {
		t.Fatalf("candidates is %T, want []any off the wire", got["candidates"])
	}
	if len(cands) != 3 {
		t.Fatalf("got %d candidates, want 3", len(cands))
	}
	if got["count"] != 3 {
		t.Fatalf("count = %v, want 3", got["count"])
	}

	first, ok := cands[0].(map[string]any)
	if !ok {
		t.Fatalf("candidate is %T, want map", cands[0])
	}
	local := Generate("python engineer", 3)
	if first["id"] != "cand_1" || first["name"] != local[0].Name {
		t.Fatalf("first candidate = %v, want id cand_1 name %q", first, local[0].Name)
	}
}

func TestSearch_CrawlerLookupFailureIsInternal(t *testing.T) {
	reg := &stubRegistry{cards: map[string]domain.AgentDescriptor{}}
	caller := rpc.NewCaller(reg, rpc.NewClient(time.Second, testLogger()))
	search := NewSearch(caller, testLogger())

	resp := dispatch(t, search.Dispatcher(nil), "search_candidates", map[string]any{"query": "python"})
	if resp.Error == nil || resp.Error.Code != rpc.CodeInternalError {
		t.Fatalf("error = %+v, want internal", resp.Error)
	}
}

func TestSearch_MissingQueryIsInvalidParams(t *testing.T) {
	caller := rpc.NewCaller(&stubRegistry{}, rpc.NewClient(time.Second, testLogger()))
	search := NewSearch(caller, testLogger())

	resp := dispatch(t, search.Dispatcher(nil), "search_candidates", nil)
	if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
		t.Fatalf("error = %+v, want invalid params", resp.Error)
	}
}
