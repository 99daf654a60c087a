package crawler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"testing"

	"querymesh/internal/rpc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func dispatch(t *testing.T, d *rpc.Dispatcher, method string, params map[string]any) rpc.Response {
	t.Helper()
	return d.Dispatch(context.Background(), rpc.Request{
		ProtocolVersion: rpc.ProtocolVersion,
		Method:          method,
		Params:          params,
		ID:              1,
	})
}

type stubFetcher struct {
	page  *PageSnapshot
	err   error
	calls int
	url   string
}

func (f *stubFetcher) FetchPage(_ context.Context, url string) (*PageSnapshot, error) {
	f.calls++
	f.url = url
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func TestAgent_CrawlGeneratesWithoutSource(t *testing.T) {
	a := New(Config{Logger: testLogger()})

	resp := dispatch(t, a.Dispatcher(nil), "crawl_candidates", map[string]any{"query": "python engineer"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	cands, ok := resp.Result.([]Candidate)
	if !ok {
		t.Fatalf("result is %T, want []Candidate", resp.Result)
	}
	if len(cands) != defaultCandidates {
		t.Fatalf("got %d candidates, want %d", len(cands), defaultCandidates)
	}
	if !reflect.DeepEqual(cands, Generate("python engineer", defaultCandidates)) {
		t.Fatalf("agent output diverges from the seeded generator")
	}
}

func TestAgent_CrawlScrapesConfiguredSource(t *testing.T) {
	fetcher := &stubFetcher{page: &PageSnapshot{
		URL:   "http://example.test/board",
		Title: "Board",
		Links: []string{"Jane Doe", "John Smith"},
	}}
	a := New(Config{SourceURL: "http://example.test/board", Fetcher: fetcher, Logger: testLogger()})

	resp := dispatch(t, a.Dispatcher(nil), "crawl_candidates", map[string]any{"query": "python engineer", "limit": 5})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	cands, ok := resp.Result.([]Candidate)
	if !ok {
		t.Fatalf("result is %T, want []Candidate", resp.Result)
	}
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2", len(cands))
	}
	if cands[0].Name != "Jane Doe" || cands[1].Name != "John Smith" {
		t.Fatalf("names = %q, %q, want the page anchors", cands[0].Name, cands[1].Name)
	}
	if fetcher.calls != 1 || fetcher.url != "http://example.test/board" {
		t.Fatalf("fetcher saw %d call(s) for %q", fetcher.calls, fetcher.url)
	}
}

func TestAgent_CrawlDegradesWhenBrowserFails(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("chrome exited")}
	a := New(Config{SourceURL: "http://example.test/board", Fetcher: fetcher, Logger: testLogger()})

	resp := dispatch(t, a.Dispatcher(nil), "crawl_candidates", map[string]any{"query": "python engineer"})
	if resp.Error != nil {
		t.Fatalf("degradation surfaced as an error: %v", resp.Error)
	}
	cands := resp.Result.([]Candidate)
	if !reflect.DeepEqual(cands, Generate("python engineer", defaultCandidates)) {
		t.Fatalf("degraded output diverges from the seeded generator")
	}
}

func TestAgent_CrawlDegradesWhenPageIsEmpty(t *testing.T) {
	fetcher := &stubFetcher{page: &PageSnapshot{URL: "http://example.test/board", Title: "Board"}}
	a := New(Config{SourceURL: "http://example.test/board", Fetcher: fetcher, Logger: testLogger()})

	resp := dispatch(t, a.Dispatcher(nil), "crawl_candidates", map[string]any{"query": "python engineer"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	cands := resp.Result.([]Candidate)
	if !reflect.DeepEqual(cands, Generate("python engineer", defaultCandidates)) {
		t.Fatalf("empty page did not degrade to the seeded generator")
	}
}

func TestAgent_FetchPageTitles(t *testing.T) {
	fetcher := &stubFetcher{page: &PageSnapshot{
		URL:   "http://example.test/board",
		Title: "Board",
		Links: []string{"Jane Doe"},
	}}
	a := New(Config{SourceURL: "http://example.test/board", Fetcher: fetcher, Logger: testLogger()})
	d := a.Dispatcher(nil)

	resp := dispatch(t, d, "fetch_page_titles", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	got, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want map", resp.Result)
	}
	if got["title"] != "Board" {
		t.Fatalf("title = %v, want Board", got["title"])
	}
	links, ok := got["links"].([]string)
	if !ok || len(links) != 1 || links[0] != "Jane Doe" {
		t.Fatalf("links = %v", got["links"])
	}

	dispatch(t, d, "fetch_page_titles", map[string]any{"url": "http://other.test"})
	if fetcher.url != "http://other.test" {
		t.Fatalf("explicit url was not used, fetcher saw %q", fetcher.url)
	}
}

func TestAgent_FetchPageTitlesRequiresAURL(t *testing.T) {
	a := New(Config{Logger: testLogger()})

	resp := dispatch(t, a.Dispatcher(nil), "fetch_page_titles", nil)
	if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
		t.Fatalf("error = %+v, want invalid params", resp.Error)
	}
}

func TestAgent_FetchPageTitlesSurfacesBrowserErrors(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("chrome exited")}
	a := New(Config{SourceURL: "http://example.test/board", Fetcher: fetcher, Logger: testLogger()})

	resp := dispatch(t, a.Dispatcher(nil), "fetch_page_titles", nil)
	if resp.Error == nil || resp.Error.Code != rpc.CodeInternalError {
		t.Fatalf("error = %+v, want internal", resp.Error)
	}
}

func TestAgent_CrawlMissingQueryIsInvalidParams(t *testing.T) {
	a := New(Config{Logger: testLogger()})

	for _, params := range []map[string]any{nil, {"query": ""}, {"query": 7}} {
		resp := dispatch(t, a.Dispatcher(nil), "crawl_candidates", params)
		if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
			t.Fatalf("params %v: error = %+v, want invalid params", params, resp.Error)
		}
	}
}
