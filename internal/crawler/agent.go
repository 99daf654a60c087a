package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"querymesh/internal/bus"
	"querymesh/internal/rpc"
)

// Agent serves the crawler side of candidate search: generated leads
// by default, scraped leads when a source page is configured.
type Agent struct {
	sourceURL string
	fetcher   PageFetcher
	logger    *slog.Logger
}

// Config wires the crawler agent.
type Config struct {
	SourceURL string      // optional live page; empty means generated data only
	Fetcher   PageFetcher // required when SourceURL is set
	Logger    *slog.Logger
}

func New(cfg Config) *Agent {
	return &Agent{
		sourceURL: cfg.SourceURL,
		fetcher:   cfg.Fetcher,
		logger:    cfg.Logger.With("agent", "crawler_agent"),
	}
}

// Dispatcher mounts crawl_candidates and fetch_page_titles.
func (a *Agent) Dispatcher(events *bus.EventBus) *rpc.Dispatcher {
	d := rpc.NewDispatcher("crawler_agent", a.logger, events)
	d.Handle("crawl_candidates", a.crawlCandidates)
	d.Handle("fetch_page_titles", a.fetchPageTitles)
	return d
}

func (a *Agent) crawlCandidates(ctx context.Context, params rpc.Params) (any, error) {
	query, envErr := params.RequiredString("query")
	if envErr != nil {
		return nil, envErr
	}
	limit := params.IntDefault("limit", defaultCandidates)
	return a.Candidates(ctx, query, limit), nil
}

// Candidates produces the lead list for a query. With a configured
// source page it takes names from the live page; fetch failures and
// pages without usable anchors degrade to the seeded generator.
func (a *Agent) Candidates(ctx context.Context, query string, limit int) []Candidate {
	if a.sourceURL == "" || a.fetcher == nil {
		return Generate(query, limit)
	}
	page, err := a.fetcher.FetchPage(ctx, a.sourceURL)
	if err != nil {
		a.logger.Warn("live fetch failed, serving generated candidates", "url", a.sourceURL, "error", err)
		return Generate(query, limit)
	}
	leads := CandidatesFromPage(page, query, limit)
	if len(leads) == 0 {
		a.logger.Warn("source page had no usable leads, serving generated candidates", "url", a.sourceURL)
		return Generate(query, limit)
	}
	return leads
}

func (a *Agent) fetchPageTitles(ctx context.Context, params rpc.Params) (any, error) {
	url := params.StringDefault("url", a.sourceURL)
	if url == "" {
		return nil, rpc.InvalidParams("url is required when no source url is configured")
	}
	if a.fetcher == nil {
		return nil, rpc.InternalError("no browser is configured")
	}
	page, err := a.fetcher.FetchPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	links := page.Links
	if links == nil {
		links = []string{}
	}
	return map[string]any{"url": page.URL, "title": page.Title, "links": links}, nil
}
