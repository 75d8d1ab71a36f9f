// Package news defines the pipeline's article types and fetches candidates
// from the Google News search feed.
package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"mowernews/internal/logger"
	"mowernews/internal/metrics"
)

// Article is one candidate entry from the search feed. Link is the
// authoritative identity once resolved; Title doubles as the join key
// between pipeline stages and is not guaranteed unique.
type Article struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Summary   string `json:"summary,omitempty"`
	Published string `json:"published,omitempty"`
}

// RankedArticle is an Article the relevance filter selected. Relevance is
// 1-5, descending across the selection; 0 means the filter fell back to
// feed order without scoring.
type RankedArticle struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Relevance int    `json:"relevance"`
}

// LinkResolver decodes a redirect-wrapper URL into the canonical article
// URL. A failed resolution returns an error; the raw URL stays usable.
type LinkResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

const summaryMaxRunes = 300

// Fetcher queries the Google News search feed for one topic.
type Fetcher struct {
	parser   *gofeed.Parser
	resolver LinkResolver
	baseURL  string
	language string
	country  string
}

// NewFetcher builds a fetcher for the given feed locale. resolver may be
// nil, in which case feed links are passed through untouched.
func NewFetcher(resolver LinkResolver, language, country string, timeout time.Duration) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = "mowernews/1.0"
	if timeout > 0 {
		// gofeed uses http.DefaultClient unless told otherwise
		parser.Client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		parser:   parser,
		resolver: resolver,
		baseURL:  "https://news.google.com",
		language: language,
		country:  country,
	}
}

// Fetch issues one search-feed query and returns at most maxItems articles
// in feed order. Per-article link resolution failures are degraded to the
// raw feed URL; only a feed-level failure is returned as an error.
func (f *Fetcher) Fetch(ctx context.Context, query string, maxItems int) ([]Article, error) {
	feedURL := f.searchURL(query)
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch search feed: %w", err)
	}

	items := feed.Items
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}

	articles := make([]Article, 0, len(items))
	for _, item := range items {
		link := item.Link
		if f.resolver != nil && link != "" {
			resolved, rErr := f.resolver.Resolve(ctx, link)
			if rErr != nil {
				logger.Warn("link resolution failed, keeping feed URL", "link", link, "error", rErr)
				metrics.Global.IncrementLinkResolutionFailures()
			} else {
				link = resolved
			}
		}
		articles = append(articles, Article{
			Title:     item.Title,
			Link:      link,
			Summary:   truncateRunes(item.Description, summaryMaxRunes),
			Published: item.Published,
		})
	}

	logger.Info("fetched search feed", "articles", len(articles), "query", query)
	return articles, nil
}

func (f *Fetcher) searchURL(query string) string {
	return fmt.Sprintf("%s/rss/search?q=%s&hl=%s&gl=%s&ceid=%s:%s",
		f.baseURL, url.QueryEscape(query), f.language, f.country, f.country, f.language)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
