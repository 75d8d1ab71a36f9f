// Package app wires the pipeline stages together and runs them once.
package app

import (
	"context"
	"fmt"
	"time"

	"mowernews/internal/claude"
	"mowernews/internal/config"
	"mowernews/internal/filter"
	"mowernews/internal/line"
	"mowernews/internal/logger"
	"mowernews/internal/metrics"
	"mowernews/internal/news"
	"mowernews/internal/resolver"
	"mowernews/internal/summary"
)

// NewsFetcher pulls candidate articles for the topic query.
type NewsFetcher interface {
	Fetch(ctx context.Context, query string, maxItems int) ([]news.Article, error)
}

// RelevanceFilter selects and ranks the topic-relevant subset.
type RelevanceFilter interface {
	Select(ctx context.Context, articles []news.Article) ([]news.RankedArticle, error)
}

// MessageSummarizer renders the delivery message.
type MessageSummarizer interface {
	Summarize(ctx context.Context, ranked []news.RankedArticle, dateLabel string) (string, error)
}

// MessageSender pushes the final message to the delivery target.
type MessageSender interface {
	Push(ctx context.Context, text string) error
}

// Deps lets tests substitute any stage with a stub.
type Deps struct {
	Fetcher    NewsFetcher
	Filter     RelevanceFilter
	Summarizer MessageSummarizer
	Sender     MessageSender
}

// Pipeline runs fetch → filter → summarize → push once per invocation.
type Pipeline struct {
	feed       config.FeedConfig
	fetcher    NewsFetcher
	filter     RelevanceFilter
	summarizer MessageSummarizer
	sender     MessageSender
}

// New wires the production dependencies: Google News resolver + gofeed
// fetcher, one Claude client shared by filter and summarizer, and the LINE
// push client.
func New(cfg *config.Config) *Pipeline {
	gen := claude.New(cfg.Claude, cfg.RequestTimeout)
	links := resolver.New(cfg.RequestTimeout)

	return NewWithDeps(cfg.Feed, Deps{
		Fetcher:    news.NewFetcher(links, cfg.Feed.Language, cfg.Feed.Country, cfg.RequestTimeout),
		Filter:     filter.New(gen),
		Summarizer: summary.New(gen),
		Sender:     line.New(cfg.LINE, cfg.RequestTimeout),
	})
}

// NewWithDeps builds a pipeline from explicit stage implementations.
func NewWithDeps(feed config.FeedConfig, deps Deps) *Pipeline {
	return &Pipeline{
		feed:       feed,
		fetcher:    deps.Fetcher,
		filter:     deps.Filter,
		summarizer: deps.Summarizer,
		sender:     deps.Sender,
	}
}

// Run executes one full pass. A failed push is logged and reported through
// metrics but does not fail the run; everything upstream of the push is
// fatal and propagates.
func (p *Pipeline) Run(ctx context.Context) error {
	started := time.Now()
	dateLabel := todayLabel()

	articles, err := p.fetcher.Fetch(ctx, p.feed.Query, p.feed.MaxItems)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return fmt.Errorf("fetch news: %w", err)
	}
	metrics.Global.AddArticlesFetched(len(articles))

	ranked, err := p.filter.Select(ctx, articles)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return fmt.Errorf("filter news: %w", err)
	}
	metrics.Global.AddArticlesSelected(len(ranked))
	logger.Info("relevance filter done", "selected", len(ranked), "fetched", len(articles))

	message, err := p.summarizer.Summarize(ctx, ranked, dateLabel)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return fmt.Errorf("summarize news: %w", err)
	}

	if err := p.sender.Push(ctx, message); err != nil {
		// Delivery failure is non-fatal: the pipeline itself completed.
		logger.Error("LINE push failed", "error", err)
		metrics.Global.IncrementPushesFailed()
	} else {
		metrics.Global.IncrementPushesSucceeded()
	}

	metrics.Global.SetLastRun()
	metrics.Global.RecordRunDuration(time.Since(started))
	logger.Info("pipeline run complete", "duration", time.Since(started))
	return nil
}

// todayLabel renders today's date for the message header in JST.
func todayLabel() string {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return time.Now().In(loc).Format("2006年01月02日")
}
