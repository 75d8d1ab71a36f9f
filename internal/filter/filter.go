// Package filter selects and ranks the topic-relevant subset of fetched
// articles via one text-generation call, with a feed-order fallback when
// the reply cannot be parsed.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mowernews/internal/logger"
	"mowernews/internal/metrics"
	"mowernews/internal/news"
)

// MaxSelected caps how many articles survive filtering.
const MaxSelected = 5

const systemPrompt = `あなたはニュース評価エージェントです。
草刈りロボット・草刈り自動化・自律走行型草刈り機・ロボット芝刈り機に直接関連する記事のみを選んでください。
関連性の低い記事（単なる農業ニュース、草刈りと無関係なロボットニュース等）は除外してください。
関連性の高い順に最大5件に絞ってください。

出力は次の形式のJSON配列のみとし、説明文やコードブロックを付けないでください：
[{"title": "...", "link": "...", "relevance": 5}]

relevanceは1〜5の整数です。関連する記事が1件もない場合は [] を出力してください。`

// TextGenerator produces a completion for a system instruction and a user
// prompt.
type TextGenerator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Filter ranks articles by topical relevance.
type Filter struct {
	gen TextGenerator
}

func New(gen TextGenerator) *Filter {
	return &Filter{gen: gen}
}

// Select returns at most MaxSelected ranked articles. Links on the result
// always come from the input list, never from the generation reply: titles
// join the two, last write wins on duplicates. A reply that does not parse
// degrades to the first MaxSelected inputs in feed order; a transport error
// from the generator propagates.
func (f *Filter) Select(ctx context.Context, articles []news.Article) ([]news.RankedArticle, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(articles)
	if err != nil {
		return nil, fmt.Errorf("marshal articles: %w", err)
	}
	user := "以下の記事を評価・フィルタリングしてください：\n\n" + string(payload)

	reply, err := f.gen.Complete(ctx, systemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("relevance call: %w", err)
	}

	ranked, err := parseRanked(reply)
	if err != nil {
		logger.Warn("relevance reply did not parse, keeping feed order", "error", err)
		metrics.Global.IncrementFilterParseFallbacks()
		return passthrough(articles), nil
	}

	reattachLinks(ranked, articles)
	if len(ranked) > MaxSelected {
		ranked = ranked[:MaxSelected]
	}
	return ranked, nil
}

// parseRanked extracts the first bracketed array from the reply and decodes
// it. The generator is allowed to wrap the array in prose or a code fence.
func parseRanked(reply string) ([]news.RankedArticle, error) {
	raw, ok := extractJSONArray(reply)
	if !ok {
		return nil, fmt.Errorf("no JSON array in reply")
	}

	var ranked []news.RankedArticle
	if err := json.Unmarshal([]byte(raw), &ranked); err != nil {
		return nil, fmt.Errorf("decode ranked articles: %w", err)
	}
	return ranked, nil
}

// extractJSONArray returns the first balanced [...] substring of s,
// skipping brackets inside JSON string literals.
func extractJSONArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// reattachLinks overwrites each ranked link with the link of the fetched
// article carrying the same title. The generation service is not trusted to
// reproduce URLs verbatim.
func reattachLinks(ranked []news.RankedArticle, articles []news.Article) {
	byTitle := make(map[string]string, len(articles))
	for _, a := range articles {
		byTitle[a.Title] = a.Link
	}
	for i := range ranked {
		if link, ok := byTitle[ranked[i].Title]; ok {
			ranked[i].Link = link
		}
	}
}

func passthrough(articles []news.Article) []news.RankedArticle {
	n := len(articles)
	if n > MaxSelected {
		n = MaxSelected
	}
	ranked := make([]news.RankedArticle, 0, n)
	for _, a := range articles[:n] {
		ranked = append(ranked, news.RankedArticle{Title: a.Title, Link: a.Link})
	}
	return ranked
}
