// Package summary turns the filtered article list into the LINE delivery
// message. Generated text is only used when every article URL survived
// generation verbatim; otherwise the deterministic formatter takes over.
package summary

import (
	"context"
	"fmt"
	"strings"

	"mowernews/internal/logger"
	"mowernews/internal/metrics"
	"mowernews/internal/news"
)

const header = "🌿 草刈りロボット最新ニュース"

// TextGenerator produces a completion for a system instruction and a user
// prompt.
type TextGenerator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Summarizer renders the delivery message for one run.
type Summarizer struct {
	gen TextGenerator
}

func New(gen TextGenerator) *Summarizer {
	return &Summarizer{gen: gen}
}

func systemPrompt(dateLabel string) string {
	return fmt.Sprintf(`あなたはプロのニュース編集者です。
草刈りロボット関連ニュースをLINEグループ配信用に要約してください。

【出力フォーマット】
%s
（%s）

■ タイトル
要約（1-2文、簡潔に）
🔗 URL

---
（記事ごとに繰り返し）

【重要ルール】
- URLは提供された元のURLをそのまま正確にコピーしてください
- URLを省略・改変・短縮しないでください
- URLは必ず https:// から始まる完全な形で記載してください
- LINEでタップしてそのまま記事が読めるようにしてください`, header, dateLabel)
}

// Summarize produces the delivery message. An empty article list returns
// the no-news template without touching the generator. Generated text is
// discarded wholesale, never repaired, when any article URL is missing
// from it.
func (s *Summarizer) Summarize(ctx context.Context, ranked []news.RankedArticle, dateLabel string) (string, error) {
	if len(ranked) == 0 {
		return NoNewsMessage(dateLabel), nil
	}

	var b strings.Builder
	b.WriteString("以下のフィルタリング済みニュースを要約してください：\n\n")
	for _, a := range ranked {
		fmt.Fprintf(&b, "タイトル: %s\nURL: %s\n関連度: %d\n\n", a.Title, a.Link, a.Relevance)
	}

	text, err := s.gen.Complete(ctx, systemPrompt(dateLabel), b.String())
	if err != nil {
		return "", fmt.Errorf("summarize articles: %w", err)
	}

	if missing := missingLinks(text, ranked); missing > 0 {
		logger.Warn("generated summary lost article URLs, using manual format", "missing", missing)
		metrics.Global.IncrementIntegrityFallbacks()
		return FormatManually(ranked, dateLabel), nil
	}
	return text, nil
}

// missingLinks counts article links that do not appear verbatim in text.
func missingLinks(text string, ranked []news.RankedArticle) int {
	missing := 0
	for _, a := range ranked {
		if a.Link == "" || !strings.Contains(text, a.Link) {
			missing++
		}
	}
	return missing
}

// NoNewsMessage is the fixed template for a run with no relevant articles.
func NoNewsMessage(dateLabel string) string {
	return fmt.Sprintf("%s\n（%s）\n\n本日の草刈りロボット関連ニュースはありませんでした。\n明日もチェックします！", header, dateLabel)
}

// FormatManually renders the delivery message without any external call.
// Article titles follow the feed convention "headline - publisher"; the
// first segment becomes the headline, the last segment the source.
func FormatManually(ranked []news.RankedArticle, dateLabel string) string {
	blocks := make([]string, 0, len(ranked))
	for _, a := range ranked {
		headline, source := splitTitle(a.Title)

		var b strings.Builder
		b.WriteString("■ ")
		b.WriteString(headline)
		if source != "" {
			b.WriteString("\n（")
			b.WriteString(source)
			b.WriteString("）")
		}
		b.WriteString("\n🔗 ")
		b.WriteString(a.Link)
		blocks = append(blocks, b.String())
	}

	// Joining blocks keeps the separator between articles only; there is no
	// trailing rule to strip afterwards.
	return fmt.Sprintf("%s\n（%s）\n\n%s", header, dateLabel, strings.Join(blocks, "\n\n---\n\n"))
}

// splitTitle separates a feed title on " - ": the first segment is the
// headline, the last segment is the publisher name.
func splitTitle(title string) (headline, source string) {
	parts := strings.Split(title, " - ")
	if len(parts) < 2 {
		return strings.TrimSpace(title), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[len(parts)-1])
}
