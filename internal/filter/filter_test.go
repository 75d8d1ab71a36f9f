package filter

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mowernews/internal/news"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (s *stubGenerator) Complete(ctx context.Context, system, user string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func sampleArticles(n int) []news.Article {
	articles := make([]news.Article, 0, n)
	for i := 0; i < n; i++ {
		articles = append(articles, news.Article{
			Title: fmt.Sprintf("記事%d - メディア%d", i, i),
			Link:  fmt.Sprintf("https://example.com/articles/%d", i),
		})
	}
	return articles
}

func TestSelect_ReattachesOriginalLinks(t *testing.T) {
	articles := sampleArticles(2)
	gen := &stubGenerator{
		// The generator blanks one link and mangles the other.
		reply: fmt.Sprintf(`[{"title":%q,"link":"","relevance":5},{"title":%q,"link":"https://evil.example/other","relevance":3}]`,
			articles[0].Title, articles[1].Title),
	}

	ranked, err := New(gen).Select(context.Background(), articles)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, articles[0].Link, ranked[0].Link)
	assert.Equal(t, articles[1].Link, ranked[1].Link)
	assert.Equal(t, 5, ranked[0].Relevance)
}

func TestSelect_ParseFailureFallsBackToFeedOrder(t *testing.T) {
	articles := sampleArticles(7)
	gen := &stubGenerator{reply: "申し訳ありませんが、関連する記事を特定できませんでした。"}

	ranked, err := New(gen).Select(context.Background(), articles)
	require.NoError(t, err)
	require.Len(t, ranked, MaxSelected)
	for i, r := range ranked {
		assert.Equal(t, articles[i].Title, r.Title)
		assert.Equal(t, articles[i].Link, r.Link)
		assert.Zero(t, r.Relevance)
	}
}

func TestSelect_TruncatesToFive(t *testing.T) {
	articles := sampleArticles(8)
	reply := "["
	for i := 0; i < 8; i++ {
		if i > 0 {
			reply += ","
		}
		reply += fmt.Sprintf(`{"title":%q,"link":%q,"relevance":%d}`, articles[i].Title, articles[i].Link, 5-i%5)
	}
	reply += "]"
	gen := &stubGenerator{reply: reply}

	ranked, err := New(gen).Select(context.Background(), articles)
	require.NoError(t, err)
	assert.Len(t, ranked, MaxSelected)
}

func TestSelect_ToleratesCodeFenceAndProse(t *testing.T) {
	articles := sampleArticles(1)
	gen := &stubGenerator{
		reply: "評価結果は以下の通りです。\n```json\n[{\"title\":\"" + articles[0].Title + "\",\"link\":\"x\",\"relevance\":4}]\n```\n以上です。",
	}

	ranked, err := New(gen).Select(context.Background(), articles)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, articles[0].Link, ranked[0].Link)
}

func TestSelect_EmptyInputSkipsGenerator(t *testing.T) {
	gen := &stubGenerator{}

	ranked, err := New(gen).Select(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ranked)
	assert.Zero(t, gen.calls)
}

func TestSelect_GeneratorErrorPropagates(t *testing.T) {
	gen := &stubGenerator{err: fmt.Errorf("upstream timeout")}

	_, err := New(gen).Select(context.Background(), sampleArticles(1))
	require.Error(t, err)
	assert.ErrorContains(t, err, "upstream timeout")
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare array", `[1,2,3]`, `[1,2,3]`, true},
		{"surrounded by prose", `here you go: [{"a":1}] done`, `[{"a":1}]`, true},
		{"nested arrays", `[[1],[2]] trailing`, `[[1],[2]]`, true},
		{"bracket inside string", `[{"t":"a ] b"}]`, `[{"t":"a ] b"}]`, true},
		{"escaped quote inside string", `[{"t":"a \" ] b"}]`, `[{"t":"a \" ] b"}]`, true},
		{"no array", `nothing here`, ``, false},
		{"unterminated", `[1,2`, ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONArray(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReattachLinks_LastWriteWinsOnDuplicateTitles(t *testing.T) {
	articles := []news.Article{
		{Title: "同じタイトル", Link: "https://example.com/first"},
		{Title: "同じタイトル", Link: "https://example.com/second"},
	}
	ranked := []news.RankedArticle{{Title: "同じタイトル", Link: "bogus"}}

	reattachLinks(ranked, articles)
	assert.Equal(t, "https://example.com/second", ranked[0].Link)
}

func TestReattachLinks_UnknownTitleKeepsReplyLink(t *testing.T) {
	ranked := []news.RankedArticle{{Title: "未知", Link: "https://example.com/from-reply"}}

	reattachLinks(ranked, sampleArticles(2))
	assert.Equal(t, "https://example.com/from-reply", ranked[0].Link)
}
