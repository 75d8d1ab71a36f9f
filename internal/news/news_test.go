package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	resolved map[string]string
}

func (s *stubResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	if real, ok := s.resolved[rawURL]; ok {
		return real, nil
	}
	return "", fmt.Errorf("decode failed for %s", rawURL)
}

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>検索結果</title>
<item>
  <title>草刈りロボット発売 - 農機新聞</title>
  <link>https://news.google.com/rss/articles/AAA?oc=5</link>
  <description>新型の草刈りロボットが発売されました。</description>
  <pubDate>Fri, 28 Aug 2026 09:00:00 GMT</pubDate>
</item>
<item>
  <title>自動草刈りの実証実験 - テック紙</title>
  <link>https://news.google.com/rss/articles/BBB?oc=5</link>
  <pubDate>Thu, 27 Aug 2026 09:00:00 GMT</pubDate>
</item>
<item>
  <title>除草ロボット特集</title>
  <link>https://news.google.com/rss/articles/CCC?oc=5</link>
</item>
</channel></rss>`

func newTestFetcher(t *testing.T, resolver LinkResolver) *Fetcher {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rss/search", r.URL.Path)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testFeed)
	}))
	t.Cleanup(server.Close)

	f := NewFetcher(resolver, "ja", "JP", 5*time.Second)
	f.baseURL = server.URL
	return f
}

func TestFetch_ResolvesLinksAndKeepsFeedOrder(t *testing.T) {
	resolver := &stubResolver{resolved: map[string]string{
		"https://news.google.com/rss/articles/AAA?oc=5": "https://example.com/real-a",
		"https://news.google.com/rss/articles/CCC?oc=5": "https://example.com/real-c",
	}}
	f := newTestFetcher(t, resolver)

	articles, err := f.Fetch(context.Background(), "草刈りロボット", 15)
	require.NoError(t, err)
	require.Len(t, articles, 3)

	assert.Equal(t, "https://example.com/real-a", articles[0].Link)
	// Resolution failed for the second entry: the raw feed URL survives.
	assert.Equal(t, "https://news.google.com/rss/articles/BBB?oc=5", articles[1].Link)
	assert.Equal(t, "https://example.com/real-c", articles[2].Link)

	assert.Equal(t, "草刈りロボット発売 - 農機新聞", articles[0].Title)
	assert.Equal(t, "新型の草刈りロボットが発売されました。", articles[0].Summary)
	assert.Empty(t, articles[2].Published)
}

func TestFetch_CapsAtMaxItems(t *testing.T) {
	f := newTestFetcher(t, nil)

	articles, err := f.Fetch(context.Background(), "草刈りロボット", 2)
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}

func TestFetch_NilResolverPassesLinksThrough(t *testing.T) {
	f := newTestFetcher(t, nil)

	articles, err := f.Fetch(context.Background(), "草刈りロボット", 15)
	require.NoError(t, err)
	assert.Equal(t, "https://news.google.com/rss/articles/AAA?oc=5", articles[0].Link)
}

func TestFetch_FeedFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := NewFetcher(nil, "ja", "JP", 5*time.Second)
	f.baseURL = server.URL

	_, err := f.Fetch(context.Background(), "草刈りロボット", 15)
	require.Error(t, err)
}

func TestSearchURL_EncodesQueryAndLocale(t *testing.T) {
	f := NewFetcher(nil, "ja", "JP", 0)

	got := f.searchURL("草刈りロボット OR 除草ロボット")
	assert.True(t, strings.HasPrefix(got, "https://news.google.com/rss/search?q="))
	assert.Contains(t, got, "hl=ja")
	assert.Contains(t, got, "gl=JP")
	assert.Contains(t, got, "ceid=JP:ja")
	assert.NotContains(t, got, " ", "query must be URL-encoded")
}

func TestTruncateRunes(t *testing.T) {
	long := strings.Repeat("あ", 400)
	assert.Equal(t, 300, len([]rune(truncateRunes(long, 300))))
	assert.Equal(t, "短い", truncateRunes("短い", 300))
}
