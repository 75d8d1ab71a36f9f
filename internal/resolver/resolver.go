// Package resolver decodes Google News redirect-wrapper URLs into the
// canonical article URLs they point at.
//
// The wrapper URLs returned by the search feed (news.google.com/rss/articles/
// <token>) do not redirect anywhere useful on their own. Decoding takes two
// round trips: the article page carries a signature and timestamp in data
// attributes, and the batchexecute endpoint exchanges those plus the token
// for the real URL.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultBaseURL = "https://news.google.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	batchRPCID     = "Fbv4je"
)

// GoogleNews resolves wrapper URLs against the Google News decoding
// endpoints. One attempt per URL, no retries.
type GoogleNews struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a resolver with the given per-request timeout.
func New(timeout time.Duration) *GoogleNews {
	return &GoogleNews{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewWithBaseURL is used by tests to point the resolver at a stub server.
func NewWithBaseURL(baseURL string, client *http.Client) *GoogleNews {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleNews{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

// Resolve decodes rawURL into the canonical article URL. Callers must treat
// any error as non-fatal and keep rawURL.
func (g *GoogleNews) Resolve(ctx context.Context, rawURL string) (string, error) {
	token, err := articleToken(rawURL)
	if err != nil {
		return "", err
	}

	sig, ts, err := g.decodingParams(ctx, token)
	if err != nil {
		return "", err
	}

	return g.decodeArticleURL(ctx, token, sig, ts)
}

// articleToken extracts the opaque token from a /articles/ or /rss/articles/
// wrapper path.
func articleToken(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse wrapper URL: %w", err)
	}

	path := u.Path
	idx := strings.Index(path, "/articles/")
	if idx < 0 {
		return "", fmt.Errorf("not a Google News article URL: %s", rawURL)
	}

	token := path[idx+len("/articles/"):]
	token = strings.Trim(token, "/")
	if token == "" {
		return "", fmt.Errorf("empty article token in URL: %s", rawURL)
	}
	return token, nil
}

// decodingParams scrapes the signature and timestamp the batchexecute call
// requires from the article page's data attributes.
func (g *GoogleNews) decodingParams(ctx context.Context, token string) (signature, timestamp string, err error) {
	pageURL := g.baseURL + "/articles/" + token

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch article page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("article page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("parse article page: %w", err)
	}

	sel := doc.Find("c-wiz > div[jscontroller]").First()
	signature, sigOK := sel.Attr("data-n-a-sg")
	timestamp, tsOK := sel.Attr("data-n-a-ts")
	if !sigOK || !tsOK || signature == "" || timestamp == "" {
		return "", "", fmt.Errorf("article page missing decoding attributes")
	}
	return signature, timestamp, nil
}

// decodeArticleURL exchanges token+signature+timestamp for the real URL via
// the batchexecute RPC endpoint.
func (g *GoogleNews) decodeArticleURL(ctx context.Context, token, signature, timestamp string) (string, error) {
	inner := fmt.Sprintf(
		`["garturlreq",[["X","X",["X","X"],null,null,1,1,"US:en",null,1,null,null,null,null,null,0,1],"X","X",1,[1,1,1],1,1,null,0,0,null,0],%q,%s,%q]`,
		token, timestamp, signature)

	fReq, err := json.Marshal([][]any{{[]any{batchRPCID, inner}}})
	if err != nil {
		return "", fmt.Errorf("marshal batchexecute payload: %w", err)
	}

	form := url.Values{"f.req": {string(fReq)}}
	endpoint := g.baseURL + "/_/DotsSplashUi/data/batchexecute"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("batchexecute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("batchexecute returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read batchexecute response: %w", err)
	}

	decoded, err := parseBatchResponse(body)
	if err != nil {
		return "", err
	}
	return decoded, nil
}

// parseBatchResponse digs the decoded URL out of the batchexecute envelope:
// an anti-XSSI prefix, a blank-line separated chunk, then a JSON array whose
// first element carries a JSON-encoded string at index 2, itself an array
// with the URL at index 1.
func parseBatchResponse(body []byte) (string, error) {
	text := strings.TrimPrefix(string(body), ")]}'")
	chunks := strings.Split(strings.TrimSpace(text), "\n\n")
	payload := chunks[0]

	var outer []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &outer); err != nil {
		return "", fmt.Errorf("parse batchexecute envelope: %w", err)
	}
	if len(outer) == 0 {
		return "", fmt.Errorf("empty batchexecute envelope")
	}

	var first []json.RawMessage
	if err := json.Unmarshal(outer[0], &first); err != nil {
		return "", fmt.Errorf("parse batchexecute entry: %w", err)
	}
	if len(first) < 3 {
		return "", fmt.Errorf("batchexecute entry too short")
	}

	var nested string
	if err := json.Unmarshal(first[2], &nested); err != nil {
		return "", fmt.Errorf("parse nested payload: %w", err)
	}

	var inner []any
	if err := json.Unmarshal([]byte(nested), &inner); err != nil {
		return "", fmt.Errorf("parse decoded payload: %w", err)
	}
	if len(inner) < 2 {
		return "", fmt.Errorf("decoded payload too short")
	}

	decoded, ok := inner[1].(string)
	if !ok || decoded == "" {
		return "", fmt.Errorf("decoded payload has no URL")
	}
	return decoded, nil
}
