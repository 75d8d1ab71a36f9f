// Package line pushes text messages through the LINE Messaging API.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"mowernews/internal/config"
	"mowernews/internal/logger"
)

const (
	// The push API rejects texts over 5000 characters.
	maxMessageChars = 5000
	truncateAt      = 4990
	truncationMark  = "\n..."
)

// Client sends push messages to one fixed destination.
type Client struct {
	endpoint   string
	token      string
	to         string
	httpClient *http.Client
}

// New builds a push client from configuration.
func New(cfg config.LINEConfig, timeout time.Duration) *Client {
	return &Client{
		endpoint:   cfg.Endpoint,
		token:      cfg.ChannelToken,
		to:         cfg.To,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Push sends one text message, truncating it to the platform limit first.
// Any non-200 status is an error carrying the status and response body; the
// caller decides whether that fails the run. No retry.
func (c *Client) Push(ctx context.Context, text string) error {
	if c.token == "" || c.to == "" {
		return fmt.Errorf("line client misconfigured")
	}

	text = Truncate(text)

	body, err := json.Marshal(pushRequest{
		To:       c.to,
		Messages: []textMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("line push failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	logger.Info("LINE push succeeded", "chars", utf8.RuneCountInString(text))
	return nil
}

// Truncate enforces the push message character limit: oversize texts become
// their first 4990 characters plus an ellipsis marker.
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= maxMessageChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:truncateAt]) + truncationMark
}
