// Package gateway implements the platform transport: the websocket event
// stream and the REST client for outbound calls.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"highlight_bot/internal/dispatch"
	"highlight_bot/internal/model"
)

const responseLimit = 1 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs outbound REST calls against the platform API.
type Client struct {
	http    HTTPClient
	baseURL string
	token   string
}

// NewClient creates a Client for the given API base URL and bot token.
func NewClient(httpClient HTTPClient, baseURL, token string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   token,
	}
}

// SendDirectMessage delivers a private message to the given user.
func (c *Client) SendDirectMessage(ctx context.Context, userID int64, content string) error {
	url := fmt.Sprintf("%s/users/%d/messages", c.baseURL, userID)
	return c.post(ctx, url, map[string]string{"content": content})
}

// SendChannelMessage posts a message into a channel.
func (c *Client) SendChannelMessage(ctx context.Context, channelID int64, content string) error {
	url := fmt.Sprintf("%s/channels/%d/messages", c.baseURL, channelID)
	return c.post(ctx, url, map[string]string{"content": content})
}

// FetchContext returns the messages surrounding one message in a channel.
func (c *Client) FetchContext(ctx context.Context, channelID, messageID int64, before, after int) ([]model.Message, error) {
	url := fmt.Sprintf("%s/channels/%d/messages/%d/context?before=%d&after=%d",
		c.baseURL, channelID, messageID, before, after)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode context response: %w", err)
	}

	msgs := make([]model.Message, len(wire.Messages))
	for i, w := range wire.Messages {
		msgs[i] = w.toModel()
	}
	return msgs, nil
}

// CanUserViewChannel asks the platform whether the user can see a channel.
func (c *Client) CanUserViewChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	url := fmt.Sprintf("%s/channels/%d/viewers/%d", c.baseURL, channelID, userID)

	body, err := c.get(ctx, url)
	if err != nil {
		return false, err
	}

	var wire struct {
		Visible bool `json:"visible"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return false, fmt.Errorf("decode visibility response: %w", err)
	}
	return wire.Visible, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseLimit))

	return classifyStatus(resp.StatusCode)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseLimit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "HighlightBot/1.0")
}

// classifyStatus maps platform responses onto the dispatch error taxonomy:
// 401/403/404 are permanent per-target failures, 429 is a rate limit, and
// anything else non-2xx is transient.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		return fmt.Errorf("status %d: %w", status, dispatch.ErrUnreachable)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("status %d: %w", status, dispatch.ErrRateLimited)
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}

// wireMessage is the JSON shape of a message on the gateway and REST API.
type wireMessage struct {
	ID          int64     `json:"id"`
	GuildID     int64     `json:"guild_id"`
	ChannelID   int64     `json:"channel_id"`
	AuthorID    int64     `json:"author_id"`
	AuthorRoles []int64   `json:"author_roles,omitempty"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

func (w wireMessage) toModel() model.Message {
	return model.Message{
		ID:          w.ID,
		GuildID:     w.GuildID,
		ChannelID:   w.ChannelID,
		AuthorID:    w.AuthorID,
		AuthorRoles: w.AuthorRoles,
		Content:     w.Content,
		Timestamp:   w.Timestamp,
	}
}
