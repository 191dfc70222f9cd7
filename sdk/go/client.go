package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"learnxp/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the learnxp HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// CreateUser registers a fresh game state for the given user.
func (c *Client) CreateUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(userID))
	resp, err := c.do(ctx, http.MethodPost, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, nil)
}

// AwardXP grants the given amount of XP to a user and returns the outcome,
// including any level change and newly earned badges.
func (c *Client) AwardXP(ctx context.Context, userID string, amount int64, reason string) (AwardResult, error) {
	if strings.TrimSpace(userID) == "" {
		return AwardResult{}, ErrEmptyUserID
	}

	u, err := url.Parse(fmt.Sprintf("%s/users/%s/xp", c.baseURL, url.PathEscape(userID)))
	if err != nil {
		return AwardResult{}, err
	}
	q := u.Query()
	q.Set("amount", fmt.Sprintf("%d", amount))
	if reason != "" {
		q.Set("reason", reason)
	}
	u.RawQuery = q.Encode()

	resp, err := c.do(ctx, http.MethodPost, u.String())
	if err != nil {
		return AwardResult{}, err
	}
	defer resp.Body.Close()

	var res AwardResult
	if err := decodeJSON(resp, &res); err != nil {
		return AwardResult{}, err
	}
	return res, nil
}

// AwardBadge assigns a catalog badge to a user. Awarding a badge the user
// already holds succeeds without effect.
func (c *Client) AwardBadge(ctx context.Context, userID string, badge string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s/badges/%s", c.baseURL, url.PathEscape(userID), url.PathEscape(badge))
	resp, err := c.do(ctx, http.MethodPost, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		OK bool `json:"ok"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return err
	}
	if !body.OK {
		return errors.New("badge not awarded")
	}
	return nil
}

// RemoveBadge revokes a badge from a user. Removing an absent badge succeeds.
func (c *Client) RemoveBadge(ctx context.Context, userID string, badge string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s/badges/%s", c.baseURL, url.PathEscape(userID), url.PathEscape(badge))
	resp, err := c.do(ctx, http.MethodDelete, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, nil)
}

// Stats fetches the current XP, level, badges and achievement tier for a user.
func (c *Client) Stats(ctx context.Context, userID string) (UserStats, error) {
	if strings.TrimSpace(userID) == "" {
		return UserStats{}, ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s/stats", c.baseURL, url.PathEscape(userID))
	resp, err := c.do(ctx, http.MethodGet, u)
	if err != nil {
		return UserStats{}, err
	}
	defer resp.Body.Close()

	var st UserStats
	if err := decodeJSON(resp, &st); err != nil {
		return UserStats{}, err
	}
	return st, nil
}

// Level looks up threshold and milestone details for a level.
func (c *Client) Level(ctx context.Context, level int64) (LevelInfo, error) {
	u := fmt.Sprintf("%s/levels/%d", c.baseURL, level)
	resp, err := c.do(ctx, http.MethodGet, u)
	if err != nil {
		return LevelInfo{}, err
	}
	defer resp.Body.Close()

	var li LevelInfo
	if err := decodeJSON(resp, &li); err != nil {
		return LevelInfo{}, err
	}
	return li, nil
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/healthz")
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := decodeJSON(resp, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				var evt core.Event
				if err := conn.ReadJSON(&evt); err != nil {
					return
				}
				select {
				case out <- evt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	return c.httpClient.Do(req)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
