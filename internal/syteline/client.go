// Package syteline talks to the SyteLine IDO request service.
package syteline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrUnauthorized is returned when the service rejects the credentials or the
// session token.
var ErrUnauthorized = errors.New("syteline: unauthorized")

// Config holds the connection settings for one tenant.
type Config struct {
	BaseURL  string
	Tenant   string
	Username string
	Password string
	Timeout  time.Duration
}

// Client issues token and load requests. A Client is safe for concurrent
// use once authenticated.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient validates cfg and constructs a client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("syteline: base URL required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("syteline: invalid base URL: %w", err)
	}
	if cfg.Tenant == "" || cfg.Username == "" {
		return nil, errors.New("syteline: tenant and username required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type tokenResponse struct {
	Token   string `json:"Token"`
	Message string `json:"Message"`
}

// Authenticate exchanges the configured credentials for a session token.
func (c *Client) Authenticate(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/token/%s/%s/%s", c.cfg.BaseURL,
		url.PathEscape(c.cfg.Tenant), url.PathEscape(c.cfg.Username), url.PathEscape(c.cfg.Password))
	var body tokenResponse
	if err := c.get(ctx, endpoint, "", &body); err != nil {
		return fmt.Errorf("syteline: token: %w", err)
	}
	if strings.TrimSpace(body.Token) == "" {
		if body.Message != "" {
			return fmt.Errorf("syteline: token: %w: %s", ErrUnauthorized, body.Message)
		}
		return fmt.Errorf("syteline: token: %w: empty token", ErrUnauthorized)
	}
	c.mu.Lock()
	c.token = body.Token
	c.mu.Unlock()
	return nil
}

// Query describes one load request against an IDO.
type Query struct {
	IDO        string
	Properties []string
	Filter     string
	RecordCap  int
}

// Record is one row returned by a load request.
type Record map[string]Value

// String returns the named property as a string.
func (r Record) String(name string) string {
	return r[name].String()
}

// Float returns the named property as a number.
func (r Record) Float(name string) float64 {
	return r[name].Float()
}

// Value is a property value that may arrive as a JSON string, number or null.
type Value struct {
	raw string
	set bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{raw: s, set: true}
		return nil
	}
	*v = Value{raw: string(data), set: true}
	return nil
}

// String returns the raw text, empty for null.
func (v Value) String() string {
	return v.raw
}

// Float parses the value; blanks, nulls and garbage read as zero.
func (v Value) Float() float64 {
	if !v.set {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
	if err != nil {
		return 0
	}
	return f
}

type loadResponse struct {
	Items   []Record `json:"Items"`
	Message string   `json:"Message"`
	Success *bool    `json:"Success"`
}

// Load fetches up to q.RecordCap rows. Authenticate must succeed first.
func (c *Client) Load(ctx context.Context, q Query) ([]Record, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token == "" {
		return nil, fmt.Errorf("syteline: load %s: %w: not authenticated", q.IDO, ErrUnauthorized)
	}

	params := url.Values{}
	params.Set("properties", strings.Join(q.Properties, ","))
	if q.RecordCap > 0 {
		params.Set("recordCap", strconv.Itoa(q.RecordCap))
	}
	if q.Filter != "" {
		params.Set("filter", q.Filter)
	}
	endpoint := fmt.Sprintf("%s/load/%s?%s", c.cfg.BaseURL, url.PathEscape(q.IDO), params.Encode())

	var body loadResponse
	if err := c.get(ctx, endpoint, token, &body); err != nil {
		return nil, fmt.Errorf("syteline: load %s: %w", q.IDO, err)
	}
	if body.Success != nil && !*body.Success {
		return nil, fmt.Errorf("syteline: load %s: %s", q.IDO, body.Message)
	}
	if body.Items == nil {
		return []Record{}, nil
	}
	return body.Items, nil
}

func (c *Client) get(ctx context.Context, endpoint, token string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
