package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// TokenSource yields the bearer token to attach to outgoing calls.
// An empty token means the call goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource holding a fixed token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Options configures a Client.
type Options struct {
	BaseURL       string
	Tokens        TokenSource
	HTTPClient    *http.Client
	HealthTimeout time.Duration
	Logger        *zap.SugaredLogger
}

// Client talks to the document-store REST API. Every response is wrapped
// in a {success, data, error} envelope which Call unwraps.
type Client struct {
	baseURL       string
	tokens        TokenSource
	http          *http.Client
	healthTimeout time.Duration
	log           *zap.SugaredLogger
}

// New creates a Client. A nil HTTPClient falls back to one with a 30s timeout.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	timeout := opts.HealthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		tokens:        opts.Tokens,
		http:          hc,
		healthTimeout: timeout,
		log:           log,
	}
}

// BaseURL returns the API root the client was configured with.
func (c *Client) BaseURL() string { return c.baseURL }

// SetTokenSource swaps the token provider, e.g. after login.
func (c *Client) SetTokenSource(ts TokenSource) { c.tokens = ts }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Call performs a request against endpoint and decodes envelope.data into
// out (which may be nil). It never retries.
func (c *Client) Call(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	raw, err := c.send(ctx, method, endpoint, query, body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if !env.Success {
		return &APIError{Message: env.Error}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Download streams a raw (non-enveloped) response body into w.
func (c *Client) Download(ctx context.Context, endpoint string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &NetworkError{Status: resp.StatusCode, Message: serverMessage(data)}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("copy download: %w", err)
	}
	return n, nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, query url.Values, body any) ([]byte, error) {
	req, err := c.newRequest(ctx, method, endpoint, query, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnw("[API] transport failure", "method", method, "endpoint", endpoint, "error", err)
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	c.log.Debugw("[API] call", "method", method, "endpoint", endpoint,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{Status: resp.StatusCode, Message: serverMessage(data)}
	}
	return data, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

// serverMessage pulls a human-readable message out of an error body,
// whether it is an envelope, a {message} object or plain text.
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error", "message", "error.message"} {
			if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
		return ""
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
