// Package backend is a small PostgREST and GoTrue client for the hosted
// Chronoquest database.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// UserAgent is sent with every request.
const UserAgent = "chronoquest-client/1.0"

// Tracer receives raw request and response bodies. *chronoquest.DebugLogger
// implements it.
type Tracer interface {
	LogRequest(method, url string, body []byte)
	LogResponse(statusCode int, status string, body []byte)
}

// Client talks to the REST and auth endpoints. It is safe for concurrent use.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	tracer     Tracer

	mu          sync.RWMutex
	accessToken string
}

// New creates a client for the project at baseURL.
func New(baseURL, anonKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient sets a custom http.Client (for testing or custom timeouts).
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

// WithTracer attaches a request tracer.
func (c *Client) WithTracer(t Tracer) *Client {
	c.tracer = t
	return c
}

// SetAccessToken sets the user JWT sent as the bearer token. An empty
// token falls back to the anonymous key.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// AccessToken returns the current user JWT.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *Client) setHeaders(req *http.Request) {
	token := c.AccessToken()
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
}

// Select reads rows of table into out, which must point to a slice.
func (c *Client) Select(ctx context.Context, table string, q *Query, out any) error {
	return c.do(ctx, "select "+table, http.MethodGet, "/rest/v1/"+table, q.values(), nil, "", out)
}

// Insert inserts one row or a slice of rows. When out is non-nil the
// inserted rows are returned into it.
func (c *Client) Insert(ctx context.Context, table string, rows any, out any) error {
	prefer := "return=minimal"
	if out != nil {
		prefer = "return=representation"
	}
	return c.do(ctx, "insert "+table, http.MethodPost, "/rest/v1/"+table, nil, rows, prefer, out)
}

// Upsert inserts rows, merging on the onConflict columns.
func (c *Client) Upsert(ctx context.Context, table string, rows any, onConflict string) error {
	v := url.Values{}
	if onConflict != "" {
		v.Set("on_conflict", onConflict)
	}
	return c.do(ctx, "upsert "+table, http.MethodPost, "/rest/v1/"+table, v, rows,
		"resolution=merge-duplicates,return=minimal", nil)
}

// Update patches every row matching q. When out is non-nil the updated
// rows are returned into it, which lets callers detect a zero-row match.
func (c *Client) Update(ctx context.Context, table string, q *Query, patch any, out any) error {
	prefer := "return=minimal"
	if out != nil {
		prefer = "return=representation"
	}
	return c.do(ctx, "update "+table, http.MethodPatch, "/rest/v1/"+table, q.values(), patch, prefer, out)
}

// Delete removes every row matching q.
func (c *Client) Delete(ctx context.Context, table string, q *Query) error {
	return c.do(ctx, "delete "+table, http.MethodDelete, "/rest/v1/"+table, q.values(), nil, "return=minimal", nil)
}

// RPC calls a database function with named arguments.
func (c *Client) RPC(ctx context.Context, fn string, args any, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	return c.do(ctx, "rpc "+fn, http.MethodPost, "/rest/v1/rpc/"+fn, nil, args, "", out)
}

// AuthSession is the result of a password sign-in.
type AuthSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignIn exchanges an email and password for a session. The returned
// token is not installed; call SetAccessToken.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	v := url.Values{}
	v.Set("grant_type", "password")
	body := map[string]string{"email": email, "password": password}

	var session AuthSession
	if err := c.do(ctx, "sign_in", http.MethodPost, "/auth/v1/token", v, body, "", &session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, &Error{Op: "sign_in", StatusCode: http.StatusOK, Message: "response carried no access token"}
	}
	return &session, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in any, prefer string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	c.setHeaders(req)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if c.tracer != nil {
		c.tracer.LogRequest(method, u, payload)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Transport: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Transport: true, Err: fmt.Errorf("read response: %w", err)}
	}
	if c.tracer != nil {
		c.tracer.LogResponse(resp.StatusCode, resp.Status, body)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newHTTPError(op, resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}
