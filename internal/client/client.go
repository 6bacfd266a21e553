// Package client talks to the portal API on behalf of a user, keeping the token and
// session between runs in a token.Store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"access-portal/internal/api/models"
	"access-portal/pkg/token"
)

// DefaultSessionCookie matches the server's default session cookie name.
const DefaultSessionCookie = "portal_session"

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// TokenExpired reports whether the server asked for a new login.
func (e *APIError) TokenExpired() bool {
	return e.Message == models.MsgTokenExpired
}

// Client is an HTTP client for the portal API.
type Client struct {
	baseURL        string
	http           *http.Client
	keeper         *token.Keeper
	sessionCookie  string
	onTokenExpired func(expired bool)
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithSessionCookie(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.sessionCookie = name
		}
	}
}

// OnTokenExpired registers fn to be told when the token expires (true) and when a new
// login succeeds (false).
func OnTokenExpired(fn func(expired bool)) Option {
	return func(c *Client) { c.onTokenExpired = fn }
}

// New creates a client for the API at baseURL.
func New(baseURL string, keeper *token.Keeper, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: 30 * time.Second},
		keeper:        keeper,
		sessionCookie: DefaultSessionCookie,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login starts a session and stores the returned token and session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.SessionResponse, error) {
	var resp models.SessionResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", req, &resp); err != nil {
		return nil, err
	}

	if err := c.keeper.Persist(resp.Token); err != nil {
		return nil, err
	}
	if err := c.keeper.Store().Set(token.SessionSlot, resp.Session); err != nil {
		return nil, err
	}
	c.notify(false)
	return &resp, nil
}

// Logout ends the server-side session and clears local storage. Local storage is
// cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, "/api/v1/sessions", nil, nil)
	if clearErr := c.keeper.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// Capabilities returns the capabilities of the stored session, or the guest ones.
func (c *Client) Capabilities(ctx context.Context) (*models.CapabilitiesResponse, error) {
	var resp models.CapabilitiesResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/capabilities", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Token returns the server's view of the stored token.
func (c *Client) Token(ctx context.Context) (*models.TokenResponse, error) {
	var resp models.TokenResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/token", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the profile of the logged-in person.
func (c *Client) Me(ctx context.Context) (*models.PersonResponse, error) {
	var resp models.PersonResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/people/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return pkgerrors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	auth, err := c.keeper.AuthorizationHeaderValue()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", auth)

	session, ok, err := c.keeper.Store().Get(token.SessionSlot)
	if err != nil {
		return err
	}
	if ok && session != "" {
		req.AddCookie(&http.Cookie{Name: c.sessionCookie, Value: session})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var msg models.MessageResponse
		if err := json.NewDecoder(resp.Body).Decode(&msg); err == nil {
			apiErr.Message = msg.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if apiErr.TokenExpired() {
			c.notify(true)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return pkgerrors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

func (c *Client) notify(expired bool) {
	if c.onTokenExpired != nil {
		c.onTokenExpired(expired)
	}
}
