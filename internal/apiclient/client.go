// Package apiclient is the REST client for the memory gallery API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"momentify/internal/credentials"
	"momentify/internal/models"
)

const (
	refreshPath     = "/admin/auth/refresh"
	sessionHeader   = "X-Session-Id"
	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 4096
)

var (
	// ErrNotFound matches API responses with status 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized matches API responses with status 401 or 403.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired is returned when a token refresh failed and the
	// stored credentials were cleared.
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// APIError is a non-2xx API response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// Is lets callers match status classes with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials credentials.Store
	Session     *credentials.Session
	Logger      *slog.Logger
	// OnSessionExpired runs once per failed refresh, after the credentials
	// have been cleared.
	OnSessionExpired func()
	// HTTPClient overrides the client used for API calls.
	HTTPClient *http.Client
	// TransferClient overrides the client used for signed URL transfers.
	TransferClient *http.Client
}

// Client calls the gallery REST API.
type Client struct {
	baseURL   string
	http      *http.Client
	transfer  *http.Client
	creds     credentials.Store
	session   *credentials.Session
	log       *slog.Logger
	onExpired func()

	refreshMu sync.Mutex
}

// New constructs a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		http:      opts.HTTPClient,
		transfer:  opts.TransferClient,
		creds:     opts.Credentials,
		session:   opts.Session,
		log:       opts.Logger,
		onExpired: opts.OnSessionExpired,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: timeout}
	}
	if c.transfer == nil {
		// Transfers can be large; they are bounded by the caller's context.
		c.transfer = &http.Client{}
	}
	if c.creds == nil {
		c.creds = credentials.NewMemoryStore()
	}
	if c.session == nil {
		c.session = &credentials.Session{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// SessionID is the identifier sent with every request.
func (c *Client) SessionID() string {
	return c.session.ID()
}

type request struct {
	method      string
	path        string
	query       url.Values
	contentType string
	body        []byte
}

func jsonRequest(method, path string, payload interface{}) (request, error) {
	req := request{method: method, path: path}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return req, fmt.Errorf("marshal request: %w", err)
		}
		req.body = data
		req.contentType = "application/json"
	}
	return req, nil
}

// doJSON sends req and decodes a JSON response into out (which may be nil).
func (c *Client) doJSON(ctx context.Context, req request, out interface{}) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return nil
}

// do sends req with the stored access token. A 401 triggers one refresh and
// one retry. The returned response always has a 2xx status.
func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	tokens, _ := c.creds.Load()
	resp, err := c.send(ctx, req, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && req.path != refreshPath && tokens.RefreshToken != "" {
		drain(resp)
		access, err := c.refresh(ctx, tokens)
		if err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, req, access)
		if err != nil {
			return nil, err
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req request, accessToken string) (*http.Response, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(sessionHeader, c.session.ID())
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	return resp, nil
}

// refresh exchanges the refresh token for a new pair. Concurrent callers that
// lost the race reuse the pair stored by the winner.
func (c *Client) refresh(ctx context.Context, stale models.AuthTokens) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current, err := c.creds.Load()
	switch {
	case errors.Is(err, credentials.ErrNoCredentials):
		// A concurrent refresh already failed and cleared the session.
		return "", ErrSessionExpired
	case err == nil && current.AccessToken != stale.AccessToken:
		return current.AccessToken, nil
	}

	resp, err := c.send(ctx, request{method: http.MethodPost, path: refreshPath, contentType: "application/json", body: []byte("{}")}, stale.RefreshToken)
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		defer resp.Body.Close()
		var tokens models.AuthTokens
		if decodeErr := json.NewDecoder(resp.Body).Decode(&tokens); decodeErr == nil && tokens.AccessToken != "" {
			if saveErr := c.creds.Save(tokens); saveErr != nil {
				c.log.Warn("persist refreshed tokens", "err", saveErr)
			}
			return tokens.AccessToken, nil
		}
	} else if err == nil {
		drain(resp)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	c.log.Warn("token refresh failed, clearing session", "err", err)
	if clearErr := c.creds.Clear(); clearErr != nil {
		c.log.Warn("clear credentials", "err", clearErr)
	}
	if c.onExpired != nil {
		c.onExpired()
	}
	return "", ErrSessionExpired
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyLen))
	resp.Body.Close()
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return q
}
