// Package members is a client for the household member REST API.
package members

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-kiosk/internal/httpc"
)

const membersPath = "/api/members"

// Client talks to /api/members.
type Client struct {
	baseURL string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a member API client.
func NewClient(opts ...Option) *Client {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    hc,
		logger:  cfg.Logger.With("component", "members.client"),
	}
}

// GetMember fetches one member's full record.
func (c *Client) GetMember(ctx context.Context, id string) (*Member, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	var m Member
	path := membersPath + "/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMembers fetches every member, following pagination.
func (c *Client) GetMembers(ctx context.Context) ([]Member, error) {
	var all []Member

	for page := 1; page <= c.config.MaxPages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("size", strconv.Itoa(c.config.PageSize))

		var resp ListResponse
		if err := c.do(ctx, http.MethodGet, membersPath+"?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Content...)

		if !resp.SliceInfo.HasNext {
			return all, nil
		}
	}

	c.logger.Warn("member list truncated", "pages", c.config.MaxPages, "members", len(all))
	return all, nil
}

// CreateMember registers a member. The API answers 201 for a new member
// and 200 when the id already exists; both return the record.
func (c *Client) CreateMember(ctx context.Context, req LoginRequest) (*Member, error) {
	if req.MemberID == "" {
		return nil, ErrEmptyID
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	var m Member
	if err := c.do(ctx, http.MethodPost, membersPath, body, &m); err != nil {
		return nil, err
	}
	if m.ID == "" {
		m.ID = req.MemberID
	}
	return &m, nil
}

// do sends a request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	start := time.Now()

	resp, err := c.doWithRetry(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	c.logger.Debug("request complete",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return nil
}

// doWithRetry performs the request with linear backoff on 429, 5xx and
// transport errors.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = &RequestError{Path: path, Err: err}
			c.logger.Warn("request failed, retrying",
				"attempt", attempt+1,
				"path", path,
				"error", err,
			)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = c.parseError(resp, path)
			resp.Body.Close()
			c.logger.Warn("retrying request",
				"attempt", attempt+1,
				"path", path,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads an error body. The API returns {"message": ...} for
// handled errors and plain text otherwise.
func (c *Client) parseError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := strings.TrimSpace(string(body))
	var errResp struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		message = errResp.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Path:       path,
	}
}
