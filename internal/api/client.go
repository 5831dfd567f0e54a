// Package api sends authenticated requests to business endpoints of the AMP API
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"amp-session/internal/common/errors"
	"amp-session/internal/common/logging"
	"amp-session/internal/retry"
)

// TokenSource is the part of token.Manager the client needs
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// Client attaches "Authorization: token <secret>" to every request. A 401 answer forces a
// token refresh and the request is repeated exactly once with the new token.
type Client struct {
	baseURL  string
	tokens   TokenSource
	executor *retry.Executor
	config   retry.Config
	logger   logging.Logger
}

// NewClient creates a client for endpoints below baseURL
func NewClient(baseURL string, tokens TokenSource, executor *retry.Executor, cfg retry.Config, logger logging.Logger) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.ConfigError(fmt.Sprintf("invalid API base URL %q", baseURL))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if executor == nil {
		executor = retry.NewExecutor()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokens:   tokens,
		executor: executor,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Do sends a request with an optional JSON body to path
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*retry.Response, error) {
	secret, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, path, body, secret)
	if errors.StatusCode(err) != http.StatusUnauthorized {
		return resp, err
	}

	c.logger.Warn("Token rejected by API, forcing refresh",
		logging.String("method", method),
		logging.String("path", path),
		logging.Secret("token", secret),
	)

	secret, err = c.tokens.ForceRefresh(ctx)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, body, secret)
}

// GetJSON decodes the response of a GET into out
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(out)
}

// PostJSON sends in and decodes the response into out when out is not nil
func (c *Client) PostJSON(ctx context.Context, path string, in, out interface{}) error {
	resp, err := c.Do(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.DecodeJSON(out)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}, secret string) (*retry.Response, error) {
	header := http.Header{}
	header.Set("Authorization", "token "+secret)

	build, err := retry.NewJSONRequest(method, c.baseURL+"/"+strings.TrimLeft(path, "/"), body, header)
	if err != nil {
		return nil, err
	}
	return c.executor.Execute(ctx, build, c.config)
}
