package token

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"amp-session/internal/common/errors"
	"amp-session/internal/credentials"
	"amp-session/internal/retry"
)

const (
	obtainPath  = "/user/obtain_token"
	refreshPath = "/user/refresh_token"
)

// Authenticator performs the two network operations the Manager needs
type Authenticator interface {
	// Obtain exchanges credentials for a new secret
	Obtain(ctx context.Context, creds credentials.Credentials) (string, error)
	// Refresh exchanges a still-valid secret for a new one
	Refresh(ctx context.Context, current string) (string, error)
}

type tokenResponse struct {
	Token string `json:"token"`
}

// HTTPAuthenticator talks to the AMP user endpoints through a retry.Executor
type HTTPAuthenticator struct {
	baseURL  string
	executor *retry.Executor
	config   retry.Config
}

// NewHTTPAuthenticator validates baseURL and cfg up front
func NewHTTPAuthenticator(baseURL string, executor *retry.Executor, cfg retry.Config) (*HTTPAuthenticator, error) {
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

	return &HTTPAuthenticator{
		baseURL:  strings.TrimRight(baseURL, "/"),
		executor: executor,
		config:   cfg,
	}, nil
}

// Obtain posts the credentials to the obtain endpoint
func (a *HTTPAuthenticator) Obtain(ctx context.Context, creds credentials.Credentials) (string, error) {
	build, err := retry.NewJSONRequest(http.MethodPost, a.baseURL+obtainPath, map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	}, nil)
	if err != nil {
		return "", err
	}
	return a.exchange(ctx, build)
}

// Refresh presents current to the refresh endpoint
func (a *HTTPAuthenticator) Refresh(ctx context.Context, current string) (string, error) {
	header := http.Header{}
	header.Set("Authorization", "token "+current)

	build, err := retry.NewJSONRequest(http.MethodPost, a.baseURL+refreshPath, nil, header)
	if err != nil {
		return "", err
	}
	return a.exchange(ctx, build)
}

func (a *HTTPAuthenticator) exchange(ctx context.Context, build retry.RequestBuilder) (string, error) {
	resp, err := a.executor.Execute(ctx, build, a.config)
	if err != nil {
		return "", err
	}

	var body tokenResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return "", errors.ObtainFailedError(resp.Attempts, fmt.Sprintf("Invalid token response: %v", err))
	}
	if body.Token == "" {
		return "", errors.ObtainFailedError(resp.Attempts, "Invalid token response: missing token")
	}
	return body.Token, nil
}
