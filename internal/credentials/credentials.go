// Package credentials resolves the username and password used to obtain tokens
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"amp-session/internal/common/errors"
	"amp-session/internal/common/logging"
)

const (
	// UsernameEnv names the environment variable holding the API username
	UsernameEnv = "AMP_USERNAME"
	// PasswordEnv names the environment variable holding the API password
	PasswordEnv = "AMP_PASSWORD"
)

// Credentials are the username and password sent to the obtain endpoint
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate reports the first missing credential
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return errors.MissingCredentialError(UsernameEnv)
	}
	if c.Password == "" {
		return errors.MissingCredentialError(PasswordEnv)
	}
	return nil
}

// String never includes the password
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: %q}", c.Username, logging.Mask(c.Password))
}

// Source supplies credentials on demand. Resolve is called for every obtain so rotated
// values are picked up without a restart.
type Source interface {
	Resolve(ctx context.Context) (Credentials, error)
}

// EnvSource reads credentials from the process environment
type EnvSource struct {
	UsernameVar string
	PasswordVar string
}

// NewEnvSource reads AMP_USERNAME and AMP_PASSWORD
func NewEnvSource() *EnvSource {
	return &EnvSource{UsernameVar: UsernameEnv, PasswordVar: PasswordEnv}
}

// Resolve implements Source. Missing values are reported by name.
func (s *EnvSource) Resolve(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	username := os.Getenv(s.UsernameVar)
	if strings.TrimSpace(username) == "" {
		return Credentials{}, errors.MissingCredentialError(s.UsernameVar)
	}
	password := os.Getenv(s.PasswordVar)
	if password == "" {
		return Credentials{}, errors.MissingCredentialError(s.PasswordVar)
	}

	return Credentials{Username: username, Password: password}, nil
}

// StaticSource always returns the same credentials
type StaticSource struct {
	creds Credentials
}

// NewStaticSource wraps fixed credentials
func NewStaticSource(username, password string) *StaticSource {
	return &StaticSource{creds: Credentials{Username: username, Password: password}}
}

// Resolve implements Source
func (s *StaticSource) Resolve(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}
	if err := s.creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return s.creds, nil
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) (Credentials, error)

// Resolve implements Source
func (f SourceFunc) Resolve(ctx context.Context) (Credentials, error) {
	return f(ctx)
}
