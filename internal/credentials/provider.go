package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Source records where a token came from, so callers and tests can tell a
// real credential from the configured fallback.
type Source string

const (
	SourceStatic   Source = "static"
	SourceEnv      Source = "env"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Token is the explicit result of a credential fetch.
type Token struct {
	Value  string `json:"value"`
	Source Source `json:"source"`
}

// ErrNoCredential is returned when a provider has nothing to hand out and no
// fallback was configured.
var ErrNoCredential = errors.New("no credential available")

// Provider acquires a bearer token for the generation service.
type Provider interface {
	Fetch(ctx context.Context) (Token, error)
}

// Static always returns the same configured token.
type Static struct {
	value string
}

func NewStatic(value string) *Static {
	return &Static{value: value}
}

func (s *Static) Fetch(ctx context.Context) (Token, error) {
	if strings.TrimSpace(s.value) == "" {
		return Token{}, ErrNoCredential
	}
	return Token{Value: s.value, Source: SourceStatic}, nil
}

// Env reads the token from an environment variable on every fetch.
type Env struct {
	key string
}

func NewEnv(key string) *Env {
	return &Env{key: key}
}

func (e *Env) Fetch(ctx context.Context) (Token, error) {
	value := strings.TrimSpace(os.Getenv(e.key))
	if value == "" {
		return Token{}, fmt.Errorf("%w: %s not set", ErrNoCredential, e.key)
	}
	return Token{Value: value, Source: SourceEnv}, nil
}

// WithFallback wraps a provider so that a failed fetch yields the supplied
// dummy credential instead of an error. The substitution is visible through
// Token.Source; it never happens unless this wrapper is configured.
func WithFallback(inner Provider, value string) Provider {
	return &fallbackProvider{inner: inner, value: value}
}

type fallbackProvider struct {
	inner Provider
	value string
}

func (f *fallbackProvider) Fetch(ctx context.Context) (Token, error) {
	tok, err := f.inner.Fetch(ctx)
	if err == nil {
		return tok, nil
	}
	return Token{Value: f.value, Source: SourceFallback}, nil
}
