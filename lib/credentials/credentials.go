// Package credentials resolves the portal login from either a local two
// line file or AWS Secrets Manager.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrCredentials = errors.New("no usable credentials")

type Credentials struct {
	Username string
	Password string
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q}", c.Username)
}

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", c.Username))
}

func (c Credentials) valid() bool {
	return c.Username != "" && c.Password != ""
}

type Provider interface {
	Resolve(ctx context.Context) (Credentials, error)
}

// Source selects one of the interchangeable providers.
type Source string

const (
	SourceFile   Source = "file"
	SourceSecret Source = "secret"
)

func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceFile, SourceSecret:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown credential source %q (expected %q or %q)", s, SourceFile, SourceSecret)
}

// FromSource builds the provider for `source`. `path` is only used by
// SourceFile, `secret` only by SourceSecret.
func FromSource(ctx context.Context, source Source, path string, secret SecretConfig) (Provider, error) {
	switch source {
	case SourceFile:
		if path == "" {
			return nil, fmt.Errorf("%w: credential file path is empty", ErrCredentials)
		}
		return FileProvider{Path: path}, nil
	case SourceSecret:
		provider, err := NewSecretProvider(ctx, secret)
		if err != nil {
			return nil, err
		}
		return provider, nil
	}
	return nil, fmt.Errorf("unknown credential source %q", source)
}
