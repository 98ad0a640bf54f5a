package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FileProvider reads the username from the first line of Path and the
// password from the second.
type FileProvider struct {
	Path string
}

func (p FileProvider) Resolve(ctx context.Context) (Credentials, error) {
	contents, err := os.ReadFile(p.Path)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrCredentials, err)
	}

	lines := strings.Split(string(contents), "\n")
	if len(lines) < 2 {
		return Credentials{}, fmt.Errorf("%w: %s has fewer than two lines", ErrCredentials, p.Path)
	}

	creds := Credentials{
		Username: strings.TrimRight(lines[0], " \t\r\n"),
		Password: strings.TrimRight(lines[1], " \t\r\n"),
	}
	if !creds.valid() {
		return Credentials{}, fmt.Errorf("%w: %s has an empty username or password", ErrCredentials, p.Path)
	}
	return creds, nil
}
