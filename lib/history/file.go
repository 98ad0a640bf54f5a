package history

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// FileStore keeps one identity per line in a UTF-8 text file.
// a missing file is an empty history.
type FileStore struct {
	path string
}

func NewFileStore(path string) FileStore {
	return FileStore{path: path}
}

func (s FileStore) Load(ctx context.Context) (Records, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return Records{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer f.Close()

	records := Records{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		records = append(records, line)
	}
	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorage, s.path, err)
	}
	return records, nil
}

func (s FileStore) Append(ctx context.Context, identity string) error {
	if strings.ContainsAny(identity, "\r\n") {
		return fmt.Errorf("%w: identity %q spans multiple lines", ErrStorage, identity)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer f.Close()

	_, err = f.WriteString(identity + "\n")
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorage, s.path, err)
	}
	err = f.Sync()
	if err != nil {
		return fmt.Errorf("%w: sync %s: %w", ErrStorage, s.path, err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrStorage, s.path, err)
	}
	return nil
}

// Close is a no-op, the file is only held open during Load and Append.
func (s FileStore) Close() error {
	return nil
}
