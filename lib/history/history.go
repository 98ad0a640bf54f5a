// Package history records the identities of dumps that were already
// downloaded. records are only ever appended.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var ErrStorage = errors.New("history storage failed")

// Records is the ordered set of previously downloaded identities.
type Records []string

// Contains is an exact string match.
func (r Records) Contains(identity string) bool {
	return slices.Contains(r, identity)
}

type Store interface {
	// Load reads every record into memory.
	Load(ctx context.Context) (Records, error)
	// Append durably records `identity` before returning.
	Append(ctx context.Context, identity string) error
	Close() error
}

type Driver string

const (
	DriverFile   Driver = "file"
	DriverSqlite Driver = "sqlite"
)

type Config struct {
	Driver Driver `json:"driver"`
	Path   string `json:"path"`
}

func DefaultConfig() Config {
	return Config{
		Driver: DriverFile,
		Path:   "download_history.txt",
	}
}

func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFile, "":
		return NewFileStore(cfg.Path), nil
	case DriverSqlite:
		store, err := OpenSqliteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
}
