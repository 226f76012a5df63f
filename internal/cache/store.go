package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable wraps every storage failure so callers can tell a broken
// backend apart from a plain miss.
var ErrUnavailable = errors.New("cache storage unavailable")

// Store is the byte-level storage behind the result cache.
// Implemented by memory (LRU), SQLite, MySQL and Redis backends.
type Store interface {
	// Get returns (nil, false, nil) on a clean miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set overwrites or inserts the value for key.
	Set(ctx context.Context, key string, value []byte) error
	// Clear removes every entry owned by this store.
	Clear(ctx context.Context) error
	// Len counts live entries.
	Len(ctx context.Context) (int, error)
	// Location describes where entries live (directory, address, "memory").
	Location() string
	Close() error
}

// Pinger is implemented by stores that live outside the process and can
// become unreachable after startup.
type Pinger interface {
	Ping(ctx context.Context) error
}

// nopStore never holds anything. It stands in for a disabled cache or a
// backend that could not be opened; cause is set in the latter case.
type nopStore struct {
	location string
	cause    error
}

// NewNopStore returns a Store that always misses.
func NewNopStore(location string) Store {
	return nopStore{location: location}
}

func newUnavailableStore(cause error) Store {
	return nopStore{location: "unavailable", cause: cause}
}

func (nopStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (nopStore) Set(context.Context, string, []byte) error         { return nil }
func (nopStore) Clear(context.Context) error                       { return nil }
func (nopStore) Len(context.Context) (int, error)                  { return 0, nil }
func (s nopStore) Location() string                                { return s.location }
func (nopStore) Close() error                                      { return nil }

func (s nopStore) Ping(context.Context) error {
	if s.cause != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, s.cause)
	}
	return nil
}
