// Package clientstate persists a visitor's collections as JSON values under
// well-known keys. Reads and writes never fail from the caller's point of view:
// unreadable state loads as empty and failed writes are dropped, leaving the
// in-memory copy authoritative.
package clientstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/util"

	"go.uber.org/zap"
)

// Storage keys
const (
	KeyCart                  = "cart"
	KeyWishlist              = "wishlist"
	KeyWishlistNotifications = "wishlistNotifications"
)

var (
	ErrNotFound      = errors.New("client state: key not found")
	ErrQuotaExceeded = errors.New("client state: quota exceeded")
)

// Backend is a flat key/value store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Direction tells whether a PersistenceError happened on load or save.
type Direction string

const (
	DirectionRead  Direction = "read"
	DirectionWrite Direction = "write"
)

// PersistenceError describes a swallowed read or write failure.
type PersistenceError struct {
	Direction Direction
	Key       string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("client state %s %q: %v", e.Direction, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrorHook receives every swallowed PersistenceError.
type ErrorHook func(err *PersistenceError)

// Slot binds one storage key to one collection type.
type Slot[T any] struct {
	backend Backend
	key     string
	logger  *zap.Logger
	onError ErrorHook
}

// NewSlot creates a slot for key on backend.
func NewSlot[T any](backend Backend, key string) *Slot[T] {
	return &Slot[T]{
		backend: backend,
		key:     key,
		logger:  util.GetLogger(),
	}
}

// OnError registers a hook for swallowed failures.
func (s *Slot[T]) OnError(hook ErrorHook) *Slot[T] {
	s.onError = hook
	return s
}

// Key returns the storage key.
func (s *Slot[T]) Key() string { return s.key }

// Load returns the last saved collection, or an empty one if nothing usable is stored.
func (s *Slot[T]) Load(ctx context.Context) []T {
	raw, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return []T{}
	}
	if err != nil {
		s.report(DirectionRead, err)
		return []T{}
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		s.report(DirectionRead, fmt.Errorf("failed to decode: %w", err))
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

// Save writes items synchronously. Failures are reported and dropped.
func (s *Slot[T]) Save(ctx context.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		s.report(DirectionWrite, fmt.Errorf("failed to encode: %w", err))
		return
	}
	if err := s.backend.Set(ctx, s.key, raw); err != nil {
		s.report(DirectionWrite, err)
	}
}

func (s *Slot[T]) report(dir Direction, err error) {
	perr := &PersistenceError{Direction: dir, Key: s.key, Err: err}

	util.PersistenceFailuresTotal.WithLabelValues(string(dir), s.key).Inc()
	s.logger.Warn("Client state persistence failed",
		zap.String("direction", string(dir)),
		zap.String("key", s.key),
		zap.Error(err))

	if s.onError != nil {
		s.onError(perr)
	}
}

// Namespace prefixes every key with prefix + ":".
func Namespace(backend Backend, prefix string) Backend {
	return &namespaced{backend: backend, prefix: prefix + ":"}
}

type namespaced struct {
	backend Backend
	prefix  string
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.backend.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.backend.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.backend.Delete(ctx, n.prefix+key)
}
