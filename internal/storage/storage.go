package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aj-en/mcp-sim/internal/node"
)

var (
	// ErrInvalidMetadata indicates the provided metadata violates the node
	// metadata schema.
	ErrInvalidMetadata = errors.New("metadata does not satisfy the node metadata schema")
)

// Storage provides access to the metadata a node advertises.
type Storage interface {
	GetMetadata() (node.Metadata, error)
	SetMetadata(meta node.Metadata) error
	UpdatedAt() time.Time
}

// MemoryStorage keeps metadata in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu        sync.RWMutex
	metadata  node.Metadata
	updatedAt time.Time
	clock     func() time.Time
}

// Option configures a MemoryStorage.
type Option func(*MemoryStorage)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *MemoryStorage) {
		s.clock = clock
	}
}

// NewMemoryStorage initialises storage with a copy of the given metadata,
// which must be valid.
func NewMemoryStorage(initial node.Metadata, opts ...Option) (*MemoryStorage, error) {
	s := &MemoryStorage{
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.SetMetadata(initial); err != nil {
		return nil, err
	}
	return s, nil
}

// GetMetadata returns a defensive copy of the current metadata.
func (s *MemoryStorage) GetMetadata() (node.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata.Clone(), nil
}

// SetMetadata validates and stores a copy of the provided metadata.
func (s *MemoryStorage) SetMetadata(meta node.Metadata) error {
	if err := node.ValidateMetadata(meta); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	s.mu.Lock()
	s.metadata = meta.Clone()
	s.updatedAt = s.clock()
	s.mu.Unlock()
	return nil
}

// UpdatedAt returns when the metadata was last replaced.
func (s *MemoryStorage) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
