// Package cache makes write-path cache invalidation an explicit collaborator
// instead of ambient signal wiring: the sync engine calls Invalidator at the
// end of each write path, and snapshot data versions are derived from the
// current generation.
package cache

import (
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
)

// Invalidator is notified after every successful write batch.
type Invalidator interface {
	// InvalidateType bumps the generation for one record type.
	InvalidateType(dataType string)
	// InvalidateUser drops everything cached for one user.
	InvalidateUser(userID uuid.UUID)
	// DataVersion returns a version string that changes whenever the given
	// record types are invalidated.
	DataVersion(dataTypes ...string) string
}

// Memory is a process-local Invalidator keeping a generation counter per
// record type.
type Memory struct {
	mu   sync.Mutex
	gens map[string]uint64
}

// NewMemory constructs an empty in-memory invalidator.
func NewMemory() *Memory {
	return &Memory{gens: make(map[string]uint64)}
}

func (m *Memory) InvalidateType(dataType string) {
	m.mu.Lock()
	m.gens[dataType]++
	m.mu.Unlock()
}

// InvalidateUser is a no-op for the generation store: per-user entries are
// keyed by type generations, so bumping types already covers them.
func (m *Memory) InvalidateUser(uuid.UUID) {}

func (m *Memory) DataVersion(dataTypes ...string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum uint64
	for _, dt := range dataTypes {
		sum += m.gens[dt]
	}
	return fmt.Sprintf("1.%d", sum)
}

// Noop discards all invalidation calls. Used in tests.
type Noop struct{}

func (Noop) InvalidateType(string)        {}
func (Noop) InvalidateUser(uuid.UUID)     {}
func (Noop) DataVersion(...string) string { return "1.0" }
