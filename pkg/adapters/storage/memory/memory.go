package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

// InMemoryInvocationStore implements ports.InvocationStore using an
// in-memory map. This is for testing purposes only; TTLs are honored by
// recording an expiry time and filtering on read.
type InMemoryInvocationStore struct {
	records map[string]storedRecord
	mu      sync.RWMutex
}

type storedRecord struct {
	rec       domain.InvocationRecord
	expiresAt time.Time
}

// NewInMemoryInvocationStore creates a new in-memory invocation store.
func NewInMemoryInvocationStore() *InMemoryInvocationStore {
	return &InMemoryInvocationStore{
		records: make(map[string]storedRecord),
	}
}

// Save persists an invocation record (ports.InvocationStore interface).
func (s *InMemoryInvocationStore) Save(ctx context.Context, rec domain.InvocationRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	s.records[rec.InvocationID] = storedRecord{rec: rec, expiresAt: expiresAt}
	return nil
}

// Load retrieves an invocation record (ports.InvocationStore interface).
func (s *InMemoryInvocationStore) Load(ctx context.Context, invocationID string) (domain.InvocationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.records[invocationID]
	if !ok {
		return domain.InvocationRecord{}, false, nil
	}
	if !stored.expiresAt.IsZero() && time.Now().After(stored.expiresAt) {
		return domain.InvocationRecord{}, false, nil
	}

	return stored.rec, true, nil
}

// Delete removes an invocation record (ports.InvocationStore interface).
func (s *InMemoryInvocationStore) Delete(ctx context.Context, invocationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, invocationID)
	return nil
}

// List returns all stored invocation IDs (ports.InvocationStore interface).
func (s *InMemoryInvocationStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	invocationIDs := make([]string, 0, len(s.records))
	for id, stored := range s.records {
		if !stored.expiresAt.IsZero() && now.After(stored.expiresAt) {
			continue
		}
		invocationIDs = append(invocationIDs, id)
	}

	return invocationIDs, nil
}

// InMemoryPersistence implements ports.Persistence using in-memory maps.
// This is for testing purposes only.
type InMemoryPersistence struct {
	versions    map[string]ports.WorkflowVersionRecord
	invocations map[string]ports.WorkflowInvocationRecord
	mu          sync.RWMutex
}

// NewInMemoryPersistence creates a new in-memory persistence adapter.
func NewInMemoryPersistence() *InMemoryPersistence {
	return &InMemoryPersistence{
		versions:    make(map[string]ports.WorkflowVersionRecord),
		invocations: make(map[string]ports.WorkflowInvocationRecord),
	}
}

// CreateWorkflowVersion stores a workflow version record (ports.Persistence interface).
func (p *InMemoryPersistence) CreateWorkflowVersion(ctx context.Context, rec ports.WorkflowVersionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.versions[rec.VersionID] = rec
	return nil
}

// CreateWorkflowInvocation stores a workflow invocation record (ports.Persistence interface).
func (p *InMemoryPersistence) CreateWorkflowInvocation(ctx context.Context, rec ports.WorkflowInvocationRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.invocations[rec.InvocationID] = rec
	return nil
}

// UpdateWorkflowVersionWithIO attaches evaluation cases to a stored
// workflow version (ports.Persistence interface).
func (p *InMemoryPersistence) UpdateWorkflowVersionWithIO(ctx context.Context, versionID string, cases []domain.IOCase) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.versions[versionID]
	if !ok {
		return fmt.Errorf("workflow version not found: %s", versionID)
	}

	rec.Cases = cases
	p.versions[versionID] = rec
	return nil
}

// WorkflowVersion returns a stored version record, for test assertions.
func (p *InMemoryPersistence) WorkflowVersion(versionID string) (ports.WorkflowVersionRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.versions[versionID]
	return rec, ok
}

// WorkflowInvocation returns a stored invocation record, for test assertions.
func (p *InMemoryPersistence) WorkflowInvocation(invocationID string) (ports.WorkflowInvocationRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.invocations[invocationID]
	return rec, ok
}
