package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

const (
	invocationKeyPrefix = "lucky:invocation:"
	versionKeyPrefix    = "lucky:version:"
	invRecordKeyPrefix  = "lucky:invrecord:"
)

// InvocationStore implements ports.InvocationStore using Redis. It backs
// the shared cancellation record that lets any service instance answer
// cancel requests for invocations running elsewhere.
type InvocationStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewInvocationStore creates a new Redis invocation store.
func NewInvocationStore(client *redis.Client, logger *zap.Logger) *InvocationStore {
	return &InvocationStore{
		client: client,
		logger: logger,
	}
}

// Save persists an invocation record with the given TTL (ports.InvocationStore interface).
func (s *InvocationStore) Save(ctx context.Context, rec domain.InvocationRecord, ttl time.Duration) error {
	key := getInvocationKey(rec.InvocationID)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal invocation record: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save invocation record: %w", err)
	}

	s.logger.Debug("invocation record saved",
		zap.String("invocation_id", rec.InvocationID),
		zap.String("state", string(rec.State)))

	return nil
}

// Load retrieves an invocation record (ports.InvocationStore interface).
// The second return value is false when no record exists.
func (s *InvocationStore) Load(ctx context.Context, invocationID string) (domain.InvocationRecord, bool, error) {
	key := getInvocationKey(invocationID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.InvocationRecord{}, false, nil
		}
		return domain.InvocationRecord{}, false, fmt.Errorf("failed to get invocation record: %w", err)
	}

	var rec domain.InvocationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.InvocationRecord{}, false, fmt.Errorf("failed to unmarshal invocation record: %w", err)
	}

	return rec, true, nil
}

// Delete removes an invocation record (ports.InvocationStore interface).
func (s *InvocationStore) Delete(ctx context.Context, invocationID string) error {
	key := getInvocationKey(invocationID)

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete invocation record: %w", err)
	}

	return nil
}

// List returns all invocation IDs that have stored records (ports.InvocationStore interface).
func (s *InvocationStore) List(ctx context.Context) ([]string, error) {
	pattern := invocationKeyPrefix + "*"

	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	invocationIDs := make([]string, 0, len(keys))
	for _, key := range keys {
		if len(key) > len(invocationKeyPrefix) {
			invocationIDs = append(invocationIDs, key[len(invocationKeyPrefix):])
		}
	}

	return invocationIDs, nil
}

// Persistence implements ports.Persistence using Redis.
type Persistence struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewPersistence creates a new Redis persistence adapter. Records expire
// after the given TTL; zero means no expiry.
func NewPersistence(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Persistence {
	return &Persistence{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// CreateWorkflowVersion stores a workflow version record (ports.Persistence interface).
func (p *Persistence) CreateWorkflowVersion(ctx context.Context, rec ports.WorkflowVersionRecord) error {
	key := getVersionKey(rec.VersionID)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow version: %w", err)
	}

	if err := p.client.Set(ctx, key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save workflow version: %w", err)
	}

	p.logger.Debug("workflow version saved",
		zap.String("version_id", rec.VersionID),
		zap.String("workflow_id", rec.WorkflowID))

	return nil
}

// CreateWorkflowInvocation stores a workflow invocation record (ports.Persistence interface).
func (p *Persistence) CreateWorkflowInvocation(ctx context.Context, rec ports.WorkflowInvocationRecord) error {
	key := getInvRecordKey(rec.InvocationID)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow invocation: %w", err)
	}

	if err := p.client.Set(ctx, key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save workflow invocation: %w", err)
	}

	return nil
}

// UpdateWorkflowVersionWithIO attaches the evaluation cases to a stored
// workflow version (ports.Persistence interface).
func (p *Persistence) UpdateWorkflowVersionWithIO(ctx context.Context, versionID string, cases []domain.IOCase) error {
	key := getVersionKey(versionID)

	data, err := p.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("workflow version not found: %s", versionID)
		}
		return fmt.Errorf("failed to get workflow version: %w", err)
	}

	var rec ports.WorkflowVersionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to unmarshal workflow version: %w", err)
	}

	rec.Cases = cases

	updated, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow version: %w", err)
	}

	if err := p.client.Set(ctx, key, updated, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to update workflow version: %w", err)
	}

	return nil
}

func getInvocationKey(invocationID string) string {
	return invocationKeyPrefix + invocationID
}

func getVersionKey(versionID string) string {
	return versionKeyPrefix + versionID
}

func getInvRecordKey(invocationID string) string {
	return invRecordKeyPrefix + invocationID
}
