package idempotency

import (
	"context"
	"sync"
	"time"
)

// KeyRepository stores idempotency records. AcquireLock must be atomic.
type KeyRepository interface {
	// AcquireLock inserts rec if absent and returns the stored record plus
	// whether it was created by this call. An existing, uncompleted record
	// whose lock is older than staleAfter is re-locked and reported as new.
	AcquireLock(ctx context.Context, rec *Record, staleAfter time.Duration) (*Record, bool, error)

	// ReleaseLock drops an in-flight record so the request can be retried
	ReleaseLock(ctx context.Context, id string) error

	// StoreResponse completes the record with the response to replay
	StoreResponse(ctx context.Context, id string, code int, body []byte, headers map[string]string) error

	// Clean removes records that expired before the given time
	Clean(ctx context.Context, before time.Time) (int64, error)
}

// MemoryKeyRepository is an in-process KeyRepository
type MemoryKeyRepository struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryKeyRepository creates an empty in-process repository
func NewMemoryKeyRepository() *MemoryKeyRepository {
	return &MemoryKeyRepository{records: make(map[string]*Record)}
}

// AcquireLock implements KeyRepository
func (r *MemoryKeyRepository) AcquireLock(ctx context.Context, rec *Record, staleAfter time.Duration) (*Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.records[rec.ID]
	if ok && now.After(existing.ExpiresAt) {
		ok = false
	}
	if !ok {
		stored := rec.clone()
		stored.LockedAt = &now
		r.records[rec.ID] = stored
		return stored.clone(), true, nil
	}

	if !existing.IsCompleted() && (existing.LockedAt == nil || now.Sub(*existing.LockedAt) >= staleAfter) {
		existing.LockedAt = &now
		existing.RequestFingerprint = rec.RequestFingerprint
		return existing.clone(), true, nil
	}
	return existing.clone(), false, nil
}

// ReleaseLock implements KeyRepository
func (r *MemoryKeyRepository) ReleaseLock(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok && !rec.IsCompleted() {
		delete(r.records, id)
	}
	return nil
}

// StoreResponse implements KeyRepository
func (r *MemoryKeyRepository) StoreResponse(ctx context.Context, id string, code int, body []byte, headers map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	rec.ResponseCode = code
	rec.ResponseBody = append([]byte(nil), body...)
	rec.ResponseHeaders = headers
	rec.CompletedAt = &now
	rec.LockedAt = nil
	return nil
}

// Clean implements KeyRepository
func (r *MemoryKeyRepository) Clean(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.records {
		if rec.ExpiresAt.Before(before) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}
