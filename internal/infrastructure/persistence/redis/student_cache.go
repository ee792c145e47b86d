package redis

import (
	"context"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/student"
)

// StudentCache implements student.Cache using the generic Redis Cache.
// Records are keyed by student code since that is the identifier the
// dashboard queries with.
type StudentCache struct {
	cache *Cache
}

// NewStudentCache creates a new StudentCache.
func NewStudentCache(cache *Cache) *StudentCache {
	return &StudentCache{cache: cache}
}

// Get fetches a record from the cache by code.
// Returns ErrCacheMiss when the code is not cached.
func (s *StudentCache) Get(ctx context.Context, code student.Code) (*student.Record, error) {
	var rec student.Record
	if err := s.cache.Get(ctx, StudentKey(code.String()), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Set stores a record in the cache.
func (s *StudentCache) Set(ctx context.Context, rec *student.Record, ttl time.Duration) error {
	if rec == nil {
		return nil
	}
	return s.cache.Set(ctx, StudentKey(rec.Code.String()), rec, ttl)
}

// Delete removes a record from the cache.
func (s *StudentCache) Delete(ctx context.Context, code student.Code) error {
	return s.cache.Delete(ctx, StudentKey(code.String()))
}

// InvalidateClass drops every cached entry belonging to a class.
// Cached records are not indexed by class, so the whole student namespace
// is cleared; the next reads repopulate it from PostgreSQL.
func (s *StudentCache) InvalidateClass(ctx context.Context, class student.Class) error {
	return s.cache.DeleteByPattern(ctx, PrefixStudent+"*")
}

// InvalidateAll clears the whole student cache.
func (s *StudentCache) InvalidateAll(ctx context.Context) error {
	return s.cache.DeleteByPattern(ctx, PrefixStudent+"*")
}
