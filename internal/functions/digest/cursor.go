// internal/functions/digest/cursor.go
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"congregation-functions/internal/common/database"

	"github.com/redis/go-redis/v9"
)

const (
	runLockKey      = "digest:lock"
	cursorKeyPrefix = "digest:cursor:"

	// cursorTTL keeps an orphaned cursor resumable for a day, the same span
	// as the activity window.
	cursorTTL = 24 * time.Hour
)

// CursorStore keeps the batcher's durable state in Redis: one run lock so
// only a single chain walks the membership at a time, and one cursor per
// run committed before every continuation call.
type CursorStore struct {
	redis *database.RedisClient
}

func NewCursorStore(rdb *database.RedisClient) *CursorStore {
	return &CursorStore{redis: rdb}
}

// AcquireRun takes the run lock for a fresh chain, or admits a continuation
// page when the lock is already held by the same runId. Returns false when
// another run holds the lock.
func (c *CursorStore) AcquireRun(ctx context.Context, runID string, ttl time.Duration) (bool, error) {
	ok, err := c.redis.SetNX(ctx, runLockKey, runID, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	if ok {
		return true, nil
	}

	holder, err := c.redis.Get(ctx, runLockKey)
	if err == redis.Nil {
		// Lock expired between the SetNX and the Get; let the caller retry
		// on the next trigger rather than race for it here.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read run lock: %w", err)
	}
	return holder == runID, nil
}

// ReleaseRun drops the lock if this run still holds it.
func (c *CursorStore) ReleaseRun(ctx context.Context, runID string) error {
	holder, err := c.redis.Get(ctx, runLockKey)
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read run lock: %w", err)
	}
	if holder != runID {
		return nil
	}
	return c.redis.Del(ctx, runLockKey)
}

// SaveCursor commits the paging state for the run.
func (c *CursorStore) SaveCursor(ctx context.Context, runID string, cursor Cursor) error {
	encoded, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := c.redis.Set(ctx, cursorKeyPrefix+runID, encoded, cursorTTL); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// LoadCursor returns the saved paging state for a run, with found reporting
// whether one exists.
func (c *CursorStore) LoadCursor(ctx context.Context, runID string) (Cursor, bool, error) {
	raw, err := c.redis.Get(ctx, cursorKeyPrefix+runID)
	if err == redis.Nil {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, fmt.Errorf("load cursor: %w", err)
	}

	var cursor Cursor
	if err := json.Unmarshal([]byte(raw), &cursor); err != nil {
		return Cursor{}, false, fmt.Errorf("decode cursor: %w", err)
	}
	return cursor, true, nil
}

// ClearCursor removes the run's cursor once the chain completes.
func (c *CursorStore) ClearCursor(ctx context.Context, runID string) error {
	return c.redis.Del(ctx, cursorKeyPrefix+runID)
}
