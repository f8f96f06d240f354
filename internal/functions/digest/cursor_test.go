// internal/functions/digest/cursor_test.go
package digest

import (
	"context"
	"testing"
	"time"

	"congregation-functions/internal/common/config"
	"congregation-functions/internal/common/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func newTestCursorStore(t *testing.T) (*CursorStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	assert.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return NewCursorStore(rdb), mr
}

func TestCursorStore_SaveLoadClear(t *testing.T) {
	store, _ := newTestCursorStore(t)
	ctx := context.Background()

	cursor := Cursor{Offset: 30, Iteration: 3, StartTime: 1700000000000}
	assert.NoError(t, store.SaveCursor(ctx, "run-1", cursor))

	loaded, found, err := store.LoadCursor(ctx, "run-1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cursor, loaded)

	assert.NoError(t, store.ClearCursor(ctx, "run-1"))
	_, found, err = store.LoadCursor(ctx, "run-1")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestCursorStore_LoadMissingCursor(t *testing.T) {
	store, _ := newTestCursorStore(t)

	_, found, err := store.LoadCursor(context.Background(), "never-started")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestCursorStore_RunLock(t *testing.T) {
	store, _ := newTestCursorStore(t)
	ctx := context.Background()

	admitted, err := store.AcquireRun(ctx, "run-a", time.Minute)
	assert.NoError(t, err)
	assert.True(t, admitted)

	// The holder's own continuation pages are admitted.
	admitted, err = store.AcquireRun(ctx, "run-a", time.Minute)
	assert.NoError(t, err)
	assert.True(t, admitted)

	// A second chain is not.
	admitted, err = store.AcquireRun(ctx, "run-b", time.Minute)
	assert.NoError(t, err)
	assert.False(t, admitted)

	assert.NoError(t, store.ReleaseRun(ctx, "run-a"))
	admitted, err = store.AcquireRun(ctx, "run-b", time.Minute)
	assert.NoError(t, err)
	assert.True(t, admitted)
}

func TestCursorStore_ReleaseIgnoresOtherHolder(t *testing.T) {
	store, mr := newTestCursorStore(t)
	ctx := context.Background()

	_, err := store.AcquireRun(ctx, "run-a", time.Minute)
	assert.NoError(t, err)

	assert.NoError(t, store.ReleaseRun(ctx, "run-b"))
	assert.True(t, mr.Exists(runLockKey))
}

func TestCursorStore_CursorExpires(t *testing.T) {
	store, mr := newTestCursorStore(t)
	ctx := context.Background()

	assert.NoError(t, store.SaveCursor(ctx, "run-1", Cursor{Offset: 10}))
	mr.FastForward(cursorTTL + time.Second)

	_, found, err := store.LoadCursor(ctx, "run-1")
	assert.NoError(t, err)
	assert.False(t, found)
}
