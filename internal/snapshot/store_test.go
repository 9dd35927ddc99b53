package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/drawboard/internal/board"
	"github.com/koopa0/drawboard/internal/snapshot"
)

func sampleStrokes() []board.Stroke {
	return []board.Stroke{
		{
			ID:        "s1",
			AuthorID:  "alice",
			Color:     "#e6194b",
			Width:     2,
			Tool:      board.ToolBrush,
			Points:    []board.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
			Timestamp: time.Unix(10, 0).UTC(),
			Layer:     0,
		},
		{
			ID:        "s2",
			AuthorID:  "bob",
			Color:     "#3cb44b",
			Width:     8,
			Tool:      board.ToolEraser,
			Points:    []board.Point{{X: 5, Y: 6}},
			Timestamp: time.Unix(20, 0).UTC(),
			Layer:     1,
		},
	}
}

// roundTrip 對任一後端驗證保存後讀回順序與內容不變
func roundTrip(t *testing.T, store snapshot.Store) {
	t.Helper()
	ctx := context.Background()

	strokes := sampleStrokes()
	require.NoError(t, store.Save(ctx, "demo", strokes))

	loaded, err := store.Load(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, strokes, loaded)

	// 覆蓋式保存
	require.NoError(t, store.Save(ctx, "demo", strokes[:1]))
	loaded, err = store.Load(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, strokes[:1], loaded)
}

// TestMemory_RoundTrip 測試記憶體後端往返
func TestMemory_RoundTrip(t *testing.T) {
	roundTrip(t, snapshot.NewMemory())
}

// TestMemory_NotFound 測試查無快照
func TestMemory_NotFound(t *testing.T) {
	store := snapshot.NewMemory()
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

// TestFile_RoundTrip 測試檔案後端往返
func TestFile_RoundTrip(t *testing.T) {
	store, err := snapshot.NewFile(t.TempDir())
	require.NoError(t, err)
	roundTrip(t, store)
}

// TestFile_NotFound 測試查無快照
func TestFile_NotFound(t *testing.T) {
	store, err := snapshot.NewFile(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

// TestFile_RoomIDEscaping 測試房間識別碼不會穿越目錄
func TestFile_RoomIDEscaping(t *testing.T) {
	dir := t.TempDir()
	store, err := snapshot.NewFile(dir)
	require.NoError(t, err)

	ctx := context.Background()
	strokes := sampleStrokes()

	// 含路徑分隔符的識別碼照常工作，不寫到目錄之外
	require.NoError(t, store.Save(ctx, "a/../../b", strokes))
	loaded, err := store.Load(ctx, "a/../../b")
	require.NoError(t, err)
	assert.Equal(t, strokes, loaded)
}

// TestMemory_SaveIsolation 測試保存後修改原切片不影響存儲
func TestMemory_SaveIsolation(t *testing.T) {
	store := snapshot.NewMemory()
	ctx := context.Background()

	strokes := sampleStrokes()
	require.NoError(t, store.Save(ctx, "demo", strokes))
	strokes[0].ID = "tampered"

	loaded, err := store.Load(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "s1", loaded[0].ID)
}
