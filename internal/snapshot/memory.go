package snapshot

import (
	"context"
	"fmt"
	"sync"

	"github.com/koopa0/drawboard/internal/board"
)

// Memory 記憶體快照存儲
//
// 進程重啟即丟失，適合測試與不需要持久化的單機部署。
type Memory struct {
	mu    sync.RWMutex
	rooms map[string][]board.Stroke
}

// NewMemory 創建記憶體存儲
func NewMemory() *Memory {
	return &Memory{rooms: make(map[string][]board.Stroke)}
}

// Load 讀取房間快照
func (m *Memory) Load(_ context.Context, roomID string) ([]board.Stroke, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	strokes, ok := m.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", roomID, ErrNotFound)
	}
	out := make([]board.Stroke, len(strokes))
	copy(out, strokes)
	return out, nil
}

// Save 覆蓋房間快照
func (m *Memory) Save(_ context.Context, roomID string, strokes []board.Stroke) error {
	cp := make([]board.Stroke, len(strokes))
	copy(cp, strokes)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[roomID] = cp
	return nil
}
