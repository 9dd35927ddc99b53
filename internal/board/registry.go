package board

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SnapshotStore 快照持久化的邊界介面
//
// 由 internal/snapshot 提供實作。對同步引擎而言持久化是外部協作者：
//   - Load 失敗或查無快照 → 水合放棄，房間以空白 Log 運作
//   - Save 失敗 → 記錄日誌後吞掉，絕不回滾記憶體狀態
type SnapshotStore interface {
	Load(ctx context.Context, roomID string) ([]Stroke, error)
	Save(ctx context.Context, roomID string, strokes []Stroke) error
}

// Registry 按識別碼管理房間的註冊表
//
// 系統設計考量：
//
//  1. 惰性創建：GetOrCreate 冪等，首次查詢即創建空房間
//  2. 異步水合：創建後立刻可用（空 Log），同時在背景嘗試從
//     快照載入；水合與首筆修改的競態由 Room.InstallHydrated
//     的「丟棄優先」規則解決，不跨網路往返持鎖
//  3. 盡力而為持久化：每次修改完成並廣播後才發起 Save，
//     失敗只記日誌，永不阻塞同步路徑
//  4. 房間永不自動刪除：參與者歸零後狀態仍保留，
//     直到進程關閉
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	store  SnapshotStore
	logger *slog.Logger

	saveTimeout time.Duration
	wg          sync.WaitGroup // 追蹤在途的背景持久化
}

// NewRegistry 創建房間註冊表
func NewRegistry(store SnapshotStore, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		store:       store,
		logger:      logger,
		saveTimeout: 5 * time.Second,
	}
}

// GetOrCreate 查詢或惰性創建房間（冪等）
//
// 新房間創建後立即可用，水合在背景進行：
// 若水合在任何修改之前完成，整體替換 Log；否則丟棄載入結果。
func (reg *Registry) GetOrCreate(roomID string) *Room {
	reg.mu.RLock()
	room, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if ok {
		return room
	}

	reg.mu.Lock()
	// 雙重檢查：可能有並發的創建者搶先
	if room, ok = reg.rooms[roomID]; ok {
		reg.mu.Unlock()
		return room
	}
	room = NewRoom(roomID)
	reg.rooms[roomID] = room
	reg.mu.Unlock()

	reg.logger.Info("房間已創建", "room_id", roomID)

	reg.wg.Add(1)
	go reg.hydrate(room)

	return room
}

// Get 查詢房間（不創建）
func (reg *Registry) Get(roomID string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[roomID]
	return room, ok
}

// hydrate 背景水合：嘗試從快照恢復房間的筆畫序列
func (reg *Registry) hydrate(room *Room) {
	defer reg.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), reg.saveTimeout)
	defer cancel()

	strokes, err := reg.store.Load(ctx, room.ID)
	if err != nil {
		// 查無快照與讀取失敗對水合同樣意味著放棄，房間保持空白
		reg.logger.Debug("水合不可用", "room_id", room.ID, "error", err)
		return
	}

	if room.InstallHydrated(strokes) {
		reg.logger.Info("房間水合完成", "room_id", room.ID, "strokes", len(strokes))
	} else {
		// 水合輸給了更早的修改：丟棄磁碟內容，保護新狀態
		reg.logger.Info("水合結果已丟棄（房間已被修改）", "room_id", room.ID)
	}
}

// SaveAsync 發起一次背景持久化（fire-and-forget）
//
// 在修改完成、廣播派發之後調用。失敗只記 Warn：
// 房間繼續純記憶體運作，下一次成功的 Save 仍會反映最新狀態。
func (reg *Registry) SaveAsync(room *Room) {
	strokes := room.Snapshot()

	reg.wg.Add(1)
	go func() {
		defer reg.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), reg.saveTimeout)
		defer cancel()

		if err := reg.store.Save(ctx, room.ID, strokes); err != nil {
			reg.logger.Warn("快照保存失敗", "room_id", room.ID, "error", err)
		}
	}()
}

// Stats 統計資訊（供 /stats 端點使用）
func (reg *Registry) Stats() map[string]any {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	totalParticipants := 0
	totalStrokes := 0
	for _, room := range reg.rooms {
		totalParticipants += room.ParticipantCount()
		totalStrokes += room.StrokeCount()
	}

	return map[string]any{
		"total_rooms":        len(reg.rooms),
		"total_participants": totalParticipants,
		"total_strokes":      totalStrokes,
	}
}

// Wait 等待所有在途的背景工作結束（優雅關閉用）
func (reg *Registry) Wait() {
	reg.wg.Wait()
}
