// Package snapshot 提供房間筆畫序列的持久化邊界
//
// 對同步引擎而言持久化是盡力而為的外部協作者：
//   - Save 在修改完成並廣播之後異步發起，失敗記日誌後吞掉
//   - Load 只在房間創建時的水合路徑使用，輸掉競態的結果被丟棄
//
// 本套件提供四種後端：
//   - Memory：測試與單機默認
//   - File：每房間一個 JSON 檔案（原子寫入）
//   - Redis：每房間一個 JSON 值
//   - Postgres：每房間一行 jsonb（golang-migrate 管理 schema）
package snapshot

import (
	"context"
	"errors"

	"github.com/koopa0/drawboard/internal/board"
)

// ErrNotFound 表示指定房間沒有已保存的快照
var ErrNotFound = errors.New("snapshot not found")

// Store 快照存取介面
//
// Load 在房間沒有快照時返回包裝 ErrNotFound 的錯誤。
// Save 整體覆蓋房間的既有快照。
type Store interface {
	Load(ctx context.Context, roomID string) ([]board.Stroke, error)
	Save(ctx context.Context, roomID string, strokes []board.Stroke) error
}
