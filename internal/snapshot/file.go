package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/koopa0/drawboard/internal/board"
)

// File 檔案快照存儲
//
// 每個房間對應目錄下的一個 JSON 檔案。寫入採用
// 先寫臨時檔再改名的方式：改名在同一檔案系統上是原子的，
// 讀取方永遠不會看到寫到一半的檔案。
type File struct {
	dir string
}

// NewFile 創建檔案存儲，必要時建立目錄
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &File{dir: dir}, nil
}

// path 房間識別碼經 URL 轉義後作為檔名，避免路徑穿越
func (f *File) path(roomID string) string {
	return filepath.Join(f.dir, url.PathEscape(roomID)+".json")
}

// Load 讀取房間快照
func (f *File) Load(_ context.Context, roomID string) ([]board.Stroke, error) {
	data, err := os.ReadFile(f.path(roomID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("room %q: %w", roomID, ErrNotFound)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var strokes []board.Stroke
	if err := json.Unmarshal(data, &strokes); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return strokes, nil
}

// Save 覆蓋房間快照（原子寫入）
func (f *File) Save(_ context.Context, roomID string, strokes []board.Stroke) error {
	data, err := json.Marshal(strokes)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, f.path(roomID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
