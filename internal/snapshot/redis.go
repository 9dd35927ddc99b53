package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/koopa0/drawboard/internal/board"
)

// keyPrefix 房間快照在 Redis 中的鍵前綴
const keyPrefix = "drawboard:room:"

// Redis 以 Redis 為後端的快照存儲
//
// 每個房間一個 key，值為筆畫序列的 JSON。
// 快照是整體覆蓋式寫入，SET 的原子性已經足夠，
// 不需要事務或 Lua 腳本。
type Redis struct {
	client *redis.Client
}

// NewRedis 創建 Redis 存儲並驗證連線
func NewRedis(ctx context.Context, client *redis.Client) (*Redis, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Load 讀取房間快照
func (r *Redis) Load(ctx context.Context, roomID string) ([]board.Stroke, error) {
	data, err := r.client.Get(ctx, keyPrefix+roomID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("room %q: %w", roomID, ErrNotFound)
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var strokes []board.Stroke
	if err := json.Unmarshal(data, &strokes); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return strokes, nil
}

// Save 覆蓋房間快照
func (r *Redis) Save(ctx context.Context, roomID string, strokes []board.Stroke) error {
	data, err := json.Marshal(strokes)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := r.client.Set(ctx, keyPrefix+roomID, data, 0).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}
