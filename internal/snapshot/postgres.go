package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/drawboard/internal/board"
)

// Postgres 以 PostgreSQL 為後端的快照存儲
//
// 每個房間一行 jsonb。快照整體覆蓋，UPSERT 一條語句完成，
// 不需要顯式事務。schema 由 internal/snapshot/migrations 管理。
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres 創建 Postgres 存儲並驗證連線
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Load 讀取房間快照
func (p *Postgres) Load(ctx context.Context, roomID string) ([]board.Stroke, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT strokes FROM room_snapshots WHERE room_id = $1`,
		roomID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("room %q: %w", roomID, ErrNotFound)
		}
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	var strokes []board.Stroke
	if err := json.Unmarshal(data, &strokes); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return strokes, nil
}

// Save 覆蓋房間快照（UPSERT）
func (p *Postgres) Save(ctx context.Context, roomID string, strokes []board.Stroke) error {
	data, err := json.Marshal(strokes)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO room_snapshots (room_id, strokes, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (room_id)
		 DO UPDATE SET strokes = EXCLUDED.strokes, updated_at = now()`,
		roomID, data,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}
