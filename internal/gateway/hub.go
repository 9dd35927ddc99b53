package gateway

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koopa0/drawboard/internal/board"
)

// 系統設計問題：
//   如何把許多 WebSocket 連線橋接到各自房間的權威狀態，
//   並以兩層協議（短暫片段 / 持久筆畫）保持所有人一致？
//
// 核心挑戰：
//   1. 路由：一條連線只屬於一個房間，廣播必須限定在房間內
//   2. 身份：參與者身份由服務器分配，載荷中的身份欄位一律不信任
//   3. 背壓：慢客戶端不能拖住整個房間的廣播
//   4. 心跳：檢測死連線（54s Ping / 60s 讀超時）
//
// 設計方案：
//   ✅ Hub 模式 - map[roomID]map[participantID]*Connection 兩層映射
//   ✅ 緩衝 Send channel（256）- 異步發送，滿了丟棄
//   ✅ readPump / writePump 分離 - gorilla/websocket 標準用法

// DefaultRoom 連線未指定房間時使用的公共房間
const DefaultRoom = "lobby"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // 必須小於 pongWait，留網路傳輸餘量
	sendBufferSize = 256
)

// Hub WebSocket 連線中心
//
// 集中管理所有房間的所有連線，支持房間級別的三種投遞：
// 全房廣播、排除發送者的廣播、單播。
type Hub struct {
	registry *board.Registry
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[string]map[string]*Connection // roomID -> participantID -> Connection
}

// NewHub 創建連線中心
func NewHub(registry *board.Registry, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 信任局域網部署，生產環境應檢查來源
				return true
			},
		},
		connections: make(map[string]map[string]*Connection),
	}
}

// ServeWS 處理 WebSocket 連線請求
//
// 加入流程：
//  1. 解析房間（缺省進入公共房間）與顯示名稱
//  2. 惰性創建房間並加入，由服務器分配身份、顏色、層級
//  3. 升級連線、註冊到 Hub
//  4. 對新加入者：welcome（身份 + 快照 + 名單）
//     對其他成員：user_joined
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = DefaultRoom
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "guest"
	}

	room := h.registry.GetOrCreate(roomID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	participant := room.Join(name)

	c := &Connection{
		hub:         h,
		room:        room,
		participant: participant,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
	}
	h.register(c)

	// 順序很重要：welcome 必須先於任何後續廣播到達新客戶端，
	// 客戶端以快照為基準再疊加增量
	c.enqueue(encode(MsgWelcome, Welcome{
		ID:      participant.ID,
		Color:   participant.Color,
		Layer:   participant.Layer,
		Strokes: room.Snapshot(),
		Roster:  room.Roster(),
	}))
	h.broadcastExcept(room.ID, participant.ID, encode(MsgUserJoined, UserJoined{
		ID:    participant.ID,
		Name:  participant.Name,
		Color: participant.Color,
		Layer: participant.Layer,
	}))

	go c.writePump()
	go c.readPump()

	h.logger.Info("參與者已連線",
		"room_id", room.ID,
		"participant_id", participant.ID,
		"name", name,
		"layer", participant.Layer)
}

// register 註冊連線
func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[c.room.ID] == nil {
		h.connections[c.room.ID] = make(map[string]*Connection)
	}
	h.connections[c.room.ID][c.participant.ID] = c
}

// unregister 取消註冊並處理離開流程
func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	roomConns, ok := h.connections[c.room.ID]
	if !ok || roomConns[c.participant.ID] != c {
		h.mu.Unlock()
		return
	}
	delete(roomConns, c.participant.ID)
	if len(roomConns) == 0 {
		delete(h.connections, c.room.ID)
	}
	h.mu.Unlock()

	c.closeOnce.Do(func() { close(c.send) })

	// 房間保留參與者記錄直到連線斷開；層級不回收
	if left := c.room.Leave(c.participant.ID); left != nil {
		h.broadcast(c.room.ID, encode(MsgUserLeft, UserLeft{
			ID:    left.ID,
			Name:  left.Name,
			Color: left.Color,
		}))
		h.logger.Info("參與者已離線",
			"room_id", c.room.ID,
			"participant_id", left.ID,
			"name", left.Name)
	}
}

// broadcast 廣播到房間內所有連線
func (h *Hub) broadcast(roomID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.connections[roomID] {
		c.enqueue(message)
	}
}

// broadcastExcept 廣播到房間內除指定參與者外的所有連線
func (h *Hub) broadcastExcept(roomID, exceptID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.connections[roomID] {
		if id == exceptID {
			continue
		}
		c.enqueue(message)
	}
}

// ConnectionCount 各房間的連線數（/stats 用）
func (h *Hub) ConnectionCount() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[string]int, len(h.connections))
	for roomID, conns := range h.connections {
		result[roomID] = len(conns)
	}
	return result
}

// Stop 關閉所有連線
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, roomConns := range h.connections {
		for _, c := range roomConns {
			c.closeOnce.Do(func() { close(c.send) })
			c.conn.Close()
		}
	}
	h.connections = make(map[string]map[string]*Connection)

	h.logger.Info("連線中心已停止")
}
