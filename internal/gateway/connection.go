package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koopa0/drawboard/internal/board"
)

// Connection 一條參與者連線
//
// 讀寫分離：readPump 消費入站消息並驅動房間操作，
// writePump 獨佔寫端並負責心跳。send channel 緩衝外發消息，
// 慢客戶端塞滿緩衝時直接丟棄該條消息，不拖累房間其他人。
type Connection struct {
	hub         *Hub
	room        *board.Room
	participant *board.Participant
	conn        *websocket.Conn
	send        chan []byte
	closeOnce   sync.Once
}

// enqueue 非阻塞投遞一條外發消息
func (c *Connection) enqueue(message []byte) {
	select {
	case c.send <- message:
	default:
		c.hub.logger.Warn("連線緩衝區滿，消息丟棄",
			"room_id", c.room.ID,
			"participant_id", c.participant.ID)
	}
}

// readPump 讀取並分發客戶端消息
//
// 心跳：60 秒內沒有任何消息（含 Pong）即視為死連線。
// 配合 writePump 的 54 秒 Ping，留 6 秒網路餘量。
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"room_id", c.room.ID,
					"participant_id", c.participant.ID)
			}
			break
		}
		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// writePump 寫入消息到客戶端並定期發送 Ping
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量帶走隊列中已排隊的消息
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 按類型分發入站消息
//
// 格式錯誤的消息記日誌後忽略：信任局域網姿態下
// 不做嚴格驗證，缺欄位走缺省規則。
func (c *Connection) handleMessage(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.hub.logger.Error("解析消息失敗",
			"error", err,
			"room_id", c.room.ID,
			"participant_id", c.participant.ID)
		return
	}

	switch env.Type {
	case MsgStroke:
		var req StrokeRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.hub.logger.Error("解析筆畫失敗", "error", err)
			return
		}
		c.handleStroke(req)
	case MsgSegment:
		var req SegmentRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.hub.logger.Error("解析片段失敗", "error", err)
			return
		}
		c.handleSegment(req)
	case MsgUndo:
		c.handleUndo()
	case MsgRedo:
		c.handleRedo()
	case MsgClear:
		c.handleClear()
	case MsgPing:
		var req PingRequest
		if err := json.Unmarshal(env.Data, &req); err == nil {
			c.enqueue(encode(MsgPong, Pong{ClientTime: req.ClientTime}))
		}
	default:
		c.hub.logger.Debug("未知消息類型",
			"type", env.Type,
			"room_id", c.room.ID,
			"participant_id", c.participant.ID)
	}
}

// handleStroke 處理完成筆畫的提交
//
// 服務器是層級與身份的唯一權威：筆畫的作者、層級
// 一律取會話記錄的值，時間戳缺省取服務器當前時間。
// append 後：異步持久化 → 全房廣播權威筆畫（含作者本人，
// 作者要用它校準自己的預測渲染）→ 全量快照廣播。
func (c *Connection) handleStroke(req StrokeRequest) {
	if len(req.Points) == 0 {
		return
	}

	ts := time.Now()
	if req.ClientTime != nil {
		ts = *req.ClientTime
	}
	tool := req.Tool
	if tool == "" {
		tool = board.ToolBrush
	}

	stroke := board.Stroke{
		AuthorID:  c.participant.ID,
		Color:     req.Color,
		Width:     req.Width,
		Tool:      tool,
		Points:    req.Points,
		Timestamp: ts,
		Layer:     c.participant.Layer,
	}
	stroke.ID = c.room.AppendStroke(stroke)

	c.hub.registry.SaveAsync(c.room)

	c.hub.broadcast(c.room.ID, encode(MsgStrokeAdded, StrokeAdded{Stroke: stroke}))
	c.hub.broadcast(c.room.ID, encode(MsgFullState, FullState{
		Strokes:    c.room.Snapshot(),
		ServerTime: time.Now(),
	}))
}

// handleSegment 短暫片段的無狀態轉發
//
// 永不落地：蓋上權威作者與接收時間戳，補缺省工具，
// 截斷點窗口，立刻轉發給房間內除發送者外的所有人。
// 沒有緩衝、沒有排序、沒有重試 —— 丟了就丟了，
// 最終由權威的完成筆畫補齊。
func (c *Connection) handleSegment(req SegmentRequest) {
	if len(req.Points) == 0 {
		return
	}

	tool := req.Tool
	if tool == "" {
		tool = board.ToolBrush
	}
	points := req.Points
	if len(points) > board.MaxSegmentPoints {
		points = points[len(points)-board.MaxSegmentPoints:]
	}
	clientTime := time.Now()
	if req.ClientTime != nil {
		clientTime = *req.ClientTime
	}

	seg := board.Segment{
		AuthorID:   c.participant.ID,
		Points:     points,
		Color:      req.Color,
		Width:      req.Width,
		Tool:       tool,
		ClientTime: clientTime,
		ServerTime: time.Now(),
	}
	c.hub.broadcastExcept(c.room.ID, c.participant.ID, encode(MsgSegment, seg))
}

// handleUndo 處理全局撤銷請求
//
// 成功 → 全房廣播 undo_applied + full_state，異步持久化；
// 無可撤銷 → 只回覆請求者，不廣播（協議層 no-op，非錯誤）。
func (c *Connection) handleUndo() {
	removed := c.room.Undo()
	if removed == nil {
		c.enqueue(encode(MsgUndoUnavailable, Unavailable{RequesterID: c.participant.ID}))
		return
	}

	c.hub.registry.SaveAsync(c.room)

	c.hub.broadcast(c.room.ID, encode(MsgUndoApplied, UndoApplied{
		RequesterID:      c.participant.ID,
		RemovedStrokeID:  removed.ID,
		OriginalAuthorID: removed.AuthorID,
	}))
	c.hub.broadcast(c.room.ID, encode(MsgFullState, FullState{
		Strokes:    c.room.Snapshot(),
		ServerTime: time.Now(),
	}))
}

// handleRedo 處理全局重做請求
func (c *Connection) handleRedo() {
	restored := c.room.Redo()
	if restored == nil {
		c.enqueue(encode(MsgRedoUnavailable, Unavailable{RequesterID: c.participant.ID}))
		return
	}

	c.hub.registry.SaveAsync(c.room)

	c.hub.broadcast(c.room.ID, encode(MsgRedoApplied, RedoApplied{
		RequesterID:      c.participant.ID,
		Stroke:           *restored,
		OriginalAuthorID: restored.AuthorID,
	}))
	c.hub.broadcast(c.room.ID, encode(MsgFullState, FullState{
		Strokes:    c.room.Snapshot(),
		ServerTime: time.Now(),
	}))
}

// handleClear 處理清空請求
//
// 不需要跟隨 full_state：客戶端收到 cleared 自行重置視圖。
func (c *Connection) handleClear() {
	c.room.Clear()
	c.hub.registry.SaveAsync(c.room)
	c.hub.broadcast(c.room.ID, encode(MsgCleared, Cleared{RequesterID: c.participant.ID}))
}
