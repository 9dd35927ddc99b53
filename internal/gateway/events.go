package gateway

import (
	"encoding/json"
	"time"

	"github.com/koopa0/drawboard/internal/board"
)

// 事件詞彙表：客戶端與服務器之間的全部消息類型
//
// 線上格式為帶類型標記的 JSON 信封 {"type": ..., "data": ...}。
// 缺省規則（信任局域網的寬鬆姿態，不做嚴格 schema 驗證）：
//   - 缺少 client_time → 服務器以當前時間補上
//   - 缺少 tool → 默認畫筆
//   - 層級索引一律取服務器記錄的值，不信任客戶端載荷

// 客戶端 → 服務器
const (
	MsgStroke  = "stroke"  // 提交一筆完成的筆畫
	MsgSegment = "segment" // 繪製中的短暫片段
	MsgUndo    = "undo"    // 請求全局撤銷
	MsgRedo    = "redo"    // 請求全局重做
	MsgClear   = "clear"   // 請求清空畫布
	MsgPing    = "ping"    // 延遲探測
)

// 服務器 → 客戶端
const (
	MsgWelcome         = "welcome"          // 僅發給新加入者
	MsgUserJoined      = "user_joined"      // 發給房間其他人
	MsgUserLeft        = "user_left"        // 參與者離開
	MsgStrokeAdded     = "stroke_added"     // 權威筆畫（含作者本人）
	MsgFullState       = "full_state"       // 結構性變更後的全量快照
	MsgUndoApplied     = "undo_applied"     // 撤銷成功（全房廣播）
	MsgUndoUnavailable = "undo_unavailable" // 無可撤銷（僅請求者）
	MsgRedoApplied     = "redo_applied"     // 重做成功（全房廣播）
	MsgRedoUnavailable = "redo_unavailable" // 無可重做（僅請求者）
	MsgCleared         = "cleared"          // 畫布已清空
	MsgPong            = "pong"             // 延遲探測回音
)

// Envelope 消息信封
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StrokeRequest 客戶端提交的完成筆畫
//
// 服務器只取繪圖內容，身份、層級與 ID 由服務器權威決定。
type StrokeRequest struct {
	Color      string        `json:"color"`
	Width      float64       `json:"width"`
	Tool       board.Tool    `json:"tool,omitempty"`
	Points     []board.Point `json:"points"`
	ClientTime *time.Time    `json:"client_time,omitempty"`
}

// SegmentRequest 客戶端送出的繪製中片段
type SegmentRequest struct {
	Points     []board.Point `json:"points"`
	Color      string        `json:"color"`
	Width      float64       `json:"width"`
	Tool       board.Tool    `json:"tool,omitempty"`
	ClientTime *time.Time    `json:"client_time,omitempty"`
}

// PingRequest 延遲探測
type PingRequest struct {
	ClientTime time.Time `json:"client_time"`
}

// Welcome 發給新加入者的初始狀態
type Welcome struct {
	ID      string              `json:"id"`
	Color   string              `json:"color"`
	Layer   int                 `json:"layer"`
	Strokes []board.Stroke      `json:"strokes"`
	Roster  []board.Participant `json:"roster"`
}

// UserJoined 新參與者加入通知
type UserJoined struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Layer int    `json:"layer"`
}

// UserLeft 參與者離開通知
type UserLeft struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// StrokeAdded 權威筆畫廣播
type StrokeAdded struct {
	Stroke board.Stroke `json:"stroke"`
}

// FullState 全量快照廣播
//
// 在加入、append、undo、redo 之後發出，
// 客戶端據此做確定性重繪以收斂到一致畫面。
type FullState struct {
	Strokes    []board.Stroke `json:"strokes"`
	ServerTime time.Time      `json:"server_time"`
}

// UndoApplied 撤銷成功通知（同時記錄請求者與原作者）
type UndoApplied struct {
	RequesterID      string `json:"requester_id"`
	RemovedStrokeID  string `json:"removed_stroke_id"`
	OriginalAuthorID string `json:"original_author_id"`
}

// RedoApplied 重做成功通知
type RedoApplied struct {
	RequesterID      string       `json:"requester_id"`
	Stroke           board.Stroke `json:"stroke"`
	OriginalAuthorID string       `json:"original_author_id"`
}

// Unavailable 無可撤銷／重做（僅回覆請求者，不廣播）
type Unavailable struct {
	RequesterID string `json:"requester_id"`
}

// Cleared 清空通知
type Cleared struct {
	RequesterID string `json:"requester_id"`
}

// Pong 延遲探測回音
type Pong struct {
	ClientTime time.Time `json:"client_time"`
}

// encode 打包一條外發消息；載荷序列化失敗屬於編程錯誤，直接 panic
func encode(msgType string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		panic("gateway: encode " + msgType + ": " + err.Error())
	}
	out, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		panic("gateway: encode envelope: " + err.Error())
	}
	return out
}
