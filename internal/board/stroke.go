package board

import "time"

// 系統設計問題：
//   如何表示多人共享畫布上的繪圖資料，讓所有客戶端能收斂到相同的畫面？
//
// 核心挑戰：
//   1. 權威性：完成的筆畫是持久、不可變的事實，必須由服務器統一編號
//   2. 即時性：繪製中的軌跡需要高頻傳輸，但不需要持久化
//   3. 排序：不同作者的筆畫到達順序不定，需要確定性的重繪順序
//
// 設計方案：
//   ✅ Stroke - 不可變的完成筆畫（進入 Log，參與 undo/redo）
//   ✅ Segment - 短暫的繪製中片段（只在線上傳遞，永不落地）
//   ✅ (Timestamp, Layer) 雙鍵排序 - 確定性重繪

// Tool 繪圖工具類型
type Tool string

const (
	ToolBrush  Tool = "brush"  // 畫筆：疊加內容
	ToolEraser Tool = "eraser" // 橡皮擦：破壞性移除內容
)

// Point 畫布上的 2D 座標
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke 一筆完成的繪圖動作
//
// 不可變性設計：
//   - 一旦 append 進 Log 就不再修改
//   - undo/redo 整筆移動，不做部分編輯
//   - ID 由服務器生成，永不重用（客戶端無法偽造）
//
// Layer 是作者加入房間時分配的層級索引：
//   - 在筆畫創建時快照，之後不隨作者狀態更新
//   - 只用於重繪時的排序決勝（相同 Timestamp 時）
type Stroke struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Color     string    `json:"color"`
	Width     float64   `json:"width"`
	Tool      Tool      `json:"tool"`
	Points    []Point   `json:"points"`
	Timestamp time.Time `json:"timestamp"`
	Layer     int       `json:"layer"`
}

// MaxSegmentPoints 單個片段攜帶的點數上限
//
// 片段只保留最近的幾個點：客戶端做局部曲線平滑只需要一個小窗口，
// 上限同時也限制了每次轉發的渲染成本。
const MaxSegmentPoints = 8

// Segment 繪製中的短暫片段
//
// 與 Stroke 的本質區別：
//   - 無身份：沒有 ID，不去重、不確認、不重傳
//   - 無持久化：永不進入 Log，也不參與 undo/redo
//   - 盡力而為：丟了就丟了，最終由權威的完成筆畫補齊
type Segment struct {
	AuthorID   string    `json:"author_id"`
	Points     []Point   `json:"points"`
	Color      string    `json:"color"`
	Width      float64   `json:"width"`
	Tool       Tool      `json:"tool"`
	ClientTime time.Time `json:"client_time"`
	ServerTime time.Time `json:"server_time"`
}
