package board

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// 系統設計問題：
//   如何讓同一房間的所有修改互斥，而不同房間完全獨立並行？
//
// 設計方案：
//   ✅ 每個 Room 一把鎖 - append/undo/redo/clear/水合安裝 全部互斥
//   ✅ Room 之外不共享任何可變狀態 - 房間之間天然並行
//   ✅ 層級索引單調遞增 - 離開的參與者不釋放自己的層級

// Palette 參與者顏色的固定調色盤
//
// 允許撞色：調色盤輪轉分配，參與者多於顏色數時必然重複，
// 顏色只是視覺輔助，不承擔身份識別。
var Palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// Participant 房間內的一個參與者
//
// ID 由服務器在連線時分配（uuid），客戶端不可自選，
// 防止冒充其他會話。
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Layer    int       `json:"layer"`
	JoinedAt time.Time `json:"joined_at"`
}

// Room 一個獨立的繪圖房間
//
// 生命週期：
//   - 首次 join 時惰性創建
//   - 參與者歸零也不自動刪除（狀態保留在記憶體）
//   - 只在進程關閉時消失
//
// 併發模型：
//   - 一把互斥鎖覆蓋 Log 的全部五種修改操作與水合安裝
//   - 讀操作（Snapshot、Roster）同樣走鎖，拿到的是副本
type Room struct {
	ID string

	mu           sync.Mutex
	log          Log
	participants map[string]*Participant
	nextLayer    int // 單調遞增的加入計數，層級永不回收
	hydrated     bool
}

// NewRoom 創建空房間
func NewRoom(id string) *Room {
	return &Room{
		ID:           id,
		participants: make(map[string]*Participant),
	}
}

// Join 加入一個參與者，分配身份、顏色與層級
//
// 層級索引取自單調遞增的加入計數：
// 三人依序加入得到 0、1、2；第一人離開後第四人加入得到 3 而非 0。
// 層級只作為重繪排序的決勝鍵，回收再利用會讓歷史筆畫的排序漂移。
func (r *Room) Join(name string) *Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &Participant{
		ID:       uuid.NewString(),
		Name:     name,
		Color:    Palette[r.nextLayer%len(Palette)],
		Layer:    r.nextLayer,
		JoinedAt: time.Now(),
	}
	r.nextLayer++
	r.participants[p.ID] = p
	return p
}

// Leave 移除參與者
//
// 返回被移除的參與者（不存在時返回 nil）。層級不回收。
func (r *Room) Leave(participantID string) *Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok {
		return nil
	}
	delete(r.participants, participantID)
	return p
}

// Participant 查詢參與者
func (r *Room) Participant(id string) (*Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	return p, ok
}

// Roster 當前參與者名單的副本
func (r *Room) Roster() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		roster = append(roster, *p)
	}
	return roster
}

// ParticipantCount 當前參與者數量
func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// AppendStroke 推入一筆完成的筆畫，返回分配的筆畫 ID
//
// ID 為空時由這裡生成（uuid，永不重用）。
// append 會丟棄整個 redo 棧。
func (r *Room) AppendStroke(s Stroke) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	r.log.Append(s)
	return s.ID
}

// Undo 撤銷最後一筆（全局，不分作者）
func (r *Room) Undo() *Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Undo()
}

// Redo 重做最近撤銷的一筆
func (r *Room) Redo() *Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Redo()
}

// Clear 清空畫布（序列與 redo 棧一併清空）
func (r *Room) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Clear()
}

// Snapshot 當前筆畫序列的副本
func (r *Room) Snapshot() []Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Snapshot()
}

// StrokeCount 當前序列長度
func (r *Room) StrokeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Len()
}

// InstallHydrated 安裝異步水合載入的快照
//
// 競態規則（丟棄優先）：
//   - Log 尚未發生任何修改 → 整體替換為載入的內容，返回 true
//   - 已有修改（快手在磁碟讀完前畫了第一筆）→ 丟棄載入結果，返回 false
//
// 寧可丟掉舊快照，也不能讓慢速磁碟讀取覆蓋掉參與者剛畫的筆畫。
func (r *Room) InstallHydrated(strokes []Stroke) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hydrated || r.log.Mutated() {
		return false
	}
	r.log.install(strokes)
	r.hydrated = true
	return true
}
