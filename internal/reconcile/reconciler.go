package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/koopa0/drawboard/internal/board"
)

// 系統設計問題：
//   多個作者同時在重疊的屏幕位置繪製，如何讓彼此的未完成筆畫
//   不互相污染，又最終收斂到所有客戶端一致的畫面？
//
// 核心挑戰：
//   1. 隔離：兩個作者的繪製中像素不能互相覆蓋
//   2. 亂序：網路抖動讓片段亂序到達，是常態不是異常
//   3. 收斂：無論短暫流量的到達順序如何，快照重繪必須逐字節一致
//
// 設計方案：
//   ✅ 每遠端作者一個獨立繪製層 - 首次活動時惰性創建
//   ✅ 每作者時間戳閘門 - 嚴格更舊的到達直接靜默丟棄
//   ✅ 定期合併 - 只合併近期活躍的層，閒置層跳過
//   ✅ 快照重繪 - (時間戳, 層級) 雙鍵排序，確定性收斂

// DefaultConsolidateInterval 默認的層合併週期
const DefaultConsolidateInterval = 100 * time.Millisecond

// DefaultRecencyWindow 默認的「近期活躍」窗口
const DefaultRecencyWindow = 3 * time.Second

// surface 一個遠端作者的繪製層狀態
//
// 渲染內容本身在 Renderer 一側，這裡只保存排序閘門
// 與活躍度記錄。作者離開時整個銷毀。
type surface struct {
	lastAccepted time.Time // 排序閘門：最後接受的作者側時間戳
	lastActivity time.Time // 本地接收時刻，驅動近期活躍判定
	dirty        bool      // 自上次合併後是否有新內容
}

// Reconciler 客戶端衝突消解器
//
// 消費兩條流：短暫片段流與筆畫/狀態流，把渲染指令
// 派發到各作者層或合併視圖。單一互斥鎖保護全部入口，
// 每次調用的工作量有界，網路循環與合併循環可以任意交錯。
type Reconciler struct {
	mu       sync.Mutex
	renderer Renderer
	surfaces map[string]*surface

	recencyWindow time.Duration
}

// New 創建衝突消解器
func New(renderer Renderer) *Reconciler {
	return &Reconciler{
		renderer:      renderer,
		surfaces:      make(map[string]*surface),
		recencyWindow: DefaultRecencyWindow,
	}
}

// surfaceFor 取得（必要時惰性創建）作者層
func (r *Reconciler) surfaceFor(authorID string) *surface {
	s, ok := r.surfaces[authorID]
	if !ok {
		s = &surface{}
		r.surfaces[authorID] = s
	}
	return s
}

// accept 排序閘門：嚴格更舊的時間戳拒收，接受則推進閘門
//
// 亂序到達是網路抖動的常態，丟棄不記錯誤也不告警。
func (s *surface) accept(ts time.Time) bool {
	if ts.Before(s.lastAccepted) {
		return false
	}
	s.lastAccepted = ts
	return true
}

// HandleSegment 處理遠端作者的繪製中片段
//
// 片段只畫到該作者自己的層，等待定期合併 —— 唯一例外是
// 橡皮擦：擦除是破壞性的，必須立即同時作用到合併視圖，
// 否則要等一個合併週期擦除才可見。
func (r *Reconciler) HandleSegment(seg board.Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.surfaceFor(seg.AuthorID)
	if !s.accept(seg.ClientTime) {
		return
	}
	s.lastActivity = time.Now()
	s.dirty = true

	r.renderer.PaintSegment(seg.AuthorID, seg)
	if seg.Tool == board.ToolEraser {
		r.renderer.PaintSegment(Consolidated, seg)
	}
}

// HandleStroke 處理遠端作者的權威完成筆畫
//
// 與片段走同一道排序閘門。筆畫之後必有 full_state 跟進，
// 這裡畫到作者層只為降低合併前的視覺延遲。
func (r *Reconciler) HandleStroke(stroke board.Stroke) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.surfaceFor(stroke.AuthorID)
	if !s.accept(stroke.Timestamp) {
		return
	}
	s.lastActivity = time.Now()
	s.dirty = true

	r.renderer.PaintStroke(stroke.AuthorID, stroke)
	if stroke.Tool == board.ToolEraser {
		r.renderer.PaintStroke(Consolidated, stroke)
	}
}

// HandleFullState 處理權威快照：從零確定性重繪
//
// 丟棄所有作者層的內容、清空合併視圖，按
// (時間戳升序, 層級升序) 重畫每一筆 —— 這保證拿到同一份
// 快照的所有客戶端收斂到逐字節一致的畫面，無論此前
// 短暫流量以什麼順序到達。排序閘門保留：快照不會讓
// 更舊的在途片段重新變得可接受。
func (r *Reconciler) HandleFullState(strokes []board.Stroke) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for authorID, s := range r.surfaces {
		r.renderer.DropLayer(authorID)
		s.dirty = false
	}
	r.renderer.Reset()

	ordered := make([]board.Stroke, len(strokes))
	copy(ordered, strokes)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].Layer < ordered[j].Layer
	})

	for _, stroke := range ordered {
		r.renderer.PaintStroke(Consolidated, stroke)
	}
}

// HandleCleared 處理清空通知：一切歸零
func (r *Reconciler) HandleCleared() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for authorID, s := range r.surfaces {
		r.renderer.DropLayer(authorID)
		s.dirty = false
	}
	r.renderer.Reset()
}

// HandleUserLeft 作者離開：銷毀其層與閘門
func (r *Reconciler) HandleUserLeft(authorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.surfaces[authorID]; ok {
		r.renderer.DropLayer(authorID)
		delete(r.surfaces, authorID)
	}
}

// Consolidate 執行一輪層合併
//
// 只合併「近期有新內容」的層：dirty 且活躍時刻落在
// 窗口內。閒置層跳過，避免對靜止內容做冗餘合成。
// 合併造就了筆畫「安定下來」的觀感，而不需要作者之間
// 任何逐像素協調。
func (r *Reconciler) Consolidate(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for authorID, s := range r.surfaces {
		if !s.dirty || now.Sub(s.lastActivity) > r.recencyWindow {
			continue
		}
		r.renderer.MergeLayer(authorID)
		s.dirty = false
	}
}

// Run 以固定週期驅動層合併，直到 ctx 結束
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultConsolidateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			r.Consolidate(now)
		case <-ctx.Done():
			return
		}
	}
}

// SurfaceCount 當前存在的作者層數量（測試與觀測用）
func (r *Reconciler) SurfaceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.surfaces)
}
