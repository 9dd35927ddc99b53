package board

// Log 房間的權威筆畫序列
//
// 系統設計考量：
//
//  1. 全局 undo/redo（而非每作者獨立）：
//     問題：多人共享一個歷史，誰都可以撤銷最後一筆
//     方案：只操作序列尾端 —— undo 彈出最後 append 的筆畫（不論作者），
//     redo 把最近彈出的那筆放回尾端
//     優勢：語義簡單，所有客戶端對「下一個被撤銷的是誰」有一致答案
//
//  2. redo 棧的失效規則：
//     - append 新筆畫 → redo 棧整個丟棄（被撤銷的分支不可再達）
//     - clear → 序列與 redo 棧同時清空
//     - redo 本身 → 不影響 redo 棧其餘內容
//
//  3. 併發：Log 自身不帶鎖
//     所有修改必須經由持有房間鎖的 Room 方法進入，
//     兩個 undo 或 append 與 undo 非原子交錯會破壞尾端協議。
type Log struct {
	strokes []Stroke
	redo    []Stroke
	mutated bool // 是否發生過任何修改（水合競態判定用）
}

// Append 推入一筆新筆畫到尾端，並丟棄整個 redo 棧
func (l *Log) Append(s Stroke) {
	l.strokes = append(l.strokes, s)
	l.redo = nil
	l.mutated = true
}

// Undo 彈出尾端筆畫，推入 redo 棧
//
// 返回被彈出的筆畫（帶原作者，供通知使用）；序列為空時返回 nil。
func (l *Log) Undo() *Stroke {
	if len(l.strokes) == 0 {
		return nil
	}
	last := l.strokes[len(l.strokes)-1]
	l.strokes = l.strokes[:len(l.strokes)-1]
	l.redo = append(l.redo, last)
	l.mutated = true
	return &last
}

// Redo 從 redo 棧取回最近撤銷的筆畫，保留原有身份放回尾端
//
// redo 棧為空時返回 nil。注意這裡不走 Append：
// Append 會清空 redo 棧，而 redo 操作不應如此。
func (l *Log) Redo() *Stroke {
	if len(l.redo) == 0 {
		return nil
	}
	last := l.redo[len(l.redo)-1]
	l.redo = l.redo[:len(l.redo)-1]
	l.strokes = append(l.strokes, last)
	l.mutated = true
	return &last
}

// Clear 原子地清空序列與 redo 棧
func (l *Log) Clear() {
	l.strokes = nil
	l.redo = nil
	l.mutated = true
}

// Snapshot 返回當前序列的副本（供廣播或持久化）
func (l *Log) Snapshot() []Stroke {
	out := make([]Stroke, len(l.strokes))
	copy(out, l.strokes)
	return out
}

// Len 當前序列長度
func (l *Log) Len() int {
	return len(l.strokes)
}

// RedoLen 當前 redo 棧深度
func (l *Log) RedoLen() int {
	return len(l.redo)
}

// Mutated 是否發生過任何修改
//
// 供水合（hydration）競態判定：一旦為 true，
// 遲到的磁碟快照不得覆蓋記憶體中的新狀態。
func (l *Log) Mutated() bool {
	return l.mutated
}

// install 整體替換序列內容（僅限水合路徑，且 mutated 必須仍為 false）
func (l *Log) install(strokes []Stroke) {
	l.strokes = strokes
	l.redo = nil
}
