package reconcile

import "github.com/koopa0/drawboard/internal/board"

// Consolidated 共享合併視圖的層名
//
// 渲染器以空字串指代合併視圖，其餘層名即遠端作者的參與者 ID。
const Consolidated = ""

// Renderer 渲染端的邊界介面
//
// 像素合成、曲線繪製都是外部協作者的職責，
// 同步引擎只下達「畫在哪一層、合併哪一層」的指令：
//   - PaintSegment / PaintStroke：把內容畫到指定作者層（或合併視圖）
//   - MergeLayer：把作者層合成到合併視圖上
//   - DropLayer：銷毀作者層的內容
//   - Reset：清空包括合併視圖在內的一切
//
// 所有方法都應是小而有界的工作量，調用方會在持鎖狀態下調用。
type Renderer interface {
	PaintSegment(layer string, seg board.Segment)
	PaintStroke(layer string, s board.Stroke)
	MergeLayer(layer string)
	DropLayer(layer string)
	Reset()
}
