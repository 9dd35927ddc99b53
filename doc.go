// Package drawboard 提供一個多人即時共享畫布的同步引擎。
//
// 許多參與者在同一張虛擬畫布上並發繪圖，彼此以極低延遲看到
// 對方的筆畫，並共享一條房間級的全局 undo/redo 歷史。
//
// 兩層廣播協議
//
// 繪圖動作在線上分成兩類流量：
//   - 短暫片段（Segment）：繪製中的高頻軌跡，無狀態轉發、
//     永不持久化、丟了就丟了
//   - 持久筆畫（Stroke）：一筆完成的權威事實，進入房間的
//     筆畫序列並廣播給包括作者在內的所有人
//
// 房間與權威狀態
//
// 每個房間擁有一條權威的筆畫序列（Log）：
//   - append / undo / redo / clear 全部互斥，只操作序列尾端
//   - undo 是全局的：撤銷最後一筆，不論作者是誰
//   - append 與 clear 丟棄整個 redo 棧
//   - 房間惰性創建，永不自動刪除
//
// 客戶端衝突消解
//
// 每個遠端作者對應一個獨立繪製層，配一道每作者的時間戳閘門
// （嚴格更舊的到達靜默丟棄），定期把近期活躍的層合併到共享
// 視圖；收到權威快照時按 (時間戳, 層級) 從零重繪，
// 保證所有客戶端收斂到一致畫面。
//
// 持久化
//
// 快照保存是盡力而為的異步操作：修改完成並廣播後才發起，
// 失敗只記日誌；房間創建時的異步水合輸給任何更早的修改
// 時會被整體丟棄，絕不覆蓋新狀態。
// 支援 memory / file / redis / postgres 四種後端。
//
// 架構分層
//
//   - internal/board：筆畫模型、權威序列、房間與註冊表
//   - internal/gateway：WebSocket 會話網關與片段轉發
//   - internal/reconcile：客戶端衝突消解器
//   - internal/snapshot：快照持久化邊界與各後端
//
// 啟動服務器：
//
//	go run ./cmd/server -port 8080
//
// 無頭客戶端觀察一個房間：
//
//	go run ./cmd/client -addr localhost:8080 -room demo
package drawboard
