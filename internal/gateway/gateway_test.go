package gateway_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/drawboard/internal/board"
	"github.com/koopa0/drawboard/internal/gateway"
	"github.com/koopa0/drawboard/internal/snapshot"
)

// testServer 組裝一個完整的網關測試環境
func testServer(t *testing.T) (*httptest.Server, *board.Registry) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	registry := board.NewRegistry(snapshot.NewMemory(), logger)
	hub := gateway.NewHub(registry, logger)
	handler := gateway.NewHandler(registry, hub, logger)

	server := httptest.NewServer(handler.Routes())
	t.Cleanup(func() {
		hub.Stop()
		server.Close()
		registry.Wait()
	})
	return server, registry
}

// wsClient 測試用的 WebSocket 客戶端
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn

	// welcome 內容
	ID    string
	Color string
	Layer int
}

// dial 連上網關並消化 welcome
func dial(t *testing.T, server *httptest.Server, room, name string) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?room=" + room + "&name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &wsClient{t: t, conn: conn}

	var w gateway.Welcome
	env := c.readEnvelope()
	require.Equal(t, gateway.MsgWelcome, env.Type)
	require.NoError(t, json.Unmarshal(env.Data, &w))
	c.ID = w.ID
	c.Color = w.Color
	c.Layer = w.Layer
	return c
}

// readEnvelope 讀取下一條消息（3 秒超時）
func (c *wsClient) readEnvelope() gateway.Envelope {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, message, err := c.conn.ReadMessage()
	require.NoError(c.t, err)

	var env gateway.Envelope
	require.NoError(c.t, json.Unmarshal(message, &env))
	return env
}

// expect 讀取下一條消息並斷言類型，解碼載荷到 target
func (c *wsClient) expect(msgType string, target any) {
	c.t.Helper()

	env := c.readEnvelope()
	require.Equal(c.t, msgType, env.Type, "期待 %s，收到 %s", msgType, env.Type)
	if target != nil {
		require.NoError(c.t, json.Unmarshal(env.Data, target))
	}
}

// send 發送一條消息
func (c *wsClient) send(msgType string, payload any) {
	c.t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(c.t, err)
	env, err := json.Marshal(gateway.Envelope{Type: msgType, Data: data})
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, env))
}

// TestGateway_WelcomeOnJoin 測試加入流程的身份分配與初始狀態
func TestGateway_WelcomeOnJoin(t *testing.T) {
	server, _ := testServer(t)

	a := dial(t, server, "demo", "alice")
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, 0, a.Layer)
	assert.Equal(t, board.Palette[0], a.Color)

	b := dial(t, server, "demo", "bob")
	assert.Equal(t, 1, b.Layer)
	assert.NotEqual(t, a.ID, b.ID)

	// 現有成員收到 user_joined（帶層級）
	var joined gateway.UserJoined
	a.expect(gateway.MsgUserJoined, &joined)
	assert.Equal(t, b.ID, joined.ID)
	assert.Equal(t, "bob", joined.Name)
	assert.Equal(t, 1, joined.Layer)
}

// TestGateway_DefaultRoom 測試缺省房間
func TestGateway_DefaultRoom(t *testing.T) {
	server, registry := testServer(t)

	dial(t, server, "", "alice")

	_, ok := registry.Get(gateway.DefaultRoom)
	assert.True(t, ok, "未指定房間時進入公共房間")
}

// TestGateway_StrokeBroadcast 測試權威筆畫廣播（含作者本人）
func TestGateway_StrokeBroadcast(t *testing.T) {
	server, _ := testServer(t)

	a := dial(t, server, "demo", "alice")
	b := dial(t, server, "demo", "bob")
	a.expect(gateway.MsgUserJoined, nil)

	a.send(gateway.MsgStroke, gateway.StrokeRequest{
		Color:  "#000000",
		Width:  3,
		Points: []board.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
	})

	// 作者本人也收到權威副本（校準預測渲染用）
	var added gateway.StrokeAdded
	a.expect(gateway.MsgStrokeAdded, &added)
	assert.NotEmpty(t, added.Stroke.ID, "筆畫 ID 由服務器分配")
	assert.Equal(t, a.ID, added.Stroke.AuthorID, "作者取會話身份")
	assert.Equal(t, 0, added.Stroke.Layer, "層級取服務器記錄的值")
	assert.Equal(t, board.ToolBrush, added.Stroke.Tool, "工具缺省為畫筆")
	assert.False(t, added.Stroke.Timestamp.IsZero(), "時間戳缺省為服務器當前時間")

	// 筆畫之後跟著全量快照
	var fs gateway.FullState
	a.expect(gateway.MsgFullState, &fs)
	require.Len(t, fs.Strokes, 1)
	assert.Equal(t, added.Stroke.ID, fs.Strokes[0].ID)

	// 其他成員收到同樣的兩條
	var addedAtB gateway.StrokeAdded
	b.expect(gateway.MsgStrokeAdded, &addedAtB)
	assert.Equal(t, added.Stroke.ID, addedAtB.Stroke.ID)
	b.expect(gateway.MsgFullState, nil)
}

// TestGateway_SegmentRelay 測試片段轉發：排除發送者、蓋權威戳記
func TestGateway_SegmentRelay(t *testing.T) {
	server, _ := testServer(t)

	a := dial(t, server, "demo", "alice")
	b := dial(t, server, "demo", "bob")
	a.expect(gateway.MsgUserJoined, nil)

	a.send(gateway.MsgSegment, gateway.SegmentRequest{
		Points: []board.Point{{X: 1, Y: 1}, {X: 2, Y: 2}},
		Color:  "#ff0000",
		Width:  2,
		// 故意不帶 tool 與 client_time：走缺省規則
	})

	var seg board.Segment
	b.expect(gateway.MsgSegment, &seg)
	assert.Equal(t, a.ID, seg.AuthorID, "作者身份由服務器蓋章")
	assert.Equal(t, board.ToolBrush, seg.Tool, "工具缺省為畫筆")
	assert.False(t, seg.ServerTime.IsZero(), "接收時間戳由服務器分配")
	assert.Len(t, seg.Points, 2)

	// 發送者不收到自己的片段：下一條到達 A 的消息是 pong 而非 segment
	a.send(gateway.MsgPing, gateway.PingRequest{ClientTime: time.Unix(42, 0)})
	var pong gateway.Pong
	a.expect(gateway.MsgPong, &pong)
	assert.Equal(t, time.Unix(42, 0).UTC(), pong.ClientTime.UTC())
}

// TestGateway_SegmentPointWindowClamped 測試片段點窗口截斷
func TestGateway_SegmentPointWindowClamped(t *testing.T) {
	server, _ := testServer(t)

	a := dial(t, server, "demo", "alice")
	b := dial(t, server, "demo", "bob")
	a.expect(gateway.MsgUserJoined, nil)

	points := make([]board.Point, 20)
	for i := range points {
		points[i] = board.Point{X: float64(i), Y: float64(i)}
	}
	a.send(gateway.MsgSegment, gateway.SegmentRequest{Points: points, Color: "#000", Width: 1})

	var seg board.Segment
	b.expect(gateway.MsgSegment, &seg)
	require.Len(t, seg.Points, board.MaxSegmentPoints, "只保留最近的點窗口")
	assert.Equal(t, float64(19), seg.Points[len(seg.Points)-1].X, "保留的是尾端的點")
}

// TestGateway_UndoRedoFlow 測試撤銷／重做的廣播與私發
func TestGateway_UndoRedoFlow(t *testing.T) {
	server, _ := testServer(t)

	a := dial(t, server, "demo", "alice")
	b := dial(t, server, "demo", "bob")
	a.expect(gateway.MsgUserJoined, nil)

	// 空房間 undo：只有請求者收到 unavailable
	a.send(gateway.MsgUndo, struct{}{})
	var unavail gateway.Unavailable
	a.expect(gateway.MsgUndoUnavailable, &unavail)
	assert.Equal(t, a.ID, unavail.RequesterID)

	// A 畫一筆
	a.send(gateway.MsgStroke, gateway.StrokeRequest{
		Color: "#000", Width: 1, Points: []board.Point{{X: 1, Y: 1}},
	})
	var added gateway.StrokeAdded
	a.expect(gateway.MsgStrokeAdded, &added)
	a.expect(gateway.MsgFullState, nil)
	b.expect(gateway.MsgStrokeAdded, nil)
	b.expect(gateway.MsgFullState, nil)

	// B 撤銷 A 的筆畫：全局 undo 不分作者，全房廣播
	b.send(gateway.MsgUndo, struct{}{})

	var undoA, undoB gateway.UndoApplied
	a.expect(gateway.MsgUndoApplied, &undoA)
	b.expect(gateway.MsgUndoApplied, &undoB)
	assert.Equal(t, b.ID, undoA.RequesterID, "請求者是 B")
	assert.Equal(t, a.ID, undoA.OriginalAuthorID, "原作者是 A")
	assert.Equal(t, added.Stroke.ID, undoA.RemovedStrokeID)

	var fs gateway.FullState
	a.expect(gateway.MsgFullState, &fs)
	assert.Empty(t, fs.Strokes)
	b.expect(gateway.MsgFullState, nil)

	// redo 恢復原身份
	a.send(gateway.MsgRedo, struct{}{})
	var redo gateway.RedoApplied
	a.expect(gateway.MsgRedoApplied, &redo)
	assert.Equal(t, added.Stroke.ID, redo.Stroke.ID, "redo 保留原 ID")
	assert.Equal(t, a.ID, redo.OriginalAuthorID)
	a.expect(gateway.MsgFullState, nil)
	b.expect(gateway.MsgRedoApplied, nil)
	b.expect(gateway.MsgFullState, nil)

	// redo 棧已空：再 redo 只有請求者收到 unavailable
	a.send(gateway.MsgRedo, struct{}{})
	a.expect(gateway.MsgRedoUnavailable, &unavail)
	assert.Equal(t, a.ID, unavail.RequesterID)
}

// TestGateway_Clear 測試清空廣播
func TestGateway_Clear(t *testing.T) {
	server, registry := testServer(t)

	a := dial(t, server, "demo", "alice")
	b := dial(t, server, "demo", "bob")
	a.expect(gateway.MsgUserJoined, nil)

	a.send(gateway.MsgStroke, gateway.StrokeRequest{
		Color: "#000", Width: 1, Points: []board.Point{{X: 1, Y: 1}},
	})
	a.expect(gateway.MsgStrokeAdded, nil)
	a.expect(gateway.MsgFullState, nil)
	b.expect(gateway.MsgStrokeAdded, nil)
	b.expect(gateway.MsgFullState, nil)

	b.send(gateway.MsgClear, struct{}{})

	var cleared gateway.Cleared
	a.expect(gateway.MsgCleared, &cleared)
	assert.Equal(t, b.ID, cleared.RequesterID)
	b.expect(gateway.MsgCleared, nil)

	room, ok := registry.Get("demo")
	require.True(t, ok)
	assert.Equal(t, 0, room.StrokeCount())

	// clear 也重置了 redo 歷史
	a.send(gateway.MsgRedo, struct{}{})
	a.expect(gateway.MsgRedoUnavailable, nil)
}

// TestGateway_RoomIsolation 測試房間之間互不可見
func TestGateway_RoomIsolation(t *testing.T) {
	server, _ := testServer(t)

	a := dial(t, server, "room-x", "alice")
	b := dial(t, server, "room-y", "bob")

	b.send(gateway.MsgStroke, gateway.StrokeRequest{
		Color: "#000", Width: 1, Points: []board.Point{{X: 1, Y: 1}},
	})
	b.expect(gateway.MsgStrokeAdded, nil)
	b.expect(gateway.MsgFullState, nil)

	// A 所在房間安靜如常：下一條到達 A 的是自己的 pong
	a.send(gateway.MsgPing, gateway.PingRequest{ClientTime: time.Now()})
	a.expect(gateway.MsgPong, nil)
}

// TestGateway_DisconnectBroadcastsLeft 測試離線通知與層級不回收
func TestGateway_DisconnectBroadcastsLeft(t *testing.T) {
	server, registry := testServer(t)

	a := dial(t, server, "demo", "alice")
	b := dial(t, server, "demo", "bob")
	a.expect(gateway.MsgUserJoined, nil)

	b.conn.Close()

	var left gateway.UserLeft
	a.expect(gateway.MsgUserLeft, &left)
	assert.Equal(t, b.ID, left.ID)
	assert.Equal(t, "bob", left.Name)

	// 第三人加入拿到層級 2 而非 1
	c := dial(t, server, "demo", "carol")
	assert.Equal(t, 2, c.Layer)

	room, ok := registry.Get("demo")
	require.True(t, ok)
	assert.Equal(t, 2, room.ParticipantCount())
}

// TestHandler_HealthAndStats 測試運維端點
func TestHandler_HealthAndStats(t *testing.T) {
	server, _ := testServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	dial(t, server, "demo", "alice")

	resp, err = http.Get(server.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.EqualValues(t, 1, stats["total_rooms"])
	assert.EqualValues(t, 1, stats["total_participants"])
}

// TestGateway_WelcomeCarriesExistingState 測試後來者拿到既有筆畫與名單
func TestGateway_WelcomeCarriesExistingState(t *testing.T) {
	server, _ := testServer(t)

	a := dial(t, server, "demo", "alice")
	a.send(gateway.MsgStroke, gateway.StrokeRequest{
		Color: "#000", Width: 1, Points: []board.Point{{X: 1, Y: 1}},
	})
	a.expect(gateway.MsgStrokeAdded, nil)
	a.expect(gateway.MsgFullState, nil)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?room=demo&name=bob"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	c := &wsClient{t: t, conn: conn}
	var w gateway.Welcome
	c.expect(gateway.MsgWelcome, &w)
	assert.Len(t, w.Strokes, 1, "welcome 帶既有筆畫快照")
	assert.Len(t, w.Roster, 2, "welcome 帶完整名單")
}
