// 無頭客戶端：連上網關後把服務器事件流餵進衝突消解器，
// 用日誌渲染器把「畫在哪一層、何時合併」的決策打印出來。
// 不含任何 UI，用於驗證客戶端協議的完整往返。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koopa0/drawboard/internal/board"
	"github.com/koopa0/drawboard/internal/gateway"
	"github.com/koopa0/drawboard/internal/reconcile"
)

func main() {
	var (
		addr = flag.String("addr", "localhost:8080", "服務器地址")
		room = flag.String("room", "", "房間識別碼（留空進入公共房間）")
		name = flag.String("name", "observer", "顯示名稱")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	q := u.Query()
	if *room != "" {
		q.Set("room", *room)
	}
	q.Set("name", *name)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Error("連線失敗", "url", u.String(), "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("已連線", "url", u.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := reconcile.New(&logRenderer{logger: logger})
	go rec.Run(ctx, reconcile.DefaultConsolidateInterval)

	// 定期延遲探測
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				payload, _ := json.Marshal(gateway.PingRequest{ClientTime: time.Now()})
				env, _ := json.Marshal(gateway.Envelope{Type: gateway.MsgPing, Data: payload})
				if err := conn.WriteMessage(websocket.TextMessage, env); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			logger.Info("連線已關閉", "error", err)
			return
		}
		dispatch(logger, rec, message)
	}
}

// dispatch 解析服務器事件並驅動消解器
func dispatch(logger *slog.Logger, rec *reconcile.Reconciler, message []byte) {
	var env gateway.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		logger.Error("解析消息失敗", "error", err)
		return
	}

	switch env.Type {
	case gateway.MsgWelcome:
		var w gateway.Welcome
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return
		}
		logger.Info("加入成功",
			"id", w.ID, "color", w.Color, "layer", w.Layer,
			"strokes", len(w.Strokes), "roster", len(w.Roster))
		rec.HandleFullState(w.Strokes)

	case gateway.MsgSegment:
		var seg board.Segment
		if err := json.Unmarshal(env.Data, &seg); err != nil {
			return
		}
		rec.HandleSegment(seg)

	case gateway.MsgStrokeAdded:
		var added gateway.StrokeAdded
		if err := json.Unmarshal(env.Data, &added); err != nil {
			return
		}
		rec.HandleStroke(added.Stroke)

	case gateway.MsgFullState:
		var fs gateway.FullState
		if err := json.Unmarshal(env.Data, &fs); err != nil {
			return
		}
		rec.HandleFullState(fs.Strokes)

	case gateway.MsgCleared:
		rec.HandleCleared()

	case gateway.MsgUserJoined:
		var joined gateway.UserJoined
		if err := json.Unmarshal(env.Data, &joined); err != nil {
			return
		}
		logger.Info("參與者加入", "id", joined.ID, "name", joined.Name, "layer", joined.Layer)

	case gateway.MsgUserLeft:
		var left gateway.UserLeft
		if err := json.Unmarshal(env.Data, &left); err != nil {
			return
		}
		logger.Info("參與者離開", "id", left.ID, "name", left.Name)
		rec.HandleUserLeft(left.ID)

	case gateway.MsgUndoApplied, gateway.MsgRedoApplied,
		gateway.MsgUndoUnavailable, gateway.MsgRedoUnavailable:
		logger.Info("歷史操作", "type", env.Type)

	case gateway.MsgPong:
		var pong gateway.Pong
		if err := json.Unmarshal(env.Data, &pong); err != nil {
			return
		}
		logger.Debug("延遲", "rtt", time.Since(pong.ClientTime))
	}
}

// logRenderer 以日誌代替像素的渲染器
type logRenderer struct {
	logger *slog.Logger
}

func (r *logRenderer) PaintSegment(layer string, seg board.Segment) {
	r.logger.Debug("畫片段", "layer", layerName(layer), "author", seg.AuthorID, "points", len(seg.Points), "tool", seg.Tool)
}

func (r *logRenderer) PaintStroke(layer string, s board.Stroke) {
	r.logger.Debug("畫筆畫", "layer", layerName(layer), "stroke", s.ID, "points", len(s.Points), "tool", s.Tool)
}

func (r *logRenderer) MergeLayer(layer string) {
	r.logger.Debug("合併層", "layer", layerName(layer))
}

func (r *logRenderer) DropLayer(layer string) {
	r.logger.Debug("銷毀層", "layer", layerName(layer))
}

func (r *logRenderer) Reset() {
	r.logger.Debug("重置視圖")
}

func layerName(layer string) string {
	if layer == reconcile.Consolidated {
		return "consolidated"
	}
	return layer
}
