package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/hitoshi/interviewman/internal/interview"
)

// TimerSnapshotInterface はタイマー配信が必要とするサービスインターフェース。
type TimerSnapshotInterface interface {
	Snapshot(ctx context.Context, sessionID string) (*interview.TimerSnapshot, error)
}

// TimerStreamHandler はカウントダウンのWebSocket配信ハンドラー。
// クライアントは残り時間を毎秒受信する。タイマーの権威はサーバー側にあり、
// クライアントは表示のみを行う。
type TimerStreamHandler struct {
	service  TimerSnapshotInterface
	logger   *slog.Logger
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewTimerStreamHandler はTimerStreamHandlerを生成する。
// checkOrigin がnilの場合は同一オリジンのみ許可される（gorillaのデフォルト）。
func NewTimerStreamHandler(service TimerSnapshotInterface, logger *slog.Logger, interval time.Duration, checkOrigin func(*http.Request) bool) *TimerStreamHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &TimerStreamHandler{
		service:  service,
		logger:   logger,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Stream はWebSocket接続を確立し、タイマー状態を定期送信する。
// GET /api/sessions/:id/timer/ws
//
// セッションが削除された場合、または書き込みに失敗した場合に接続を閉じる。
// セッションがcompletedになっても接続は維持する（クライアントが
// 完了表示へ切り替えてから自分で閉じる）。
func (h *TimerStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocketへのアップグレードに失敗しました",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	// クライアントからの切断を検知するための読み取りループ
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		snapshot, err := h.service.Snapshot(r.Context(), sessionID)
		if err != nil {
			// セッション削除を含む。終了フレームを送って閉じる。
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session unavailable"))
			return
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}

		select {
		case <-ticker.C:
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
