package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/hitoshi/caltodo/internal/notify"
)

// authHandshakeTimeout は接続後に認証メッセージを待つ最大時間。
const authHandshakeTimeout = 10 * time.Second

// SessionHub はWebSocketセッションの登録先インターフェース。
// notify.Hubを抽象化する。
type SessionHub interface {
	Subscribe(userID string, session notify.Session)
	Unsubscribe(session notify.Session)
}

// WSHandler は変更通知用WebSocket接続のHTTPハンドラー。
type WSHandler struct {
	hub            SessionHub
	allowedOrigins []string
	logger         *slog.Logger
}

// NewWSHandler はWSHandlerを生成する。
// allowedOriginsが空の場合は同一オリジンのみ許可される。
func NewWSHandler(hub SessionHub, allowedOrigins []string, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:            hub,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// authMessage はクライアントが接続直後に送信する認証ハンドシェイク。
type authMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// Serve はHTTP接続をWebSocketにアップグレードし、認証ハンドシェイクの後に
// セッションを通知ハブに登録する。接続が閉じられるまでブロックし、
// 切断時にセッションを解除する。
// GET /ws
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		h.logger.Warn("WebSocketアップグレードに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	// 最初のメッセージは認証ハンドシェイクでなければならない
	userID, err := h.readAuthHandshake(r.Context(), conn)
	if err != nil {
		h.logger.Warn("WebSocket認証ハンドシェイクに失敗しました",
			slog.String("error", err.Error()),
		)
		_ = conn.Close(websocket.StatusPolicyViolation, "auth required")
		return
	}

	session := notify.NewWebSocketSession(conn)
	h.hub.Subscribe(userID, session)
	defer h.hub.Unsubscribe(session)

	// クライアントからのメッセージは処理しない。接続維持と切断検知のみ
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

// readAuthHandshake は認証メッセージを読み取り、ユーザーIDを返す。
func (h *WSHandler) readAuthHandshake(ctx context.Context, conn *websocket.Conn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, authHandshakeTimeout)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		return "", err
	}

	var msg authMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", err
	}
	if msg.Type != "auth" || msg.UserID == "" {
		return "", errInvalidAuthMessage
	}
	return msg.UserID, nil
}

// errInvalidAuthMessage は認証ハンドシェイクの形式不正を表す。
var errInvalidAuthMessage = errors.New("最初のメッセージは認証ハンドシェイクである必要があります")
