// Package notify はカレンダー同期の変更通知を購読中のクライアントへ
// 配信するハブを提供する。配信はfire-and-forget方式で、通知の失敗が
// 同期処理に影響することはない。
package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
)

// sendTimeout は1セッションへの書き込みに許容する最大時間。
const sendTimeout = 5 * time.Second

// Session は通知の配信先となる単一クライアント接続の抽象。
// 実装がio.Closerを満たす場合、ハブのシャットダウン時にクローズされる。
type Session interface {
	Send(ctx context.Context, data []byte) error
}

// ChangeMessage はフィード同期で変更が発生した際にクライアントへ
// 送信されるメッセージ。
type ChangeMessage struct {
	Type   string                `json:"type"`
	FeedID string                `json:"feed_id"`
	Events []model.CalendarEvent `json:"events"`
}

// Hub はユーザーIDごとのセッション登録簿を管理し、変更通知を
// ブロードキャストする。
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[Session]struct{}
	users    map[Session]string
	logger   *slog.Logger
}

// NewHub はHubの新しいインスタンスを生成する。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[Session]struct{}),
		users:    make(map[Session]string),
		logger:   logger,
	}
}

// Subscribe はセッションを指定ユーザーの購読者として登録する。
// 同一ユーザーは複数セッションを持てる（複数タブ/デバイス）。
func (h *Hub) Subscribe(userID string, session Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[Session]struct{})
	}
	h.sessions[userID][session] = struct{}{}
	h.users[session] = userID

	h.logger.Info("通知セッションを登録しました",
		slog.String("user_id", userID),
		slog.Int("session_count", len(h.sessions[userID])),
	)
}

// Unsubscribe はセッションを登録簿から削除する。
// 未登録のセッションに対しては何もしない。
func (h *Hub) Unsubscribe(session Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(session)
}

func (h *Hub) removeLocked(session Session) {
	userID, ok := h.users[session]
	if !ok {
		return
	}
	delete(h.users, session)
	delete(h.sessions[userID], session)
	if len(h.sessions[userID]) == 0 {
		delete(h.sessions, userID)
	}

	h.logger.Info("通知セッションを解除しました",
		slog.String("user_id", userID),
	)
}

// Notify は指定ユーザーの全セッションへ変更通知を配信する。
// 配信は非同期に行われ、呼び出し元をブロックしない。書き込みに
// 失敗したセッションは切断済みとみなし登録簿から削除する。
// 購読者がいない場合は何もしない。
func (h *Hub) Notify(userID, feedID string, events []model.CalendarEvent) {
	h.mu.RLock()
	targets := make([]Session, 0, len(h.sessions[userID]))
	for session := range h.sessions[userID] {
		targets = append(targets, session)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(ChangeMessage{
		Type:   "calendarUpdate",
		FeedID: feedID,
		Events: events,
	})
	if err != nil {
		h.logger.Error("通知メッセージのシリアライズに失敗しました",
			slog.String("feed_id", feedID),
			slog.String("error", err.Error()),
		)
		return
	}

	go h.deliver(userID, feedID, targets, data)
}

func (h *Hub) deliver(userID, feedID string, targets []Session, data []byte) {
	for _, session := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := session.Send(ctx, data)
		cancel()

		if err != nil {
			h.logger.Warn("通知の配信に失敗したためセッションを解除します",
				slog.String("user_id", userID),
				slog.String("feed_id", feedID),
				slog.String("error", err.Error()),
			)
			h.Unsubscribe(session)
		}
	}
}

// SessionCount は指定ユーザーの現在の購読セッション数を返す。
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Close は全セッションを解除し、io.Closerを実装するものはクローズする。
// サーバーのシャットダウン時に呼び出す。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for session := range h.users {
		if closer, ok := session.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	h.sessions = make(map[string]map[Session]struct{})
	h.users = make(map[Session]string)
}
