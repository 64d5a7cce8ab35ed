package notify

import (
	"context"

	"github.com/coder/websocket"
)

// WebSocketSession は*websocket.ConnをSessionとして扱うアダプタ。
type WebSocketSession struct {
	conn *websocket.Conn
}

// コンパイル時のインターフェース実装チェック
var _ Session = (*WebSocketSession)(nil)

// NewWebSocketSession はWebSocketSessionの新しいインスタンスを生成する。
func NewWebSocketSession(conn *websocket.Conn) *WebSocketSession {
	return &WebSocketSession{conn: conn}
}

// Send はテキストフレームとしてデータを送信する。
func (s *WebSocketSession) Send(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// Close はWebSocket接続を正常終了させる。
func (s *WebSocketSession) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
