// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

const sessionCookieName = "session_id"

// identityHeaderName は外部認証プロキシがユーザーIDを渡すヘッダー。
const identityHeaderName = "X-User-ID"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// SessionFinder はセッションIDからユーザーIDを解決するインターフェース。
// 認証は外部コラボレータの責務であり、本体はこのインターフェース越しに
// 協調する。セッションが存在しない場合は空文字列とnilを返す。
type SessionFinder interface {
	FindUserID(ctx context.Context, sessionID string) (string, error)
}

// NewIdentityMiddleware はリクエストの利用者を特定するミドルウェアを返す。
// 解決順序:
//  1. セッションCookieがあればSessionFinderで検証する。無効なら401。
//  2. X-User-IDヘッダー（外部認証プロキシ由来）があればその値を使用する。
//  3. いずれもない場合はdefaultUserIDを使用する。defaultUserIDが空なら401。
//
// 特定したユーザーIDはリクエストコンテキストに注入される。
func NewIdentityMiddleware(finder SessionFinder, defaultUserID string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := ""

			// 1. セッションCookieによる解決
			if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" && finder != nil {
				resolved, err := finder.FindUserID(r.Context(), cookie.Value)
				if err != nil {
					slog.Error("セッションの解決に失敗しました",
						slog.String("error", err.Error()),
					)
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				if resolved == "" {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				userID = resolved
			}

			// 2. 外部認証プロキシのヘッダーによる解決
			if userID == "" {
				userID = r.Header.Get(identityHeaderName)
			}

			// 3. デフォルトユーザーへのフォールバック
			if userID == "" {
				userID = defaultUserID
			}
			if userID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// アイデンティティミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
