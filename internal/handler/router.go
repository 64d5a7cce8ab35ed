package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/caltodo/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	DefaultUserID     string
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// ドメインサービス
	FeedService FeedServiceInterface
	TodoService TodoServiceInterface
	Syncer      OnDemandSyncer

	// 変更通知
	Hub SessionHub

	// 運用エンドポイント
	MetricsHandler http.Handler
	HealthPinger   Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Identity → RateLimit(General)
//
// /health、/metrics、/wsは認証チェーンの外に配置する
// （/wsは接続後の認証ハンドシェイクでユーザーを特定する）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	feedHandler := NewFeedHandler(deps.FeedService)
	todoHandler := NewTodoHandler(deps.TodoService)
	syncHandler := NewSyncHandler(deps.Syncer)

	// --- 認証チェーン外のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthPinger))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	if deps.Hub != nil {
		wsHandler := NewWSHandler(deps.Hub, wsOriginPatterns(deps.CORSAllowedOrigin), deps.Logger)
		r.Get("/ws", wsHandler.Serve)
	}

	// --- 利用者特定が必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.SessionFinder, deps.DefaultUserID))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// フィード管理
		r.Route("/api/feeds", func(r chi.Router) {
			r.Get("/", feedHandler.ListFeeds)

			// POST /api/feeds - フィード登録（登録専用レート制限を追加）
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.FeedRegistrationMiddleware()).Post("/", feedHandler.RegisterFeed)
			} else {
				r.Post("/", feedHandler.RegisterFeed)
			}

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", feedHandler.GetFeed)
				r.Delete("/", feedHandler.DeleteFeed)

				// POST /api/feeds/{id}/sync - オンデマンド同期
				r.Post("/sync", syncHandler.SyncFeed)
			})
		})

		// Todo管理
		r.Route("/api/todos", func(r chi.Router) {
			r.Get("/", todoHandler.ListTodos)
			r.Post("/", todoHandler.CreateTodo)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", todoHandler.UpdateTodo)
				r.Delete("/", todoHandler.DeleteTodo)
			})
		})
	})

	return r
}

// wsOriginPatterns はCORS許可オリジンからWebSocketのオリジンパターンを導出する。
// OriginPatternsはスキームを含まないホストパターンを期待する。
func wsOriginPatterns(allowedOrigin string) []string {
	if allowedOrigin == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(allowedOrigin, "https://"), "http://")
	return []string{host}
}
