package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/caltodo/internal/model"
)

// OnDemandSyncer はオンデマンド同期のインターフェース。
// sync.Schedulerを抽象化する。
type OnDemandSyncer interface {
	// SyncOne は指定フィードを1回同期し、現在のイベント列を返す。
	// フィードが存在しない場合はエラーなしで空のイベント列を返す。
	SyncOne(ctx context.Context, feedID string) ([]model.CalendarEvent, error)
}

// SyncHandler はオンデマンド同期のHTTPハンドラー。
type SyncHandler struct {
	syncer OnDemandSyncer
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(syncer OnDemandSyncer) *SyncHandler {
	return &SyncHandler{
		syncer: syncer,
	}
}

// syncResponse はオンデマンド同期のAPIレスポンス。
type syncResponse struct {
	Events []model.CalendarEvent `json:"events"`
}

// SyncFeed は指定フィードを定期サイクル外で即時同期する。
// 存在しないフィードIDでも404ではなく空のイベント列を返す。
// POST /api/feeds/:id/sync
func (h *SyncHandler) SyncFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	events, err := h.syncer.SyncOne(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(syncResponse{Events: events})
}
