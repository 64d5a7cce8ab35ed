package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/caltodo/internal/model"
	"github.com/hitoshi/caltodo/internal/todo"
)

// TodoServiceInterface はTodoハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	// ListTodos はTodo一覧を返す。feedIDが空の場合は全件。
	ListTodos(ctx context.Context, feedID string) ([]*model.Todo, error)
	// CreateTodo は手動Todoを作成する。
	CreateTodo(ctx context.Context, input todo.CreateTodoInput) (*model.Todo, error)
	// UpdateTodo はTodoを部分更新する。
	UpdateTodo(ctx context.Context, id string, patch model.TodoPatch) (*model.Todo, error)
	// DeleteTodo はTodoを削除する。
	DeleteTodo(ctx context.Context, id string) error
}

// TodoHandler はTodo管理のHTTPハンドラー。
type TodoHandler struct {
	service TodoServiceInterface
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(service TodoServiceInterface) *TodoHandler {
	return &TodoHandler{
		service: service,
	}
}

// createTodoRequest は手動Todo作成リクエストのボディ。
type createTodoRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date"`
	Priority    string  `json:"priority"`
	FeedID      string  `json:"feed_id"`
}

// updateTodoRequest はTodo部分更新リクエストのボディ。
// nilのフィールドは変更しない。
type updateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	DueDate     *string `json:"due_date"`
	Priority    *string `json:"priority"`
}

// todoResponse はTodoのAPIレスポンス。
type todoResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Completed   bool    `json:"completed"`
	DueDate     *string `json:"due_date"`
	Priority    string  `json:"priority"`
	FeedID      string  `json:"feed_id,omitempty"`
	EventUID    string  `json:"event_uid,omitempty"`
}

// ListTodos はTodo一覧を返す。feed_idクエリパラメータで絞り込み可能。
// GET /api/todos?feed_id=...
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	feedID := r.URL.Query().Get("feed_id")

	todos, err := h.service.ListTodos(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]todoResponse, 0, len(todos))
	for _, t := range todos {
		responses = append(responses, toTodoResponse(t))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// CreateTodo は手動Todoを作成する。
// POST /api/todos
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	dueDate, ok := parseOptionalTime(w, req.DueDate)
	if !ok {
		return
	}

	created, err := h.service.CreateTodo(r.Context(), todo.CreateTodoInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     dueDate,
		Priority:    req.Priority,
		FeedID:      req.FeedID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTodoResponse(created))
}

// UpdateTodo はTodoを部分更新する。
// PATCH /api/todos/:id
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	todoID := chi.URLParam(r, "id")

	var req updateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	patch := model.TodoPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	if req.DueDate != nil {
		dueDate, ok := parseOptionalTime(w, req.DueDate)
		if !ok {
			return
		}
		patch.DueDate = dueDate
	}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		patch.Priority = &p
	}

	updated, err := h.service.UpdateTodo(r.Context(), todoID, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTodoResponse(updated))
}

// DeleteTodo はTodoを削除する。
// DELETE /api/todos/:id
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	todoID := chi.URLParam(r, "id")

	if err := h.service.DeleteTodo(r.Context(), todoID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toTodoResponse はmodel.TodoからAPIレスポンスに変換する。
func toTodoResponse(t *model.Todo) todoResponse {
	var dueDate *string
	if t.DueDate != nil {
		formatted := t.DueDate.UTC().Format(time.RFC3339)
		dueDate = &formatted
	}
	return todoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		DueDate:     dueDate,
		Priority:    string(t.Priority),
		FeedID:      t.FeedID,
		EventUID:    t.EventUID,
	}
}

// parseOptionalTime はRFC3339形式の時刻文字列をパースする。
// 不正な形式の場合は400レスポンスを書き込みfalseを返す。
func parseOptionalTime(w http.ResponseWriter, value *string) (*time.Time, bool) {
	if value == nil || *value == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "期日の形式が不正です: " + *value,
			Category: "validation",
			Action:   "RFC3339形式（例: 2024-01-01T09:00:00Z）で指定してください。",
		})
		return nil, false
	}
	return &parsed, true
}
