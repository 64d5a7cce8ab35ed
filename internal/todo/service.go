// Package todo はTodoの管理機能を提供する。
package todo

import (
	"context"
	"strings"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
	"github.com/hitoshi/caltodo/internal/repository"
)

// TodoService はTodoのCRUDのサービス層。
// 同期由来のTodoと手動作成のTodoの両方を扱うが、手動作成のTodoには
// event_uidを付与しない（同期の対象外となる）。
type TodoService struct {
	todoRepo repository.TodoRepository
}

// NewTodoService はTodoServiceの新しいインスタンスを生成する。
func NewTodoService(todoRepo repository.TodoRepository) *TodoService {
	return &TodoService{
		todoRepo: todoRepo,
	}
}

// CreateTodoInput は手動Todo作成の入力。
type CreateTodoInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    string
	FeedID      string
}

// ListTodos はTodo一覧を返す。feedIDが空でない場合はそのフィードの
// Todoのみに絞り込む。
func (s *TodoService) ListTodos(ctx context.Context, feedID string) ([]*model.Todo, error) {
	todos, err := s.todoRepo.List(ctx, feedID)
	if err != nil {
		return nil, model.NewStorageFailureError("list todos", err)
	}
	return todos, nil
}

// CreateTodo は手動Todoを作成する。
// タイトルは必須。優先度は未指定の場合mediumとなる。
func (s *TodoService) CreateTodo(ctx context.Context, input CreateTodoInput) (*model.Todo, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, model.NewInvalidTitleError()
	}

	priority := model.PriorityMedium
	if input.Priority != "" {
		priority = model.Priority(input.Priority)
		if !priority.IsValid() {
			return nil, model.NewInvalidPriorityError(input.Priority)
		}
	}

	now := time.Now()
	todo := &model.Todo{
		Title:       title,
		Description: input.Description,
		Completed:   false,
		DueDate:     input.DueDate,
		Priority:    priority,
		FeedID:      input.FeedID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.todoRepo.Create(ctx, todo); err != nil {
		return nil, model.NewStorageFailureError("create todo", err)
	}
	return todo, nil
}

// UpdateTodo はTodoを部分更新する。nilのフィールドは変更されない。
// 存在しないIDの場合はTODO_NOT_FOUNDを返す。
func (s *TodoService) UpdateTodo(ctx context.Context, id string, patch model.TodoPatch) (*model.Todo, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, model.NewInvalidTitleError()
		}
		patch.Title = &title
	}
	if patch.Priority != nil && !patch.Priority.IsValid() {
		return nil, model.NewInvalidPriorityError(string(*patch.Priority))
	}

	todo, err := s.todoRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, model.NewStorageFailureError("update todo", err)
	}
	if todo == nil {
		return nil, model.NewTodoNotFoundError(id)
	}
	return todo, nil
}

// DeleteTodo はTodoを削除する。存在しないIDの場合はTODO_NOT_FOUNDを返す。
func (s *TodoService) DeleteTodo(ctx context.Context, id string) error {
	deleted, err := s.todoRepo.Delete(ctx, id)
	if err != nil {
		return model.NewStorageFailureError("delete todo", err)
	}
	if !deleted {
		return model.NewTodoNotFoundError(id)
	}
	return nil
}
