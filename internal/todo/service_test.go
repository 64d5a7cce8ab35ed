package todo

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
	"github.com/hitoshi/caltodo/internal/repository"
)

func newTestService() (*TodoService, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	return NewTodoService(store.Todos()), store
}

func TestCreateTodo(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	due := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	todo, err := svc.CreateTodo(ctx, CreateTodoInput{
		Title:       "レポート提出",
		Description: "四半期レポート",
		DueDate:     &due,
		Priority:    "high",
	})
	if err != nil {
		t.Fatalf("CreateTodo returned error: %v", err)
	}
	if todo.ID == "" {
		t.Error("ID was not assigned")
	}
	if todo.Priority != model.PriorityHigh {
		t.Errorf("Priority = %q, want high", todo.Priority)
	}
	if todo.Completed {
		t.Error("Completed = true, want false")
	}
	if todo.EventUID != "" {
		t.Errorf("EventUID = %q, want empty (manual todos are not sync targets)", todo.EventUID)
	}
}

func TestCreateTodo_DefaultPriorityIsMedium(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	todo, err := svc.CreateTodo(ctx, CreateTodoInput{Title: "買い物"})
	if err != nil {
		t.Fatalf("CreateTodo returned error: %v", err)
	}
	if todo.Priority != model.PriorityMedium {
		t.Errorf("Priority = %q, want medium", todo.Priority)
	}
}

func TestCreateTodo_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	tests := []struct {
		name     string
		input    CreateTodoInput
		wantCode string
	}{
		{
			name:     "空タイトル",
			input:    CreateTodoInput{Title: "   "},
			wantCode: model.ErrCodeInvalidTitle,
		},
		{
			name:     "不正な優先度",
			input:    CreateTodoInput{Title: "x", Priority: "urgent"},
			wantCode: model.ErrCodeInvalidPriority,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTodo(ctx, tt.input)
			if !model.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestListTodos_FilterByFeed(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	if err := store.Todos().Create(ctx, &model.Todo{Title: "A", FeedID: "f1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Todos().Create(ctx, &model.Todo{Title: "B", FeedID: "f2"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	all, err := svc.ListTodos(ctx, "")
	if err != nil {
		t.Fatalf("ListTodos returned error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}

	f1, err := svc.ListTodos(ctx, "f1")
	if err != nil {
		t.Fatalf("ListTodos returned error: %v", err)
	}
	if len(f1) != 1 || f1[0].Title != "A" {
		t.Errorf("f1 todos = %+v, want single A", f1)
	}
}

func TestUpdateTodo(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	created, err := svc.CreateTodo(ctx, CreateTodoInput{Title: "元のタイトル"})
	if err != nil {
		t.Fatalf("CreateTodo returned error: %v", err)
	}

	done := true
	high := model.PriorityHigh
	updated, err := svc.UpdateTodo(ctx, created.ID, model.TodoPatch{Completed: &done, Priority: &high})
	if err != nil {
		t.Fatalf("UpdateTodo returned error: %v", err)
	}
	if !updated.Completed || updated.Priority != model.PriorityHigh {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Title != "元のタイトル" {
		t.Errorf("Title = %q, want unchanged", updated.Title)
	}
}

func TestUpdateTodo_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	created, err := svc.CreateTodo(ctx, CreateTodoInput{Title: "x"})
	if err != nil {
		t.Fatalf("CreateTodo returned error: %v", err)
	}

	empty := "  "
	if _, err := svc.UpdateTodo(ctx, created.ID, model.TodoPatch{Title: &empty}); !model.HasCode(err, model.ErrCodeInvalidTitle) {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeInvalidTitle)
	}

	bad := model.Priority("urgent")
	if _, err := svc.UpdateTodo(ctx, created.ID, model.TodoPatch{Priority: &bad}); !model.HasCode(err, model.ErrCodeInvalidPriority) {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeInvalidPriority)
	}
}

func TestUpdateTodo_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.UpdateTodo(ctx, "missing", model.TodoPatch{})
	if !model.HasCode(err, model.ErrCodeTodoNotFound) {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeTodoNotFound)
	}
}

func TestDeleteTodo(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	created, err := svc.CreateTodo(ctx, CreateTodoInput{Title: "x"})
	if err != nil {
		t.Fatalf("CreateTodo returned error: %v", err)
	}

	if err := svc.DeleteTodo(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTodo returned error: %v", err)
	}

	if err := svc.DeleteTodo(ctx, created.ID); !model.HasCode(err, model.ErrCodeTodoNotFound) {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeTodoNotFound)
	}
}
