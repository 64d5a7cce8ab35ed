package repository

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
)

// MemoryStore はインメモリのフィード/Todoストレージ。
// 開発・テスト用で、mutexで保護された連番採番のマップとして実装する。
// FeedRepositoryとTodoRepositoryの両方を提供する。
type MemoryStore struct {
	mu     sync.RWMutex
	feeds  map[string]*model.Feed
	todos  map[string]*model.Todo
	nextID int64
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		feeds:  make(map[string]*model.Feed),
		todos:  make(map[string]*model.Todo),
		nextID: 1,
	}
}

// allocateID は連番の合成IDを採番する。呼び出し側でmuを保持していること。
func (s *MemoryStore) allocateID() string {
	id := strconv.FormatInt(s.nextID, 10)
	s.nextID++
	return id
}

// Feeds はMemoryStoreをFeedRepositoryとして返す。
func (s *MemoryStore) Feeds() FeedRepository { return (*memoryFeedRepo)(s) }

// Todos はMemoryStoreをTodoRepositoryとして返す。
func (s *MemoryStore) Todos() TodoRepository { return (*memoryTodoRepo)(s) }

// memoryFeedRepo はMemoryStoreのFeedRepositoryビュー。
type memoryFeedRepo MemoryStore

// List は全フィードを返す。
func (r *memoryFeedRepo) List(ctx context.Context) ([]*model.Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	feeds := make([]*model.Feed, 0, len(r.feeds))
	for _, feed := range r.feeds {
		f := *feed
		feeds = append(feeds, &f)
	}
	return feeds, nil
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *memoryFeedRepo) FindByID(ctx context.Context, id string) (*model.Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	feed, ok := r.feeds[id]
	if !ok {
		return nil, nil
	}
	f := *feed
	return &f, nil
}

// Create はフィードを作成する。IDが空の場合は連番を採番する。
func (r *memoryFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if feed.ID == "" {
		feed.ID = (*MemoryStore)(r).allocateID()
	}
	now := time.Now()
	if feed.CreatedAt.IsZero() {
		feed.CreatedAt = now
	}
	if feed.UpdatedAt.IsZero() {
		feed.UpdatedAt = now
	}

	f := *feed
	r.feeds[feed.ID] = &f
	return nil
}

// Delete は指定IDのフィードと所属Todoを削除する。
func (r *memoryFeedRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.feeds[id]; !ok {
		return false, nil
	}
	delete(r.feeds, id)

	// カスケード削除
	for todoID, todo := range r.todos {
		if todo.FeedID == id {
			delete(r.todos, todoID)
		}
	}
	return true, nil
}

// memoryTodoRepo はMemoryStoreのTodoRepositoryビュー。
type memoryTodoRepo MemoryStore

// List は全Todoを返す。feedIDが空でない場合はそのフィードに絞り込む。
func (r *memoryTodoRepo) List(ctx context.Context, feedID string) ([]*model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var todos []*model.Todo
	for _, todo := range r.todos {
		if feedID != "" && todo.FeedID != feedID {
			continue
		}
		t := *todo
		todos = append(todos, &t)
	}
	return todos, nil
}

// FindByID は指定IDのTodoを取得する。見つからない場合はnilを返す。
func (r *memoryTodoRepo) FindByID(ctx context.Context, id string) (*model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todo, ok := r.todos[id]
	if !ok {
		return nil, nil
	}
	t := *todo
	return &t, nil
}

// Create はTodoを作成する。IDが空の場合は連番を採番する。
// Priorityが未設定の場合はmediumを採用する。
func (r *memoryTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if todo.ID == "" {
		todo.ID = (*MemoryStore)(r).allocateID()
	}
	if todo.Priority == "" {
		todo.Priority = model.PriorityMedium
	}
	now := time.Now()
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = now
	}
	if todo.UpdatedAt.IsZero() {
		todo.UpdatedAt = now
	}

	t := *todo
	r.todos[todo.ID] = &t
	return nil
}

// Update はTodoを部分更新する。patchのnilフィールドは既存の値を維持する。
func (r *memoryTodoRepo) Update(ctx context.Context, id string, patch model.TodoPatch) (*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.todos[id]
	if !ok {
		return nil, nil
	}

	if patch.Title != nil {
		existing.Title = *patch.Title
	}
	if patch.Description != nil {
		existing.Description = *patch.Description
	}
	if patch.Completed != nil {
		existing.Completed = *patch.Completed
	}
	if patch.DueDate != nil {
		t := *patch.DueDate
		existing.DueDate = &t
	}
	if patch.Priority != nil {
		existing.Priority = *patch.Priority
	}
	existing.UpdatedAt = time.Now()

	t := *existing
	return &t, nil
}

// Delete は指定IDのTodoを削除する。削除した場合はtrueを返す。
func (r *memoryTodoRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.todos[id]; !ok {
		return false, nil
	}
	delete(r.todos, id)
	return true, nil
}

// compile-time interface checks
var (
	_ FeedRepository = (*memoryFeedRepo)(nil)
	_ TodoRepository = (*memoryTodoRepo)(nil)
)
