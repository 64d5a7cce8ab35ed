// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/caltodo/internal/model"
)

// FeedRepository はカレンダーフィードの永続化インターフェース。
type FeedRepository interface {
	// List は全フィードを返す。
	List(ctx context.Context) ([]*model.Feed, error)

	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Feed, error)

	// Create はフィードを作成する。feed.IDが空の場合は実装がIDを採番する。
	Create(ctx context.Context, feed *model.Feed) error

	// Delete は指定IDのフィードを削除する。所属するTodoもカスケード削除される。
	// 削除した場合はtrueを返す。
	Delete(ctx context.Context, id string) (bool, error)
}

// TodoRepository はTodoの永続化インターフェース。
type TodoRepository interface {
	// List は全Todoを返す。feedIDが空でない場合はそのフィードのTodoに絞り込む。
	List(ctx context.Context, feedID string) ([]*model.Todo, error)

	// FindByID は指定IDのTodoを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Todo, error)

	// Create はTodoを作成する。todo.IDが空の場合は実装がIDを採番する。
	Create(ctx context.Context, todo *model.Todo) error

	// Update はTodoを部分更新する。patchのnilフィールドは変更しない。
	// 更新後のTodoを返す。見つからない場合はnilを返す。
	Update(ctx context.Context, id string, patch model.TodoPatch) (*model.Todo, error)

	// Delete は指定IDのTodoを削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, id string) (bool, error)
}
