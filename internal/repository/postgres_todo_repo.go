package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/caltodo/internal/model"
)

// PostgresTodoRepo はPostgreSQLを使用したTodoリポジトリ。
type PostgresTodoRepo struct {
	db *sql.DB
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sql.DB) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db}
}

// todoColumns はSELECT句のカラム並び。scanTodoと対応を保つこと。
const todoColumns = `id, title, description, completed, due_date, priority, feed_id, event_uid, created_at, updated_at`

// scanTodo は1行をmodel.Todoに読み取る。
func scanTodo(scan func(dest ...any) error) (*model.Todo, error) {
	todo := &model.Todo{}
	var dueDate sql.NullTime
	var feedID, eventUID sql.NullString

	if err := scan(
		&todo.ID, &todo.Title, &todo.Description, &todo.Completed,
		&dueDate, &todo.Priority, &feedID, &eventUID,
		&todo.CreatedAt, &todo.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if dueDate.Valid {
		t := dueDate.Time
		todo.DueDate = &t
	}
	todo.FeedID = nullStringValue(feedID)
	todo.EventUID = nullStringValue(eventUID)

	return todo, nil
}

// List は全Todoを作成日時順で返す。feedIDが空でない場合はそのフィードに絞り込む。
func (r *PostgresTodoRepo) List(ctx context.Context, feedID string) ([]*model.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos ORDER BY created_at ASC`
	args := []any{}
	if feedID != "" {
		query = `SELECT ` + todoColumns + ` FROM todos WHERE feed_id = $1 ORDER BY created_at ASC`
		args = append(args, feedID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Todo一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var todos []*model.Todo
	for rows.Next() {
		todo, err := scanTodo(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("Todoの読み取りに失敗しました: %w", err)
		}
		todos = append(todos, todo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Todo一覧の走査に失敗しました: %w", err)
	}

	return todos, nil
}

// FindByID は指定IDのTodoを取得する。見つからない場合はnilを返す。
func (r *PostgresTodoRepo) FindByID(ctx context.Context, id string) (*model.Todo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1`,
		id,
	)

	todo, err := scanTodo(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Todoの取得に失敗しました: %w", err)
	}

	return todo, nil
}

// Create はTodoを作成する。IDが空の場合はUUIDを採番する。
// Priorityが未設定の場合はmediumを採用する。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.New().String()
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

	var dueDate sql.NullTime
	if todo.DueDate != nil {
		dueDate = sql.NullTime{Time: *todo.DueDate, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (id, title, description, completed, due_date, priority,
		                    feed_id, event_uid, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		todo.ID, todo.Title, todo.Description, todo.Completed,
		dueDate, todo.Priority,
		nullString(todo.FeedID), nullString(todo.EventUID),
		todo.CreatedAt, todo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Todoの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はTodoを部分更新する。patchのnilフィールドは既存の値を維持する。
// 更新後のTodoを返す。見つからない場合はnilを返す。
func (r *PostgresTodoRepo) Update(ctx context.Context, id string, patch model.TodoPatch) (*model.Todo, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE todos SET
		    title       = COALESCE($2, title),
		    description = COALESCE($3, description),
		    completed   = COALESCE($4, completed),
		    due_date    = COALESCE($5, due_date),
		    priority    = COALESCE($6, priority),
		    updated_at  = now()
		 WHERE id = $1
		 RETURNING `+todoColumns,
		id,
		patch.Title, patch.Description, patch.Completed,
		patch.DueDate, (*string)(patch.Priority),
	)

	todo, err := scanTodo(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Todoの更新に失敗しました: %w", err)
	}

	return todo, nil
}

// Delete は指定IDのTodoを削除する。削除した場合はtrueを返す。
func (r *PostgresTodoRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM todos WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("Todoの削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Todo削除結果の確認に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
