// Package model はドメインモデルを定義する。
package model

import "time"

// Priority はTodoの優先度を表す。
type Priority string

const (
	// PriorityHigh は高優先度。
	PriorityHigh Priority = "high"
	// PriorityMedium は中優先度。同期で新規作成されたTodoのデフォルト値。
	PriorityMedium Priority = "medium"
	// PriorityLow は低優先度。
	PriorityLow Priority = "low"
)

// IsValid は優先度が定義済みの値かを検証する。
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Todo はカレンダーイベントから実体化された、またはユーザーが手動作成したタスクを表す。
//
// CompletedとPriorityはユーザー所有のフィールドであり、同期処理が上書きしてはならない。
// Title、Description、DueDateは常に上流イベントに追従する。
// EventUIDはTodoとCalendarEventを対応付ける相関キーで、手動作成のTodoでは空文字列となり、
// 同期処理はそのTodoに一切触れない。
type Todo struct {
	ID          string
	Title       string
	Description string
	Completed   bool
	DueDate     *time.Time
	Priority    Priority
	FeedID      string
	EventUID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TodoPatch はTodoの部分更新を表す。nilのフィールドは変更しない。
type TodoPatch struct {
	Title       *string
	Description *string
	Completed   *bool
	DueDate     *time.Time
	Priority    *Priority
}
