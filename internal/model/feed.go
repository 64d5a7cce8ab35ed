// Package model はドメインモデルを定義する。
package model

import "time"

// Feed はユーザーが登録した外部カレンダー購読（iCalフィードのURLと表示名）を表す。
// フィード自体はユーザー操作でのみ作成・削除され、削除時は所属Todoもカスケード削除される。
type Feed struct {
	ID        string
	Name      string
	URL       string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
