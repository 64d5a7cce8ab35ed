// Package model はドメインモデルを定義する。
package model

import "time"

// CalendarEvent はiCalテキストから抽出した正規化済みイベントを表す。
// パースのたびに新しく生成される一時データで、永続化はされない。
// UIDは上流カレンダーにおける安定した外部識別子であり、Todoとの相関キーとなる。
type CalendarEvent struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
}
