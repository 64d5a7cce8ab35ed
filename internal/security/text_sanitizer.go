// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はiCalフィード由来のテキスト（SUMMARY/DESCRIPTION）を
// サニタイズし、HTMLタグを含む文字列がTodoのタイトル・説明として
// そのままUIに流れ込むことを防ぐ。bluemondayのStrictPolicyにより
// 全てのタグを除去し、プレーンテキストのみを通過させる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はフィード由来テキストのサニタイズ機能のインターフェースを定義する。
// 同期処理がイベントをTodoに実体化する前に適用される。
type TextSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
	// 前後の空白は取り除かれる。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（許可タグなし）を使用する。カレンダーのイベントタイトルに
// マークアップが必要になることはないため、許可リストは設けない。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
// bluemondayはタグ除去後にエンティティをエスケープするため、
// 表示用のプレーンテキストに戻すアンエスケープを行う。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
