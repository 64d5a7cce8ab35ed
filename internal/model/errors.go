// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	// ErrCodeFeedUnavailable はフィードの取得（ネットワーク/トランスポート）失敗。
	ErrCodeFeedUnavailable = "FEED_UNAVAILABLE"
	// ErrCodeFeedMalformed は取得したテキストがiCalとして解釈できず、
	// イベントを1件も生成できない状態。個別ブロックの欠落はエラーではない。
	ErrCodeFeedMalformed = "FEED_MALFORMED"
	// ErrCodeStorageFailure はストレージの読み書き失敗。
	ErrCodeStorageFailure = "STORAGE_FAILURE"
	// ErrCodeFeedNotFound は存在しないフィードIDへの操作。
	ErrCodeFeedNotFound = "FEED_NOT_FOUND"
	// ErrCodeTodoNotFound は存在しないTodo IDへの操作。
	ErrCodeTodoNotFound = "TODO_NOT_FOUND"
	// ErrCodeInvalidURL は無効なフィードURL。
	ErrCodeInvalidURL = "INVALID_URL"
	// ErrCodeSSRFBlocked はセキュリティポリシーによるURLブロック。
	ErrCodeSSRFBlocked = "SSRF_BLOCKED"
	// ErrCodeCalendarNotDetected は指定URLからiCalフィードを検出できなかった状態。
	ErrCodeCalendarNotDetected = "CALENDAR_NOT_DETECTED"
	// ErrCodeInvalidTitle はTodoのタイトルが空の状態。
	ErrCodeInvalidTitle = "INVALID_TITLE"
	// ErrCodeInvalidPriority は不正な優先度の値。
	ErrCodeInvalidPriority = "INVALID_PRIORITY"
)

// NewFeedUnavailableError はフィード取得失敗エラーを生成する。
func NewFeedUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedUnavailable,
		Message:  fmt.Sprintf("カレンダーフィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewFeedMalformedError はフィード解析失敗エラーを生成する。
func NewFeedMalformedError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedMalformed,
		Message:  "取得したデータをiCalフィードとして解析できませんでした。",
		Category: "feed",
		Action:   "URLが有効なiCal（.ics）フィードを指しているか確認してください。",
	}
}

// NewStorageFailureError はストレージ操作失敗エラーを生成する。
func NewStorageFailureError(op string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailure,
		Message:  fmt.Sprintf("データの保存操作に失敗しました（%s）: %v", op, err),
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewFeedNotFoundError はフィード未検出エラーを生成する。
func NewFeedNotFoundError(feedID string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %s", feedID),
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewTodoNotFoundError はTodo未検出エラーを生成する。
func NewTodoNotFoundError(todoID string) *APIError {
	return &APIError{
		Code:     ErrCodeTodoNotFound,
		Message:  fmt.Sprintf("指定されたTodoが見つかりません: %s", todoID),
		Category: "feed",
		Action:   "Todo IDを確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているカレンダーのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewCalendarNotDetectedError はカレンダー未検出エラーを生成する。
func NewCalendarNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeCalendarNotDetected,
		Message:  fmt.Sprintf("指定されたURLからiCalカレンダーを検出できませんでした: %s", url),
		Category: "feed",
		Action:   "iCalフィード（.ics）のURLを直接入力するか、カレンダーが公開されているページのURLを確認してください。",
	}
}

// NewInvalidTitleError はタイトル未入力エラーを生成する。
func NewInvalidTitleError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTitle,
		Message:  "タイトルが入力されていません。",
		Category: "validation",
		Action:   "1文字以上のタイトルを入力してください。",
	}
}

// NewInvalidPriorityError は不正な優先度エラーを生成する。
func NewInvalidPriorityError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPriority,
		Message:  fmt.Sprintf("不正な優先度です: %s", value),
		Category: "validation",
		Action:   "優先度には high / medium / low のいずれかを指定してください。",
	}
}

// HasCode はエラーが指定コードのAPIErrorかを判定する。
// ラップされたエラーチェーンも辿る。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
