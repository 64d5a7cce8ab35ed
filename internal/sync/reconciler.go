package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
	"github.com/hitoshi/caltodo/internal/repository"
)

// EventSource はフィードURLからイベント列を取得するインターフェース。
// ical.Fetcherを抽象化してテスタビリティを向上させる。
type EventSource interface {
	FetchEvents(ctx context.Context, url string) ([]model.CalendarEvent, error)
}

// Notifier はフィード変更の通知インターフェース。
// notify.Hubを抽象化する。ペイロードは差分ではなく現在の全イベント列で、
// クライアント側はパッチ適用ではなく再導出でビューを更新する。
type Notifier interface {
	Notify(userID, feedID string, events []model.CalendarEvent)
}

// TextSanitizer はフィード由来テキストのサニタイズインターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// MetricsCollector は同期メトリクスの記録インターフェース。
type MetricsCollector interface {
	RecordSyncSuccess(feedID string)
	RecordSyncFailure(feedID string, reason string)
	RecordSyncLatency(duration time.Duration)
	RecordTodoMutations(created, updated, deleted int)
}

// Reconciler は1フィード分の同期（差分計算と適用）を実行する。
//
// 上流イベント列と保存済みTodoをevent_uidで突き合わせ、作成・更新・削除を
// ストレージに適用する。Completed/Priorityはユーザー所有フィールドとして
// 決して上書きせず、event_uidが空のTodo（手動作成）には一切触れない。
// 同期成功後、フィードのevent_uid付きTodo集合は上流イベント集合と
// 全単射の関係になる。
//
// フィード単位のロックにより、同一フィードの同期は常に高々1つしか
// 実行されない。定期パスとオンデマンド同期が競合した場合、後続は待機する。
type Reconciler struct {
	todoRepo  repository.TodoRepository
	source    EventSource
	notifier  Notifier
	sanitizer TextSanitizer
	metrics   MetricsCollector
	logger    *slog.Logger
	locks     *keyedMutex
}

// NewReconciler はReconcilerの新しいインスタンスを生成する。
// metricsはnilでもよい（記録が無効になる）。
func NewReconciler(
	todoRepo repository.TodoRepository,
	source EventSource,
	notifier Notifier,
	sanitizer TextSanitizer,
	metrics MetricsCollector,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		todoRepo:  todoRepo,
		source:    source,
		notifier:  notifier,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

// Reconcile はフィードをフェッチして差分を適用する。
// 現在の上流イベント列と、何らかの変更を適用したかどうかを返す。
// フェッチ/パース失敗時はそのエラーを返し、ストレージへの変更は行わない。
func (r *Reconciler) Reconcile(ctx context.Context, feed *model.Feed) ([]model.CalendarEvent, bool, error) {
	unlock := r.locks.Lock(feed.ID)
	defer unlock()

	start := time.Now()

	events, err := r.source.FetchEvents(ctx, feed.URL)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordSyncFailure(feed.ID, "fetch")
		}
		return nil, false, err
	}

	changed, err := r.applyEventsLocked(ctx, feed, events)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordSyncFailure(feed.ID, "storage")
		}
		return events, changed, err
	}

	if r.metrics != nil {
		r.metrics.RecordSyncSuccess(feed.ID)
		r.metrics.RecordSyncLatency(time.Since(start))
	}

	return events, changed, nil
}

// ApplyEvents は取得済みのイベント列で差分を適用する。
// フィード登録時のように呼び出し側が既にフェッチ済みの場合に使用し、
// 二重フェッチを避ける。
func (r *Reconciler) ApplyEvents(ctx context.Context, feed *model.Feed, events []model.CalendarEvent) (bool, error) {
	unlock := r.locks.Lock(feed.ID)
	defer unlock()

	return r.applyEventsLocked(ctx, feed, events)
}

// applyEventsLocked は差分計算と適用の本体。フィードロックを保持して呼ぶこと。
//
// ストレージ操作の失敗は最初のエラーで中断する（abort-on-first-error）。
// 適用済みの変更はロールバックしない（バッチ全体のトランザクションは持たない）。
// いずれかの変更が適用された場合のみ、最後に1回だけ通知する。
func (r *Reconciler) applyEventsLocked(ctx context.Context, feed *model.Feed, events []model.CalendarEvent) (bool, error) {
	existing, err := r.todoRepo.List(ctx, feed.ID)
	if err != nil {
		return false, model.NewStorageFailureError("list", err)
	}

	// event_uidによる突き合わせ。event_uidが空のTodo（手動作成）は
	// 対象外で、同期が触れることはない。
	byUID := make(map[string]*model.Todo, len(existing))
	for _, todo := range existing {
		if todo.EventUID != "" {
			byUID[todo.EventUID] = todo
		}
	}

	var created, updated, deleted int
	seen := make(map[string]bool, len(events))

	for _, event := range events {
		seen[event.UID] = true

		title := r.sanitizer.Sanitize(event.Summary)
		description := r.sanitizer.Sanitize(event.Description)
		due := event.Start

		todo, ok := byUID[event.UID]
		if !ok {
			// 新規イベント: Todoを作成する。優先度はデフォルトのmedium。
			newTodo := &model.Todo{
				Title:       title,
				Description: description,
				Completed:   false,
				DueDate:     &due,
				Priority:    model.PriorityMedium,
				FeedID:      feed.ID,
				EventUID:    event.UID,
			}
			if err := r.todoRepo.Create(ctx, newTodo); err != nil {
				return created+updated+deleted > 0, model.NewStorageFailureError("create", err)
			}
			created++
			continue
		}

		// 既存Todo: title/description/dueDateのみ比較し、差分がある場合だけ
		// その3フィールドを更新する。Completed/Priorityには触れない。
		// 差分ゼロなら書き込みも行わない（冪等性）。
		if todo.Title == title && todo.Description == description &&
			todo.DueDate != nil && todo.DueDate.Equal(due) {
			continue
		}

		patch := model.TodoPatch{
			Title:       &title,
			Description: &description,
			DueDate:     &due,
		}
		if _, err := r.todoRepo.Update(ctx, todo.ID, patch); err != nil {
			return created+updated+deleted > 0, model.NewStorageFailureError("update", err)
		}
		updated++
	}

	// 上流から消えたイベントに対応するTodoを削除する
	for uid, todo := range byUID {
		if seen[uid] {
			continue
		}
		if _, err := r.todoRepo.Delete(ctx, todo.ID); err != nil {
			return created+updated+deleted > 0, model.NewStorageFailureError("delete", err)
		}
		deleted++
	}

	changed := created+updated+deleted > 0
	if changed {
		r.notifier.Notify(feed.OwnerID, feed.ID, events)
		if r.metrics != nil {
			r.metrics.RecordTodoMutations(created, updated, deleted)
		}
		r.logger.Info("フィード同期で変更を適用しました",
			slog.String("feed_id", feed.ID),
			slog.Int("created", created),
			slog.Int("updated", updated),
			slog.Int("deleted", deleted),
			slog.Int("events_total", len(events)),
		)
	}

	return changed, nil
}
