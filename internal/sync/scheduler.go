package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
	"github.com/hitoshi/caltodo/internal/repository"
)

// FeedSyncer は1フィード分の同期実行インターフェース。
// Reconcilerを抽象化してテスタビリティを向上させる。
type FeedSyncer interface {
	Reconcile(ctx context.Context, feed *model.Feed) ([]model.CalendarEvent, bool, error)
}

// Scheduler は全フィードの定期同期とオンデマンド同期を駆動する。
// ティッカーで全フィードの同期パスを繰り返し、semaphoreパターンで
// 最大並列数を制御する。1フィードの失敗はログに記録して次のフィードに
// 進む（フィード単位の障害分離）。
type Scheduler struct {
	feedRepo       repository.FeedRepository
	syncer         FeedSyncer
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	feedRepo repository.FeedRepository,
	syncer FeedSyncer,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		feedRepo:       feedRepo,
		syncer:         syncer,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回フルパスを実行し、以降は間隔ごとに繰り返す。
// コンテキストがキャンセルされるまでブロックする。実行中の同期は
// キャンセル後も完了まで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全フィードを1回同期する。
// semaphoreパターンで並列数を制御し、個々のフィードの失敗は
// ログに記録してパス全体は継続する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	feeds, err := s.feedRepo.List(ctx)
	if err != nil {
		return err
	}

	if len(feeds) == 0 {
		return nil
	}

	s.logger.Info("同期サイクルを開始します",
		slog.Int("feed_count", len(feeds)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg stdsync.WaitGroup

	for _, feed := range feeds {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(f *model.Feed) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if _, _, err := s.syncer.Reconcile(ctx, f); err != nil {
				s.logger.Error("フィード同期に失敗しました",
					slog.String("feed_id", f.ID),
					slog.String("feed_url", f.URL),
					slog.String("error", err.Error()),
				)
			}
		}(feed)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("同期サイクルが完了しました",
		slog.Int("feed_count", len(feeds)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// SyncOne は指定フィードを定期サイクル外で1回同期し、現在のイベント列を返す。
// フィード登録直後の即時同期などオンデマンドの用途で使用する。
// フィードが存在しない場合はエラーなしで空のイベント列を返す。
// フェッチ/パース/ストレージのエラーは呼び出し元に伝播する。
func (s *Scheduler) SyncOne(ctx context.Context, feedID string) ([]model.CalendarEvent, error) {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return nil, model.NewStorageFailureError("find feed", err)
	}
	if feed == nil {
		return []model.CalendarEvent{}, nil
	}

	events, _, err := s.syncer.Reconcile(ctx, feed)
	if err != nil {
		return nil, err
	}

	return events, nil
}
