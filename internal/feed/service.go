package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
	"github.com/hitoshi/caltodo/internal/repository"
)

// Detector はカレンダーフィード検出のインターフェース。
// テスタビリティのためCalendarDetectorを抽象化する。
type Detector interface {
	DetectCalendarURL(ctx context.Context, inputURL string) (string, error)
}

// EventSource はフィードURLからのイベント取得インターフェース。
type EventSource interface {
	FetchEvents(ctx context.Context, url string) ([]model.CalendarEvent, error)
}

// EventApplier は取得済みイベント列をTodoへ反映するインターフェース。
type EventApplier interface {
	ApplyEvents(ctx context.Context, feed *model.Feed, events []model.CalendarEvent) (bool, error)
}

// FeedService はカレンダーフィード登録・管理のサービス層。
// 検出 → 初回フェッチ → フィード保存 → Todo反映のフローを統括する。
type FeedService struct {
	feedRepo repository.FeedRepository
	detector Detector
	source   EventSource
	applier  EventApplier
	logger   *slog.Logger
}

// NewFeedService はFeedServiceの新しいインスタンスを生成する。
func NewFeedService(
	feedRepo repository.FeedRepository,
	detector Detector,
	source EventSource,
	applier EventApplier,
	logger *slog.Logger,
) *FeedService {
	return &FeedService{
		feedRepo: feedRepo,
		detector: detector,
		source:   source,
		applier:  applier,
		logger:   logger,
	}
}

// RegisterFeed はURLからカレンダーフィードを検出し、初回同期込みで登録する。
// フロー: フィード検出 → 初回フェッチ/パース → フィード保存 → Todo反映。
// 検出・フェッチ・パースのいずれかが失敗した場合は登録全体が失敗し、
// 何も永続化されない。成功時は登録済みフィードと現在のイベント列を返す。
func (s *FeedService) RegisterFeed(ctx context.Context, ownerID, name, inputURL string) (*model.Feed, []model.CalendarEvent, error) {
	// 1. カレンダーURL検出
	feedURL, err := s.detector.DetectCalendarURL(ctx, inputURL)
	if err != nil {
		return nil, nil, err
	}

	// 2. 初回フェッチ + パース。失敗したフィードは登録しない
	events, err := s.source.FetchEvents(ctx, feedURL)
	if err != nil {
		return nil, nil, err
	}

	// 3. フィード保存（IDはリポジトリが採番する）
	now := time.Now()
	feed := &model.Feed{
		Name:      strings.TrimSpace(name),
		URL:       feedURL,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if feed.Name == "" {
		feed.Name = feedURL
	}

	if err := s.feedRepo.Create(ctx, feed); err != nil {
		return nil, nil, model.NewStorageFailureError("create feed", err)
	}

	// 4. 取得済みイベント列をTodoへ反映（再フェッチはしない）
	if _, err := s.applier.ApplyEvents(ctx, feed, events); err != nil {
		return nil, nil, err
	}

	s.logger.Info("フィードを登録しました",
		slog.String("feed_id", feed.ID),
		slog.String("feed_url", feed.URL),
		slog.Int("event_count", len(events)),
	)

	return feed, events, nil
}

// ListFeeds は登録済みフィードの一覧を返す。
func (s *FeedService) ListFeeds(ctx context.Context) ([]*model.Feed, error) {
	feeds, err := s.feedRepo.List(ctx)
	if err != nil {
		return nil, model.NewStorageFailureError("list feeds", err)
	}
	return feeds, nil
}

// GetFeed はフィード情報を取得する。存在しない場合はFEED_NOT_FOUND。
func (s *FeedService) GetFeed(ctx context.Context, feedID string) (*model.Feed, error) {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return nil, model.NewStorageFailureError("find feed", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(feedID)
	}
	return feed, nil
}

// DeleteFeed はフィードと、そこから同期された全Todoを削除する。
// 存在しないフィードIDの場合はFEED_NOT_FOUNDを返す。
func (s *FeedService) DeleteFeed(ctx context.Context, feedID string) error {
	deleted, err := s.feedRepo.Delete(ctx, feedID)
	if err != nil {
		return model.NewStorageFailureError("delete feed", fmt.Errorf("フィードの削除に失敗しました: %w", err))
	}
	if !deleted {
		return model.NewFeedNotFoundError(feedID)
	}

	s.logger.Info("フィードを削除しました",
		slog.String("feed_id", feedID),
	)
	return nil
}
