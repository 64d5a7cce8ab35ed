package ical

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Fetcher はiCalフィードのHTTPフェッチとパースを行う。
// SSRF検証済みのHTTPクライアントでテキストを取得し、Parseに渡す。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator, timeout time.Duration, maxBodySize int64) *Fetcher {
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// FetchText はフィードURLからiCalテキストを取得する。
// ネットワーク障害・非2xx応答・本文読み取り失敗はすべて
// FEED_UNAVAILABLEエラーとして返す。
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	if err := f.ssrfGuard.ValidateURL(url); err != nil {
		return "", model.NewSSRFBlockedError()
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", model.NewFeedUnavailableError(err.Error())
	}

	req.Header.Set("User-Agent", "Caltodo/1.0 Calendar Sync")
	req.Header.Set("Accept", "text/calendar, text/plain, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", model.NewFeedUnavailableError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", model.NewFeedUnavailableError(resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return "", model.NewFeedUnavailableError(err.Error())
	}

	return string(body), nil
}

// FetchEvents はフィードURLからiCalテキストを取得してパースする。
// 同期エンジンが使用する入口で、FetchTextとParseのエラーをそのまま伝播する。
func (f *Fetcher) FetchEvents(ctx context.Context, url string) ([]model.CalendarEvent, error) {
	text, err := f.FetchText(ctx, url)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}
