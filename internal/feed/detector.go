// Package feed はカレンダーフィード登録・管理のドメインロジックを提供する。
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
	"golang.org/x/net/html"
)

// CalendarCandidate はHTMLから検出されたカレンダーフィード候補を表す。
type CalendarCandidate struct {
	URL   string
	Title string
}

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// CalendarDetector はiCalフィードの自動検出機能を提供する。
type CalendarDetector struct {
	ssrfGuard SSRFValidator
}

// NewCalendarDetector はCalendarDetectorの新しいインスタンスを生成する。
func NewCalendarDetector(ssrfGuard SSRFValidator) *CalendarDetector {
	return &CalendarDetector{
		ssrfGuard: ssrfGuard,
	}
}

// calendarContentTypes はiCalフィードとして認識するContent-Typeのリスト。
var calendarContentTypes = []string{
	"text/calendar",
	"application/ics",
}

// sniffContentTypes はボディ解析が必要なContent-Type。
// カレンダーを汎用テキストとして配信するサーバーがある。
var sniffContentTypes = []string{
	"text/plain",
	"application/octet-stream",
}

// IsDirectCalendar はContent-Typeとボディを解析して、
// 指定されたレスポンスがiCalフィードかどうかを判定する。
func (d *CalendarDetector) IsDirectCalendar(contentType string, body []byte) bool {
	// Content-Typeからメディアタイプを抽出（charsetなどのパラメータを除去）
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	// カレンダー固有のContent-Typeの場合は直接判定
	for _, calCT := range calendarContentTypes {
		if mediaType == calCT {
			return true
		}
	}

	// 汎用Content-Typeの場合はボディ解析が必要
	needSniff := mediaType == ""
	for _, sniffCT := range sniffContentTypes {
		if mediaType == sniffCT {
			needSniff = true
			break
		}
	}

	if !needSniff || len(body) == 0 {
		return false
	}

	return isCalendarBody(body)
}

// isCalendarBody はボディの先頭部分を検査してiCalフィードかを判定する。
func isCalendarBody(body []byte) bool {
	// 先頭4KBを検査（プロローグ行が含まれるのに十分）
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToUpper(string(body[:checkSize]))
	return strings.Contains(prefix, "BEGIN:VCALENDAR")
}

// ParseCalendarLinksFromHTML はHTMLのheadタグからiCalフィードリンクを解析・検出する。
// type="text/calendar"のlink要素とwebcal://スキームのhrefを対象とし、
// 相対URLはbaseURLを基準に絶対URLに解決される。
func (d *CalendarDetector) ParseCalendarLinksFromHTML(htmlBody []byte, baseURL string) []CalendarCandidate {
	var candidates []CalendarCandidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return candidates
			}

			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			// link要素の属性を解析
			var linkType, href, title string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "type":
					linkType = strings.ToLower(v)
				case "href":
					href = v
				case "title":
					title = v
				}
				if !more {
					break
				}
			}

			if href == "" {
				continue
			}

			// text/calendar型のリンク、またはwebcal://スキームのみ対象
			isCalendarLink := linkType == "text/calendar" ||
				strings.HasPrefix(strings.ToLower(href), "webcal://")
			if !isCalendarLink {
				continue
			}

			resolvedURL := resolveCalendarURL(baseU, href)
			if resolvedURL == "" {
				continue
			}

			candidates = append(candidates, CalendarCandidate{
				URL:   resolvedURL,
				Title: title,
			})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// resolveCalendarURL は相対URLをベースURLを基準に絶対URLに解決する。
// webcal://スキームはhttps://に正規化する。
func resolveCalendarURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if strings.EqualFold(resolved.Scheme, "webcal") {
		resolved.Scheme = "https"
	}
	return resolved.String()
}

// SelectBestCalendar は複数のカレンダー候補から優先順位に従って最適な候補を選択する。
// 優先順位: 同一ホスト > 先頭
func (d *CalendarDetector) SelectBestCalendar(candidates []CalendarCandidate, inputURL string) *CalendarCandidate {
	if len(candidates) == 0 {
		return nil
	}

	inputHost := extractHost(inputURL)

	// スコアリング: 同一ホスト(+100) + 先頭優先
	bestIdx := 0
	bestScore := -1

	for i, c := range candidates {
		score := 0
		if extractHost(c.URL) == inputHost {
			score += 100
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	return &candidates[bestIdx]
}

// extractHost はURLからホスト名を抽出する。
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// DetectCalendarURL はURLがiCalフィードかHTMLページかを判定し、フィードURLを返す。
// 1. SSRF検証を実行
// 2. URLにHTTPリクエストを送信
// 3. Content-Typeとボディからカレンダーかどうかを判定
// 4. HTMLの場合はheadタグからカレンダーリンクを検出し、優先順位で選択
// 5. カレンダー未検出の場合はエラー（原因カテゴリ + 対処方法）を返す
func (d *CalendarDetector) DetectCalendarURL(ctx context.Context, inputURL string) (string, error) {
	// 空URLチェック
	if inputURL == "" {
		return "", model.NewInvalidURLError("URLが入力されていません")
	}

	// webcal://はhttps://として扱う
	if strings.HasPrefix(strings.ToLower(inputURL), "webcal://") {
		inputURL = "https://" + inputURL[len("webcal://"):]
	}

	// SSRF検証
	if d.ssrfGuard != nil {
		if err := d.ssrfGuard.ValidateURL(inputURL); err != nil {
			return "", model.NewSSRFBlockedError()
		}
	}

	// HTTPリクエスト送信
	client := d.getHTTPClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Caltodo/1.0 Calendar Sync")
	req.Header.Set("Accept", "text/calendar, text/html, text/plain, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", model.NewFeedUnavailableError(err.Error())
	}
	defer resp.Body.Close()

	// レスポンスボディを読み込み（最大5MB）
	const maxBodySize = 5 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", model.NewFeedUnavailableError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}

	contentType := resp.Header.Get("Content-Type")

	// カレンダー直接判定
	if d.IsDirectCalendar(contentType, body) {
		return inputURL, nil
	}

	// HTMLの場合: headタグからカレンダーリンクを検出
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		// HTMLでもカレンダーでもない場合
		return "", model.NewCalendarNotDetectedError(inputURL)
	}

	candidates := d.ParseCalendarLinksFromHTML(body, inputURL)
	if len(candidates) == 0 {
		return "", model.NewCalendarNotDetectedError(inputURL)
	}

	best := d.SelectBestCalendar(candidates, inputURL)
	if best == nil {
		return "", model.NewCalendarNotDetectedError(inputURL)
	}

	return best.URL, nil
}

// getHTTPClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (d *CalendarDetector) getHTTPClient() *http.Client {
	if d.ssrfGuard != nil {
		return d.ssrfGuard.NewSafeClient(10*time.Second, 5*1024*1024)
	}
	return &http.Client{Timeout: 10 * time.Second}
}
