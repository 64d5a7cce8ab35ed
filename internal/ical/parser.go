// Package ical はiCalフィードの取得とパースを提供する。
//
// RFC 5545の完全準拠は目的ではなく、Todoへの実体化に必要な
// UID / SUMMARY / DESCRIPTION / DTSTART のみを読み取る簡易パーサーである。
// 繰り返しルール（RRULE）の展開やタイムゾーンの厳密な解決は行わない。
package ical

import (
	"strings"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
)

// Parse はiCalテキストをパースし、正規化済みイベント列を返す。
//
// BEGIN:VEVENT / END:VEVENT で区切られたブロックのみを走査し、ブロック外の
// 行は無視する。UID・SUMMARY・DTSTARTのいずれかが欠けたブロックは黙って
// 捨てられる（エラーにはしない）。同一UIDのブロックが複数ある場合は
// 後勝ちとし、最初に出現した位置を保ったまま内容を置き換える。
//
// テキストがiCalとして全く解釈できない場合（VCALENDARもVEVENTも存在しない）
// はFEED_MALFORMEDエラーを返す。イベントが0件の有効なカレンダーはエラーではない。
//
// 状態を持たないため、新しいテキストで何度でも呼び出せる。
func Parse(raw string) ([]model.CalendarEvent, error) {
	if !strings.Contains(raw, "BEGIN:VCALENDAR") && !strings.Contains(raw, "BEGIN:VEVENT") {
		return nil, model.NewFeedMalformedError()
	}

	var (
		events  []model.CalendarEvent
		indexOf = make(map[string]int) // UID → eventsの添字（後勝ちの置き換え用）

		current model.CalendarEvent
		inEvent bool
		hasUID  bool
		hasSum  bool
		hasStart bool
	)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")

		switch {
		case strings.HasPrefix(line, "BEGIN:VEVENT"):
			current = model.CalendarEvent{}
			inEvent = true
			hasUID, hasSum, hasStart = false, false, false

		case strings.HasPrefix(line, "END:VEVENT"):
			if inEvent && hasUID && hasSum && hasStart {
				if i, ok := indexOf[current.UID]; ok {
					events[i] = current
				} else {
					indexOf[current.UID] = len(events)
					events = append(events, current)
				}
			}
			inEvent = false

		case !inEvent:
			// ブロック外の行は無視する

		case strings.HasPrefix(line, "UID:"):
			current.UID = strings.TrimSpace(line[len("UID:"):])
			hasUID = current.UID != ""

		case strings.HasPrefix(line, "SUMMARY:"):
			current.Summary = strings.TrimSpace(line[len("SUMMARY:"):])
			hasSum = current.Summary != ""

		case strings.HasPrefix(line, "DESCRIPTION:"):
			current.Description = strings.TrimSpace(line[len("DESCRIPTION:"):])

		case strings.HasPrefix(line, "DTSTART"):
			// DTSTART:20240101T090000Z と DTSTART;TZID=...:20240101T090000 の
			// 両形式に対応するため、最後のコロン以降を値として扱う。
			i := strings.LastIndex(line, ":")
			if i < 0 {
				continue
			}
			start, err := parseCompactTime(strings.TrimSpace(line[i+1:]))
			if err != nil {
				continue
			}
			current.Start = start
			hasStart = true
		}
	}

	return events, nil
}

// parseCompactTime はiCalのコンパクト日時形式 YYYYMMDD[THHMMSS][Z] をパースする。
// 時刻部が省略された場合は00:00:00を補い、値は常にUTCの絶対時刻として解釈する。
// TZIDパラメータは無視するため厳密なタイムゾーン対応ではない（意図的な簡略化）。
func parseCompactTime(value string) (time.Time, error) {
	value = strings.TrimSuffix(value, "Z")

	layout := "20060102"
	if strings.Contains(value, "T") {
		layout = "20060102T150405"
	}

	return time.ParseInLocation(layout, value, time.UTC)
}
