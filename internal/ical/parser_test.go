package ical

import (
	"testing"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
)

func TestParse_TwoEvents(t *testing.T) {
	raw := "BEGIN:VCALENDAR\n" +
		"BEGIN:VEVENT\n" +
		"UID:a1\n" +
		"SUMMARY:Standup\n" +
		"DTSTART:20240101T090000Z\n" +
		"END:VEVENT\n" +
		"BEGIN:VEVENT\n" +
		"UID:b2\n" +
		"SUMMARY:Review\n" +
		"DTSTART:20240102T140000Z\n" +
		"END:VEVENT\n" +
		"END:VCALENDAR\n"

	events, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Parse returned %d events, want 2", len(events))
	}

	want := []model.CalendarEvent{
		{UID: "a1", Summary: "Standup", Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{UID: "b2", Summary: "Review", Start: time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)},
	}
	for i, w := range want {
		got := events[i]
		if got.UID != w.UID || got.Summary != w.Summary || !got.Start.Equal(w.Start) {
			t.Errorf("events[%d] = %+v, want %+v", i, got, w)
		}
	}
}

func TestParse_Description(t *testing.T) {
	raw := "BEGIN:VEVENT\n" +
		"UID:a1\n" +
		"SUMMARY:Standup\n" +
		"DESCRIPTION:Daily sync with the team\n" +
		"DTSTART:20240101T090000Z\n" +
		"END:VEVENT\n"

	events, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Parse returned %d events, want 1", len(events))
	}
	if events[0].Description != "Daily sync with the team" {
		t.Errorf("Description = %q, want %q", events[0].Description, "Daily sync with the team")
	}
}

func TestParse_DTStartWithTZIDParameter(t *testing.T) {
	// パラメータ付きDTSTARTは最後のコロン以降を値として扱う。
	// TZIDは無視され、値はUTCの絶対時刻として解釈される（意図的な簡略化）。
	raw := "BEGIN:VEVENT\n" +
		"UID:a1\n" +
		"SUMMARY:Standup\n" +
		"DTSTART;TZID=Asia/Tokyo:20240101T090000\n" +
		"END:VEVENT\n"

	events, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Parse returned %d events, want 1", len(events))
	}

	want := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	if !events[0].Start.Equal(want) {
		t.Errorf("Start = %v, want %v", events[0].Start, want)
	}
}

func TestParse_DateOnlyDefaultsToMidnight(t *testing.T) {
	raw := "BEGIN:VEVENT\n" +
		"UID:a1\n" +
		"SUMMARY:休暇\n" +
		"DTSTART:20240315\n" +
		"END:VEVENT\n"

	events, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Parse returned %d events, want 1", len(events))
	}

	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !events[0].Start.Equal(want) {
		t.Errorf("Start = %v, want %v", events[0].Start, want)
	}
}

func TestParse_DropsBlocksMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		block string
	}{
		{"UIDなし", "SUMMARY:Standup\nDTSTART:20240101T090000Z\n"},
		{"SUMMARYなし", "UID:a1\nDTSTART:20240101T090000Z\n"},
		{"DTSTARTなし", "UID:a1\nSUMMARY:Standup\n"},
		{"DTSTART不正", "UID:a1\nSUMMARY:Standup\nDTSTART:tomorrow\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := "BEGIN:VCALENDAR\nBEGIN:VEVENT\n" + tt.block + "END:VEVENT\nEND:VCALENDAR\n"
			events, err := Parse(raw)
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if len(events) != 0 {
				t.Errorf("必須フィールド欠落ブロックが出力された: %+v", events)
			}
		})
	}
}

func TestParse_MalformedBlockDoesNotFailWholeParse(t *testing.T) {
	raw := "BEGIN:VCALENDAR\n" +
		"BEGIN:VEVENT\n" +
		"SUMMARY:壊れたイベント\n" +
		"END:VEVENT\n" +
		"BEGIN:VEVENT\n" +
		"UID:ok\n" +
		"SUMMARY:正常なイベント\n" +
		"DTSTART:20240101T090000Z\n" +
		"END:VEVENT\n" +
		"END:VCALENDAR\n"

	events, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(events) != 1 || events[0].UID != "ok" {
		t.Fatalf("events = %+v, want single event with UID ok", events)
	}
}

func TestParse_DuplicateUIDLastWins(t *testing.T) {
	raw := "BEGIN:VEVENT\n" +
		"UID:a1\n" +
		"SUMMARY:旧タイトル\n" +
		"DTSTART:20240101T090000Z\n" +
		"END:VEVENT\n" +
		"BEGIN:VEVENT\n" +
		"UID:b2\n" +
		"SUMMARY:別イベント\n" +
		"DTSTART:20240102T090000Z\n" +
		"END:VEVENT\n" +
		"BEGIN:VEVENT\n" +
		"UID:a1\n" +
		"SUMMARY:新タイトル\n" +
		"DTSTART:20240103T090000Z\n" +
		"END:VEVENT\n"

	events, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Parse returned %d events, want 2 (duplicate collapsed)", len(events))
	}

	// 後勝ちで内容を置き換え、最初の出現位置を維持する
	if events[0].UID != "a1" || events[0].Summary != "新タイトル" {
		t.Errorf("events[0] = %+v, want UID a1 with last-seen summary", events[0])
	}
	if events[1].UID != "b2" {
		t.Errorf("events[1].UID = %q, want b2", events[1].UID)
	}
}

func TestParse_IgnoresLinesOutsideEventBlocks(t *testing.T) {
	raw := "BEGIN:VCALENDAR\n" +
		"VERSION:2.0\n" +
		"SUMMARY:ブロック外のサマリー\n" +
		"UID:ブロック外のUID\n" +
		"BEGIN:VEVENT\n" +
		"UID:a1\n" +
		"SUMMARY:Standup\n" +
		"DTSTART:20240101T090000Z\n" +
		"END:VEVENT\n" +
		"END:VCALENDAR\n"

	events, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(events) != 1 || events[0].UID != "a1" {
		t.Fatalf("events = %+v, want single event a1", events)
	}
}

func TestParse_CRLFLineEndings(t *testing.T) {
	raw := "BEGIN:VEVENT\r\n" +
		"UID:a1\r\n" +
		"SUMMARY:Standup\r\n" +
		"DTSTART:20240101T090000Z\r\n" +
		"END:VEVENT\r\n"

	events, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(events) != 1 || events[0].Summary != "Standup" {
		t.Fatalf("events = %+v, want single Standup event", events)
	}
}

func TestParse_NotICalAtAll(t *testing.T) {
	_, err := Parse("<html><body>Not a calendar</body></html>")
	if err == nil {
		t.Fatal("expected FEED_MALFORMED error, got nil")
	}
	if !model.HasCode(err, model.ErrCodeFeedMalformed) {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeFeedMalformed)
	}
}

func TestParse_EmptyCalendarIsNotAnError(t *testing.T) {
	events, err := Parse("BEGIN:VCALENDAR\nVERSION:2.0\nEND:VCALENDAR\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("Parse returned %d events, want 0", len(events))
	}
}

func TestParse_IsRestartable(t *testing.T) {
	first := "BEGIN:VEVENT\nUID:a1\nSUMMARY:One\nDTSTART:20240101\nEND:VEVENT\n"
	second := "BEGIN:VEVENT\nUID:b2\nSUMMARY:Two\nDTSTART:20240102\nEND:VEVENT\n"

	events1, err := Parse(first)
	if err != nil {
		t.Fatalf("first Parse returned error: %v", err)
	}
	events2, err := Parse(second)
	if err != nil {
		t.Fatalf("second Parse returned error: %v", err)
	}

	if len(events1) != 1 || events1[0].UID != "a1" {
		t.Errorf("events1 = %+v, want single a1", events1)
	}
	// 前回呼び出しの状態が持ち越されないこと
	if len(events2) != 1 || events2[0].UID != "b2" {
		t.Errorf("events2 = %+v, want single b2", events2)
	}
}
