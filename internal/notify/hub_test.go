package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/caltodo/internal/model"
)

// fakeSession はSessionのテスト用実装。受信メッセージを記録する。
type fakeSession struct {
	mu       sync.Mutex
	received [][]byte
	sendErr  error
	closed   bool
}

func (s *fakeSession) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.received = append(s.received, data)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) messages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.received...)
}

func newTestHub() *Hub {
	var buf bytes.Buffer
	return NewHub(slog.New(slog.NewJSONHandler(&buf, nil)))
}

// waitFor はcondが真になるまで最大1秒ポーリングする。
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHub_NotifyDeliversToSubscribedUser(t *testing.T) {
	hub := newTestHub()
	session := &fakeSession{}
	hub.Subscribe("user-1", session)

	events := []model.CalendarEvent{
		{UID: "a1", Summary: "Standup", Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
	}
	hub.Notify("user-1", "feed-1", events)

	waitFor(t, func() bool { return len(session.messages()) == 1 }, "notification was not delivered")

	var msg ChangeMessage
	if err := json.Unmarshal(session.messages()[0], &msg); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if msg.Type != "calendarUpdate" {
		t.Errorf("Type = %q, want calendarUpdate", msg.Type)
	}
	if msg.FeedID != "feed-1" {
		t.Errorf("FeedID = %q, want feed-1", msg.FeedID)
	}
	if len(msg.Events) != 1 || msg.Events[0].UID != "a1" {
		t.Errorf("Events = %+v, want single a1", msg.Events)
	}
}

func TestHub_NotifyReachesAllUserSessions(t *testing.T) {
	hub := newTestHub()
	s1 := &fakeSession{}
	s2 := &fakeSession{}
	hub.Subscribe("user-1", s1)
	hub.Subscribe("user-1", s2)

	hub.Notify("user-1", "feed-1", nil)

	waitFor(t, func() bool {
		return len(s1.messages()) == 1 && len(s2.messages()) == 1
	}, "not all sessions received the notification")
}

func TestHub_NotifyDoesNotCrossUsers(t *testing.T) {
	hub := newTestHub()
	mine := &fakeSession{}
	other := &fakeSession{}
	hub.Subscribe("user-1", mine)
	hub.Subscribe("user-2", other)

	hub.Notify("user-1", "feed-1", nil)

	waitFor(t, func() bool { return len(mine.messages()) == 1 }, "owner session did not receive notification")
	if len(other.messages()) != 0 {
		t.Error("notification leaked to another user's session")
	}
}

func TestHub_NotifyWithoutSubscribersIsNoop(t *testing.T) {
	hub := newTestHub()
	// 購読者ゼロで呼んでもパニックやブロックは起きない
	hub.Notify("nobody", "feed-1", []model.CalendarEvent{{UID: "a1"}})
}

func TestHub_DeadSessionIsPruned(t *testing.T) {
	hub := newTestHub()
	dead := &fakeSession{sendErr: errors.New("connection reset")}
	alive := &fakeSession{}
	hub.Subscribe("user-1", dead)
	hub.Subscribe("user-1", alive)

	hub.Notify("user-1", "feed-1", nil)

	// 生きているセッションには届き、死んだセッションは登録簿から消える
	waitFor(t, func() bool { return len(alive.messages()) == 1 }, "alive session did not receive notification")
	waitFor(t, func() bool { return hub.SessionCount("user-1") == 1 }, "dead session was not pruned")
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := newTestHub()
	session := &fakeSession{}
	hub.Subscribe("user-1", session)
	hub.Unsubscribe(session)

	if n := hub.SessionCount("user-1"); n != 0 {
		t.Errorf("SessionCount = %d, want 0", n)
	}

	hub.Notify("user-1", "feed-1", nil)
	time.Sleep(20 * time.Millisecond)
	if len(session.messages()) != 0 {
		t.Error("unsubscribed session received a notification")
	}

	// 二重解除は安全
	hub.Unsubscribe(session)
}

func TestHub_CloseClosesSessions(t *testing.T) {
	hub := newTestHub()
	session := &fakeSession{}
	hub.Subscribe("user-1", session)

	hub.Close()

	session.mu.Lock()
	closed := session.closed
	session.mu.Unlock()
	if !closed {
		t.Error("session was not closed on hub shutdown")
	}
	if n := hub.SessionCount("user-1"); n != 0 {
		t.Errorf("SessionCount = %d, want 0 after Close", n)
	}
}
