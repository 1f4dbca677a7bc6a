package stream

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/umar/livesync/internal/models"
	"github.com/umar/livesync/internal/notice"
	"github.com/umar/livesync/internal/protocol"
)

func newTestReconciler(rec *notice.Recorder) *Reconciler {
	n := 0
	return New(Options{
		Notifier: rec,
		NewID: func() string {
			n++
			return fmt.Sprintf("gen-%d", n)
		},
		Now: func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
}

func history(n int) []protocol.PastMessage {
	// newest first, as the server sends it
	recs := make([]protocol.PastMessage, 0, n)
	for i := n; i >= 1; i-- {
		recs = append(recs, protocol.PastMessage{
			ID:        fmt.Sprintf("h%d", i),
			UserID:    fmt.Sprintf("u%d", i%2),
			Username:  fmt.Sprintf("user%d", i%2),
			Message:   fmt.Sprintf("msg %d", i),
			CreatedAt: time.Date(2024, 5, 1, 10, i, 0, 0, time.UTC).Format(time.RFC3339),
		})
	}
	return recs
}

func live(id, userID, name, body string) protocol.ChatMessage {
	return protocol.ChatMessage{ID: id, User: &protocol.UserRef{ID: userID, Username: name}, Message: body}
}

func TestHistoryIsChronological(t *testing.T) {
	for _, n := range []int{0, 1, 3, 25} {
		r := newTestReconciler(&notice.Recorder{})
		r.Begin()
		r.ApplyHistory(history(n))

		msgs := r.Messages()
		if len(msgs) != n {
			t.Fatalf("n=%d: expected %d messages, got %d", n, n, len(msgs))
		}
		for i, m := range msgs {
			if m.ID != fmt.Sprintf("h%d", i+1) {
				t.Fatalf("n=%d: position %d holds %s", n, i, m.ID)
			}
		}
		if r.State() != StateLive {
			t.Fatalf("expected live state after history, got %s", r.State())
		}
	}
}

func TestHistoryDefaultsMissingDisplayName(t *testing.T) {
	r := newTestReconciler(&notice.Recorder{})
	r.Begin()
	r.ApplyHistory([]protocol.PastMessage{{ID: "h1", UserID: "u1", Message: "hello"}})

	msgs := r.Messages()
	if msgs[0].AuthorDisplayName != DefaultPlaceholder {
		t.Fatalf("expected placeholder display name, got %q", msgs[0].AuthorDisplayName)
	}
}

func TestHandleHistoryDecodesPayload(t *testing.T) {
	r := newTestReconciler(&notice.Recorder{})
	r.Begin()
	r.HandleHistory(json.RawMessage(`[{"id":"b","userId":"u1","username":"ann","message":"second","createdAt":"2024-05-01T10:02:00Z"},{"id":"a","userId":"u1","username":"ann","message":"first","createdAt":"2024-05-01T10:01:00Z"}]`))

	msgs := r.Messages()
	if len(msgs) != 2 || msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Fatalf("unexpected list: %+v", msgs)
	}
	if msgs[0].SentAt.Minute() != 1 {
		t.Fatalf("sentAt not parsed: %v", msgs[0].SentAt)
	}

	r.HandleHistory(json.RawMessage(`{"not":"an array"}`))
	if len(r.Messages()) != 2 {
		t.Fatalf("undecodable history must not touch the list")
	}
}

func TestLiveMessageAppendsAndBackfillsPresence(t *testing.T) {
	scrolls := 0
	r := New(Options{Notifier: &notice.Recorder{}, OnScroll: func() { scrolls++ }})
	r.Begin()
	r.ApplyHistory(history(3))

	before := r.Messages()
	for _, m := range before {
		if m.AuthorOnline {
			t.Fatalf("history authors should start offline: %+v", m)
		}
	}

	msg, ok := r.ApplyLive(live("l1", "u1", "user1", "I'm back"))
	if !ok {
		t.Fatalf("expected live message to be accepted")
	}
	if !msg.AuthorOnline || msg.SentAt.IsZero() {
		t.Fatalf("unexpected accepted message: %+v", msg)
	}
	if scrolls != 1 {
		t.Fatalf("expected one scroll, got %d", scrolls)
	}

	msgs := r.Messages()
	if len(msgs) != 4 || msgs[3].ID != "l1" {
		t.Fatalf("expected live message appended last, got %+v", msgs)
	}
	for _, m := range msgs {
		if m.AuthorID == "u1" && !m.AuthorOnline {
			t.Fatalf("u1 entries must be back-filled online: %+v", m)
		}
		if m.AuthorID == "u0" && m.AuthorOnline {
			t.Fatalf("u0 entries must stay offline: %+v", m)
		}
	}
	if !r.Tracker().Online("u1") {
		t.Fatalf("live author should be tracked online")
	}
}

func TestLiveMessageWithoutIDGetsSynthesizedID(t *testing.T) {
	r := newTestReconciler(&notice.Recorder{})
	r.Begin()
	a, _ := r.ApplyLive(live("", "u1", "ann", "one"))
	b, _ := r.ApplyLive(live("", "u1", "ann", "two"))
	if a.ID == "" || b.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct synthesized ids, got %q and %q", a.ID, b.ID)
	}
	if len(r.Messages()) != 2 {
		t.Fatalf("expected both messages listed")
	}
}

func TestMalformedLiveMessageDroppedWithNotice(t *testing.T) {
	rec := &notice.Recorder{}
	r := newTestReconciler(rec)
	r.Begin()
	r.ApplyHistory(history(2))

	malformed := []json.RawMessage{
		json.RawMessage(`{"message":"no user"}`),
		json.RawMessage(`{"user":{"id":"u1"},"message":"no username"}`),
		json.RawMessage(`{"user":null,"message":"null user"}`),
		json.RawMessage(`garbage`),
	}
	for _, raw := range malformed {
		if _, ok := r.HandleLive(raw); ok {
			t.Fatalf("malformed payload accepted: %s", raw)
		}
	}

	if len(r.Messages()) != 2 {
		t.Fatalf("malformed payloads must not be appended, got %d messages", len(r.Messages()))
	}
	if got := rec.Count(notice.TextMessageNotSent); got != len(malformed) {
		t.Fatalf("expected %d notices, got %d", len(malformed), got)
	}
}

func TestMalformedLiveMessageSilentPolicy(t *testing.T) {
	rec := &notice.Recorder{}
	r := New(Options{Notifier: rec, Policy: notice.PolicySilent})
	r.Begin()
	r.HandleLive(json.RawMessage(`{"message":"no user"}`))
	if len(rec.Notices()) != 0 {
		t.Fatalf("silent policy raised notices: %+v", rec.Notices())
	}
}

func TestJoinAndLeaveUpdateAuthorFlags(t *testing.T) {
	r := newTestReconciler(&notice.Recorder{})
	r.Begin()
	r.ApplyHistory(history(4))
	r.ApplyLive(live("l1", "u1", "user1", "hey"))

	r.HandleLeave(json.RawMessage(`{"user":{"id":"u1","username":"user1"}}`))
	for _, m := range r.Messages() {
		if m.AuthorID == "u1" && m.AuthorOnline {
			t.Fatalf("u1 must be offline after leave: %+v", m)
		}
	}

	r.HandleJoin(json.RawMessage(`{"user":{"id":"u0","username":"user0"}}`))
	for _, m := range r.Messages() {
		if m.AuthorID == "u0" && !m.AuthorOnline {
			t.Fatalf("u0 must be online after join: %+v", m)
		}
		if m.AuthorID == "u1" && m.AuthorOnline {
			t.Fatalf("u1 must stay offline: %+v", m)
		}
	}

	// malformed presence events are ignored
	r.HandleJoin(json.RawMessage(`{"user":{}}`))
	if r.Tracker().Len() != 1 {
		t.Fatalf("unexpected tracker contents: %v", r.Tracker().IDs())
	}
}

func TestLiveBeforeHistorySurvivesReplacement(t *testing.T) {
	r := newTestReconciler(&notice.Recorder{})
	r.Begin()
	r.ApplyLive(live("early", "u9", "zed", "racing the history"))
	r.ApplyHistory(history(2))

	msgs := r.Messages()
	if len(msgs) != 3 || msgs[2].ID != "early" {
		t.Fatalf("expected early live message after history, got %+v", msgs)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	r := newTestReconciler(&notice.Recorder{})
	var last []models.Message
	calls := 0
	unsubscribe := r.Subscribe(func(msgs []models.Message) {
		calls++
		last = msgs
	})
	r.Begin()
	r.ApplyHistory(history(1))
	r.ApplyLive(live("l1", "u1", "ann", "hi"))
	if len(last) != 2 {
		t.Fatalf("subscriber saw %d messages, want 2", len(last))
	}

	unsubscribe()
	before := calls
	r.ApplyLive(live("l2", "u1", "ann", "again"))
	if calls != before {
		t.Fatalf("unsubscribed listener still called")
	}
}

func TestMergeDropsDuplicateLiveIDs(t *testing.T) {
	existing := []models.Message{{ID: "a"}, {ID: "b"}}
	next := Merge(existing, Batch{Kind: KindLive, Messages: []models.Message{{ID: "b"}, {ID: "c"}}})
	if len(next) != 3 || next[2].ID != "c" {
		t.Fatalf("unexpected merge result: %+v", next)
	}
	if len(existing) != 2 {
		t.Fatalf("Merge must not modify its input")
	}
}

func TestMergeHistoryReplaces(t *testing.T) {
	existing := []models.Message{{ID: "a"}, {ID: "live"}}
	next := Merge(existing, Batch{Kind: KindHistory, Messages: []models.Message{{ID: "a"}, {ID: "b"}}})
	want := []string{"a", "b", "live"}
	if len(next) != len(want) {
		t.Fatalf("unexpected merge result: %+v", next)
	}
	for i, id := range want {
		if next[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, next[i].ID, id)
		}
	}
}
