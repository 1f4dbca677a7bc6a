package database

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryNotificationPaging(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 23; i++ {
		if _, err := m.CreateNotification(ctx, "u1", fmt.Sprintf("n%d", i)); err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
	}
	if _, err := m.CreateNotification(ctx, "u2", "other"); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	page, err := m.ListNotifications(ctx, "u1", 1, 10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if page.TotalPages != 3 || len(page.Items) != 10 {
		t.Fatalf("page 1 = %d items of %d pages", len(page.Items), page.TotalPages)
	}
	if page.Items[0].Message != "n22" {
		t.Fatalf("first item = %q, want newest n22", page.Items[0].Message)
	}

	last, _ := m.ListNotifications(ctx, "u1", 3, 10)
	if len(last.Items) != 3 {
		t.Fatalf("page 3 has %d items, want 3", len(last.Items))
	}
	beyond, _ := m.ListNotifications(ctx, "u1", 9, 10)
	if len(beyond.Items) != 0 || beyond.Items == nil {
		t.Fatalf("page past the end = %#v, want empty slice", beyond.Items)
	}
}

func TestMemoryMarkAllRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.CreateNotification(ctx, "u1", "a")
	m.CreateNotification(ctx, "u1", "b")
	m.CreateNotification(ctx, "u2", "c")

	n, err := m.MarkAllNotificationsRead(ctx, "u1")
	if err != nil || n != 2 {
		t.Fatalf("MarkAllNotificationsRead = %d, %v", n, err)
	}
	n, _ = m.MarkAllNotificationsRead(ctx, "u1")
	if n != 0 {
		t.Fatalf("second mark touched %d rows", n)
	}
	other, _ := m.ListNotifications(ctx, "u2", 1, 10)
	if other.Items[0].IsRead {
		t.Fatalf("other user's notification marked read")
	}
}

func TestMemoryRecentMessagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 5; i++ {
		m.CreateMessage(ctx, "u1", "alice", fmt.Sprintf("m%d", i))
	}
	got, err := m.RecentMessages(ctx, 3)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 3 || got[0].Content != "m4" || got[2].Content != "m2" {
		t.Fatalf("RecentMessages = %+v", got)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	users := []SeedUser{{Username: "alice", Password: "secret"}}
	if err := Seed(ctx, m, users); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := Seed(ctx, m, users); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	u, _ := m.GetUserByUsername(ctx, "alice")
	if u == nil || u.Password == "" || u.Password == "secret" {
		t.Fatalf("seeded user = %+v", u)
	}
	if len(m.users) != 1 {
		t.Fatalf("%d users after double seed", len(m.users))
	}
}
