package notifications

import (
	"context"
	"testing"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/notification"
	"github.com/OpinNetwork/engage_layer/internal/app/storage/memory"
)

func TestNotify_FillsDefaults(t *testing.T) {
	svc := New(memory.New(), nil)

	created, err := svc.Notify(context.Background(), notification.Notification{
		UserID:  "u1",
		Type:    notification.TypeReward,
		Content: "rewards claimed",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if created.ID == "" {
		t.Fatal("missing id")
	}
	if created.FromUserID != notification.SystemSender {
		t.Fatalf("sender default: %q", created.FromUserID)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("missing timestamp")
	}
}

func TestMarkReadFlow(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	first, err := svc.Notify(ctx, notification.Notification{UserID: "u1", Type: notification.TypeLike, FromUserID: "u2"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if _, err := svc.Notify(ctx, notification.Notification{UserID: "u1", Type: notification.TypeComment, FromUserID: "u2"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	marked, err := svc.MarkRead(ctx, first.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !marked.Read {
		t.Fatal("read flag not set")
	}

	count, err := svc.MarkAllRead(ctx, "u1")
	if err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if count != 1 {
		t.Fatalf("marked %d, want the one remaining unread", count)
	}

	list, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, n := range list {
		if !n.Read {
			t.Fatalf("unread notification left: %+v", n)
		}
	}
}
