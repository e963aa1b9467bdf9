package messages

import (
	"context"
	"errors"
	"testing"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/storage/memory"
)

func newFixture(t *testing.T, secret string) (*Service, *memory.Store, string, string) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	alice, err := store.CreateUser(ctx, user.User{Username: "alice"})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := store.CreateUser(ctx, user.User{Username: "bob"})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	return New(store, store, []byte(secret), nil), store, alice.ID, bob.ID
}

func TestSend_Validation(t *testing.T) {
	svc, _, alice, _ := newFixture(t, "secret")
	ctx := context.Background()

	if _, err := svc.Send(ctx, alice, "missing", "hi"); err == nil {
		t.Fatal("expected unknown receiver error")
	}
	if _, err := svc.Send(ctx, alice, alice, "hi"); !errors.Is(err, ErrSelfMessage) {
		t.Fatalf("self message: %v", err)
	}
	if _, err := svc.Send(ctx, alice, alice, ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("empty message: %v", err)
	}
}

func TestSend_SealsAtRestAndOpensOnRead(t *testing.T) {
	svc, store, alice, bob := newFixture(t, "super secret key")
	ctx := context.Background()

	if _, err := svc.Send(ctx, alice, bob, "hello bob"); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Stored form is ciphertext only.
	raw, err := store.GetConversationBetween(ctx, alice, bob)
	if err != nil {
		t.Fatalf("raw conversation: %v", err)
	}
	if len(raw.Messages) != 1 {
		t.Fatalf("messages: %d", len(raw.Messages))
	}
	if !raw.Messages[0].Encrypted || raw.Messages[0].Content != "" || len(raw.Messages[0].Ciphertext) == 0 {
		t.Fatalf("message not sealed at rest: %+v", raw.Messages[0])
	}

	// Reads open the seal in either direction.
	conv, err := svc.History(ctx, bob, alice)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if conv.Messages[0].Content != "hello bob" {
		t.Fatalf("opened content: %q", conv.Messages[0].Content)
	}
	if conv.LastMessage.Content != "hello bob" {
		t.Fatalf("last message: %q", conv.LastMessage.Content)
	}
}

func TestSend_AppendsToExistingConversation(t *testing.T) {
	svc, store, alice, bob := newFixture(t, "k")
	ctx := context.Background()

	if _, err := svc.Send(ctx, alice, bob, "one"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Send(ctx, bob, alice, "two"); err != nil {
		t.Fatalf("reply: %v", err)
	}

	convs, err := store.ListConversations(ctx, alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("reply created a second conversation: %d", len(convs))
	}
	if len(convs[0].Messages) != 2 {
		t.Fatalf("messages: %d", len(convs[0].Messages))
	}

	opened, err := svc.List(ctx, bob)
	if err != nil {
		t.Fatalf("opened list: %v", err)
	}
	if opened[0].LastMessage.Content != "two" {
		t.Fatalf("last message: %q", opened[0].LastMessage.Content)
	}
}

func TestSend_PlaintextWithoutSecret(t *testing.T) {
	svc, store, alice, bob := newFixture(t, "")
	ctx := context.Background()

	if _, err := svc.Send(ctx, alice, bob, "in the clear"); err != nil {
		t.Fatalf("send: %v", err)
	}

	raw, _ := store.GetConversationBetween(ctx, alice, bob)
	if raw.Messages[0].Encrypted || raw.Messages[0].Content != "in the clear" {
		t.Fatalf("expected plaintext storage: %+v", raw.Messages[0])
	}
}

func TestHistory_MissingConversationIsEmpty(t *testing.T) {
	svc, _, alice, bob := newFixture(t, "k")

	conv, err := svc.History(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(conv.Messages) != 0 {
		t.Fatalf("messages: %+v", conv.Messages)
	}
}

func TestOpen_CorruptCiphertext(t *testing.T) {
	svc, _, alice, bob := newFixture(t, "k")

	if _, err := svc.open(alice, bob, []byte("short")); !errors.Is(err, ErrCorruptSeal) {
		t.Fatalf("short ciphertext: %v", err)
	}
	garbage := make([]byte, 64)
	if _, err := svc.open(alice, bob, garbage); !errors.Is(err, ErrCorruptSeal) {
		t.Fatalf("garbage ciphertext: %v", err)
	}
}
