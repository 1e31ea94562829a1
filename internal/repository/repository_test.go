package repository

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestIsUniqueViolationMatchesPgCode(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Fatalf("nil error should not be a unique violation")
	}
	if isUniqueViolation(errors.New("some other error")) {
		t.Fatalf("generic error should not be a unique violation")
	}
}

// openTestRepository connects to the database named by NEUTRON_TEST_DSN.
// The suite is skipped when it is unset, since the full CRUD surface needs
// a live Postgres instance rather than a mock (the unique-constraint and
// RETURNING-id behavior it exercises are genuinely database semantics).
func openTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("NEUTRON_TEST_DSN")
	if dsn == "" {
		t.Skip("NEUTRON_TEST_DSN not set, skipping repository integration test")
	}
	ctx := context.Background()
	repo, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func TestCreateAndLookupUser(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	username := "alice-repo-test"
	derived := []byte("derived-key-bytes-aaaaaaaaaaaaaa")
	salt := []byte("salt-bytes-aaaaa")

	if err := repo.CreateUser(ctx, username, derived, salt); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := repo.CreateUser(ctx, username, derived, salt); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	u, err := repo.LookupUser(ctx, username)
	if err != nil {
		t.Fatalf("lookup user: %v", err)
	}
	if string(u.Derived) != string(derived) {
		t.Fatalf("derived key mismatch")
	}

	if _, err := repo.LookupUser(ctx, "no-such-user"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestInsertMessageDuplicateIsFatalCondition(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	roomID := []byte("room-insert-test")
	msgID := []byte("msg-insert-test-unique-id")

	if _, err := repo.InsertMessage(ctx, 1000, msgID, roomID, "alice", "hello"); err != nil {
		t.Fatalf("insert message: %v", err)
	}
	if _, err := repo.InsertMessage(ctx, 1001, msgID, roomID, "alice", "again"); !errors.Is(err, ErrDuplicateMessage) {
		t.Fatalf("expected ErrDuplicateMessage, got %v", err)
	}
}

func TestListSinceOrderingAndCursor(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	roomID := []byte("room-sync-test")
	first, err := repo.InsertMessage(ctx, 1, []byte("sync-msg-1"), roomID, "alice", "first")
	if err != nil {
		t.Fatalf("insert first: %v", err)
	}
	if _, err := repo.InsertMessage(ctx, 2, []byte("sync-msg-2"), roomID, "bob", "second"); err != nil {
		t.Fatalf("insert second: %v", err)
	}

	all, err := repo.ListSince(ctx, roomID, 0)
	if err != nil {
		t.Fatalf("list since 0: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(all))
	}
	if all[0].Content != "first" || all[1].Content != "second" {
		t.Fatalf("unexpected ordering: %+v", all)
	}

	tail, err := repo.ListSince(ctx, roomID, first)
	if err != nil {
		t.Fatalf("list since first: %v", err)
	}
	if len(tail) != 1 || tail[0].Content != "second" {
		t.Fatalf("expected only second message after cursor, got %+v", tail)
	}
}
