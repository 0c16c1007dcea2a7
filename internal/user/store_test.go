package user

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/RobinCoderZhao/hopeshot/pkg/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(storage.Config{Driver: storage.SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	s.cost = bcrypt.MinCost
	return s
}

func TestCreateAndAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op, err := s.Create(ctx, "  Editor@Example.com ", "s3cret", "")
	if err != nil {
		t.Fatal(err)
	}
	if op.ID == 0 || op.Email != "editor@example.com" || op.Role != RoleOperator {
		t.Fatalf("unexpected operator: %+v", op)
	}
	if op.PasswordHash == "s3cret" {
		t.Fatal("password must be stored hashed")
	}

	got, err := s.Authenticate(ctx, "EDITOR@example.com", "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != op.ID || got.CreatedAt.Unix() != op.CreatedAt.Unix() {
		t.Fatalf("expected the same operator, got %+v", got)
	}

	if _, err := s.Authenticate(ctx, "editor@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := s.Authenticate(ctx, "nobody@example.com", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "a@example.com", "pw", RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, "A@example.com", "other", ""); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("expected 1 operator, got %d", n)
	}
}

func TestCreate_RequiresFields(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create(context.Background(), "", "pw", ""); err == nil {
		t.Fatal("expected error for empty email")
	}
	if _, err := s.GetByEmail(context.Background(), "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
