// Package user manages the operator accounts allowed to trigger scoring
// through the API.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/crypto/bcrypt"

	"github.com/RobinCoderZhao/hopeshot/pkg/storage"
)

var (
	// ErrExists is returned when the email is already registered.
	ErrExists = errors.New("operator already exists")
	// ErrNotFound is returned when no operator has the email.
	ErrNotFound = errors.New("operator not found")
	// ErrInvalidCredentials is returned by Authenticate on any mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS operators (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'operator',
    created_at    INTEGER NOT NULL
);`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS operators (
    id            BIGSERIAL PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'operator',
    created_at    BIGINT NOT NULL
);`

// Roles.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Operator is an account allowed to call protected endpoints.
type Operator struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store provides persistence for operators.
type Store struct {
	db   *storage.DB
	cost int
	now  func() time.Time
}

// NewStore creates an operator store and migrates its table.
func NewStore(ctx context.Context, db *storage.DB) (*Store, error) {
	schema := sqliteSchema
	if db.DriverType() == storage.Postgres {
		schema = postgresSchema
	}
	if err := db.Migrate(ctx, schema); err != nil {
		return nil, fmt.Errorf("create operator schema: %w", err)
	}
	return &Store{db: db, cost: bcrypt.DefaultCost, now: time.Now}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Create hashes the password and inserts a new operator.
func (s *Store) Create(ctx context.Context, email, password, role string) (*Operator, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}
	if role == "" {
		role = RoleOperator
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created := s.now().UTC().Truncate(time.Second)
	query, args, err := s.db.Builder().Insert("operators").
		Columns("email", "password_hash", "role", "created_at").
		Values(email, string(hash), role, created.Unix()).
		Suffix("ON CONFLICT (email) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}

	op := &Operator{Email: email, PasswordHash: string(hash), Role: role, CreatedAt: created}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&op.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("create operator: %w", err)
	}
	return op, nil
}

// GetByEmail finds an operator by email address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Operator, error) {
	query, args, err := s.db.Builder().
		Select("id", "email", "password_hash", "role", "created_at").
		From("operators").
		Where(sq.Eq{"email": normalizeEmail(email)}).
		ToSql()
	if err != nil {
		return nil, err
	}

	op := &Operator{}
	var created int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&op.ID, &op.Email, &op.PasswordHash, &op.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get operator: %w", err)
	}
	op.CreatedAt = time.Unix(created, 0).UTC()
	return op, nil
}

// Authenticate returns the operator when the password matches.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*Operator, error) {
	op, err := s.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return op, nil
}

// Count returns the number of operators.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM operators").Scan(&n)
	return n, err
}
