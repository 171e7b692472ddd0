package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/model"
)

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

type userRow struct {
	ID           string `db:"id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	DNI          string `db:"dni"`
	Role         string `db:"role"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    string `db:"created_at"`
}

func (r userRow) user() *model.User {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return &model.User{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		Name:      r.Name,
		DNI:       r.DNI,
		Role:      model.Role(r.Role),
		CreatedAt: created,
	}
}

const userColumns = `id, username, email, name, dni, role, password_hash, created_at`

func (s *UserStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}

// Create inserts u. Email is stored lowercased. A clash on username or email
// returns an error wrapping ErrDuplicate whose text names the column.
func (s *UserStore) Create(ctx context.Context, u *model.User, passwordHash string) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Username, u.Email, u.Name, u.DNI, string(u.Role), passwordHash,
		u.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return fmt.Errorf("%w: %s", ErrDuplicate, field)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err)
	}
	return row.user(), nil
}

// GetByLogin looks a user up by email or username and returns it with its
// password hash.
func (s *UserStore) GetByLogin(ctx context.Context, emailOrUser string) (*model.User, string, error) {
	login := strings.TrimSpace(emailOrUser)

	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT `+userColumns+` FROM users
		WHERE email = ? OR username = ?
		LIMIT 1`),
		strings.ToLower(login), login,
	)
	if err != nil {
		return nil, "", notFound(err)
	}
	return row.user(), row.PasswordHash, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// uniqueViolation recognises unique constraint errors from both drivers and
// reports which column clashed.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return "", false
		}
		return columnFrom(pgErr.ConstraintName + " " + pgErr.Detail), true
	}

	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return columnFrom(msg), true
	}
	return "", false
}

func columnFrom(text string) string {
	switch {
	case strings.Contains(text, "email"):
		return "email"
	case strings.Contains(text, "username"):
		return "username"
	default:
		return "id"
	}
}
