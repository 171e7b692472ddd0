package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/model"
)

func newTestDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, MigrateUp(dsn))

	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, dsn
}

func newUser(id, username, email string) *model.User {
	return &model.User{
		ID:        id,
		Username:  username,
		Email:     email,
		Name:      "Juan Pérez",
		DNI:       "12345678",
		Role:      model.RoleConductor,
		CreatedAt: time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC),
	}
}

func TestDriverFor(t *testing.T) {
	assert.Equal(t, "pgx", DriverFor("postgres://u:p@localhost/db"))
	assert.Equal(t, "pgx", DriverFor("postgresql://localhost/db"))
	assert.Equal(t, "sqlite", DriverFor("file:radicacion.db"))
	assert.Equal(t, "sqlite", DriverFor(":memory:"))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	_, dsn := newTestDB(t)
	require.NoError(t, MigrateUp(dsn))

	version, dirty, err := MigrationVersion(dsn)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestUserStoreCreateAndGet(t *testing.T) {
	db, _ := newTestDB(t)
	users := NewUserStore(db)
	ctx := context.Background()

	u := newUser("u1", "jperez", " JPerez@Example.org ")
	require.NoError(t, users.Create(ctx, u, "hash"))
	assert.Equal(t, "jperez@example.org", u.Email)

	got, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	byEmail, hash, err := users.GetByLogin(ctx, "JPEREZ@example.org")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
	assert.Equal(t, "hash", hash)

	byUsername, _, err := users.GetByLogin(ctx, " jperez ")
	require.NoError(t, err)
	assert.Equal(t, "u1", byUsername.ID)

	n, err := users.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUserStoreNotFound(t *testing.T) {
	db, _ := newTestDB(t)
	users := NewUserStore(db)

	_, err := users.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = users.GetByLogin(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStoreDuplicates(t *testing.T) {
	db, _ := newTestDB(t)
	users := NewUserStore(db)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, newUser("u1", "jperez", "j@example.org"), "hash"))

	err := users.Create(ctx, newUser("u2", "jperez", "other@example.org"), "hash")
	require.True(t, errors.Is(err, ErrDuplicate), "got %v", err)
	assert.Contains(t, err.Error(), "username")

	err = users.Create(ctx, newUser("u3", "otro", "J@example.org"), "hash")
	require.True(t, errors.Is(err, ErrDuplicate), "got %v", err)
	assert.Contains(t, err.Error(), "email")
}
