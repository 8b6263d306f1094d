package access

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"receiptgen/config"
	"receiptgen/internal/domain"
	"receiptgen/internal/repository"
	"receiptgen/traits/database"
)

const adminID int64 = 42

func newTestGate(t *testing.T) *Gate {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	require.NoError(t, database.CreateTables(db, logger))

	store := repository.NewStore(db, logger)
	require.NoError(t, store.Load(context.Background()))

	cfg := &config.Config{AdminTelegramID: adminID}
	return NewGate(cfg, store, logger)
}

func TestGate_AuthorizeAdmin(t *testing.T) {
	gate := newTestGate(t)

	assert.True(t, gate.AuthorizeAdmin(adminID))
	assert.False(t, gate.AuthorizeAdmin(adminID+1))
	assert.False(t, gate.AuthorizeAdmin(0))
}

func TestGate_Grant_Forever(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	grant, err := gate.Grant(ctx, 100, adminID, true, 0)
	require.NoError(t, err)
	assert.Nil(t, grant.ExpiresAt)
	assert.Contains(t, grant.Message, "indefinitely")

	ok, err := gate.HasAccess(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate_Grant_Days(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	grant, err := gate.Grant(ctx, 100, adminID, false, 30)
	require.NoError(t, err)
	require.NotNil(t, grant.ExpiresAt)

	expected := time.Now().AddDate(0, 0, 30)
	assert.WithinDuration(t, expected, *grant.ExpiresAt, time.Minute)
	assert.Contains(t, grant.Message, "30 days")
}

func TestGate_Grant_RequiresAdmin(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	_, err := gate.Grant(ctx, 100, adminID+1, true, 0)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	assert.ErrorIs(t, gate.CheckAccess(ctx, 100), domain.ErrAccessRequired)
}

func TestGate_CheckAccess(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	err := gate.CheckAccess(ctx, 100)
	assert.ErrorIs(t, err, domain.ErrAccessRequired)

	_, err = gate.Grant(ctx, 100, adminID, true, 0)
	require.NoError(t, err)
	assert.NoError(t, gate.CheckAccess(ctx, 100))
}

func TestGate_Grant_InvalidArguments(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		forever bool
		days    int
	}{
		{"neither", false, 0},
		{"both", true, 10},
		{"negative days", false, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gate.Grant(ctx, 100, adminID, tt.forever, tt.days)
			assert.ErrorIs(t, err, domain.ErrInvalidGrantArguments)

			ok, err := gate.HasAccess(ctx, 100)
			require.NoError(t, err)
			assert.False(t, ok, "rejected grant must not add the capability marker")
		})
	}
}

func TestGate_RegisterEmail(t *testing.T) {
	gate := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, gate.RegisterEmail(ctx, 1, "u1@example.com"))
	assert.True(t, gate.HasRegisteredEmail(1))

	err := gate.RegisterEmail(ctx, 1, "new@example.com")
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyRegistered)

	err = gate.RegisterEmail(ctx, 2, "not-an-email")
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	assert.False(t, gate.HasRegisteredEmail(2))
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{
		"test@example.com",
		"user.name@domain.org",
		"user+tag@example.com",
		"USER@EXAMPLE.COM",
	}
	for _, email := range valid {
		assert.True(t, IsValidEmail(email), "expected %s to be valid", email)
	}

	invalid := []string{
		"",
		"notanemail",
		"@example.com",
		"user@",
		"user@domain",
		"user space@example.com",
	}
	for _, email := range invalid {
		assert.False(t, IsValidEmail(email), "expected %s to be invalid", email)
	}
}
