package repository

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

	"receiptgen/internal/domain"
	"receiptgen/traits/database"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	require.NoError(t, database.CreateTables(db, logger))

	store := NewStore(db, logger)
	require.NoError(t, store.Load(context.Background()))
	return store, db
}

func TestStore_SetEmail_OncePerUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEmail(ctx, 1, "u1@example.com"))

	err := store.SetEmail(ctx, 1, "other@example.com")
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyRegistered)

	email, ok := store.Email(1)
	require.True(t, ok)
	assert.Equal(t, "u1@example.com", email, "stored address must not change on a rejected registration")
}

func TestStore_SetEmail_SurvivesReload(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEmail(ctx, 7, "u7@example.com"))

	reloaded := NewStore(db, zap.NewNop())
	require.NoError(t, reloaded.Load(ctx))

	email, ok := reloaded.Email(7)
	require.True(t, ok)
	assert.Equal(t, "u7@example.com", email)
}

func TestStore_ResetRecord_DiscardsPrevious(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeRecordFields(ctx, 1, map[string]string{
		domain.FieldBrandName: "Apple",
	}))
	require.NoError(t, store.ResetRecord(ctx, 1))

	record, ok := store.Record(1)
	require.True(t, ok)
	assert.Empty(t, record)
}

func TestStore_MergeRecordFields_BatchAndReload(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ResetRecord(ctx, 3))
	require.NoError(t, store.MergeRecordFields(ctx, 3, map[string]string{
		domain.FieldBrandName: "Apple",
	}))
	require.NoError(t, store.MergeRecordFields(ctx, 3, map[string]string{
		domain.FieldProductName: "Widget",
		domain.FieldPrice:       "9.99",
	}))

	reloaded := NewStore(db, zap.NewNop())
	require.NoError(t, reloaded.Load(ctx))

	record, ok := reloaded.Record(3)
	require.True(t, ok)
	assert.Equal(t, "Apple", record[domain.FieldBrandName])
	assert.Equal(t, "Widget", record[domain.FieldProductName])
	assert.Equal(t, "9.99", record[domain.FieldPrice])
}

func TestStore_Record_ReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeRecordFields(ctx, 2, map[string]string{
		domain.FieldBrandName: "Apple",
	}))

	record, ok := store.Record(2)
	require.True(t, ok)
	record[domain.FieldBrandName] = "mutated"

	fresh, _ := store.Record(2)
	assert.Equal(t, "Apple", fresh[domain.FieldBrandName])
}

func TestStore_Load_CorruptRecordIsFatal(t *testing.T) {
	_, db := newTestStore(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO receipt_records (user_id, fields) VALUES (9, 'not-json{')`)
	require.NoError(t, err)

	corrupt := NewStore(db, zap.NewNop())
	err = corrupt.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrStorageCorrupt)
}

func TestStore_AccessGrants(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.HasAccess(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.GrantAccess(ctx, 5, 1, nil))
	ok, err = store.HasAccess(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_RevokeExpired(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	require.NoError(t, store.GrantAccess(ctx, 10, 1, &past))
	require.NoError(t, store.GrantAccess(ctx, 11, 1, &future))
	require.NoError(t, store.GrantAccess(ctx, 12, 1, nil))

	ids, err := store.RevokeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids)

	ok, err := store.HasAccess(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.HasAccess(ctx, 11)
	require.NoError(t, err)
	assert.True(t, ok, "unexpired grant must survive the sweep")

	ok, err = store.HasAccess(ctx, 12)
	require.NoError(t, err)
	assert.True(t, ok, "forever grant must survive the sweep")
}
