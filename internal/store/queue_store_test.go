package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeDBCounter atomic.Int64

func setupStoreDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", storeDBCounter.Add(1))
	database, err := sqlx.Connect("sqlite3", dsn)
	require.NoError(t, err, "Failed to connect to in-memory DB")

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	t.Cleanup(func() { database.Close() })
	return database
}

func insertQueuePlayer(t *testing.T, db *sqlx.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec("INSERT INTO players (id, username, level, rank_tier) VALUES (?, ?, 1, 'Bronze')",
		id.String(), "queued-"+id.String()[:8])
	require.NoError(t, err)
	return id
}

func newEntry(playerID uuid.UUID, mode string, joinedAt time.Time) *arena.QueueEntry {
	return &arena.QueueEntry{
		ID:       uuid.New(),
		PlayerID: playerID,
		Mode:     mode,
		JoinedAt: joinedAt,
		Active:   true,
	}
}

func inTx(t *testing.T, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	t.Helper()
	tx, err := db.Beginx()
	require.NoError(t, err)
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	require.NoError(t, tx.Commit())
	return nil
}

// The partial unique index only guards active rows: a second active entry for
// the same player and mode must fail, but deactivated history never collides.
func TestQueueEntryUniquenessIsScopedToActive(t *testing.T) {
	ctx := context.Background()
	db := setupStoreDB(t)
	store := NewQueueStore(db)
	playerID := insertQueuePlayer(t, db)
	now := time.Now().UTC()

	first := newEntry(playerID, "ranked", now)
	err := inTx(t, db, func(tx *sqlx.Tx) error {
		return store.CreateEntryTx(ctx, tx, first)
	})
	require.NoError(t, err)

	err = inTx(t, db, func(tx *sqlx.Tx) error {
		return store.CreateEntryTx(ctx, tx, newEntry(playerID, "ranked", now))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")

	// Same player, different mode is fine
	err = inTx(t, db, func(tx *sqlx.Tx) error {
		return store.CreateEntryTx(ctx, tx, newEntry(playerID, "casual", now))
	})
	require.NoError(t, err)

	// Deactivating frees the slot for a fresh entry
	err = inTx(t, db, func(tx *sqlx.Tx) error {
		rows, err := store.DeactivateEntryTx(ctx, tx, first.ID.String(), nil)
		require.NoError(t, err)
		require.EqualValues(t, 1, rows)
		return store.CreateEntryTx(ctx, tx, newEntry(playerID, "ranked", now))
	})
	require.NoError(t, err)

	count, err := store.CountActive(ctx, "ranked")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeactivateEntryTxIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupStoreDB(t)
	store := NewQueueStore(db)
	playerID := insertQueuePlayer(t, db)

	entry := newEntry(playerID, "ranked", time.Now().UTC())
	err := inTx(t, db, func(tx *sqlx.Tx) error {
		return store.CreateEntryTx(ctx, tx, entry)
	})
	require.NoError(t, err)

	matchedAt := time.Now().UTC()
	err = inTx(t, db, func(tx *sqlx.Tx) error {
		rows, err := store.DeactivateEntryTx(ctx, tx, entry.ID.String(), &matchedAt)
		require.NoError(t, err)
		assert.EqualValues(t, 1, rows)

		// A second deactivation touches nothing
		rows, err = store.DeactivateEntryTx(ctx, tx, entry.ID.String(), &matchedAt)
		require.NoError(t, err)
		assert.EqualValues(t, 0, rows)
		return nil
	})
	require.NoError(t, err)
}

func TestGetActiveEntriesOrdersByJoinTime(t *testing.T) {
	ctx := context.Background()
	db := setupStoreDB(t)
	store := NewQueueStore(db)

	now := time.Now().UTC()
	late := insertQueuePlayer(t, db)
	early := insertQueuePlayer(t, db)

	err := inTx(t, db, func(tx *sqlx.Tx) error {
		if err := store.CreateEntryTx(ctx, tx, newEntry(late, "ranked", now)); err != nil {
			return err
		}
		return store.CreateEntryTx(ctx, tx, newEntry(early, "ranked", now.Add(-time.Minute)))
	})
	require.NoError(t, err)

	var entries []arena.QueueEntry
	err = inTx(t, db, func(tx *sqlx.Tx) error {
		var err error
		entries, err = store.GetActiveEntriesTx(ctx, tx, "ranked")
		return err
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, early, entries[0].PlayerID, "oldest join comes first")
	assert.Equal(t, late, entries[1].PlayerID)
}
