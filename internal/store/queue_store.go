package store

import (
	"context"
	"time"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/jmoiron/sqlx"
)

type QueueStore struct {
	db *sqlx.DB
}

func NewQueueStore(db *sqlx.DB) *QueueStore {
	return &QueueStore{db: db}
}

func (s *QueueStore) CreateEntryTx(ctx context.Context, tx *sqlx.Tx, entry *arena.QueueEntry) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO queue_entries (id, player_id, mode, rating, joined_at, active)
		VALUES (:id, :player_id, :mode, :rating, :joined_at, :active)`, entry)
	return err
}

func (s *QueueStore) GetActiveEntry(ctx context.Context, playerID, mode string) (*arena.QueueEntry, error) {
	var entry arena.QueueEntry
	err := s.db.GetContext(ctx, &entry,
		"SELECT * FROM queue_entries WHERE player_id = ? AND mode = ? AND active = 1", playerID, mode)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetActiveEntriesTx returns the active entries for a mode in join order, so
// the oldest wait is always paired first.
func (s *QueueStore) GetActiveEntriesTx(ctx context.Context, tx *sqlx.Tx, mode string) ([]arena.QueueEntry, error) {
	var entries []arena.QueueEntry
	err := tx.SelectContext(ctx, &entries,
		"SELECT * FROM queue_entries WHERE mode = ? AND active = 1 ORDER BY joined_at ASC, id ASC", mode)
	return entries, err
}

// DeactivateEntryTx clears the active flag; the partial unique index only
// covers active rows, so the row stays behind as history.
func (s *QueueStore) DeactivateEntryTx(ctx context.Context, tx *sqlx.Tx, entryID string, matchedAt *time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE queue_entries SET active = 0, matched_at = ? WHERE id = ? AND active = 1", matchedAt, entryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *QueueStore) CountActive(ctx context.Context, mode string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM queue_entries WHERE mode = ? AND active = 1", mode)
	return count, err
}
