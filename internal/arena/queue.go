package arena

import (
	"time"

	"github.com/google/uuid"
)

// QueueEntry is one wait slot in the matchmaking queue. At most one active
// entry may exist per (player, mode); the database enforces this with a
// partial unique index over active rows, so the flag is a filter and never
// part of the key. Deactivated rows are kept as history.
type QueueEntry struct {
	ID       uuid.UUID `db:"id"`
	PlayerID uuid.UUID `db:"player_id"`
	Mode     string    `db:"mode"`

	// Rating snapshot taken at join time, used for skill-aware pairing
	Rating int `db:"rating"`

	JoinedAt  time.Time  `db:"joined_at"`
	Active    bool       `db:"active"`
	MatchedAt *time.Time `db:"matched_at"`
}

// WaitedFor returns how long the entry has been waiting as of now.
func (e *QueueEntry) WaitedFor(now time.Time) time.Duration {
	return now.Sub(e.JoinedAt)
}
