package arena

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentUpcoming  TournamentStatus = "upcoming"
	TournamentOngoing   TournamentStatus = "ongoing"
	TournamentCompleted TournamentStatus = "completed"
	TournamentCancelled TournamentStatus = "cancelled"
)

type BracketType string

const (
	SingleElimination BracketType = "single_elimination"
	DoubleElimination BracketType = "double_elimination"
	RoundRobin        BracketType = "round_robin"
)

const (
	MinRosterSize = 2
	MaxRosterSize = 64
)

type Tournament struct {
	ID          uuid.UUID        `db:"id"`
	Name        string           `db:"name"`
	Mode        string           `db:"mode"`
	Status      TournamentStatus `db:"status"`
	BracketType BracketType      `db:"bracket_type"`
	WinnerID    *uuid.UUID       `db:"winner_id"`
	AutoStartAt *time.Time       `db:"auto_start_at"`
	CreatedAt   time.Time        `db:"created_at"`
}

// Closed reports whether the tournament no longer accepts results.
func (t *Tournament) Closed() bool {
	return t.Status == TournamentCompleted || t.Status == TournamentCancelled
}

// TournamentPlayer is one roster slot. The roster is frozen once the
// tournament starts; seeds are 1-based and unique within a tournament.
type TournamentPlayer struct {
	TournamentID uuid.UUID `db:"tournament_id"`
	PlayerID     uuid.UUID `db:"player_id"`
	Seed         int       `db:"seed"`
}

// Standing is one row of a round-robin table. Ordering: most wins first,
// head-to-head winner next, then cumulative score differential.
type Standing struct {
	PlayerID      uuid.UUID
	Seed          int
	Wins          int
	Losses        int
	PointsFor     int
	PointsAgainst int
}

func (s Standing) Differential() int {
	return s.PointsFor - s.PointsAgainst
}
