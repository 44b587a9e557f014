package arena

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchOngoing   MatchStatus = "ongoing"
	MatchCompleted MatchStatus = "completed"
	MatchForfeited MatchStatus = "forfeited"
)

type BracketSide string

const (
	WinnersSide BracketSide = "winners"
	LosersSide  BracketSide = "losers"
	FinalsSide  BracketSide = "finals"
)

type Match struct {
	ID   uuid.UUID `db:"id"`
	Mode string    `db:"mode"`

	// Nil for standalone queue matches
	TournamentID *uuid.UUID `db:"tournament_id"`

	// Position in the bracket for reconstructing the view
	BracketSide BracketSide `db:"bracket_side"`
	RoundNumber int         `db:"round_number"`
	MatchOrder  int         `db:"match_order"`

	Player1ID *uuid.UUID `db:"player_1_id"`
	Player2ID *uuid.UUID `db:"player_2_id"`

	Seed1 *int `db:"seed_1"`
	Seed2 *int `db:"seed_2"`

	Score1 int         `db:"score_1"`
	Score2 int         `db:"score_2"`
	Status MatchStatus `db:"status"`

	WinnerNextMatchID *uuid.UUID `db:"winner_next_match_id"`
	WinnerNextSlot    *int       `db:"winner_next_slot"`

	LoserNextMatchID *uuid.UUID `db:"loser_next_match_id"`
	LoserNextSlot    *int       `db:"loser_next_slot"`

	WinnerSlot *int `db:"winner_slot"`
	IsBye      bool `db:"is_bye"`

	StartedAt *time.Time `db:"started_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// Done reports whether the match has a final outcome. Done matches are
// immutable.
func (m *Match) Done() bool {
	return m.Status == MatchCompleted || m.Status == MatchForfeited
}

func (m *Match) IsWinner(slot int) bool {
	return m.Done() && m.WinnerSlot != nil && *m.WinnerSlot == slot
}

func (m *Match) IsLoser(slot int) bool {
	return m.Done() && m.WinnerSlot != nil && *m.WinnerSlot != slot
}

// PlayerInSlot returns the player occupying the given slot, or nil if the
// slot has not been filled yet.
func (m *Match) PlayerInSlot(slot int) *uuid.UUID {
	if slot == 1 {
		return m.Player1ID
	}
	return m.Player2ID
}

// SlotOf returns which slot the player occupies, or 0 if they are not part
// of the match.
func (m *Match) SlotOf(playerID uuid.UUID) int {
	if m.Player1ID != nil && *m.Player1ID == playerID {
		return 1
	}
	if m.Player2ID != nil && *m.Player2ID == playerID {
		return 2
	}
	return 0
}

// WinnerID returns the winning player once the match is done, nil otherwise.
func (m *Match) WinnerID() *uuid.UUID {
	if !m.Done() || m.WinnerSlot == nil {
		return nil
	}
	return m.PlayerInSlot(*m.WinnerSlot)
}

// LoserID returns the losing player once the match is done, nil otherwise.
// Bye matches have no loser.
func (m *Match) LoserID() *uuid.UUID {
	if !m.Done() || m.WinnerSlot == nil || m.IsBye {
		return nil
	}
	if *m.WinnerSlot == 1 {
		return m.Player2ID
	}
	return m.Player1ID
}
