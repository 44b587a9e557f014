package store

import (
	"context"
	"sort"
	"time"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *arena.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, name, mode, status, bracket_type, auto_start_at)
        VALUES (:id, :name, :mode, :status, :bracket_type, :auto_start_at)`, tournament)
	return err
}

func (s *TournamentStore) CreateRoster(ctx context.Context, tx *sqlx.Tx, roster []arena.TournamentPlayer) error {
	if len(roster) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournament_players (tournament_id, player_id, seed)
            VALUES (:tournament_id, :player_id, :seed)`, roster)
	return err
}

// insertOrder ranks matches so every advancement link points at an already
// inserted row: the self-referencing foreign keys are checked per row.
func insertOrder(side arena.BracketSide) int {
	switch side {
	case arena.FinalsSide:
		return 0
	case arena.LosersSide:
		return 1
	default:
		return 2
	}
}

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []arena.Match) error {
	if len(matches) == 0 {
		return nil
	}

	ordered := make([]arena.Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		if a, b := insertOrder(ordered[i].BracketSide), insertOrder(ordered[j].BracketSide); a != b {
			return a < b
		}
		return ordered[i].RoundNumber > ordered[j].RoundNumber
	})

	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, mode, tournament_id, bracket_side, round_number, match_order,
		player_1_id, player_2_id, seed_1, seed_2, score_1, score_2, status,
		winner_next_match_id, winner_next_slot, loser_next_match_id, loser_next_slot, winner_slot, is_bye, started_at)
		VALUES (:id, :mode, :tournament_id, :bracket_side, :round_number, :match_order,
		:player_1_id, :player_2_id, :seed_1, :seed_2, :score_1, :score_2, :status,
		:winner_next_match_id, :winner_next_slot, :loser_next_match_id, :loser_next_slot, :winner_slot, :is_bye, :started_at)`, ordered)
	return err
}

func (s *TournamentStore) CreateMatchTx(ctx context.Context, tx *sqlx.Tx, match *arena.Match) error {
	return s.CreateMatches(ctx, tx, []arena.Match{*match})
}

// CreateMatchPartyTx records every participant of a group match; the match
// row itself only carries the two reporting slots.
func (s *TournamentStore) CreateMatchPartyTx(ctx context.Context, tx *sqlx.Tx, matchID string, playerIDs []string) error {
	for i, playerID := range playerIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO match_players (match_id, player_id, position) VALUES (?, ?, ?)", matchID, playerID, i+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentStore) GetTournament(ctx context.Context, id string) (*arena.Tournament, error) {
	var tournament arena.Tournament
	err := s.db.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id string) (*arena.Tournament, error) {
	var tournament arena.Tournament
	err := tx.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

// GetOpenTournaments returns every tournament a restarted process must pick
// back up: upcoming ones waiting on auto-start and ongoing ones that need
// their timeout sweep.
func (s *TournamentStore) GetOpenTournaments(ctx context.Context) ([]arena.Tournament, error) {
	var tournaments []arena.Tournament
	err := s.db.SelectContext(ctx, &tournaments,
		"SELECT * FROM tournaments WHERE status IN (?, ?) ORDER BY created_at ASC",
		arena.TournamentUpcoming, arena.TournamentOngoing)
	return tournaments, err
}

func (s *TournamentStore) GetRoster(ctx context.Context, tournamentID string) ([]arena.TournamentPlayer, error) {
	var roster []arena.TournamentPlayer
	err := s.db.SelectContext(ctx, &roster,
		"SELECT * FROM tournament_players WHERE tournament_id = ? ORDER BY seed ASC", tournamentID)
	return roster, err
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID string) ([]arena.Match, error) {
	var matches []arena.Match
	err := s.db.SelectContext(ctx, &matches,
		"SELECT * FROM matches WHERE tournament_id = ? ORDER BY round_number ASC, match_order ASC", tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID string) ([]arena.Match, error) {
	var matches []arena.Match
	err := tx.SelectContext(ctx, &matches,
		"SELECT * FROM matches WHERE tournament_id = ? ORDER BY round_number ASC, match_order ASC", tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id string) (*arena.Match, error) {
	var match arena.Match
	err := s.db.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id string) (*arena.Match, error) {
	var match arena.Match
	err := tx.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) UpdateMatch(ctx context.Context, tx *sqlx.Tx, match *arena.Match) error {
	_, err := tx.NamedExecContext(ctx, `UPDATE matches SET
		player_1_id = :player_1_id,
		player_2_id = :player_2_id,
		seed_1 = :seed_1,
		seed_2 = :seed_2,
		score_1 = :score_1,
		score_2 = :score_2,
		status = :status,
		winner_slot = :winner_slot,
		is_bye = :is_bye,
		started_at = :started_at
		WHERE id = :id`, match)
	return err
}

func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status arena.TournamentStatus) error {
	_, err := tx.ExecContext(ctx, "UPDATE tournaments SET status = ? WHERE id = ?", status, id)
	return err
}

func (s *TournamentStore) SetTournamentWinnerTx(ctx context.Context, tx *sqlx.Tx, id string, winnerID string) error {
	_, err := tx.ExecContext(ctx, "UPDATE tournaments SET winner_id = ? WHERE id = ?", winnerID, id)
	return err
}

// StartScheduledMatchesTx flips every scheduled match with both slots filled
// to ongoing and stamps started_at, so the timeout clock starts.
func (s *TournamentStore) StartScheduledMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE matches SET status = ?, started_at = ?
		WHERE tournament_id = ? AND status = ? AND player_1_id IS NOT NULL AND player_2_id IS NOT NULL`,
		arena.MatchOngoing, now, tournamentID, arena.MatchScheduled)
	return err
}

// GetExpiredOngoingMatches returns matches that started before the cutoff
// and still have no outcome. Used by the timeout sweep.
func (s *TournamentStore) GetExpiredOngoingMatches(ctx context.Context, tournamentID string, cutoff time.Time) ([]arena.Match, error) {
	var matches []arena.Match
	err := s.db.SelectContext(ctx, &matches, `SELECT * FROM matches
		WHERE tournament_id = ? AND status = ? AND started_at IS NOT NULL AND started_at < ?
		ORDER BY round_number ASC, match_order ASC`, tournamentID, arena.MatchOngoing, cutoff)
	return matches, err
}
