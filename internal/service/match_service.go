package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/arenaworks/arena/internal/events"
	"github.com/arenaworks/arena/internal/rating"
	"github.com/arenaworks/arena/internal/store"
	"github.com/arenaworks/arena/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db       *sqlx.DB
	store    *store.TournamentStore
	players  *store.PlayerStore
	notifier events.Notifier
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, players *store.PlayerStore, notifier events.Notifier) *MatchService {
	return &MatchService{db: db, store: store, players: players, notifier: notifier}
}

// ReportOutcome describes what a reported result changed.
type ReportOutcome struct {
	Match               *arena.Match
	TournamentID        *uuid.UUID
	TournamentCompleted bool
	TournamentWinnerID  *uuid.UUID
}

// ReportResult marks a match completed, advances the bracket it belongs to
// and folds the result into both players' stats. The caller must hold the
// tournament's lock for tournament matches.
func (s *MatchService) ReportResult(ctx context.Context, matchID, winnerID uuid.UUID, score1, score2 int) (*ReportOutcome, error) {
	return s.resolve(ctx, matchID, &winnerID, score1, score2, arena.MatchCompleted)
}

// ForfeitMatch force-completes a timed-out match. The non-responsive side
// forfeits; since neither side acted, the earlier-seeded player forfeits and
// the later seed advances. Not an error path: the transition is logged and
// the bracket moves on exactly as for a reported result.
func (s *MatchService) ForfeitMatch(ctx context.Context, matchID uuid.UUID) (*ReportOutcome, error) {
	return s.resolve(ctx, matchID, nil, 0, 0, arena.MatchForfeited)
}

func (s *MatchService) resolve(ctx context.Context, matchID uuid.UUID, winnerID *uuid.UUID, score1, score2 int, status arena.MatchStatus) (*ReportOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, matchID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, arena.ErrUnknownMatch
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if match.Done() {
		return nil, arena.ErrAlreadyReported
	}
	// A match only accepts a result once both participants are seated and it
	// has been opened for play. Completing a half-filled node would let
	// bracketWinner close the tournament with games still pending.
	if match.Status != arena.MatchOngoing {
		return nil, arena.ErrMatchNotReady
	}

	winnerSlot, err := resolveWinnerSlot(match, winnerID)
	if err != nil {
		return nil, err
	}

	if match.TournamentID == nil {
		return s.resolveStandalone(ctx, tx, match, winnerSlot, score1, score2, status)
	}

	tournament, err := s.store.GetTournamentTx(ctx, tx, match.TournamentID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	if tournament.Closed() {
		return nil, arena.ErrTournamentClosed
	}
	if tournament.Status == arena.TournamentUpcoming {
		return nil, fmt.Errorf("tournament %s has not started", tournament.ID)
	}

	matches, err := s.store.GetMatchesTx(ctx, tx, tournament.ID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get bracket matches: %w", err)
	}

	b := newBracketState(matches)
	target := b.get(match.ID)
	if target == nil {
		return nil, arena.ErrUnknownMatch
	}

	if err := b.complete(target, utils.Ptr(winnerSlot), status, score1, score2); err != nil {
		return nil, err
	}
	b.startReadyMatches(time.Now().UTC())

	for _, m := range b.dirtyMatches() {
		if err := s.store.UpdateMatch(ctx, tx, m); err != nil {
			return nil, fmt.Errorf("failed to update match: %w", err)
		}
	}

	// Forfeits are not played games; only reported results feed the rating
	if status == arena.MatchCompleted {
		if err := s.applyRatings(ctx, tx, target); err != nil {
			return nil, err
		}
	}

	outcome := &ReportOutcome{Match: target, TournamentID: &tournament.ID}

	tournamentWinner, done := bracketWinner(b.matches, tournament.BracketType)
	if done {
		if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournament.ID.String(), arena.TournamentCompleted); err != nil {
			return nil, fmt.Errorf("failed to update tournament status: %w", err)
		}
		if tournamentWinner != nil {
			if err := s.store.SetTournamentWinnerTx(ctx, tx, tournament.ID.String(), tournamentWinner.String()); err != nil {
				return nil, fmt.Errorf("failed to set tournament winner: %w", err)
			}
		}
		outcome.TournamentCompleted = true
		outcome.TournamentWinnerID = tournamentWinner
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if status == arena.MatchForfeited {
		slog.Info("match forfeited on timeout",
			"match_id", target.ID, "tournament_id", tournament.ID, "winner_slot", winnerSlot)
	}
	s.emitCompleted(target, status == arena.MatchForfeited)
	if outcome.TournamentCompleted {
		s.notifier.Emit(events.NewEvent(events.EventTournamentStateChanged, events.TournamentStateChangedData{
			TournamentID: tournament.ID,
			Status:       string(arena.TournamentCompleted),
			WinnerID:     tournamentWinner,
		}))
	}

	return outcome, nil
}

func (s *MatchService) resolveStandalone(ctx context.Context, tx *sqlx.Tx, match *arena.Match, winnerSlot int, score1, score2 int, status arena.MatchStatus) (*ReportOutcome, error) {
	match.Status = status
	match.WinnerSlot = utils.Ptr(winnerSlot)
	match.Score1 = score1
	match.Score2 = score2

	if err := s.store.UpdateMatch(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}
	if status == arena.MatchCompleted {
		if err := s.applyRatings(ctx, tx, match); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.emitCompleted(match, status == arena.MatchForfeited)
	return &ReportOutcome{Match: match}, nil
}

// resolveWinnerSlot validates the reported winner, or picks the forfeit
// winner (the later seed) when no winner was reported.
func resolveWinnerSlot(match *arena.Match, winnerID *uuid.UUID) (int, error) {
	if winnerID != nil {
		slot := match.SlotOf(*winnerID)
		if slot == 0 {
			return 0, fmt.Errorf("winner is not part of this match")
		}
		return slot, nil
	}

	if utils.OrZero(match.Seed1) > utils.OrZero(match.Seed2) {
		return 1, nil
	}
	return 2, nil
}

// applyRatings recomputes both participants' derived stats from the
// completed match and persists them.
func (s *MatchService) applyRatings(ctx context.Context, tx *sqlx.Tx, match *arena.Match) error {
	now := time.Now().UTC()
	duration := 0
	if match.StartedAt != nil {
		duration = int(now.Sub(*match.StartedAt).Seconds())
	}

	for slot := 1; slot <= 2; slot++ {
		playerID := match.PlayerInSlot(slot)
		if playerID == nil {
			continue
		}
		player, err := s.players.GetPlayerTx(ctx, tx, playerID.String())
		if err != nil {
			return fmt.Errorf("failed to get player %s: %w", playerID, err)
		}

		score := match.Score1
		if slot == 2 {
			score = match.Score2
		}
		stats := rating.ApplyResult(rating.Stats{
			Wins:          player.Wins,
			Losses:        player.Losses,
			Draws:         player.Draws,
			CurrentStreak: player.CurrentStreak,
			TotalScore:    player.TotalScore,
			GamesPlayed:   player.GamesPlayed,
		}, match.IsWinner(slot), false, score)
		derived := rating.ComputeDerivedStats(stats)

		player.Wins = stats.Wins
		player.Losses = stats.Losses
		player.Draws = stats.Draws
		player.CurrentStreak = stats.CurrentStreak
		player.TotalScore = stats.TotalScore
		player.GamesPlayed = stats.GamesPlayed
		player.PlayTimeSeconds += duration
		player.Rating = derived.Rating
		player.Level = derived.Level
		player.RankTier = derived.RankTier

		if err := s.players.UpdatePlayerStatsTx(ctx, tx, player); err != nil {
			return fmt.Errorf("failed to update player stats: %w", err)
		}
	}
	return nil
}

func (s *MatchService) emitCompleted(match *arena.Match, forfeited bool) {
	s.notifier.Emit(events.NewEvent(events.EventMatchCompleted, events.MatchCompletedData{
		MatchID:   match.ID,
		WinnerID:  match.WinnerID(),
		Score1:    match.Score1,
		Score2:    match.Score2,
		Forfeited: forfeited,
	}))
}
