package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/arenaworks/arena/internal/config"
	"github.com/arenaworks/arena/internal/events"
	"github.com/arenaworks/arena/internal/store"
	"github.com/arenaworks/arena/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TournamentService owns tournament lifecycles: creation, auto-start,
// result-driven progression, match timeouts and cancellation. Every mutation
// of a tournament's bracket runs under that tournament's lock.
type TournamentService struct {
	db       *sqlx.DB
	store    *store.TournamentStore
	players  *store.PlayerStore
	matchSvc *MatchService
	notifier events.Notifier
	cfg      config.TournamentConfig

	mu     sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
	timers map[uuid.UUID]*time.Timer
	sweeps map[uuid.UUID]context.CancelFunc
}

func NewTournamentService(db *sqlx.DB, tournamentStore *store.TournamentStore, playerStore *store.PlayerStore, matchSvc *MatchService, notifier events.Notifier, cfg config.TournamentConfig) *TournamentService {
	return &TournamentService{
		db:       db,
		store:    tournamentStore,
		players:  playerStore,
		matchSvc: matchSvc,
		notifier: notifier,
		cfg:      cfg,
		locks:    make(map[uuid.UUID]*sync.Mutex),
		timers:   make(map[uuid.UUID]*time.Timer),
		sweeps:   make(map[uuid.UUID]context.CancelFunc),
	}
}

func (s *TournamentService) lock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// Create validates the roster, builds the bracket and persists everything in
// one transaction. The tournament starts automatically after the configured
// delay unless started or cancelled first.
func (s *TournamentService) Create(ctx context.Context, name, mode string, bracketType arena.BracketType, playerIDs []uuid.UUID) (*arena.Tournament, error) {
	if len(playerIDs) < s.cfg.MinRosterSize || len(playerIDs) > s.cfg.MaxRosterSize {
		return nil, arena.ErrInvalidRoster
	}

	tournamentID := uuid.New()
	roster := make([]arena.TournamentPlayer, 0, len(playerIDs))
	for i, playerID := range playerIDs {
		// Every roster member must exist before they can be scheduled
		if _, err := s.players.GetPlayer(ctx, playerID.String()); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: unknown player %s", arena.ErrInvalidRoster, playerID)
			}
			return nil, fmt.Errorf("failed to get player: %w", err)
		}
		roster = append(roster, arena.TournamentPlayer{
			TournamentID: tournamentID,
			PlayerID:     playerID,
			Seed:         i + 1,
		})
	}

	matches, err := BuildBracket(tournamentID, mode, roster, bracketType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tournament := &arena.Tournament{
		ID:          tournamentID,
		Name:        name,
		Mode:        mode,
		Status:      arena.TournamentUpcoming,
		BracketType: bracketType,
		AutoStartAt: utils.Ptr(now.Add(s.cfg.AutoStartDelay)),
		CreatedAt:   now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	if err := s.store.CreateRoster(ctx, tx, roster); err != nil {
		return nil, fmt.Errorf("failed to create roster: %w", err)
	}
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.scheduleAutoStart(tournamentID, s.cfg.AutoStartDelay)
	s.emitStateChanged(tournament.ID, arena.TournamentUpcoming, nil)
	return tournament, nil
}

// Resume re-arms the lifecycle tasks for tournaments a previous process left
// open: upcoming ones get their auto-start timer back, honoring the persisted
// auto_start_at, and ongoing ones get their timeout sweep. Called once at
// startup, before the service takes traffic.
func (s *TournamentService) Resume(ctx context.Context) error {
	open, err := s.store.GetOpenTournaments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open tournaments: %w", err)
	}

	for i := range open {
		tournament := &open[i]
		switch tournament.Status {
		case arena.TournamentUpcoming:
			delay := s.cfg.AutoStartDelay
			if tournament.AutoStartAt != nil {
				// Non-positive delays fire immediately
				delay = time.Until(*tournament.AutoStartAt)
			}
			s.scheduleAutoStart(tournament.ID, delay)
		case arena.TournamentOngoing:
			s.startSweep(tournament.ID)
		}
		slog.Info("tournament resumed", "tournament_id", tournament.ID, "status", tournament.Status)
	}
	return nil
}

func (s *TournamentService) scheduleAutoStart(id uuid.UUID, delay time.Duration) {
	timer := time.AfterFunc(delay, func() {
		if err := s.Start(context.Background(), id); err != nil && !errors.Is(err, arena.ErrTournamentClosed) {
			slog.Error("auto-start failed", "tournament_id", id, "error", err)
		}
	})
	s.mu.Lock()
	s.timers[id] = timer
	s.mu.Unlock()
}

// Start moves an upcoming tournament to ongoing, opens its first playable
// matches and kicks off the timeout sweep. Starting an already ongoing
// tournament is a no-op.
func (s *TournamentService) Start(ctx context.Context, id uuid.UUID) error {
	lock := s.lock(id)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, id.String())
	if err != nil {
		return fmt.Errorf("failed to get tournament: %w", err)
	}
	if tournament.Closed() {
		return arena.ErrTournamentClosed
	}
	if tournament.Status == arena.TournamentOngoing {
		return nil
	}

	if err := s.store.UpdateTournamentStatusTx(ctx, tx, id.String(), arena.TournamentOngoing); err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	if err := s.store.StartScheduledMatchesTx(ctx, tx, id.String(), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to start matches: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.stopTimer(id)
	s.startSweep(id)
	slog.Info("tournament started", "tournament_id", id)
	s.emitStateChanged(id, arena.TournamentOngoing, nil)
	return nil
}

// Cancel halts a tournament from upcoming or ongoing. All timers stop
// immediately and later results are rejected.
func (s *TournamentService) Cancel(ctx context.Context, id uuid.UUID) error {
	lock := s.lock(id)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, id.String())
	if err != nil {
		return fmt.Errorf("failed to get tournament: %w", err)
	}
	if tournament.Closed() {
		return arena.ErrTournamentClosed
	}

	if err := s.store.UpdateTournamentStatusTx(ctx, tx, id.String(), arena.TournamentCancelled); err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.stopTimer(id)
	s.stopSweep(id)
	slog.Info("tournament cancelled", "tournament_id", id)
	s.emitStateChanged(id, arena.TournamentCancelled, nil)
	return nil
}

// ReportResult routes a result through the bracket under the tournament's
// lock. Standalone queue matches bypass the lock; their state lives on the
// match row alone.
func (s *TournamentService) ReportResult(ctx context.Context, matchID, winnerID uuid.UUID, score1, score2 int) (*ReportOutcome, error) {
	match, err := s.store.GetMatch(ctx, matchID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, arena.ErrUnknownMatch
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	if match.TournamentID == nil {
		return s.matchSvc.ReportResult(ctx, matchID, winnerID, score1, score2)
	}

	lock := s.lock(*match.TournamentID)
	lock.Lock()
	defer lock.Unlock()

	outcome, err := s.matchSvc.ReportResult(ctx, matchID, winnerID, score1, score2)
	if err != nil {
		return nil, err
	}
	if outcome.TournamentCompleted {
		s.stopTimer(*match.TournamentID)
		s.stopSweep(*match.TournamentID)
	}
	return outcome, nil
}

// BracketState is the read model handed to display callers. Reads are not
// serialized against writers and may be momentarily stale.
type BracketState struct {
	Tournament *arena.Tournament
	Roster     []arena.TournamentPlayer
	Matches    []arena.Match
	Standings  []arena.Standing
}

func (s *TournamentService) GetBracketState(ctx context.Context, id uuid.UUID) (*BracketState, error) {
	tournament, err := s.store.GetTournament(ctx, id.String())
	if err != nil {
		return nil, err
	}
	roster, err := s.store.GetRoster(ctx, id.String())
	if err != nil {
		return nil, err
	}
	matches, err := s.store.GetMatches(ctx, id.String())
	if err != nil {
		return nil, err
	}

	state := &BracketState{Tournament: tournament, Roster: roster, Matches: matches}
	if tournament.BracketType == arena.RoundRobin {
		state.Standings = ComputeStandings(matches)
	}
	return state, nil
}

// startSweep launches the periodic timeout check for one tournament. The
// sweep is cancelled on completion or cancellation so it never acts on
// stale state.
func (s *TournamentService) startSweep(id uuid.UUID) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if _, running := s.sweeps[id]; running {
		s.mu.Unlock()
		cancel()
		return
	}
	s.sweeps[id] = cancel
	s.mu.Unlock()

	go s.sweepLoop(ctx, id)
}

func (s *TournamentService) sweepLoop(ctx context.Context, id uuid.UUID) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx, id)
		}
	}
}

func (s *TournamentService) sweepOnce(ctx context.Context, id uuid.UUID) {
	cutoff := time.Now().UTC().Add(-s.cfg.MatchTimeout)
	expired, err := s.store.GetExpiredOngoingMatches(ctx, id.String(), cutoff)
	if err != nil {
		slog.Error("timeout sweep query failed", "tournament_id", id, "error", err)
		return
	}

	for _, match := range expired {
		lock := s.lock(id)
		lock.Lock()
		outcome, err := s.matchSvc.ForfeitMatch(ctx, match.ID)
		lock.Unlock()

		if err != nil {
			// Reported or cancelled between the query and the lock
			if errors.Is(err, arena.ErrAlreadyReported) || errors.Is(err, arena.ErrTournamentClosed) {
				continue
			}
			slog.Error("failed to forfeit expired match", "match_id", match.ID, "error", err)
			continue
		}
		if outcome.TournamentCompleted {
			s.stopSweep(id)
			return
		}
	}
}

func (s *TournamentService) stopTimer(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *TournamentService) stopSweep(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.sweeps[id]; ok {
		cancel()
		delete(s.sweeps, id)
	}
}

// Close stops every timer and sweep. Called on process shutdown.
func (s *TournamentService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	for id, cancel := range s.sweeps {
		cancel()
		delete(s.sweeps, id)
	}
}

func (s *TournamentService) emitStateChanged(id uuid.UUID, status arena.TournamentStatus, winnerID *uuid.UUID) {
	s.notifier.Emit(events.NewEvent(events.EventTournamentStateChanged, events.TournamentStateChangedData{
		TournamentID: id,
		Status:       string(status),
		WinnerID:     winnerID,
	}))
}
