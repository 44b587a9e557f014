package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
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

// QueueService pairs waiting players into matches. All mutations for a mode
// run under that mode's lock, so join, leave and pairing can never race to
// double-pair an entry; the partial unique index in the database backstops
// the in-process discipline.
type QueueService struct {
	db       *sqlx.DB
	store    *store.QueueStore
	players  *store.PlayerStore
	matches  *store.TournamentStore
	notifier events.Notifier
	cfg      config.MatchmakingConfig

	mu        sync.Mutex
	modeLocks map[string]*sync.Mutex
}

func NewQueueService(db *sqlx.DB, queueStore *store.QueueStore, playerStore *store.PlayerStore, matchStore *store.TournamentStore, notifier events.Notifier, cfg config.MatchmakingConfig) *QueueService {
	if cfg.DefaultPartySize < 2 {
		cfg.DefaultPartySize = 2
	}
	return &QueueService{
		db:        db,
		store:     queueStore,
		players:   playerStore,
		matches:   matchStore,
		notifier:  notifier,
		cfg:       cfg,
		modeLocks: make(map[string]*sync.Mutex),
	}
}

func (s *QueueService) modeLock(mode string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.modeLocks[mode]
	if !ok {
		lock = &sync.Mutex{}
		s.modeLocks[mode] = lock
	}
	return lock
}

// Join adds a player to the queue for a mode and immediately attempts
// pairing. A nil match with a nil error means the player is waiting.
func (s *QueueService) Join(ctx context.Context, playerID uuid.UUID, mode string) (*arena.Match, error) {
	if mode == "" {
		return nil, arena.ErrInvalidMode
	}

	lock := s.modeLock(mode)
	lock.Lock()
	defer lock.Unlock()

	player, err := s.players.GetPlayer(ctx, playerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	if _, err := s.store.GetActiveEntry(ctx, playerID.String(), mode); err == nil {
		return nil, arena.ErrAlreadyQueued
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry := &arena.QueueEntry{
		ID:       uuid.New(),
		PlayerID: playerID,
		Mode:     mode,
		Rating:   player.Rating,
		JoinedAt: time.Now().UTC(),
		Active:   true,
	}
	if err := s.store.CreateEntryTx(ctx, tx, entry); err != nil {
		// The partial unique index catches double-joins that slipped past
		// the in-process check
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, arena.ErrAlreadyQueued
		}
		return nil, fmt.Errorf("failed to create queue entry: %w", err)
	}

	match, formed, err := s.tryPairLocked(ctx, tx, mode)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.emitFormed(match, formed)
	return match, nil
}

// Leave deactivates a player's entry. Re-joining later is always permitted;
// history rows never collide with a fresh one.
func (s *QueueService) Leave(ctx context.Context, playerID uuid.UUID, mode string) error {
	if mode == "" {
		return arena.ErrInvalidMode
	}

	lock := s.modeLock(mode)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.store.GetActiveEntry(ctx, playerID.String(), mode)
	if err != nil {
		return arena.ErrNotQueued
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := s.store.DeactivateEntryTx(ctx, tx, entry.ID.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to deactivate queue entry: %w", err)
	}
	if rows == 0 {
		return arena.ErrNotQueued
	}

	return tx.Commit()
}

// TryPair scans the waiting entries for a mode and forms a match when enough
// compatible players are found. A (nil, nil) return is the expected
// keep-waiting outcome, not a failure.
func (s *QueueService) TryPair(ctx context.Context, mode string) (*arena.Match, error) {
	lock := s.modeLock(mode)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, formed, err := s.tryPairLocked(ctx, tx, mode)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.emitFormed(match, formed)
	return match, nil
}

// ratingBand is the widest acceptable rating gap for an entry that has
// waited the given time. The band widens so worst-case wait stays bounded.
func (s *QueueService) ratingBand(waited time.Duration) int {
	return s.cfg.RatingBandBase + s.cfg.RatingBandGrowth*int(waited.Seconds())
}

func (s *QueueService) compatible(anchor, candidate *arena.QueueEntry, now time.Time) bool {
	if s.cfg.RatingBandBase == 0 && s.cfg.RatingBandGrowth == 0 {
		return true
	}
	diff := anchor.Rating - candidate.Rating
	if diff < 0 {
		diff = -diff
	}
	return diff <= s.ratingBand(anchor.WaitedFor(now))
}

// tryPairLocked does the actual pairing inside the caller's transaction.
// Entries are scanned oldest first; the first anchor that can assemble a
// full party wins. Deactivating the entries and inserting the match commit
// together, so no observer sees one without the other.
func (s *QueueService) tryPairLocked(ctx context.Context, tx *sqlx.Tx, mode string) (*arena.Match, []arena.QueueEntry, error) {
	entries, err := s.store.GetActiveEntriesTx(ctx, tx, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list queue entries: %w", err)
	}

	partySize := s.cfg.DefaultPartySize
	if len(entries) < partySize {
		return nil, nil, nil
	}

	now := time.Now().UTC()
	var party []arena.QueueEntry
	for i := range entries {
		anchor := &entries[i]
		party = []arena.QueueEntry{*anchor}
		for j := i + 1; j < len(entries) && len(party) < partySize; j++ {
			if s.compatible(anchor, &entries[j], now) {
				party = append(party, entries[j])
			}
		}
		if len(party) == partySize {
			break
		}
	}
	if len(party) < partySize {
		return nil, nil, nil
	}

	match := &arena.Match{
		ID:        uuid.New(),
		Mode:      mode,
		Status:    arena.MatchOngoing,
		Player1ID: utils.Ptr(party[0].PlayerID),
		Player2ID: utils.Ptr(party[1].PlayerID),
		StartedAt: utils.Ptr(now),
		CreatedAt: now,
	}
	if err := s.matches.CreateMatchTx(ctx, tx, match); err != nil {
		return nil, nil, fmt.Errorf("failed to create match: %w", err)
	}

	if partySize > 2 {
		ids := make([]string, len(party))
		for i, entry := range party {
			ids[i] = entry.PlayerID.String()
		}
		if err := s.matches.CreateMatchPartyTx(ctx, tx, match.ID.String(), ids); err != nil {
			return nil, nil, fmt.Errorf("failed to record match party: %w", err)
		}
	}

	for _, entry := range party {
		rows, err := s.store.DeactivateEntryTx(ctx, tx, entry.ID.String(), &now)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to deactivate queue entry: %w", err)
		}
		if rows == 0 {
			// Another writer consumed the entry despite the mode lock
			return nil, nil, fmt.Errorf("%w: queue entry %s paired twice", arena.ErrInvariantViolation, entry.ID)
		}
	}

	return match, party, nil
}

func (s *QueueService) emitFormed(match *arena.Match, party []arena.QueueEntry) {
	if match == nil {
		return
	}
	playerIDs := make([]uuid.UUID, 0, len(party))
	for _, entry := range party {
		playerIDs = append(playerIDs, entry.PlayerID)
	}
	slog.Info("match formed", "match_id", match.ID, "mode", match.Mode, "players", len(playerIDs))
	s.notifier.Emit(events.NewEvent(events.EventMatchFormed, events.MatchFormedData{
		MatchID:   match.ID,
		Mode:      match.Mode,
		PlayerIDs: playerIDs,
	}))
}
