package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/arenaworks/arena/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultMatchmakingConfig() config.MatchmakingConfig {
	return config.MatchmakingConfig{
		SweepInterval:    time.Hour,
		DefaultPartySize: 2,
	}
}

func TestQueueJoinPairsFIFO(t *testing.T) {
	ctx := context.Background()
	ts := newTestStack(t, defaultTournamentConfig(), defaultMatchmakingConfig())
	ids := createTestPlayers(t, ts.db, 3)

	match, err := ts.queueSvc.Join(ctx, ids[0], "ranked")
	require.NoError(t, err)
	assert.Nil(t, match, "a lone player waits")

	count, err := ts.queue.CountActive(ctx, "ranked")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	match, err = ts.queueSvc.Join(ctx, ids[1], "ranked")
	require.NoError(t, err)
	require.NotNil(t, match, "second join should form a match")
	assert.Equal(t, arena.MatchOngoing, match.Status)
	assert.NotNil(t, match.StartedAt)
	assert.Equal(t, ids[0], *match.Player1ID, "oldest wait takes slot 1")
	assert.Equal(t, ids[1], *match.Player2ID)
	assert.Nil(t, match.TournamentID)

	// Both entries are consumed; the third player waits alone
	count, err = ts.queue.CountActive(ctx, "ranked")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	match, err = ts.queueSvc.Join(ctx, ids[2], "ranked")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestQueueJoinTwiceRejected(t *testing.T) {
	ctx := context.Background()
	ts := newTestStack(t, defaultTournamentConfig(), defaultMatchmakingConfig())
	ids := createTestPlayers(t, ts.db, 1)

	_, err := ts.queueSvc.Join(ctx, ids[0], "ranked")
	require.NoError(t, err)

	_, err = ts.queueSvc.Join(ctx, ids[0], "ranked")
	assert.ErrorIs(t, err, arena.ErrAlreadyQueued)

	// A different mode is a separate queue
	_, err = ts.queueSvc.Join(ctx, ids[0], "casual")
	require.NoError(t, err)
}

func TestQueueLeaveAndRejoin(t *testing.T) {
	ctx := context.Background()
	ts := newTestStack(t, defaultTournamentConfig(), defaultMatchmakingConfig())
	ids := createTestPlayers(t, ts.db, 1)

	err := ts.queueSvc.Leave(ctx, ids[0], "ranked")
	assert.ErrorIs(t, err, arena.ErrNotQueued)

	_, err = ts.queueSvc.Join(ctx, ids[0], "ranked")
	require.NoError(t, err)
	require.NoError(t, ts.queueSvc.Leave(ctx, ids[0], "ranked"))

	err = ts.queueSvc.Leave(ctx, ids[0], "ranked")
	assert.ErrorIs(t, err, arena.ErrNotQueued)

	// History rows never block a fresh join
	_, err = ts.queueSvc.Join(ctx, ids[0], "ranked")
	require.NoError(t, err)
}

func TestQueueInvalidMode(t *testing.T) {
	ctx := context.Background()
	ts := newTestStack(t, defaultTournamentConfig(), defaultMatchmakingConfig())
	ids := createTestPlayers(t, ts.db, 1)

	_, err := ts.queueSvc.Join(ctx, ids[0], "")
	assert.ErrorIs(t, err, arena.ErrInvalidMode)
	err = ts.queueSvc.Leave(ctx, ids[0], "")
	assert.ErrorIs(t, err, arena.ErrInvalidMode)
}

func TestQueueRatingBandWidensWithWait(t *testing.T) {
	ctx := context.Background()
	cfg := defaultMatchmakingConfig()
	cfg.RatingBandBase = 100
	cfg.RatingBandGrowth = 10
	ts := newTestStack(t, defaultTournamentConfig(), cfg)
	ids := createTestPlayers(t, ts.db, 2)

	// 500 rating points apart, far outside the base band
	_, err := ts.db.Exec("UPDATE players SET rating = 600 WHERE id = ?", ids[1].String())
	require.NoError(t, err)

	match, err := ts.queueSvc.Join(ctx, ids[0], "ranked")
	require.NoError(t, err)
	assert.Nil(t, match)

	match, err = ts.queueSvc.Join(ctx, ids[1], "ranked")
	require.NoError(t, err)
	assert.Nil(t, match, "fresh entries 500 apart must not pair")

	// After a minute of waiting the anchor's band reaches 700
	backdated := time.Now().UTC().Add(-time.Minute)
	_, err = ts.db.Exec("UPDATE queue_entries SET joined_at = ? WHERE player_id = ?", backdated, ids[0].String())
	require.NoError(t, err)

	match, err = ts.queueSvc.TryPair(ctx, "ranked")
	require.NoError(t, err)
	require.NotNil(t, match, "widened band should admit the pairing")
	assert.Equal(t, ids[0], *match.Player1ID)
	assert.Equal(t, ids[1], *match.Player2ID)
}

func TestQueuePartyMode(t *testing.T) {
	ctx := context.Background()
	cfg := defaultMatchmakingConfig()
	cfg.DefaultPartySize = 4
	ts := newTestStack(t, defaultTournamentConfig(), cfg)
	ids := createTestPlayers(t, ts.db, 4)

	for _, id := range ids[:3] {
		match, err := ts.queueSvc.Join(ctx, id, "ffa")
		require.NoError(t, err)
		assert.Nil(t, match, "party of 4 must not form early")
	}

	match, err := ts.queueSvc.Join(ctx, ids[3], "ffa")
	require.NoError(t, err)
	require.NotNil(t, match)

	var partySize int
	err = ts.db.Get(&partySize, "SELECT COUNT(*) FROM match_players WHERE match_id = ?", match.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 4, partySize)
}

func TestQueueConcurrentJoinsSamePlayer(t *testing.T) {
	ctx := context.Background()
	ts := newTestStack(t, defaultTournamentConfig(), defaultMatchmakingConfig())
	ids := createTestPlayers(t, ts.db, 1)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ts.queueSvc.Join(ctx, ids[0], "ranked")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, arena.ErrAlreadyQueued)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one join may win")

	count, err := ts.queue.CountActive(ctx, "ranked")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStandaloneMatchReportUpdatesRatings(t *testing.T) {
	ctx := context.Background()
	ts := newTestStack(t, defaultTournamentConfig(), defaultMatchmakingConfig())
	ids := createTestPlayers(t, ts.db, 2)

	_, err := ts.queueSvc.Join(ctx, ids[0], "ranked")
	require.NoError(t, err)
	match, err := ts.queueSvc.Join(ctx, ids[1], "ranked")
	require.NoError(t, err)
	require.NotNil(t, match)

	outcome, err := ts.tournamentSvc.ReportResult(ctx, match.ID, ids[1], 4, 10)
	require.NoError(t, err)
	assert.Nil(t, outcome.TournamentID)
	assert.False(t, outcome.TournamentCompleted)

	winner, err := ts.players.GetPlayer(ctx, ids[1].String())
	require.NoError(t, err)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 10, winner.TotalScore)
	assert.Equal(t, 1, winner.CurrentStreak)
	assert.Equal(t, 25, winner.Rating)

	loser, err := ts.players.GetPlayer(ctx, ids[0].String())
	require.NoError(t, err)
	assert.Equal(t, 1, loser.Losses)
	assert.Equal(t, 4, loser.TotalScore)

	_, err = ts.tournamentSvc.ReportResult(ctx, match.ID, ids[1], 4, 10)
	assert.ErrorIs(t, err, arena.ErrAlreadyReported)
}
