package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDerivedStats(t *testing.T) {
	testCases := []struct {
		name     string
		stats    Stats
		expected DerivedStats
	}{
		{
			name:  "No games played",
			stats: Stats{},
			expected: DerivedStats{
				WinRate:      0,
				AverageScore: 0,
				Rating:       0,
				Level:        1,
				RankTier:     "Bronze",
				Title:        "Novice",
			},
		},
		{
			name:  "Ten wins and 2500 score",
			stats: Stats{Wins: 10, TotalScore: 2500, GamesPlayed: 12},
			expected: DerivedStats{
				WinRate:      83,
				AverageScore: 208,
				Rating:       275,
				Level:        3,
				RankTier:     "Silver",
				Title:        "Apprentice",
			},
		},
		{
			name:  "Streak active at five",
			stats: Stats{Wins: 5, CurrentStreak: 5, GamesPlayed: 5, TotalScore: 100},
			expected: DerivedStats{
				WinRate:      100,
				AverageScore: 20,
				Rating:       126,
				Level:        2,
				RankTier:     "Silver",
				Title:        "Apprentice",
				IsOnStreak:   true,
			},
		},
		{
			name:  "High rated veteran",
			stats: Stats{Wins: 99, Losses: 20, TotalScore: 20000, GamesPlayed: 119},
			expected: DerivedStats{
				WinRate:      83,
				AverageScore: 168,
				Rating:       2675,
				Level:        10,
				RankTier:     "Legend",
				Title:        "Master",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ComputeDerivedStats(tc.stats))
		})
	}
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, "Bronze", TierForRating(0))
	assert.Equal(t, "Bronze", TierForRating(99))
	assert.Equal(t, "Silver", TierForRating(100))
	assert.Equal(t, "Gold", TierForRating(300))
	assert.Equal(t, "Platinum", TierForRating(600))
	assert.Equal(t, "Diamond", TierForRating(1000))
	assert.Equal(t, "Legend", TierForRating(2000))
}

func TestApplyResult(t *testing.T) {
	s := Stats{Wins: 3, Losses: 1, CurrentStreak: 3, TotalScore: 400, GamesPlayed: 4}

	s = ApplyResult(s, true, false, 150)
	assert.Equal(t, 4, s.Wins)
	assert.Equal(t, 4, s.CurrentStreak)
	assert.Equal(t, 550, s.TotalScore)
	assert.Equal(t, 5, s.GamesPlayed)

	s = ApplyResult(s, false, true, 50)
	assert.Equal(t, 1, s.Draws)
	assert.Equal(t, 4, s.CurrentStreak, "draw holds the streak")

	s = ApplyResult(s, false, false, 0)
	assert.Equal(t, 2, s.Losses)
	assert.Equal(t, 0, s.CurrentStreak, "loss resets the streak")
}
