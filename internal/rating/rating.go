// Package rating derives a player's rating, level and rank tier from their
// cumulative stats. Everything here is pure; the caller persists the result.
package rating

import "math"

const (
	WinPoints     = 25
	ScorePerPoint = 100
	StreakLength  = 5
)

// Stats are the raw cumulative counters stored on a player. All fields are
// expected to be non-negative.
type Stats struct {
	Wins          int
	Losses        int
	Draws         int
	CurrentStreak int
	TotalScore    int
	GamesPlayed   int
}

type DerivedStats struct {
	WinRate      int
	AverageScore int
	Rating       int
	Level        int
	RankTier     string
	Title        string
	IsOnStreak   bool
}

// ComputeDerivedStats is total over non-negative inputs and never divides by
// zero: a player with no games has a 0 win rate and 0 average score.
func ComputeDerivedStats(s Stats) DerivedStats {
	var winRate, avgScore int
	if s.GamesPlayed > 0 {
		winRate = int(math.Round(100 * float64(s.Wins) / float64(s.GamesPlayed)))
		avgScore = int(math.Round(float64(s.TotalScore) / float64(s.GamesPlayed)))
	}

	r := s.Wins*WinPoints + s.TotalScore/ScorePerPoint
	level := int(math.Sqrt(float64(s.Wins + 1)))

	return DerivedStats{
		WinRate:      winRate,
		AverageScore: avgScore,
		Rating:       r,
		Level:        level,
		RankTier:     TierForRating(r),
		Title:        TitleForLevel(level),
		IsOnStreak:   s.CurrentStreak >= StreakLength,
	}
}

// TierForRating maps a rating onto the ladder tiers. Monotone step function;
// thresholds are fixed.
func TierForRating(r int) string {
	switch {
	case r < 100:
		return "Bronze"
	case r < 300:
		return "Silver"
	case r < 600:
		return "Gold"
	case r < 1000:
		return "Platinum"
	case r < 2000:
		return "Diamond"
	default:
		return "Legend"
	}
}

// TitleForLevel maps a level onto the skill titles shown next to a player's
// name. Monotone step function; thresholds are fixed.
func TitleForLevel(level int) string {
	switch {
	case level < 2:
		return "Novice"
	case level < 4:
		return "Apprentice"
	case level < 7:
		return "Adept"
	case level < 10:
		return "Expert"
	default:
		return "Master"
	}
}

// ApplyResult folds one completed game into the counters. A loss resets the
// streak, a draw holds it.
func ApplyResult(s Stats, won, drawn bool, score int) Stats {
	s.GamesPlayed++
	s.TotalScore += score
	switch {
	case won:
		s.Wins++
		s.CurrentStreak++
	case drawn:
		s.Draws++
	default:
		s.Losses++
		s.CurrentStreak = 0
	}
	return s
}
