package arena

import (
	"time"

	"github.com/google/uuid"
)

type Player struct {
	ID       uuid.UUID `db:"id"`
	Username string    `db:"username"`

	Wins            int `db:"wins"`
	Losses          int `db:"losses"`
	Draws           int `db:"draws"`
	CurrentStreak   int `db:"current_streak"`
	TotalScore      int `db:"total_score"`
	GamesPlayed     int `db:"games_played"`
	PlayTimeSeconds int `db:"play_time_seconds"`

	Rating   int    `db:"rating"`
	Level    int    `db:"level"`
	RankTier string `db:"rank_tier"`

	CreatedAt time.Time `db:"created_at"`
}
