package store

import (
	"context"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/jmoiron/sqlx"
)

type PlayerStore struct {
	db *sqlx.DB
}

const (
	getPlayerQuery    = "SELECT * FROM players WHERE id = ?"
	createPlayerQuery = `
		INSERT INTO players (id, username, rating, level, rank_tier) VALUES
		(:id, :username, :rating, :level, :rank_tier)
	`
	updatePlayerStatsQuery = `
		UPDATE players SET
		wins = :wins,
		losses = :losses,
		draws = :draws,
		current_streak = :current_streak,
		total_score = :total_score,
		games_played = :games_played,
		play_time_seconds = :play_time_seconds,
		rating = :rating,
		level = :level,
		rank_tier = :rank_tier
		WHERE id = :id
	`
)

func NewPlayerStore(db *sqlx.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) GetPlayer(ctx context.Context, id string) (*arena.Player, error) {
	var player arena.Player
	err := s.db.GetContext(ctx, &player, getPlayerQuery, id)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *PlayerStore) GetPlayerTx(ctx context.Context, tx *sqlx.Tx, id string) (*arena.Player, error) {
	var player arena.Player
	err := tx.GetContext(ctx, &player, getPlayerQuery, id)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *PlayerStore) CreatePlayer(ctx context.Context, player *arena.Player) error {
	_, err := s.db.NamedExecContext(ctx, createPlayerQuery, player)
	return err
}

func (s *PlayerStore) UpdatePlayerStatsTx(ctx context.Context, tx *sqlx.Tx, player *arena.Player) error {
	_, err := tx.NamedExecContext(ctx, updatePlayerStatsQuery, player)
	return err
}
