package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/arenaworks/arena/internal/httputil"
	"github.com/arenaworks/arena/internal/rating"
	"github.com/arenaworks/arena/internal/service"
	"github.com/arenaworks/arena/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type queueRequest struct {
	PlayerID string `json:"player_id" validate:"required,uuid"`
	Mode     string `json:"mode" validate:"required"`
}

type resultRequest struct {
	WinnerID string `json:"winner_id" validate:"required,uuid"`
	Score1   int    `json:"score1" validate:"gte=0"`
	Score2   int    `json:"score2" validate:"gte=0"`
}

type createTournamentRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Mode        string   `json:"mode" validate:"required"`
	BracketType string   `json:"bracket_type" validate:"required,oneof=single_elimination double_elimination round_robin"`
	PlayerIDs   []string `json:"player_ids" validate:"required,min=2,max=64,unique,dive,uuid"`
}

func newRouter(players *store.PlayerStore, queueService *service.QueueService, tournamentService *service.TournamentService) http.Handler {
	r := chi.NewRouter()
	validate := validator.New()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	decode := func(w http.ResponseWriter, r *http.Request, dst any) bool {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			httputil.BadRequest(w, "Invalid JSON body", err)
			return false
		}
		if err := validate.Struct(dst); err != nil {
			httputil.UnprocessableEntity(w, err.Error(), nil)
			return false
		}
		return true
	}

	r.Post("/queue/join", func(w http.ResponseWriter, r *http.Request) {
		var req queueRequest
		if !decode(w, r, &req) {
			return
		}
		playerID := uuid.MustParse(req.PlayerID)

		match, err := queueService.Join(r.Context(), playerID, req.Mode)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if match == nil {
			httputil.JSON(w, http.StatusAccepted, map[string]string{"status": "waiting"})
			return
		}
		httputil.JSON(w, http.StatusCreated, match)
	})

	r.Post("/queue/leave", func(w http.ResponseWriter, r *http.Request) {
		var req queueRequest
		if !decode(w, r, &req) {
			return
		}
		playerID := uuid.MustParse(req.PlayerID)

		if err := queueService.Leave(r.Context(), playerID, req.Mode); err != nil {
			writeServiceError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "left"})
	})

	r.Post("/matches/{id}/result", func(w http.ResponseWriter, r *http.Request) {
		matchID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "Invalid match ID", err)
			return
		}
		var req resultRequest
		if !decode(w, r, &req) {
			return
		}
		winnerID := uuid.MustParse(req.WinnerID)

		outcome, err := tournamentService.ReportResult(r.Context(), matchID, winnerID, req.Score1, req.Score2)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, outcome)
	})

	r.Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
		var req createTournamentRequest
		if !decode(w, r, &req) {
			return
		}
		playerIDs := make([]uuid.UUID, len(req.PlayerIDs))
		for i, id := range req.PlayerIDs {
			playerIDs[i] = uuid.MustParse(id)
		}

		tournament, err := tournamentService.Create(r.Context(), req.Name, req.Mode, arena.BracketType(req.BracketType), playerIDs)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httputil.JSON(w, http.StatusCreated, tournament)
	})

	r.Get("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "Invalid tournament ID", err)
			return
		}
		state, err := tournamentService.GetBracketState(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, state)
	})

	r.Post("/tournaments/{id}/start", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "Invalid tournament ID", err)
			return
		}
		if err := tournamentService.Start(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ongoing"})
	})

	r.Post("/tournaments/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "Invalid tournament ID", err)
			return
		}
		if err := tournamentService.Cancel(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	})

	r.Get("/players/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		player, err := players.GetPlayer(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		derived := rating.ComputeDerivedStats(rating.Stats{
			Wins:          player.Wins,
			Losses:        player.Losses,
			Draws:         player.Draws,
			CurrentStreak: player.CurrentStreak,
			TotalScore:    player.TotalScore,
			GamesPlayed:   player.GamesPlayed,
		})
		httputil.JSON(w, http.StatusOK, map[string]any{
			"player":  player,
			"derived": derived,
		})
	})

	return r
}

// writeServiceError maps the service error taxonomy onto HTTP statuses:
// conflicts are explicit 409 outcomes, validation is 400, unknown records
// are 404 and invariant violations surface loudly as 500s.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, arena.ErrAlreadyQueued),
		errors.Is(err, arena.ErrNotQueued),
		errors.Is(err, arena.ErrAlreadyReported),
		errors.Is(err, arena.ErrMatchNotReady),
		errors.Is(err, arena.ErrTournamentClosed):
		httputil.Conflict(w, err.Error(), nil)
	case errors.Is(err, arena.ErrInvalidRoster), errors.Is(err, arena.ErrInvalidMode):
		httputil.BadRequest(w, err.Error(), nil)
	case errors.Is(err, arena.ErrUnknownMatch), errors.Is(err, sql.ErrNoRows):
		httputil.NotFound(w, err.Error(), nil)
	default:
		httputil.InternalServerError(w, "Request failed", err)
	}
}
