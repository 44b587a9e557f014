package events

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMatchFormed            EventType = "match_formed"
	EventMatchCompleted         EventType = "match_completed"
	EventTournamentStateChanged EventType = "tournament_state_changed"
)

// Event is the fire-and-forget payload handed to the notification
// collaborator. Delivery is at-least-once downstream; emitting never blocks
// a state transition.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type MatchFormedData struct {
	MatchID   uuid.UUID   `json:"matchId"`
	Mode      string      `json:"mode"`
	PlayerIDs []uuid.UUID `json:"playerIds"`
}

type MatchCompletedData struct {
	MatchID   uuid.UUID  `json:"matchId"`
	WinnerID  *uuid.UUID `json:"winnerId,omitempty"`
	Score1    int        `json:"score1"`
	Score2    int        `json:"score2"`
	Forfeited bool       `json:"forfeited"`
}

type TournamentStateChangedData struct {
	TournamentID uuid.UUID  `json:"tournamentId"`
	Status       string     `json:"status"`
	WinnerID     *uuid.UUID `json:"winnerId,omitempty"`
}

// Notifier is injected into the services; implementations must be safe for
// concurrent use.
type Notifier interface {
	Emit(event Event)
	Close() error
}

// LogNotifier writes events to the structured log. Default when no broker is
// configured.
type LogNotifier struct{}

func (LogNotifier) Emit(event Event) {
	slog.Info("event emitted", "type", event.Type, "data", event.Data)
}

func (LogNotifier) Close() error { return nil }

func NewEvent(eventType EventType, data any) Event {
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}
}
