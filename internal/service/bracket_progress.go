package service

import (
	"fmt"
	"time"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/arenaworks/arena/internal/utils"
	"github.com/google/uuid"
)

// bracketState holds a tournament's matches as an arena of nodes addressed
// by ID. Advancement mutates the nodes in memory and records which ones
// changed; the caller persists the dirty set in its transaction.
type bracketState struct {
	matches []arena.Match
	byID    map[uuid.UUID]*arena.Match
	dirty   map[uuid.UUID]bool
}

func newBracketState(matches []arena.Match) *bracketState {
	b := &bracketState{
		matches: matches,
		byID:    make(map[uuid.UUID]*arena.Match, len(matches)),
		dirty:   make(map[uuid.UUID]bool),
	}
	for i := range b.matches {
		b.byID[b.matches[i].ID] = &b.matches[i]
	}
	return b
}

func (b *bracketState) get(id uuid.UUID) *arena.Match {
	return b.byID[id]
}

func (b *bracketState) markDirty(m *arena.Match) {
	b.dirty[m.ID] = true
}

func (b *bracketState) dirtyMatches() []*arena.Match {
	out := make([]*arena.Match, 0, len(b.dirty))
	for i := range b.matches {
		if b.dirty[b.matches[i].ID] {
			out = append(out, &b.matches[i])
		}
	}
	return out
}

// placeInSlot fills a slot with an advancing player. A slot already holding
// a different player means two feeders claimed the same node, which only a
// concurrency-control failure can produce.
func (b *bracketState) placeInSlot(m *arena.Match, slot int, playerID uuid.UUID, seed *int) error {
	if existing := m.PlayerInSlot(slot); existing != nil {
		if *existing == playerID {
			return nil
		}
		return fmt.Errorf("%w: match %s slot %d already holds a different player", arena.ErrInvariantViolation, m.ID, slot)
	}
	if other := m.PlayerInSlot(3 - slot); other != nil && *other == playerID {
		return fmt.Errorf("%w: match %s would pit player %s against themself", arena.ErrInvariantViolation, m.ID, playerID)
	}

	if slot == 1 {
		m.Player1ID = utils.Ptr(playerID)
		m.Seed1 = seed
	} else {
		m.Player2ID = utils.Ptr(playerID)
		m.Seed2 = seed
	}
	b.markDirty(m)
	return nil
}

// complete finishes a match and routes its winner and loser onward, then
// resolves any byes the outcome uncovered.
func (b *bracketState) complete(m *arena.Match, winnerSlot *int, status arena.MatchStatus, score1, score2 int) error {
	if m.Done() {
		return arena.ErrAlreadyReported
	}

	m.Status = status
	m.WinnerSlot = winnerSlot
	m.Score1 = score1
	m.Score2 = score2
	b.markDirty(m)

	if err := b.propagateOutcome(m); err != nil {
		return err
	}
	return b.resolveAutoAdvances()
}

func (b *bracketState) seedOfSlot(m *arena.Match, slot int) *int {
	if slot == 1 {
		return m.Seed1
	}
	return m.Seed2
}

// propagateOutcome routes a finished match's winner (and, in double
// elimination, its loser) along the advancement links.
func (b *bracketState) propagateOutcome(m *arena.Match) error {
	if winnerID := m.WinnerID(); winnerID != nil && m.WinnerNextMatchID != nil && m.WinnerNextSlot != nil {
		next := b.get(*m.WinnerNextMatchID)
		if next == nil {
			return fmt.Errorf("%w: winner link of match %s points outside the bracket", arena.ErrInvariantViolation, m.ID)
		}
		if err := b.placeInSlot(next, *m.WinnerNextSlot, *winnerID, b.seedOfSlot(m, *m.WinnerSlot)); err != nil {
			return err
		}
	}

	if loserID := m.LoserID(); loserID != nil && m.LoserNextMatchID != nil && m.LoserNextSlot != nil {
		next := b.get(*m.LoserNextMatchID)
		if next == nil {
			return fmt.Errorf("%w: loser link of match %s points outside the bracket", arena.ErrInvariantViolation, m.ID)
		}
		if err := b.placeInSlot(next, *m.LoserNextSlot, *loserID, b.seedOfSlot(m, 3-*m.WinnerSlot)); err != nil {
			return err
		}
	}

	return nil
}

// hasPendingFeeder reports whether any unfinished match still routes a
// player into the given slot.
func (b *bracketState) hasPendingFeeder(m *arena.Match, slot int) bool {
	for i := range b.matches {
		f := &b.matches[i]
		if f.Done() || f.ID == m.ID {
			continue
		}
		if f.WinnerNextMatchID != nil && *f.WinnerNextMatchID == m.ID && f.WinnerNextSlot != nil && *f.WinnerNextSlot == slot {
			return true
		}
		if f.LoserNextMatchID != nil && *f.LoserNextMatchID == m.ID && f.LoserNextSlot != nil && *f.LoserNextSlot == slot {
			return true
		}
	}
	return false
}

// resolveAutoAdvances completes matches whose empty slots can no longer be
// filled: the occupied side advances without playing, and nodes with no
// reachable players at all are retired. Runs to a fixpoint since each bye
// can uncover the next one.
func (b *bracketState) resolveAutoAdvances() error {
	for {
		changed := false
		for i := range b.matches {
			m := &b.matches[i]
			if m.Done() {
				continue
			}

			open1 := m.Player1ID == nil && !b.hasPendingFeeder(m, 1)
			open2 := m.Player2ID == nil && !b.hasPendingFeeder(m, 2)

			var winnerSlot *int
			switch {
			case open1 && open2:
				// Nobody can ever reach this node
			case open2 && m.Player1ID != nil:
				winnerSlot = utils.Ptr(1)
			case open1 && m.Player2ID != nil:
				winnerSlot = utils.Ptr(2)
			default:
				continue
			}

			m.Status = arena.MatchCompleted
			m.WinnerSlot = winnerSlot
			m.IsBye = true
			b.markDirty(m)
			if err := b.propagateOutcome(m); err != nil {
				return err
			}
			changed = true
		}
		if !changed {
			return nil
		}
	}
}

// startReadyMatches flips scheduled matches with both participants known to
// ongoing, stamping the timeout clock.
func (b *bracketState) startReadyMatches(now time.Time) {
	for i := range b.matches {
		m := &b.matches[i]
		if m.Status == arena.MatchScheduled && m.Player1ID != nil && m.Player2ID != nil {
			m.Status = arena.MatchOngoing
			m.StartedAt = utils.Ptr(now)
			b.markDirty(m)
		}
	}
}

// resolveAutoAdvances runs the bye fixpoint in place over freshly built
// matches. A fresh bracket has no conflicting placements to trip on.
func resolveAutoAdvances(matches []arena.Match) {
	_ = newBracketState(matches).resolveAutoAdvances()
}

// finalNode returns the decisive match of an elimination bracket.
func finalNode(matches []arena.Match, bracketType arena.BracketType) *arena.Match {
	for i := range matches {
		m := &matches[i]
		if bracketType == arena.DoubleElimination {
			if m.BracketSide == arena.FinalsSide {
				return m
			}
		} else if m.BracketSide == arena.WinnersSide && m.WinnerNextMatchID == nil {
			return m
		}
	}
	return nil
}

// bracketWinner reports whether no further matches can be scheduled and, if
// so, who won. Elimination brackets are decided by their final node; round
// robin is complete when every fixture has an outcome, with the winner taken
// from the standings.
func bracketWinner(matches []arena.Match, bracketType arena.BracketType) (*uuid.UUID, bool) {
	if bracketType == arena.RoundRobin {
		for i := range matches {
			if !matches[i].Done() {
				return nil, false
			}
		}
		standings := ComputeStandings(matches)
		if len(standings) == 0 {
			return nil, true
		}
		return utils.Ptr(standings[0].PlayerID), true
	}

	final := finalNode(matches, bracketType)
	if final == nil || !final.Done() {
		return nil, false
	}
	return final.WinnerID(), true
}
