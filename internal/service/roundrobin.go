package service

import (
	"sort"
	"time"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/arenaworks/arena/internal/utils"
	"github.com/google/uuid"
)

// buildRoundRobin schedules every unordered pair exactly once using the
// circle method: one seed stays fixed while the rest rotate, so no player
// appears twice in the same round. An odd roster gets a dummy slot whose
// fixtures are simply skipped, giving one player each round off.
func buildRoundRobin(tournamentID uuid.UUID, mode string, roster []arena.TournamentPlayer) []arena.Match {
	now := time.Now().UTC()
	var matches []arena.Match

	players := make([]*arena.TournamentPlayer, len(roster))
	for i := range roster {
		players[i] = &roster[i]
	}

	n := len(players)
	if n%2 != 0 {
		players = append(players, nil)
		n++
	}

	numRounds := n - 1
	half := n / 2

	for round := 1; round <= numRounds; round++ {
		order := 1
		for i := 0; i < half; i++ {
			p1 := players[i]
			p2 := players[n-1-i]

			// Fixtures against the dummy slot are byes off the schedule
			if p1 == nil || p2 == nil {
				continue
			}

			matches = append(matches, arena.Match{
				ID:           uuid.New(),
				Mode:         mode,
				TournamentID: &tournamentID,
				BracketSide:  arena.WinnersSide,
				RoundNumber:  round,
				MatchOrder:   order,
				Player1ID:    utils.Ptr(p1.PlayerID),
				Player2ID:    utils.Ptr(p2.PlayerID),
				Seed1:        utils.Ptr(p1.Seed),
				Seed2:        utils.Ptr(p2.Seed),
				Status:       arena.MatchScheduled,
				CreatedAt:    now,
			})
			order++
		}
		// Rotate players (keep the first one fixed)
		players = append([]*arena.TournamentPlayer{players[0], players[n-1]}, players[1:n-1]...)
	}

	return matches
}

// ComputeStandings tabulates a round-robin table from its matches. Ordering
// is deterministic: most wins, then the head-to-head result when exactly two
// players are tied on wins, then cumulative score differential, then seed.
// Head-to-head is skipped for larger tie groups, where a win cycle would make
// the pairwise comparison intransitive.
func ComputeStandings(matches []arena.Match) []arena.Standing {
	rows := make(map[uuid.UUID]*arena.Standing)

	ensure := func(playerID *uuid.UUID, seed *int) *arena.Standing {
		if playerID == nil {
			return nil
		}
		row, ok := rows[*playerID]
		if !ok {
			row = &arena.Standing{PlayerID: *playerID, Seed: utils.OrZero(seed)}
			rows[*playerID] = row
		}
		return row
	}

	// winner of the head-to-head fixture, keyed by both orderings
	headToHead := make(map[[2]uuid.UUID]uuid.UUID)

	for i := range matches {
		m := &matches[i]
		row1 := ensure(m.Player1ID, m.Seed1)
		row2 := ensure(m.Player2ID, m.Seed2)
		if row1 == nil || row2 == nil || !m.Done() {
			continue
		}

		row1.PointsFor += m.Score1
		row1.PointsAgainst += m.Score2
		row2.PointsFor += m.Score2
		row2.PointsAgainst += m.Score1

		if winnerID := m.WinnerID(); winnerID != nil {
			loserID := utils.OrZero(m.LoserID())
			if *winnerID == row1.PlayerID {
				row1.Wins++
				row2.Losses++
			} else {
				row2.Wins++
				row1.Losses++
			}
			headToHead[[2]uuid.UUID{*winnerID, loserID}] = *winnerID
			headToHead[[2]uuid.UUID{loserID, *winnerID}] = *winnerID
		}
	}

	standings := make([]arena.Standing, 0, len(rows))
	for _, row := range rows {
		standings = append(standings, *row)
	}
	// Map iteration order must never reach the comparator
	sort.Slice(standings, func(i, j int) bool {
		return standings[i].Seed < standings[j].Seed
	})

	tiedOnWins := make(map[int]int, len(standings))
	for _, row := range standings {
		tiedOnWins[row.Wins]++
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if tiedOnWins[a.Wins] == 2 {
			if winner, ok := headToHead[[2]uuid.UUID{a.PlayerID, b.PlayerID}]; ok {
				return winner == a.PlayerID
			}
		}
		if a.Differential() != b.Differential() {
			return a.Differential() > b.Differential()
		}
		return a.Seed < b.Seed
	})

	return standings
}
