package service

import (
	"fmt"
	"math"
	"time"

	"github.com/arenaworks/arena/internal/arena"
	"github.com/arenaworks/arena/internal/utils"
	"github.com/google/uuid"
)

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// generateRound1Pairs interleaves seeds so that the top seeds can only meet
// in the late rounds: for a bracket of 8 the pairs are (0,7) (3,4) (1,6) (2,5).
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

// BuildBracket constructs the full match set for a tournament. Roster slots
// are seeded in order; byes for non-power-of-two rosters are resolved before
// the matches are returned, so round 1 never schedules a bye against a bye.
func BuildBracket(tournamentID uuid.UUID, mode string, roster []arena.TournamentPlayer, bracketType arena.BracketType) ([]arena.Match, error) {
	if len(roster) < arena.MinRosterSize || len(roster) > arena.MaxRosterSize {
		return nil, arena.ErrInvalidRoster
	}
	seen := make(map[uuid.UUID]bool, len(roster))
	for _, p := range roster {
		if seen[p.PlayerID] {
			return nil, fmt.Errorf("%w: duplicate player %s", arena.ErrInvalidRoster, p.PlayerID)
		}
		seen[p.PlayerID] = true
	}

	switch bracketType {
	case arena.SingleElimination:
		return buildSingleElim(tournamentID, mode, roster), nil
	case arena.DoubleElimination:
		return buildDoubleElim(tournamentID, mode, roster), nil
	case arena.RoundRobin:
		return buildRoundRobin(tournamentID, mode, roster), nil
	default:
		return nil, fmt.Errorf("unknown bracket type %q", bracketType)
	}
}

// generateEliminationRounds builds one side of an elimination tree with
// winner links wired up, working backwards from the final round.
func generateEliminationRounds(tournamentID uuid.UUID, mode string, side arena.BracketSide, bracketSize int, now time.Time) []arena.Match {
	var matches []arena.Match

	totalRounds := int(math.Log2(float64(bracketSize)))
	nextRoundMatchIDs := make(map[int]uuid.UUID)

	// Significantly easier to start from the last round and work backwards
	for r := totalRounds; r >= 1; r-- {
		matchesInCurrentRound := int(math.Pow(2, float64(totalRounds-r)))
		currentRoundMatchIDs := make(map[int]uuid.UUID)

		for i := 0; i < matchesInCurrentRound; i++ {
			matchID := uuid.New()
			matchOrder := i + 1

			m := arena.Match{
				ID:           matchID,
				Mode:         mode,
				TournamentID: &tournamentID,
				BracketSide:  side,
				RoundNumber:  r,
				MatchOrder:   matchOrder,
				Status:       arena.MatchScheduled,
				CreatedAt:    now,
			}

			if r < totalRounds {
				parentMatchOrder := (matchOrder + 1) / 2
				parentID := nextRoundMatchIDs[parentMatchOrder]

				m.WinnerNextMatchID = &parentID

				if matchOrder%2 != 0 {
					m.WinnerNextSlot = utils.Ptr(1)
				} else {
					m.WinnerNextSlot = utils.Ptr(2)
				}
			}

			matches = append(matches, m)
			currentRoundMatchIDs[matchOrder] = matchID
		}
		nextRoundMatchIDs = currentRoundMatchIDs
	}

	return matches
}

// seedRound1 assigns roster players into the first-round slots following the
// interleaved seed pairs. Slots whose seed index falls outside the roster
// stay empty and resolve as byes.
func seedRound1(matches []arena.Match, roster []arena.TournamentPlayer, side arena.BracketSide) {
	round1 := make([]*arena.Match, 0)
	for i := range matches {
		if matches[i].BracketSide == side && matches[i].RoundNumber == 1 {
			round1 = append(round1, &matches[i])
		}
	}

	pairings := generateRound1Pairs(calcBracketSize(len(roster)))
	for i, pair := range pairings {
		if i >= len(round1) {
			break
		}
		match := round1[i]
		if pair[0] < len(roster) {
			match.Player1ID = utils.Ptr(roster[pair[0]].PlayerID)
			match.Seed1 = utils.Ptr(roster[pair[0]].Seed)
		}
		if pair[1] < len(roster) {
			match.Player2ID = utils.Ptr(roster[pair[1]].PlayerID)
			match.Seed2 = utils.Ptr(roster[pair[1]].Seed)
		}
	}
}

func buildSingleElim(tournamentID uuid.UUID, mode string, roster []arena.TournamentPlayer) []arena.Match {
	now := time.Now().UTC()
	bracketSize := calcBracketSize(len(roster))

	matches := generateEliminationRounds(tournamentID, mode, arena.WinnersSide, bracketSize, now)
	seedRound1(matches, roster, arena.WinnersSide)
	resolveAutoAdvances(matches)

	return matches
}

// buildDoubleElim adds a losers bracket and a grand final to the winners
// tree. Losers rounds alternate: odd rounds pair losers-bracket survivors,
// even rounds drop in the losers of the matching winners round. The grand
// final pits both bracket champions once, with no reset.
func buildDoubleElim(tournamentID uuid.UUID, mode string, roster []arena.TournamentPlayer) []arena.Match {
	now := time.Now().UTC()
	bracketSize := calcBracketSize(len(roster))
	totalRounds := int(math.Log2(float64(bracketSize)))

	matches := generateEliminationRounds(tournamentID, mode, arena.WinnersSide, bracketSize, now)

	grandFinal := arena.Match{
		ID:           uuid.New(),
		Mode:         mode,
		TournamentID: &tournamentID,
		BracketSide:  arena.FinalsSide,
		RoundNumber:  1,
		MatchOrder:   1,
		Status:       arena.MatchScheduled,
		CreatedAt:    now,
	}

	// Winners champion takes slot 1 of the grand final
	for i := range matches {
		if matches[i].RoundNumber == totalRounds && matches[i].WinnerNextMatchID == nil {
			matches[i].WinnerNextMatchID = utils.Ptr(grandFinal.ID)
			matches[i].WinnerNextSlot = utils.Ptr(1)
		}
	}

	if totalRounds == 1 {
		// Two players: the loser of the only match gets their second chance
		// directly in the grand final.
		matches[0].LoserNextMatchID = utils.Ptr(grandFinal.ID)
		matches[0].LoserNextSlot = utils.Ptr(2)
		matches = append(matches, grandFinal)
		seedRound1(matches, roster, arena.WinnersSide)
		resolveAutoAdvances(matches)
		return matches
	}

	// Losers bracket: rounds 2j-1 and 2j each hold bracketSize/2^(j+1)
	// matches, j = 1..totalRounds-1.
	totalLosersRounds := 2 * (totalRounds - 1)
	for j := 1; j <= totalRounds-1; j++ {
		count := bracketSize / (1 << (j + 1))
		for _, r := range []int{2*j - 1, 2 * j} {
			for i := 0; i < count; i++ {
				matches = append(matches, arena.Match{
					ID:           uuid.New(),
					Mode:         mode,
					TournamentID: &tournamentID,
					BracketSide:  arena.LosersSide,
					RoundNumber:  r,
					MatchOrder:   i + 1,
					Status:       arena.MatchScheduled,
					CreatedAt:    now,
				})
			}
		}
	}

	losers := make(map[int][]*arena.Match)
	for i := range matches {
		if matches[i].BracketSide == arena.LosersSide {
			losers[matches[i].RoundNumber] = append(losers[matches[i].RoundNumber], &matches[i])
		}
	}

	// Winner links inside the losers bracket
	for r := 1; r < totalLosersRounds; r++ {
		for i, m := range losers[r] {
			if r%2 == 1 {
				// Minor round winner meets the next drop-in
				next := losers[r+1][i]
				m.WinnerNextMatchID = utils.Ptr(next.ID)
				m.WinnerNextSlot = utils.Ptr(1)
			} else {
				next := losers[r+1][i/2]
				m.WinnerNextMatchID = utils.Ptr(next.ID)
				if i%2 == 0 {
					m.WinnerNextSlot = utils.Ptr(1)
				} else {
					m.WinnerNextSlot = utils.Ptr(2)
				}
			}
		}
	}
	// Losers champion takes slot 2 of the grand final
	final := losers[totalLosersRounds][0]
	final.WinnerNextMatchID = utils.Ptr(grandFinal.ID)
	final.WinnerNextSlot = utils.Ptr(2)

	// Loser links from the winners bracket
	for i := range matches {
		m := &matches[i]
		if m.BracketSide != arena.WinnersSide {
			continue
		}
		if m.RoundNumber == 1 {
			target := losers[1][(m.MatchOrder-1)/2]
			m.LoserNextMatchID = utils.Ptr(target.ID)
			if m.MatchOrder%2 != 0 {
				m.LoserNextSlot = utils.Ptr(1)
			} else {
				m.LoserNextSlot = utils.Ptr(2)
			}
		} else {
			target := losers[2*(m.RoundNumber-1)][m.MatchOrder-1]
			m.LoserNextMatchID = utils.Ptr(target.ID)
			m.LoserNextSlot = utils.Ptr(2)
		}
	}

	matches = append(matches, grandFinal)
	seedRound1(matches, roster, arena.WinnersSide)
	resolveAutoAdvances(matches)

	return matches
}
