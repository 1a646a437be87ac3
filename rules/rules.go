// Package rules advances a game.GameState by one simultaneous turn.
//
// Every living snake's next position is projected before anything is
// committed, so the order of snakes in the state never affects the outcome.
package rules

import (
	"math/rand"

	"github.com/brensch/snekarena/game"
)

// HealthLoss is subtracted from every surviving snake that did not eat.
const HealthLoss = 10

// Elimination is one snake leaving the game this turn.
type Elimination struct {
	SnakeId string                 `json:"snake_id"`
	Reason  game.EliminationReason `json:"reason"`
}

// TurnReport lists what happened during one resolved turn.
type TurnReport struct {
	Turn         int32         `json:"turn"`
	Eliminations []Elimination `json:"eliminations,omitempty"`
	Eaten        []game.Point  `json:"eaten,omitempty"`
	Spawned      []game.Point  `json:"spawned,omitempty"`
	GameOver     bool          `json:"game_over"`
	WinnerId     string        `json:"winner_id,omitempty"`
}

// Resolver bundles food settings and a random source for repeated turns.
// It must not be shared by games resolving concurrently when Rng is set.
type Resolver struct {
	Settings FoodSettings
	Rng      *rand.Rand
}

func (r *Resolver) Resolve(state *game.GameState, moves []game.Move) TurnReport {
	return Resolve(state, moves, r.Rng, r.Settings)
}

// projection is the tentative outcome for one snake before eliminations.
type projection struct {
	moved  bool
	head   game.Point
	body   []game.Point
	ate    bool
	reason game.EliminationReason
}

// Resolve applies one turn of moves to state in place.
//
// A finished game is left untouched. Living snakes without a move are
// eliminated for timeout. Snakes killed by a collision keep their pre-turn
// body; a snake that starves completes its move first.
func Resolve(state *game.GameState, moves []game.Move, rng *rand.Rand, settings FoodSettings) TurnReport {
	if state == nil || state.IsGameOver {
		return TurnReport{}
	}

	state.Turn++
	report := TurnReport{Turn: state.Turn}

	// First move per snake wins.
	byID := make(map[string]game.Move, len(moves))
	for _, m := range moves {
		if _, ok := byID[m.SnakeId]; ok {
			continue
		}
		byID[m.SnakeId] = m
	}

	foodAt := make(map[game.Point]bool, len(state.Food))
	for _, f := range state.Food {
		foodAt[f] = true
	}

	// 1. Project heads and bodies.
	proj := make([]projection, len(state.Snakes))
	for i := range state.Snakes {
		s := &state.Snakes[i]
		if !s.IsAlive() {
			continue
		}
		m, ok := byID[s.Id]
		if !ok || !m.Direction.Valid() || len(s.Body) == 0 {
			proj[i].reason = game.ReasonTimeout
			continue
		}

		p := &proj[i]
		p.moved = true
		p.head = s.Body[0].Step(m.Direction)
		p.ate = foodAt[p.head]

		keep := len(s.Body)
		if !p.ate {
			keep--
		}
		p.body = make([]game.Point, 0, keep+1)
		p.body = append(p.body, p.head)
		p.body = append(p.body, s.Body[:keep]...)
	}

	// 2. Wall and body collisions against projected bodies.
	for i := range state.Snakes {
		p := &proj[i]
		if !p.moved {
			continue
		}
		if !state.InBounds(p.head) {
			p.reason = game.ReasonOutOfBounds
			continue
		}
		if containsPoint(p.body[1:], p.head) {
			p.reason = game.ReasonSelfCollision
			continue
		}
		for j := range state.Snakes {
			if j == i || !proj[j].moved {
				continue
			}
			if containsPoint(proj[j].body[1:], p.head) {
				p.reason = game.ReasonBodyCollision
				break
			}
		}
	}

	// 3. Head-to-head among the remaining snakes.
	groups := make(map[game.Point][]int)
	for i := range state.Snakes {
		p := &proj[i]
		if p.moved && p.reason == game.ReasonNone {
			groups[p.head] = append(groups[p.head], i)
		}
	}
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		longest := 0
		for _, i := range members {
			if n := len(proj[i].body); n > longest {
				longest = n
			}
		}
		atMax := 0
		for _, i := range members {
			if len(proj[i].body) == longest {
				atMax++
			}
		}
		for _, i := range members {
			if len(proj[i].body) < longest || atMax > 1 {
				proj[i].reason = game.ReasonHeadToHead
			}
		}
	}

	// 4. Commit.
	eaten := make(map[game.Point]bool)
	for i := range state.Snakes {
		s := &state.Snakes[i]
		if !s.IsAlive() {
			continue
		}
		p := &proj[i]
		if p.reason != game.ReasonNone {
			eliminate(s, state.Turn, p.reason, &report)
			continue
		}

		s.Body = p.body
		if p.ate {
			s.Health = game.MaxHealth
			s.Length++
			if !eaten[p.head] {
				eaten[p.head] = true
				report.Eaten = append(report.Eaten, p.head)
			}
			continue
		}
		s.Health -= HealthLoss
		if s.Health <= 0 {
			eliminate(s, state.Turn, game.ReasonStarvation, &report)
		}
	}

	// 5. Latency samples, including from snakes that were already out.
	for _, m := range byID {
		if m.Latency <= 0 {
			continue
		}
		if s := state.SnakeByID(m.SnakeId); s != nil {
			s.Latencies = append(s.Latencies, m.Latency)
		}
	}

	// 6. Remove one food item per eaten cell.
	if len(eaten) > 0 {
		remaining := make([]game.Point, 0, len(state.Food))
		for _, f := range state.Food {
			if eaten[f] {
				delete(eaten, f)
				continue
			}
			remaining = append(remaining, f)
		}
		state.Food = remaining
	}

	// 7. Respawn, then check for the end.
	report.Spawned = applyFoodRules(state, rng, settings, uint64(state.Turn))

	state.CheckGameOver()
	report.GameOver = state.IsGameOver
	report.WinnerId = state.WinnerId
	return report
}

func eliminate(s *game.Snake, turn int32, reason game.EliminationReason, report *TurnReport) {
	s.Status = game.Eliminated
	s.EliminationReason = reason
	s.EliminatedTurn = turn
	s.Health = 0
	report.Eliminations = append(report.Eliminations, Elimination{SnakeId: s.Id, Reason: reason})
}

func containsPoint(body []game.Point, p game.Point) bool {
	for _, bp := range body {
		if bp == p {
			return true
		}
	}
	return false
}
