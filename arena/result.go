package arena

import (
	"sort"
	"time"

	"github.com/brensch/snekarena/game"
)

// Placement is one snake's final standing.
type Placement struct {
	SnakeId  string                 `json:"snake_id"`
	Name     string                 `json:"name"`
	ModelTag string                 `json:"model_tag"`
	Rank     int                    `json:"rank"`
	Alive    bool                   `json:"alive"`
	Length   int32                  `json:"length"`
	Survived int32                  `json:"survived"`
	Reason   game.EliminationReason `json:"reason,omitempty"`
	// AvgLatency is the mean of the recorded latencies; zero if none.
	AvgLatency time.Duration `json:"avg_latency"`
}

// Result summarises a finished match.
type Result struct {
	GameId     string      `json:"game_id"`
	Turns      int32       `json:"turns"`
	WinnerId   string      `json:"winner_id,omitempty"`
	Truncated  bool        `json:"truncated"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    time.Time   `json:"ended_at"`
	Placements []Placement `json:"placements"`
}

// Rank orders every snake in state. Snakes still alive share rank 1; the
// rest are ordered by how late they were eliminated, and snakes eliminated
// on the same turn share a rank. Ranks skip after ties (1, 2, 2, 4).
func Rank(state *game.GameState) []Placement {
	out := make([]Placement, len(state.Snakes))
	for i := range state.Snakes {
		s := &state.Snakes[i]
		survived := state.Turn
		if !s.IsAlive() {
			survived = s.EliminatedTurn
		}
		out[i] = Placement{
			SnakeId:    s.Id,
			Name:       s.Name,
			ModelTag:   s.ModelTag,
			Alive:      s.IsAlive(),
			Length:     s.Length,
			Survived:   survived,
			Reason:     s.EliminationReason,
			AvgLatency: meanLatency(s.Latencies),
		}
	}

	alive := func(p Placement) bool { return p.Alive }
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := alive(out[i]), alive(out[j])
		if ai != aj {
			return ai
		}
		return out[i].Survived > out[j].Survived
	})

	for i := range out {
		switch {
		case i == 0:
			out[i].Rank = 1
		case alive(out[i]) || (!alive(out[i-1]) && out[i].Survived == out[i-1].Survived):
			out[i].Rank = out[i-1].Rank
		default:
			out[i].Rank = i + 1
		}
	}
	return out
}

func meanLatency(ls []time.Duration) time.Duration {
	if len(ls) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range ls {
		total += l
	}
	return total / time.Duration(len(ls))
}
