package leaderboard

import (
	"math"
	"sort"
)

const (
	DefaultK      = 32
	InitialRating = 1500
)

type Rating struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
	Games  int     `json:"games"`
}

// Ratings replays games in order. Each game is expanded into every pair of
// its players (lower rank wins, equal ranks draw) and a player's change is
// averaged over its opponents, so a 4-player game moves ratings about as
// much as a duel.
func Ratings(games []GameFinishes, k float64) []Rating {
	if k <= 0 {
		k = DefaultK
	}
	ratings := make(map[string]*Rating)
	get := func(name string) *Rating {
		r, ok := ratings[name]
		if !ok {
			r = &Rating{Name: name, Rating: InitialRating}
			ratings[name] = r
		}
		return r
	}

	for _, g := range games {
		n := len(g.Finishes)
		if n < 2 {
			continue
		}
		before := make([]float64, n)
		for i, f := range g.Finishes {
			before[i] = get(f.Name).Rating
		}
		for i, fi := range g.Finishes {
			var delta float64
			for j, fj := range g.Finishes {
				if i == j {
					continue
				}
				expected := 1 / (1 + math.Pow(10, (before[j]-before[i])/400))
				delta += score(fi.Rank, fj.Rank) - expected
			}
			r := get(fi.Name)
			r.Rating += k * delta / float64(n-1)
			r.Games++
		}
	}

	out := make([]Rating, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func score(mine, theirs int) float64 {
	switch {
	case mine < theirs:
		return 1
	case mine > theirs:
		return 0
	default:
		return 0.5
	}
}
