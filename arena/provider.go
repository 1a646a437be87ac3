package arena

import (
	"context"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/rules"
)

// Provider answers one snake's move for a turn. It receives its own copy of
// the state and should return before ctx is done.
type Provider interface {
	Move(ctx context.Context, state *game.GameState, youID string) (game.Decision, error)
}

type ProviderFunc func(ctx context.Context, state *game.GameState, youID string) (game.Decision, error)

func (f ProviderFunc) Move(ctx context.Context, state *game.GameState, youID string) (game.Decision, error) {
	return f(ctx, state, youID)
}

// Starter and Ender are optional provider hooks called once per game.
type Starter interface {
	Start(ctx context.Context, state *game.GameState, youID string) error
}

type Ender interface {
	End(ctx context.Context, state *game.GameState, youID string) error
}

// Turn is what observers receive after every resolved turn. Turn 0 carries
// the starting position with an empty report.
type Turn struct {
	State  *game.GameState
	Report rules.TurnReport
	Moves  []game.Move
}

// Observer is notified synchronously after each turn; slow observers slow
// the match down. State is a private snapshot the observer may keep.
type Observer interface {
	ObserveTurn(ctx context.Context, turn Turn)
}

// ResultSink receives the final placements of a finished match.
type ResultSink interface {
	RecordResult(ctx context.Context, result Result) error
}
