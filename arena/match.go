// Package arena runs matches: it asks every snake's provider for a move in
// parallel, feeds the answers to the resolver and publishes each turn.
package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/rules"
)

var (
	// ErrTurnInProgress is returned when Step is called while another Step
	// on the same match has not finished.
	ErrTurnInProgress = errors.New("turn already in progress")
	ErrNoProvider     = errors.New("snake has no provider")
)

// DefaultMoveTimeout matches the public Battlesnake engine.
const DefaultMoveTimeout = 500 * time.Millisecond

type Options struct {
	MoveTimeout time.Duration
	// Parallel caps concurrent provider calls per turn; 0 means one per snake.
	Parallel int
	// MaxTurns stops the match early; 0 means play until one snake is left.
	MaxTurns int32
	// Delay is slept between turns, for watching.
	Delay time.Duration

	Logger    *slog.Logger
	Observers []Observer
	Sinks     []ResultSink
}

// Match owns one game and serialises every change to it.
type Match struct {
	mu       sync.Mutex
	state    *game.GameState
	resolver rules.Resolver

	providers map[string]Provider
	opts      Options
	logger    *slog.Logger

	stepping  atomic.Bool
	startedAt time.Time
}

// NewMatch takes ownership of state. Every snake in it needs a provider.
func NewMatch(state *game.GameState, providers map[string]Provider, resolver rules.Resolver, opts Options) (*Match, error) {
	if state == nil {
		return nil, errors.New("new match: nil state")
	}
	for i := range state.Snakes {
		if providers[state.Snakes[i].Id] == nil {
			return nil, fmt.Errorf("new match: snake %q: %w", state.Snakes[i].Id, ErrNoProvider)
		}
	}
	if opts.MoveTimeout <= 0 {
		opts.MoveTimeout = DefaultMoveTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Match{
		state:     state,
		resolver:  resolver,
		providers: providers,
		opts:      opts,
		logger:    logger.With("game_id", state.Id),
		startedAt: time.Now(),
	}, nil
}

// Snapshot returns a deep copy of the current state.
func (m *Match) Snapshot() *game.GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// SetLabel changes a snake's model tag.
func (m *Match) SetLabel(id, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return game.SetLabel(m.state, id, label)
}

// Eliminate removes a snake by operator decision. A move already in flight
// for it is discarded when the turn resolves.
func (m *Match) Eliminate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasAlive := false
	if s := m.state.SnakeByID(id); s != nil {
		wasAlive = s.IsAlive()
	}
	if err := game.Eliminate(m.state, id); err != nil {
		return err
	}
	if wasAlive {
		m.logger.Info("snake eliminated", "snake", id, "reason", game.ReasonManual, "turn", m.state.Turn)
	}
	return nil
}

// Step plays one turn. It returns a zero report once the game is over and
// ErrTurnInProgress if called concurrently. If ctx ends while moves are
// being gathered the turn is abandoned and the state is unchanged.
func (m *Match) Step(ctx context.Context) (rules.TurnReport, error) {
	if !m.stepping.CompareAndSwap(false, true) {
		return rules.TurnReport{}, ErrTurnInProgress
	}
	defer m.stepping.Store(false)

	before := m.Snapshot()
	if before.IsGameOver {
		return rules.TurnReport{}, nil
	}

	moves := m.gatherMoves(ctx, before)
	if err := ctx.Err(); err != nil {
		return rules.TurnReport{}, err
	}

	m.mu.Lock()
	report := m.resolver.Resolve(m.state, moves)
	after := m.state.Clone()
	m.mu.Unlock()

	for _, e := range report.Eliminations {
		m.logger.Info("snake eliminated", "snake", e.SnakeId, "reason", e.Reason, "turn", report.Turn)
	}
	if report.GameOver {
		m.logger.Info("game over", "turn", report.Turn, "winner", report.WinnerId)
	}

	m.publish(ctx, Turn{State: after, Report: report, Moves: moves})
	return report, nil
}

// Run plays until the game ends, MaxTurns is reached or ctx is done. The
// result is handed to every sink; sink errors are joined into the returned
// error alongside a valid result.
func (m *Match) Run(ctx context.Context) (Result, error) {
	start := m.Snapshot()
	m.logger.Info("game started", "snakes", len(start.Snakes), "width", start.Width, "height", start.Height)

	m.notifyProviders(ctx, start, func(p Provider) hook {
		if s, ok := p.(Starter); ok {
			return s.Start
		}
		return nil
	})
	m.publish(ctx, Turn{State: start})

	truncated := false
	for {
		snap := m.Snapshot()
		if snap.IsGameOver {
			break
		}
		if m.opts.MaxTurns > 0 && snap.Turn >= m.opts.MaxTurns {
			truncated = true
			m.logger.Info("turn limit reached", "turn", snap.Turn, "alive", snap.Living())
			break
		}

		if _, err := m.Step(ctx); err != nil {
			return Result{}, fmt.Errorf("turn %d: %w", snap.Turn+1, err)
		}

		if m.opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(m.opts.Delay):
			}
		}
	}

	final := m.Snapshot()
	m.notifyProviders(ctx, final, func(p Provider) hook {
		if e, ok := p.(Ender); ok {
			return e.End
		}
		return nil
	})

	result := Result{
		GameId:     final.Id,
		Turns:      final.Turn,
		WinnerId:   final.WinnerId,
		Truncated:  truncated,
		StartedAt:  m.startedAt,
		EndedAt:    time.Now(),
		Placements: Rank(final),
	}

	var errs []error
	for _, sink := range m.opts.Sinks {
		if err := sink.RecordResult(ctx, result); err != nil {
			m.logger.Error("record result failed", "err", err)
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

type slot struct {
	move game.Move
	err  error
}

// gatherMoves asks every living snake's provider concurrently. Each call
// gets its own deadline and its own copy of the state; failures become
// NoMove so the resolver eliminates the snake for timeout.
func (m *Match) gatherMoves(ctx context.Context, state *game.GameState) []game.Move {
	ids := make([]string, 0, len(state.Snakes))
	for i := range state.Snakes {
		if state.Snakes[i].IsAlive() {
			ids = append(ids, state.Snakes[i].Id)
		}
	}

	slots := make([]slot, len(ids))
	var g errgroup.Group
	if m.opts.Parallel > 0 {
		g.SetLimit(m.opts.Parallel)
	}
	for i, id := range ids {
		g.Go(func() error {
			slots[i] = m.askProvider(ctx, state.Clone(), id)
			return nil
		})
	}
	_ = g.Wait()

	moves := make([]game.Move, 0, len(slots))
	for _, s := range slots {
		if s.err != nil && ctx.Err() == nil {
			m.logger.Warn("move failed", "snake", s.move.SnakeId, "turn", state.Turn+1, "latency", s.move.Latency, "err", s.err)
		}
		moves = append(moves, s.move)
	}
	return moves
}

func (m *Match) askProvider(ctx context.Context, state *game.GameState, id string) slot {
	ctx, cancel := context.WithTimeout(ctx, m.opts.MoveTimeout)
	defer cancel()

	type answer struct {
		d   game.Decision
		err error
	}
	done := make(chan answer, 1)
	start := time.Now()
	go func() {
		d, err := callProvider(ctx, m.providers[id], state, id)
		done <- answer{d, err}
	}()

	var a answer
	select {
	case a = <-done:
	case <-ctx.Done():
		a.err = ctx.Err()
	}

	move := game.Move{SnakeId: id, Direction: a.d.Direction, Latency: time.Since(start), Reason: a.d.Reason}
	if a.err == nil && !a.d.Direction.Valid() {
		a.err = fmt.Errorf("%s: %w", a.d.Direction, game.ErrInvalidDirection)
	}
	if a.err != nil {
		move.Direction = game.NoMove
		move.Reason = a.err.Error()
		if move.Latency > m.opts.MoveTimeout {
			move.Latency = m.opts.MoveTimeout
		}
	}
	return slot{move: move, err: a.err}
}

func callProvider(ctx context.Context, p Provider, state *game.GameState, id string) (d game.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return p.Move(ctx, state, id)
}

type hook func(ctx context.Context, state *game.GameState, youID string) error

// notifyProviders runs the start or end hook for every snake in parallel,
// bounded by the move timeout. Failures are logged only.
func (m *Match) notifyProviders(ctx context.Context, state *game.GameState, pick func(Provider) hook) {
	var g errgroup.Group
	for i := range state.Snakes {
		id := state.Snakes[i].Id
		h := pick(m.providers[id])
		if h == nil {
			continue
		}
		g.Go(func() error {
			hctx, cancel := context.WithTimeout(ctx, m.opts.MoveTimeout)
			defer cancel()
			if err := h(hctx, state.Clone(), id); err != nil {
				m.logger.Debug("provider hook failed", "snake", id, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Match) publish(ctx context.Context, turn Turn) {
	for i, o := range m.opts.Observers {
		if i > 0 {
			turn.State = turn.State.Clone()
		}
		o.ObserveTurn(ctx, turn)
	}
}
