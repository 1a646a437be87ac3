package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snekarena/arena"
)

type TurnMsg arena.Turn

type ResultMsg arena.Result

// Feed connects a running match to the viewer. It is both an arena.Observer
// and an arena.ResultSink.
type Feed struct {
	updates chan tea.Msg
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 16
	}
	return &Feed{updates: make(chan tea.Msg, buffer)}
}

// ObserveTurn never blocks: if the viewer is behind, the turn is skipped and
// the next one catches it up.
func (f *Feed) ObserveTurn(_ context.Context, turn arena.Turn) {
	select {
	case f.updates <- TurnMsg(turn):
	default:
	}
}

// RecordResult waits for the viewer so the game log stays complete.
func (f *Feed) RecordResult(ctx context.Context, result arena.Result) error {
	select {
	case f.updates <- ResultMsg(result):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the feed. The model stops listening once the buffer drains.
func (f *Feed) Close() {
	close(f.updates)
}

func (f *Feed) Updates() <-chan tea.Msg {
	return f.updates
}
