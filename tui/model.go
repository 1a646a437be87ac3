// Package tui is a terminal viewer for arena matches.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/snekarena/arena"
	"github.com/brensch/snekarena/game"
)

const maxEvents = 10

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	foodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87"))
	emptyStyle  = lipgloss.NewStyle().Faint(true)
	deadStyle   = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	boardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	panelStyle  = lipgloss.NewStyle().PaddingLeft(2)
)

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForUpdate(updates <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return nil
		}
		return msg
	}
}

type Model struct {
	updates   <-chan tea.Msg
	startTime time.Time
	now       time.Time

	state *game.GameState
	moves []game.Move

	gamesPlayed int
	turnsPlayed int64
	wins        map[string]int
	events      []string
}

func New(updates <-chan tea.Msg) Model {
	now := time.Now()
	return Model{
		updates:   updates,
		startTime: now,
		now:       now,
		wins:      make(map[string]int),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case TurnMsg:
		m.state = msg.State
		m.moves = msg.Moves
		if msg.State != nil && msg.State.Turn > 0 {
			m.turnsPlayed++
		}
		for _, e := range msg.Report.Eliminations {
			m.logEvent(fmt.Sprintf("turn %d: %s out (%s)", msg.Report.Turn, m.nameOf(e.SnakeId), e.Reason))
		}
		return m, waitForUpdate(m.updates)
	case ResultMsg:
		m.gamesPlayed++
		if msg.WinnerId != "" {
			winner := m.nameOf(msg.WinnerId)
			m.wins[winner]++
			m.logEvent(fmt.Sprintf("game %s: %s wins after %d turns", shortID(msg.GameId), winner, msg.Turns))
		} else if msg.Truncated {
			m.logEvent(fmt.Sprintf("game %s: turn limit at %d", shortID(msg.GameId), msg.Turns))
		} else {
			m.logEvent(fmt.Sprintf("game %s: draw after %d turns", shortID(msg.GameId), msg.Turns))
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m *Model) logEvent(s string) {
	m.events = append([]string{s}, m.events...)
	if len(m.events) > maxEvents {
		m.events = m.events[:maxEvents]
	}
}

func (m Model) nameOf(id string) string {
	if m.state != nil {
		if s := m.state.SnakeByID(id); s != nil && s.Name != "" {
			return s.Name
		}
	}
	return id
}

func (m Model) View() string {
	var b strings.Builder

	duration := m.now.Sub(m.startTime)
	turnsPerSec := 0.0
	if duration.Seconds() >= 1 {
		turnsPerSec = float64(m.turnsPlayed) / duration.Seconds()
	}

	if m.state == nil {
		b.WriteString(titleStyle.Render("Waiting for the first game..."))
		b.WriteString("\n\n")
	} else {
		title := fmt.Sprintf("Game %s  turn %d", shortID(m.state.Id), m.state.Turn)
		if m.state.IsGameOver {
			title += "  (over)"
		}
		b.WriteString(titleStyle.Render(title))
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			boardStyle.Render(renderBoard(m.state)),
			panelStyle.Render(renderSnakes(m.state, m.moves)),
		))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Games Played: %d\n", m.gamesPlayed)
	fmt.Fprintf(&b, "Turns/Sec:    %.1f\n", turnsPerSec)
	fmt.Fprintf(&b, "Duration:     %s\n", duration.Round(time.Second))
	if len(m.wins) > 0 {
		b.WriteString("Wins:         " + formatWins(m.wins) + "\n")
	}

	b.WriteString("\nRecent Events:\n")
	for _, e := range m.events {
		b.WriteString(e + "\n")
	}

	b.WriteString("\nPress q to quit.\n")
	return b.String()
}

// renderBoard draws the board top row first, since y grows upwards.
func renderBoard(state *game.GameState) string {
	type cell struct {
		glyph string
		style lipgloss.Style
	}
	cells := make(map[game.Point]cell)
	for _, f := range state.Food {
		cells[f] = cell{"*", foodStyle}
	}
	for i := range state.Snakes {
		s := &state.Snakes[i]
		if !s.IsAlive() || len(s.Body) == 0 {
			continue
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color))
		for j := len(s.Body) - 1; j >= 0; j-- {
			glyph := "o"
			if j == 0 {
				glyph = headGlyph(s)
			}
			cells[s.Body[j]] = cell{glyph, style}
		}
	}

	var b strings.Builder
	for y := state.Height - 1; y >= 0; y-- {
		for x := int32(0); x < state.Width; x++ {
			if x > 0 {
				b.WriteString(" ")
			}
			c, ok := cells[game.Point{X: x, Y: y}]
			if !ok {
				b.WriteString(emptyStyle.Render("."))
				continue
			}
			b.WriteString(c.style.Render(c.glyph))
		}
		if y > 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// headGlyph is the first letter of the snake's name, upper-cased.
func headGlyph(s *game.Snake) string {
	name := s.Name
	if name == "" {
		name = s.Id
	}
	if name == "" {
		return "@"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}

func renderSnakes(state *game.GameState, moves []game.Move) string {
	last := make(map[string]game.Direction, len(moves))
	for _, mv := range moves {
		if _, ok := last[mv.SnakeId]; !ok {
			last[mv.SnakeId] = mv.Direction
		}
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %6s %6s %-6s %s", "snake", "length", "health", "move", "status")))
	for i := range state.Snakes {
		s := &state.Snakes[i]
		move := "-"
		if d, ok := last[s.Id]; ok {
			move = d.String()
		}
		status := s.Status.String()
		if !s.IsAlive() {
			status = fmt.Sprintf("%s t%d", s.EliminationReason, s.EliminatedTurn)
		} else if s.Id == state.WinnerId {
			status = "winner"
		}
		row := fmt.Sprintf("%-12s %6d %6d %-6s %s", truncate(s.Name, 12), s.Length, s.Health, move, status)
		b.WriteString("\n")
		if s.IsAlive() {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render(row))
		} else {
			b.WriteString(deadStyle.Render(row))
		}
	}
	return b.String()
}

func formatWins(wins map[string]int) string {
	names := make([]string, 0, len(wins))
	for n := range wins {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if wins[names[i]] != wins[names[j]] {
			return wins[names[i]] > wins[names[j]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s %d", n, wins[n])
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Compile-time checks that Feed plugs into a match.
var (
	_ arena.Observer   = (*Feed)(nil)
	_ arena.ResultSink = (*Feed)(nil)
)
