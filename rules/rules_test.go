package rules

import (
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/brensch/snekarena/game"
)

var noFood = FoodSettings{MinimumFood: 0, SpawnChance: 0}

func dumpState(state *game.GameState) string {
	if state == nil {
		return "<nil state>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Turn=%d Size=%dx%d Over=%v Winner=%q\n", state.Turn, state.Width, state.Height, state.IsGameOver, state.WinnerId)

	fmt.Fprintf(&b, "Food(%d):", len(state.Food))
	for _, f := range state.Food {
		fmt.Fprintf(&b, " (%d,%d)", f.X, f.Y)
	}
	b.WriteString("\n")

	snakes := make([]game.Snake, len(state.Snakes))
	copy(snakes, state.Snakes)
	sort.Slice(snakes, func(i, j int) bool { return snakes[i].Id < snakes[j].Id })
	for _, s := range snakes {
		fmt.Fprintf(&b, "Snake %s %s(%s) Health=%d Len=%d Body:", s.Id, s.Status, s.EliminationReason, s.Health, s.Length)
		for _, p := range s.Body {
			fmt.Fprintf(&b, " (%d,%d)", p.X, p.Y)
		}
		b.WriteString("\n")
	}

	w, h := int(state.Width), int(state.Height)
	if w > 0 && h > 0 && w <= 40 && h <= 40 {
		food := make(map[[2]int]bool, len(state.Food))
		for _, f := range state.Food {
			food[[2]int{int(f.X), int(f.Y)}] = true
		}
		cells := make(map[[2]int]byte, 64)
		for i, s := range state.Snakes {
			if !s.IsAlive() {
				continue
			}
			sym := byte('a' + i)
			for j, p := range s.Body {
				k := [2]int{int(p.X), int(p.Y)}
				if j == 0 {
					cells[k] = sym - 32
				} else if _, ok := cells[k]; !ok {
					cells[k] = sym
				}
			}
		}

		b.WriteString("Board:\n")
		for y := h - 1; y >= 0; y-- {
			for x := 0; x < w; x++ {
				k := [2]int{x, y}
				switch c, ok := cells[k]; {
				case ok:
					b.WriteByte(c)
				case food[k]:
					b.WriteByte('F')
				default:
					b.WriteByte('.')
				}
			}
			b.WriteByte('\n')
		}
	}

	return b.String()
}

func logResolve(t *testing.T, name string, before *game.GameState, moves []game.Move, after *game.GameState) {
	t.Helper()
	var mv strings.Builder
	mv.WriteString("Moves:")
	for _, m := range moves {
		fmt.Fprintf(&mv, " %s=%s", m.SnakeId, m.Direction)
	}
	mv.WriteByte('\n')
	t.Logf("=== %s ===\nBefore:\n%s%sAfter:\n%s", name, dumpState(before), mv.String(), dumpState(after))
}

// resolve clones before, resolves on the clone and logs both.
func resolve(t *testing.T, name string, before *game.GameState, moves []game.Move, settings FoodSettings) (*game.GameState, TurnReport) {
	t.Helper()
	after := before.Clone()
	report := Resolve(after, moves, nil, settings)
	logResolve(t, name, before, moves, after)
	return after, report
}

func snake(id string, health int32, body ...game.Point) game.Snake {
	return game.Snake{Id: id, Health: health, Body: body, Length: int32(len(body)), Status: game.Alive}
}

func pt(x, y int32) game.Point { return game.Point{X: x, Y: y} }

func mv(id string, d game.Direction) game.Move { return game.Move{SnakeId: id, Direction: d} }

func assertBody(t *testing.T, s *game.Snake, want ...game.Point) {
	t.Helper()
	if !reflect.DeepEqual(s.Body, want) {
		t.Fatalf("snake %s body=%v want=%v", s.Id, s.Body, want)
	}
}

func assertEliminated(t *testing.T, s *game.Snake, reason game.EliminationReason) {
	t.Helper()
	if s.Status != game.Eliminated || s.EliminationReason != reason || s.Health != 0 {
		t.Fatalf("snake %s status=%s reason=%q health=%d want eliminated %q health 0", s.Id, s.Status, s.EliminationReason, s.Health, reason)
	}
}

func assertAlive(t *testing.T, s *game.Snake) {
	t.Helper()
	if s.Status != game.Alive || s.EliminationReason != game.ReasonNone {
		t.Fatalf("snake %s status=%s reason=%q want alive", s.Id, s.Status, s.EliminationReason)
	}
}

func TestResolve_NormalMove_NoFood(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(3, 3), pt(3, 2), pt(3, 1)),
			snake("b", 50, pt(6, 6)),
		},
	}

	after, report := resolve(t, "normal move", before, []game.Move{mv("a", game.Up), mv("b", game.Left)}, noFood)

	a := after.SnakeByID("a")
	assertAlive(t, a)
	assertBody(t, a, pt(3, 4), pt(3, 3), pt(3, 2))
	if a.Health != 40 {
		t.Fatalf("health=%d want=40", a.Health)
	}
	if a.Length != 3 {
		t.Fatalf("length=%d want=3", a.Length)
	}
	if after.Turn != 1 || report.Turn != 1 {
		t.Fatalf("turn=%d report.turn=%d want 1", after.Turn, report.Turn)
	}
	if len(report.Eliminations) != 0 || report.GameOver {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestResolve_EatFood_Grows(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 30, pt(3, 3), pt(3, 2), pt(3, 1)),
			snake("b", 50, pt(6, 6)),
		},
		Food: []game.Point{pt(3, 4)},
	}

	after, report := resolve(t, "eat food", before, []game.Move{mv("a", game.Up), mv("b", game.Left)}, noFood)

	a := after.SnakeByID("a")
	assertBody(t, a, pt(3, 4), pt(3, 3), pt(3, 2), pt(3, 1))
	if a.Health != game.MaxHealth {
		t.Fatalf("health=%d want=%d", a.Health, game.MaxHealth)
	}
	if a.Length != 4 {
		t.Fatalf("length=%d want=4", a.Length)
	}
	if len(after.Food) != 0 {
		t.Fatalf("food=%v want none", after.Food)
	}
	if !reflect.DeepEqual(report.Eaten, []game.Point{pt(3, 4)}) {
		t.Fatalf("eaten=%v", report.Eaten)
	}
}

func TestResolve_SingleCellSnakeGrows(t *testing.T) {
	before := &game.GameState{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{snake("a", 100, pt(1, 1)), snake("b", 100, pt(3, 3))},
		Food:   []game.Point{pt(1, 2)},
	}

	after, _ := resolve(t, "single cell eats", before, []game.Move{mv("a", game.Up), mv("b", game.Down)}, noFood)

	assertBody(t, after.SnakeByID("a"), pt(1, 2), pt(1, 1))
	assertBody(t, after.SnakeByID("b"), pt(3, 2))
}

func TestResolve_HealthDecaysTenPerTurn(t *testing.T) {
	state := &game.GameState{
		Width:  11,
		Height: 11,
		Snakes: []game.Snake{snake("a", 100, pt(0, 0)), snake("b", 100, pt(10, 10))},
	}

	for i := 0; i < 3; i++ {
		Resolve(state, []game.Move{mv("a", game.Up), mv("b", game.Down)}, nil, noFood)
	}
	for _, s := range state.Snakes {
		if s.Health != 70 {
			t.Fatalf("snake %s health=%d want=70", s.Id, s.Health)
		}
	}
}

func TestResolve_Starvation_CommitsMoveThenDies(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 10, pt(3, 3), pt(3, 2)),
			snake("b", 50, pt(6, 6)),
		},
	}

	after, report := resolve(t, "starvation", before, []game.Move{mv("a", game.Up), mv("b", game.Left)}, noFood)

	a := after.SnakeByID("a")
	assertEliminated(t, a, game.ReasonStarvation)
	assertBody(t, a, pt(3, 4), pt(3, 3))
	if a.EliminatedTurn != 1 {
		t.Fatalf("eliminated turn=%d want=1", a.EliminatedTurn)
	}
	if !report.GameOver || report.WinnerId != "b" {
		t.Fatalf("report=%+v want game over, winner b", report)
	}
}

func TestResolve_EatingAtLowHealthSaves(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 10, pt(3, 3)),
			snake("b", 50, pt(6, 6)),
		},
		Food: []game.Point{pt(3, 4)},
	}

	after, _ := resolve(t, "eat at low health", before, []game.Move{mv("a", game.Up), mv("b", game.Left)}, noFood)

	a := after.SnakeByID("a")
	assertAlive(t, a)
	if a.Health != game.MaxHealth {
		t.Fatalf("health=%d want=%d", a.Health, game.MaxHealth)
	}
}

func TestResolve_OutOfBounds_KeepsPreTurnBody(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(0, 3), pt(1, 3)),
			snake("b", 50, pt(5, 5), pt(5, 4)),
			snake("c", 50, pt(3, 0)),
		},
		Food: []game.Point{pt(6, 0)},
	}

	after, report := resolve(t, "out of bounds", before, []game.Move{mv("a", game.Left), mv("b", game.Up), mv("c", game.Down)}, noFood)

	a := after.SnakeByID("a")
	assertEliminated(t, a, game.ReasonOutOfBounds)
	assertBody(t, a, pt(0, 3), pt(1, 3))
	assertEliminated(t, after.SnakeByID("c"), game.ReasonOutOfBounds)

	b := after.SnakeByID("b")
	assertAlive(t, b)
	assertBody(t, b, pt(5, 6), pt(5, 5))
	if !reflect.DeepEqual(after.Food, []game.Point{pt(6, 0)}) {
		t.Fatalf("food changed: %v", after.Food)
	}
	if len(report.Eliminations) != 2 {
		t.Fatalf("eliminations=%v want 2", report.Eliminations)
	}
}

func TestResolve_SelfCollision(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 2), pt(2, 3), pt(3, 3), pt(3, 2), pt(3, 1)),
			snake("b", 50, pt(6, 6)),
		},
	}

	after, _ := resolve(t, "self collision", before, []game.Move{mv("a", game.Right), mv("b", game.Left)}, noFood)

	a := after.SnakeByID("a")
	assertEliminated(t, a, game.ReasonSelfCollision)
	assertBody(t, a, pt(2, 2), pt(2, 3), pt(3, 3), pt(3, 2), pt(3, 1))
}

func TestResolve_ChasingOwnTailIsSafe(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 2), pt(2, 3), pt(3, 3), pt(3, 2)),
			snake("b", 50, pt(6, 6)),
		},
	}

	after, _ := resolve(t, "tail chase", before, []game.Move{mv("a", game.Right), mv("b", game.Left)}, noFood)

	a := after.SnakeByID("a")
	assertAlive(t, a)
	assertBody(t, a, pt(3, 2), pt(2, 2), pt(2, 3), pt(3, 3))
}

func TestResolve_BodyCollision(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 2), pt(2, 1)),
			snake("b", 50, pt(1, 3), pt(2, 3), pt(3, 3)),
		},
	}

	after, report := resolve(t, "body collision", before, []game.Move{mv("a", game.Up), mv("b", game.Left)}, noFood)

	a := after.SnakeByID("a")
	assertEliminated(t, a, game.ReasonBodyCollision)
	assertBody(t, a, pt(2, 2), pt(2, 1))

	b := after.SnakeByID("b")
	assertAlive(t, b)
	assertBody(t, b, pt(0, 3), pt(1, 3), pt(2, 3))
	if report.WinnerId != "b" {
		t.Fatalf("winner=%q want b", report.WinnerId)
	}
}

func TestResolve_BodyCollision_VacatedTailIsSafe(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 2), pt(2, 1)),
			snake("b", 50, pt(4, 3), pt(3, 3), pt(2, 3)),
		},
	}

	after, _ := resolve(t, "vacated tail", before, []game.Move{mv("a", game.Up), mv("b", game.Right)}, noFood)

	assertAlive(t, after.SnakeByID("a"))
	assertBody(t, after.SnakeByID("a"), pt(2, 3), pt(2, 2))
}

func TestResolve_BodyCollision_WithSnakeEliminatedSameTurn(t *testing.T) {
	// b leaves the board this turn but its projected body still blocks a.
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 2), pt(2, 1)),
			snake("b", 50, pt(0, 3), pt(1, 3), pt(2, 3), pt(3, 3), pt(4, 3)),
			snake("c", 50, pt(6, 6)),
		},
	}

	after, _ := resolve(t, "collide with dying snake", before, []game.Move{mv("a", game.Up), mv("b", game.Left), mv("c", game.Down)}, noFood)

	assertEliminated(t, after.SnakeByID("a"), game.ReasonBodyCollision)
	assertEliminated(t, after.SnakeByID("b"), game.ReasonOutOfBounds)
	assertAlive(t, after.SnakeByID("c"))
}

func TestResolve_DeadBodiesAreNotObstacles(t *testing.T) {
	dead := snake("dead", 0, pt(2, 3), pt(3, 3))
	dead.Status = game.Eliminated
	dead.EliminationReason = game.ReasonTimeout
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 2)),
			snake("b", 50, pt(6, 6)),
			dead,
		},
	}

	after, _ := resolve(t, "through dead body", before, []game.Move{mv("a", game.Up), mv("b", game.Down)}, noFood)

	assertAlive(t, after.SnakeByID("a"))
	d := after.SnakeByID("dead")
	if d.EliminationReason != game.ReasonTimeout {
		t.Fatalf("dead snake reason rewritten to %q", d.EliminationReason)
	}
	assertBody(t, d, pt(2, 3), pt(3, 3))
}

func TestResolve_HeadToHead_TieKillsBoth(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 3), pt(1, 3)),
			snake("b", 50, pt(4, 3), pt(5, 3)),
		},
	}

	after, report := resolve(t, "head to head tie", before, []game.Move{mv("a", game.Right), mv("b", game.Left)}, noFood)

	a, b := after.SnakeByID("a"), after.SnakeByID("b")
	assertEliminated(t, a, game.ReasonHeadToHead)
	assertEliminated(t, b, game.ReasonHeadToHead)
	assertBody(t, a, pt(2, 3), pt(1, 3))
	assertBody(t, b, pt(4, 3), pt(5, 3))

	if !after.IsGameOver || after.WinnerId != "" {
		t.Fatalf("over=%v winner=%q want over, no winner", after.IsGameOver, after.WinnerId)
	}
	if !report.GameOver || report.WinnerId != "" {
		t.Fatalf("report=%+v", report)
	}
}

func TestResolve_HeadToHead_LongerWins(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 3), pt(1, 3), pt(0, 3)),
			snake("b", 50, pt(4, 3), pt(5, 3)),
		},
	}

	after, _ := resolve(t, "head to head longer wins", before, []game.Move{mv("a", game.Right), mv("b", game.Left)}, noFood)

	a := after.SnakeByID("a")
	assertAlive(t, a)
	assertBody(t, a, pt(3, 3), pt(2, 3), pt(1, 3))
	assertEliminated(t, after.SnakeByID("b"), game.ReasonHeadToHead)
	if after.WinnerId != "a" {
		t.Fatalf("winner=%q want a", after.WinnerId)
	}
}

func TestResolve_HeadToHead_ThreeWay(t *testing.T) {
	t.Run("tie at max kills all tied", func(t *testing.T) {
		before := &game.GameState{
			Width:  7,
			Height: 7,
			Snakes: []game.Snake{
				snake("a", 50, pt(2, 3), pt(1, 3)),
				snake("b", 50, pt(4, 3), pt(5, 3)),
				snake("c", 50, pt(3, 4), pt(3, 5)),
				snake("d", 50, pt(6, 0)),
			},
		}
		moves := []game.Move{mv("a", game.Right), mv("b", game.Left), mv("c", game.Down), mv("d", game.Up)}
		after, _ := resolve(t, "three way tie", before, moves, noFood)

		for _, id := range []string{"a", "b", "c"} {
			assertEliminated(t, after.SnakeByID(id), game.ReasonHeadToHead)
		}
		if after.WinnerId != "d" {
			t.Fatalf("winner=%q want d", after.WinnerId)
		}
	})

	t.Run("single longest survives", func(t *testing.T) {
		before := &game.GameState{
			Width:  7,
			Height: 7,
			Snakes: []game.Snake{
				snake("a", 50, pt(2, 3), pt(1, 3)),
				snake("b", 50, pt(4, 3), pt(5, 3)),
				snake("c", 50, pt(3, 4), pt(3, 5), pt(3, 6)),
			},
		}
		moves := []game.Move{mv("a", game.Right), mv("b", game.Left), mv("c", game.Down)}
		after, _ := resolve(t, "three way longest", before, moves, noFood)

		assertEliminated(t, after.SnakeByID("a"), game.ReasonHeadToHead)
		assertEliminated(t, after.SnakeByID("b"), game.ReasonHeadToHead)
		assertAlive(t, after.SnakeByID("c"))
		assertBody(t, after.SnakeByID("c"), pt(3, 3), pt(3, 4), pt(3, 5))
	})

	t.Run("two longest tie beats shorter", func(t *testing.T) {
		before := &game.GameState{
			Width:  7,
			Height: 7,
			Snakes: []game.Snake{
				snake("a", 50, pt(2, 3), pt(1, 3), pt(0, 3)),
				snake("b", 50, pt(4, 3), pt(5, 3), pt(6, 3)),
				snake("c", 50, pt(3, 4), pt(3, 5)),
			},
		}
		moves := []game.Move{mv("a", game.Right), mv("b", game.Left), mv("c", game.Down)}
		after, _ := resolve(t, "three way two longest", before, moves, noFood)

		for _, id := range []string{"a", "b", "c"} {
			assertEliminated(t, after.SnakeByID(id), game.ReasonHeadToHead)
		}
		if !after.IsGameOver || after.WinnerId != "" {
			t.Fatalf("over=%v winner=%q", after.IsGameOver, after.WinnerId)
		}
	})
}

func TestResolve_HeadToHeadOnFood(t *testing.T) {
	// Duplicate food on the contested cell: the winner eats one copy.
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 3), pt(1, 3), pt(0, 3)),
			snake("b", 50, pt(4, 3), pt(5, 3)),
			snake("c", 50, pt(6, 6)),
		},
		Food: []game.Point{pt(3, 3), pt(3, 3), pt(0, 0)},
	}

	after, _ := resolve(t, "head to head on food", before, []game.Move{mv("a", game.Right), mv("b", game.Left), mv("c", game.Down)}, noFood)

	a := after.SnakeByID("a")
	assertAlive(t, a)
	assertBody(t, a, pt(3, 3), pt(2, 3), pt(1, 3), pt(0, 3))
	if a.Health != game.MaxHealth || a.Length != 4 {
		t.Fatalf("a health=%d length=%d", a.Health, a.Length)
	}
	assertEliminated(t, after.SnakeByID("b"), game.ReasonHeadToHead)
	if !reflect.DeepEqual(after.Food, []game.Point{pt(3, 3), pt(0, 0)}) {
		t.Fatalf("food=%v want one copy of (3,3) left plus (0,0)", after.Food)
	}
}

func TestResolve_FoodUnderCollisionDeathStays(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 3), pt(1, 3)),
			snake("b", 50, pt(4, 3), pt(5, 3)),
			snake("c", 50, pt(6, 6)),
		},
		Food: []game.Point{pt(3, 3)},
	}

	after, report := resolve(t, "tie on food", before, []game.Move{mv("a", game.Right), mv("b", game.Left), mv("c", game.Down)}, noFood)

	if !reflect.DeepEqual(after.Food, []game.Point{pt(3, 3)}) {
		t.Fatalf("food=%v want (3,3) untouched", after.Food)
	}
	if len(report.Eaten) != 0 {
		t.Fatalf("eaten=%v", report.Eaten)
	}
}

func TestResolve_MissingMoveIsTimeout(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 50, pt(2, 2), pt(2, 1)),
			snake("b", 50, pt(5, 5)),
			snake("c", 50, pt(0, 6)),
		},
	}

	moves := []game.Move{mv("b", game.Up), mv("c", game.Right), mv("ghost", game.Up)}
	after, report := resolve(t, "timeout", before, moves, noFood)

	a := after.SnakeByID("a")
	assertEliminated(t, a, game.ReasonTimeout)
	assertBody(t, a, pt(2, 2), pt(2, 1))
	if len(report.Eliminations) != 1 || report.Eliminations[0] != (Elimination{SnakeId: "a", Reason: game.ReasonTimeout}) {
		t.Fatalf("eliminations=%v", report.Eliminations)
	}
	if after.IsGameOver {
		t.Fatalf("game over with two alive")
	}
}

func TestResolve_InvalidDirectionIsTimeout(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{snake("a", 50, pt(2, 2)), snake("b", 50, pt(5, 5)), snake("c", 50, pt(0, 6))},
	}

	moves := []game.Move{{SnakeId: "a", Direction: game.Direction(9)}, mv("b", game.Up), mv("c", game.Right)}
	after, _ := resolve(t, "invalid direction", before, moves, noFood)

	assertEliminated(t, after.SnakeByID("a"), game.ReasonTimeout)
}

func TestResolve_FirstMovePerSnakeWins(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{snake("a", 50, pt(2, 2)), snake("b", 50, pt(5, 5))},
	}

	after, _ := resolve(t, "duplicate moves", before, []game.Move{mv("a", game.Up), mv("a", game.Down), mv("b", game.Up)}, noFood)

	assertBody(t, after.SnakeByID("a"), pt(2, 3))
}

func TestResolve_LatencyHistory(t *testing.T) {
	out := snake("out", 0, pt(6, 6))
	out.Status = game.Eliminated
	out.EliminationReason = game.ReasonOutOfBounds
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{snake("a", 50, pt(2, 2)), snake("b", 50, pt(5, 5)), out},
	}

	moves := []game.Move{
		{SnakeId: "a", Direction: game.Up, Latency: 12 * time.Millisecond},
		{SnakeId: "b", Direction: game.Up},
		{SnakeId: "out", Direction: game.Up, Latency: 40 * time.Millisecond},
	}
	after, _ := resolve(t, "latency", before, moves, noFood)

	if got := after.SnakeByID("a").Latencies; !reflect.DeepEqual(got, []time.Duration{12 * time.Millisecond}) {
		t.Fatalf("a latencies=%v", got)
	}
	if got := after.SnakeByID("b").Latencies; len(got) != 0 {
		t.Fatalf("b latencies=%v want none", got)
	}
	o := after.SnakeByID("out")
	if !reflect.DeepEqual(o.Latencies, []time.Duration{40 * time.Millisecond}) {
		t.Fatalf("eliminated snake latencies=%v", o.Latencies)
	}
	assertBody(t, o, pt(6, 6))
	if o.EliminationReason != game.ReasonOutOfBounds {
		t.Fatalf("eliminated snake reason=%q", o.EliminationReason)
	}
}

func TestResolve_NoOpWhenGameOver(t *testing.T) {
	before := &game.GameState{
		Width:      7,
		Height:     7,
		Turn:       12,
		Snakes:     []game.Snake{snake("a", 50, pt(2, 2)), snake("b", 0, pt(5, 5))},
		IsGameOver: true,
		WinnerId:   "a",
	}
	before.Snakes[1].Status = game.Eliminated

	after := before.Clone()
	report := Resolve(after, []game.Move{mv("a", game.Up)}, rand.New(rand.NewSource(1)), FoodSettings{MinimumFood: 5, SpawnChance: 1})

	if !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed:\nbefore=%s\nafter=%s", dumpState(before), dumpState(after))
	}
	if !reflect.DeepEqual(report, TurnReport{}) {
		t.Fatalf("report=%+v want zero", report)
	}
}

func TestResolve_DeterministicGivenMoves(t *testing.T) {
	base := &game.GameState{
		Width:  11,
		Height: 11,
		Snakes: []game.Snake{
			snake("a", 80, pt(1, 1), pt(1, 0)),
			snake("b", 80, pt(9, 9), pt(9, 10)),
			snake("c", 80, pt(5, 5)),
		},
		Food: []game.Point{pt(1, 2)},
	}
	moves := []game.Move{mv("a", game.Up), mv("b", game.Down), mv("c", game.Left)}
	settings := FoodSettings{MinimumFood: 3, SpawnChance: 0.5}

	s1, s2 := base.Clone(), base.Clone()
	r1 := Resolve(s1, moves, nil, settings)
	r2 := Resolve(s2, moves, nil, settings)
	if !reflect.DeepEqual(s1, s2) || !reflect.DeepEqual(r1, r2) {
		t.Fatalf("nil rng not deterministic:\n%s\n%s", dumpState(s1), dumpState(s2))
	}

	s3, s4 := base.Clone(), base.Clone()
	Resolve(s3, moves, rand.New(rand.NewSource(7)), settings)
	Resolve(s4, moves, rand.New(rand.NewSource(7)), settings)
	if !reflect.DeepEqual(s3, s4) {
		t.Fatalf("seeded rng not deterministic:\n%s\n%s", dumpState(s3), dumpState(s4))
	}
}

func TestResolve_FourPlayersDownToOneWinner(t *testing.T) {
	state := game.NewState("scripted", game.Config{Width: 11, Height: 11, InitialHealth: 100}, []game.Player{
		{Id: "a"}, {Id: "b"}, {Id: "c"}, {Id: "d"},
	})

	turn1 := []game.Move{mv("a", game.Left), mv("b", game.Right), mv("c", game.Up), mv("d", game.Right)}
	r1 := Resolve(state, turn1, nil, noFood)
	t.Logf("after turn 1:\n%s", dumpState(state))
	if r1.GameOver || state.Living() != 4 {
		t.Fatalf("turn 1: over=%v living=%d", r1.GameOver, state.Living())
	}

	turn2 := []game.Move{mv("a", game.Left), mv("b", game.Right), mv("c", game.Up), mv("d", game.Up)}
	r2 := Resolve(state, turn2, nil, noFood)
	t.Logf("after turn 2:\n%s", dumpState(state))

	if !state.IsGameOver || state.WinnerId != "d" {
		t.Fatalf("over=%v winner=%q want d", state.IsGameOver, state.WinnerId)
	}
	if !r2.GameOver || r2.WinnerId != "d" || len(r2.Eliminations) != 3 {
		t.Fatalf("report=%+v", r2)
	}
	for _, id := range []string{"a", "b", "c"} {
		assertEliminated(t, state.SnakeByID(id), game.ReasonOutOfBounds)
	}

	// Further turns do nothing.
	Resolve(state, []game.Move{mv("d", game.Down)}, nil, noFood)
	if state.Turn != 2 {
		t.Fatalf("turn advanced after game over: %d", state.Turn)
	}
}

func TestResolve_LastTwoCollideHeadOn(t *testing.T) {
	state := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			snake("a", 100, pt(2, 3)),
			snake("b", 100, pt(4, 3)),
		},
	}
	done := snake("c", 0, pt(6, 6))
	done.Status = game.Eliminated
	done.EliminationReason = game.ReasonStarvation
	state.Snakes = append(state.Snakes, done)

	Resolve(state, []game.Move{mv("a", game.Right), mv("b", game.Left)}, nil, noFood)
	t.Logf("after:\n%s", dumpState(state))

	if !state.IsGameOver || state.WinnerId != "" {
		t.Fatalf("over=%v winner=%q want over, no winner", state.IsGameOver, state.WinnerId)
	}
}

func TestResolve_MinimumFoodAfterEveryTurn(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	settings := FoodSettings{MinimumFood: 3, SpawnChance: 0.15}
	state := NewGame(game.Config{Width: 7, Height: 7, InitialHealth: 100, MinimumFood: 3}, []game.Player{{Id: "a"}, {Id: "b"}}, rng)
	if len(state.Food) != 3 {
		t.Fatalf("initial food=%d want=3", len(state.Food))
	}

	// Both snakes circle in place, eating whatever lands in their path.
	pattern := []game.Direction{game.Up, game.Right, game.Down, game.Left}
	for i := 0; i < 8 && !state.IsGameOver; i++ {
		d := pattern[i%len(pattern)]
		Resolve(state, []game.Move{mv("a", d), mv("b", d)}, rng, settings)
		if len(state.Food) < settings.MinimumFood {
			t.Fatalf("turn %d: food=%d want>=%d\n%s", state.Turn, len(state.Food), settings.MinimumFood, dumpState(state))
		}
	}
}
