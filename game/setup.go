package game

// Config holds the per-game knobs fixed at creation time.
type Config struct {
	Width         int32
	Height        int32
	InitialHealth int32
	// FoodSpawnChance is the probability (0..1) of one extra food per turn.
	FoodSpawnChance float64
	MinimumFood     int
}

// DefaultConfig matches a standard 11x11 Battlesnake board.
var DefaultConfig = Config{
	Width:           11,
	Height:          11,
	InitialHealth:   MaxHealth,
	FoodSpawnChance: 0.15,
	MinimumFood:     1,
}

type Player struct {
	Id       string
	Name     string
	ModelTag string
}

// Palette is cycled by player index.
var Palette = []string{
	"#e74c3c", "#3498db", "#2ecc71", "#f39c12",
	"#9b59b6", "#1abc9c", "#e67e22", "#e91e63",
}

// StartPositions returns the corner layout for a width x height board.
func StartPositions(width, height int32) []Point {
	return []Point{
		{X: 1, Y: 1},
		{X: width - 2, Y: 1},
		{X: 1, Y: height - 2},
		{X: width - 2, Y: height - 2},
	}
}

// NewState places one single-cell snake per player. Players beyond the
// fourth reuse corners in order, so their heads can overlap.
// Food is left empty; rules.NewGame seeds it.
func NewState(id string, cfg Config, players []Player) *GameState {
	state := &GameState{
		Id:     id,
		Width:  cfg.Width,
		Height: cfg.Height,
		Snakes: make([]Snake, 0, len(players)),
	}

	starts := StartPositions(cfg.Width, cfg.Height)
	for i, p := range players {
		state.Snakes = append(state.Snakes, Snake{
			Id:       p.Id,
			Name:     p.Name,
			ModelTag: p.ModelTag,
			Color:    Palette[i%len(Palette)],
			Body:     []Point{starts[i%len(starts)]},
			Health:   cfg.InitialHealth,
			Length:   1,
			Status:   Alive,
		})
	}
	return state
}
