// Package config parses command-line flags for the arena binaries. Every flag
// takes its default from an environment variable, and a .env file (ENV_FILE,
// default ".env") is read first when present.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/brensch/snekarena/game"
)

// Builtin is the provider target that selects the in-process bot.
const Builtin = "builtin"

var ErrInvalid = errors.New("invalid config")

// SnakeSpec names one competitor and where its moves come from: Builtin or a
// Battlesnake server base URL.
type SnakeSpec struct {
	Name   string
	Target string
}

func (s SnakeSpec) IsBuiltin() bool { return s.Target == Builtin }

func (s SnakeSpec) String() string { return s.Name + "=" + s.Target }

// ParseSnakeSpec parses "name=target". A bare name means builtin.
func ParseSnakeSpec(s string) (SnakeSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SnakeSpec{}, fmt.Errorf("%w: empty snake", ErrInvalid)
	}
	name, target, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	target = strings.TrimSpace(target)
	if !ok {
		target = Builtin
	}
	if name == "" || target == "" {
		return SnakeSpec{}, fmt.Errorf("%w: snake %q must be name=url or name=builtin", ErrInvalid, s)
	}
	if target != Builtin && !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return SnakeSpec{}, fmt.Errorf("%w: snake %q target must be a http(s) URL or builtin", ErrInvalid, s)
	}
	return SnakeSpec{Name: name, Target: target}, nil
}

// snakeList is a repeatable -snake flag; also accepts comma-separated lists.
type snakeList struct {
	specs []SnakeSpec
	set   bool
}

func (l *snakeList) String() string {
	parts := make([]string, len(l.specs))
	for i, s := range l.specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

func (l *snakeList) Set(v string) error {
	// The first explicit flag replaces the env default.
	if !l.set {
		l.specs = nil
		l.set = true
	}
	for _, part := range strings.Split(v, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		spec, err := ParseSnakeSpec(part)
		if err != nil {
			return err
		}
		l.specs = append(l.specs, spec)
	}
	return nil
}

// Log selects the slog output.
type Log struct {
	Format string
	Level  string
}

// Arena configures cmd/arena.
type Arena struct {
	Game game.Config

	Snakes      []SnakeSpec
	Games       int
	MaxTurns    int
	MoveTimeout time.Duration
	Delay       time.Duration
	Parallel    int
	Seed        int64

	OutDir       string
	FlushGames   int
	SpectateAddr string
	TUI          bool

	Log Log
}

// Snake configures cmd/snake.
type Snake struct {
	Addr        string
	MoveTimeout time.Duration
	Seed        int64
	Author      string
	Color       string
	Log         Log
}

// Standings configures cmd/standings.
type Standings struct {
	Dirs []string
	Top  int
	EloK float64

	// ServeAddr switches from printing once to serving the JSON API.
	ServeAddr string
	Refresh   time.Duration

	Log Log
}

func newFlagSet(name string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	return fs
}

func loadEnvFile() error {
	return LoadDotEnv(getEnvOrDefault("ENV_FILE", ".env"))
}

func logFlags(fs *flag.FlagSet, l *Log) {
	fs.StringVar(&l.Format, "log-format", getEnvOrDefault("LOG_FORMAT", "pretty"), "Log format: pretty, json or text")
	fs.StringVar(&l.Level, "log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level: debug, info, warn or error")
}

// LoadArena parses args (without the program name) for cmd/arena.
func LoadArena(args []string, output io.Writer) (Arena, error) {
	if err := loadEnvFile(); err != nil {
		return Arena{}, err
	}

	var cfg Arena
	fs := newFlagSet("arena", output)

	width := fs.Int("width", getEnvIntOrDefault("BOARD_WIDTH", int(game.DefaultConfig.Width)), "Board width")
	height := fs.Int("height", getEnvIntOrDefault("BOARD_HEIGHT", int(game.DefaultConfig.Height)), "Board height")
	health := fs.Int("health", getEnvIntOrDefault("INITIAL_HEALTH", int(game.DefaultConfig.InitialHealth)), "Starting health (1-100)")
	fs.Float64Var(&cfg.Game.FoodSpawnChance, "food-chance", getEnvFloatOrDefault("FOOD_SPAWN_CHANCE", game.DefaultConfig.FoodSpawnChance), "Probability (0-1) of one extra food per turn")
	fs.IntVar(&cfg.Game.MinimumFood, "min-food", getEnvIntOrDefault("MINIMUM_FOOD", game.DefaultConfig.MinimumFood), "Food kept on the board at all times")

	snakes := &snakeList{}
	if env := os.Getenv("SNAKES"); env != "" {
		if err := snakes.Set(env); err != nil {
			return Arena{}, fmt.Errorf("SNAKES: %w", err)
		}
		snakes.set = false
	}
	fs.Var(snakes, "snake", "Competitor as name=url or name=builtin (repeatable)")

	fs.IntVar(&cfg.Games, "games", getEnvIntOrDefault("GAMES", 1), "Number of games to play")
	fs.IntVar(&cfg.MaxTurns, "max-turns", getEnvIntOrDefault("MAX_TURNS", 0), "Stop a game after this many turns (0 = no limit)")
	fs.DurationVar(&cfg.MoveTimeout, "move-timeout", getEnvDurationOrDefault("MOVE_TIMEOUT", 500*time.Millisecond), "Per-move deadline")
	fs.DurationVar(&cfg.Delay, "delay", getEnvDurationOrDefault("TURN_DELAY", 0), "Pause between turns")
	fs.IntVar(&cfg.Parallel, "parallel", getEnvIntOrDefault("PARALLEL", 0), "Max concurrent move requests per turn (0 = one per snake)")
	fs.Int64Var(&cfg.Seed, "seed", getEnvInt64OrDefault("SEED", 0), "Random seed for food (0 = deterministic from state)")
	fs.StringVar(&cfg.OutDir, "out-dir", getEnvOrDefault("OUT_DIR", ""), "Directory for parquet archives (empty = don't record)")
	fs.IntVar(&cfg.FlushGames, "flush-games", getEnvIntOrDefault("FLUSH_GAMES", 10), "Write parquet batches after this many finished games")
	fs.StringVar(&cfg.SpectateAddr, "spectate", getEnvOrDefault("SPECTATE_ADDR", ""), "Listen address for the websocket spectator stream (empty = off)")
	fs.BoolVar(&cfg.TUI, "tui", getEnvBoolOrDefault("TUI", false), "Show the terminal viewer")
	logFlags(fs, &cfg.Log)

	if err := fs.Parse(args); err != nil {
		return Arena{}, err
	}

	cfg.Game.Width = int32(*width)
	cfg.Game.Height = int32(*height)
	cfg.Game.InitialHealth = int32(*health)
	cfg.Snakes = snakes.specs

	if err := cfg.Validate(); err != nil {
		return Arena{}, err
	}
	return cfg, nil
}

// Validate checks ranges and snake names.
func (c Arena) Validate() error {
	var errs []error
	if c.Game.Width < 3 || c.Game.Height < 3 {
		errs = append(errs, fmt.Errorf("board must be at least 3x3, got %dx%d", c.Game.Width, c.Game.Height))
	}
	if c.Game.InitialHealth < 1 || c.Game.InitialHealth > game.MaxHealth {
		errs = append(errs, fmt.Errorf("health must be 1-%d, got %d", game.MaxHealth, c.Game.InitialHealth))
	}
	if c.Game.FoodSpawnChance < 0 || c.Game.FoodSpawnChance > 1 {
		errs = append(errs, fmt.Errorf("food chance must be within [0,1], got %g", c.Game.FoodSpawnChance))
	}
	if c.Game.MinimumFood < 0 {
		errs = append(errs, fmt.Errorf("min food must be >= 0, got %d", c.Game.MinimumFood))
	}
	if len(c.Snakes) < 2 {
		errs = append(errs, fmt.Errorf("need at least 2 snakes, got %d", len(c.Snakes)))
	}
	seen := make(map[string]bool, len(c.Snakes))
	for _, s := range c.Snakes {
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate snake name %q", s.Name))
		}
		seen[s.Name] = true
	}
	if c.Games < 1 {
		errs = append(errs, fmt.Errorf("games must be >= 1, got %d", c.Games))
	}
	if c.MaxTurns < 0 || c.Parallel < 0 {
		errs = append(errs, errors.New("max turns and parallel must be >= 0"))
	}
	if c.MoveTimeout <= 0 {
		errs = append(errs, fmt.Errorf("move timeout must be positive, got %s", c.MoveTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// LoadSnake parses args for cmd/snake.
func LoadSnake(args []string, output io.Writer) (Snake, error) {
	if err := loadEnvFile(); err != nil {
		return Snake{}, err
	}

	var cfg Snake
	fs := newFlagSet("snake", output)
	port := fs.Int("port", getEnvIntOrDefault("PORT", 8080), "Port to listen on")
	fs.DurationVar(&cfg.MoveTimeout, "move-timeout", getEnvDurationOrDefault("MOVE_TIMEOUT", 500*time.Millisecond), "Move budget when the request carries none")
	fs.Int64Var(&cfg.Seed, "seed", getEnvInt64OrDefault("SEED", 0), "Random seed for the bot (0 = clock)")
	fs.StringVar(&cfg.Author, "author", getEnvOrDefault("AUTHOR", "snekarena"), "Author reported on /")
	fs.StringVar(&cfg.Color, "color", getEnvOrDefault("COLOR", "#2ecc71"), "Colour reported on /")
	logFlags(fs, &cfg.Log)

	if err := fs.Parse(args); err != nil {
		return Snake{}, err
	}
	if *port <= 0 || *port > 65535 {
		return Snake{}, fmt.Errorf("%w: port %d", ErrInvalid, *port)
	}
	if cfg.MoveTimeout <= 0 {
		return Snake{}, fmt.Errorf("%w: move timeout %s", ErrInvalid, cfg.MoveTimeout)
	}
	cfg.Addr = fmt.Sprintf(":%d", *port)
	return cfg, nil
}

// LoadStandings parses args for cmd/standings. Positional arguments are
// result directories; OUT_DIR is used when none are given.
func LoadStandings(args []string, output io.Writer) (Standings, error) {
	if err := loadEnvFile(); err != nil {
		return Standings{}, err
	}

	var cfg Standings
	fs := newFlagSet("standings", output)
	fs.IntVar(&cfg.Top, "top", getEnvIntOrDefault("TOP", 0), "Show only the first N rows (0 = all)")
	fs.Float64Var(&cfg.EloK, "elo-k", getEnvFloatOrDefault("ELO_K", 32), "Elo K factor")
	fs.StringVar(&cfg.ServeAddr, "serve", getEnvOrDefault("SERVE_ADDR", ""), "Serve standings, ratings and replays over HTTP on this address (empty = print and exit)")
	fs.DurationVar(&cfg.Refresh, "refresh", getEnvDurationOrDefault("REFRESH", 30*time.Second), "How often the served views pick up new batches")
	logFlags(fs, &cfg.Log)

	if err := fs.Parse(args); err != nil {
		return Standings{}, err
	}
	cfg.Dirs = fs.Args()
	if len(cfg.Dirs) == 0 {
		cfg.Dirs = []string{getEnvOrDefault("OUT_DIR", "data")}
	}
	if cfg.Top < 0 || cfg.EloK <= 0 || cfg.Refresh < 0 {
		return Standings{}, fmt.Errorf("%w: top and refresh must be >= 0 and elo-k positive", ErrInvalid)
	}
	return cfg, nil
}
