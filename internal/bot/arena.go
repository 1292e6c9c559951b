package bot

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/critical-mass/internal/model"
	"github.com/freeeve/critical-mass/internal/repository"
	"github.com/freeeve/critical-mass/pkg/chain"
)

// ArenaConfig configures a single bot-vs-bot game.
type ArenaConfig struct {
	GameName     string
	Width        int
	Height       int
	Difficulties []string // one per seat, in seat order
	MaxTurns     int      // cap before calling it a draw (0 = default)
	Seed         int64    // 0 = random
	DryRun       bool     // skip DB writes
}

// ArenaResult describes the outcome of a completed arena game.
type ArenaResult struct {
	GameID     string
	WinnerSeat int // 0 for a draw
	TotalTurns int
	// Scores holds each seat's material score on the last stable position;
	// a game-ending cascade is not replayed into it.
	Scores     map[int]int32
	Eliminated []int // seats in elimination order
}

// maxTicksPerTurn bounds how long one AI may think before the arena gives
// up on the game. Hard needs many ticks on big boards; this is minutes of
// simulated frame budget, not wall time.
const maxTicksPerTurn = 100_000

// RunGame plays a full game between bot strategies, saving the game and its
// move log to Postgres. Pass nil repos (or DryRun) to skip persistence.
func RunGame(
	ctx context.Context,
	cfg ArenaConfig,
	gameRepo repository.GameRepository,
	moveRepo repository.MoveRepository,
	userRepo repository.UserRepository,
) (*ArenaResult, error) {
	numPlayers := len(cfg.Difficulties)
	if numPlayers < 2 || numPlayers > 7 {
		return nil, fmt.Errorf("arena needs 2-7 seats, got %d", numPlayers)
	}
	if cfg.Width < 2 || cfg.Height < 2 {
		return nil, fmt.Errorf("board %dx%d is too small", cfg.Width, cfg.Height)
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = cfg.Width * cfg.Height * 4
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	ais := make([]Ai, numPlayers)
	for i, difficulty := range cfg.Difficulties {
		ais[i] = ForDifficulty(difficulty)
	}

	var gameID string
	if !cfg.DryRun {
		var err error
		gameID, err = createArenaGame(ctx, cfg, gameRepo, userRepo)
		if err != nil {
			return nil, fmt.Errorf("create arena game: %w", err)
		}
	}

	g := chain.New(uint8(cfg.Width), uint8(cfg.Height), uint8(numPlayers))
	g.InitCapacity()

	result := &ArenaResult{
		GameID: gameID,
		Scores: make(map[int]int32),
	}
	alive := make([]bool, numPlayers+1)
	for seat := 1; seat <= numPlayers; seat++ {
		alive[seat] = true
	}
	aliveCount := numPlayers

	seat := 1
	for result.TotalTurns < cfg.MaxTurns {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !alive[seat] {
			seat = seat%numPlayers + 1
			continue
		}
		if !HasLegalMove(g, uint8(seat)) {
			eliminate(result, alive, &aliveCount, seat)
			if done := checkLastStanding(result, alive, aliveCount, numPlayers); done {
				break
			}
			seat = seat%numPlayers + 1
			continue
		}

		pos, ok := runTurn(ais[seat-1], g, uint8(seat), rng)
		if !ok {
			return nil, fmt.Errorf("seat %d (%s) never decided on turn %d", seat, ais[seat-1].Name(), result.TotalTurns)
		}
		if !legalTarget(g.At(pos.X, pos.Y), uint8(seat)) {
			return nil, fmt.Errorf("seat %d (%s) picked illegal cell (%d,%d)", seat, ais[seat-1].Name(), pos.X, pos.Y)
		}

		next, cascaded := g.WithMove(pos.X, pos.Y, uint8(seat), nil)
		result.TotalTurns++

		if !cfg.DryRun {
			m := &model.Move{
				GameID:     gameID,
				TurnNumber: result.TotalTurns,
				Seat:       seat,
				X:          int(pos.X),
				Y:          int(pos.Y),
				Cascaded:   cascaded,
			}
			if err := moveRepo.Save(ctx, m); err != nil {
				return nil, fmt.Errorf("save move: %w", err)
			}
		}

		if next == nil {
			// The cascade swept the whole board; everyone else is gone.
			for s := 1; s <= numPlayers; s++ {
				if s != seat && alive[s] {
					eliminate(result, alive, &aliveCount, s)
				}
			}
			result.WinnerSeat = seat
			break
		}
		g = next

		// A move can wipe another player off the board mid-rotation.
		for s := 1; s <= numPlayers; s++ {
			if s != seat && alive[s] && !HasLegalMove(g, uint8(s)) {
				eliminate(result, alive, &aliveCount, s)
			}
		}
		if done := checkLastStanding(result, alive, aliveCount, numPlayers); done {
			break
		}
		seat = seat%numPlayers + 1
	}

	for s := 1; s <= numPlayers; s++ {
		result.Scores[s] = g.ScoreForPlayer(uint8(s))
	}

	if !cfg.DryRun {
		if err := gameRepo.SetFinished(ctx, gameID, result.WinnerSeat); err != nil {
			return nil, fmt.Errorf("set finished: %w", err)
		}
	}
	log.Info().
		Str("gameId", gameID).
		Int("winnerSeat", result.WinnerSeat).
		Int("turns", result.TotalTurns).
		Int64("seed", seed).
		Msg("Arena game finished")
	return result, nil
}

// runTurn ticks one AI until it decides, at 60 Hz semantics but without the
// wall-clock wait.
func runTurn(ai Ai, g *chain.Grid, seat uint8, rng *rand.Rand) (chain.Pos, bool) {
	ai.StartMove(g)
	for i := 0; i < maxTicksPerTurn; i++ {
		if pos, ok := ai.Tick(g, seat, rng); ok {
			return pos, true
		}
	}
	return chain.Pos{}, false
}

func eliminate(result *ArenaResult, alive []bool, aliveCount *int, seat int) {
	alive[seat] = false
	*aliveCount--
	result.Eliminated = append(result.Eliminated, seat)
}

// checkLastStanding marks the winner once a single seat remains.
func checkLastStanding(result *ArenaResult, alive []bool, aliveCount, numPlayers int) bool {
	if aliveCount > 1 {
		return false
	}
	for s := 1; s <= numPlayers; s++ {
		if alive[s] {
			result.WinnerSeat = s
			return true
		}
	}
	return true
}

// createArenaGame registers the game and one bot user per seat.
func createArenaGame(
	ctx context.Context,
	cfg ArenaConfig,
	gameRepo repository.GameRepository,
	userRepo repository.UserRepository,
) (string, error) {
	name := cfg.GameName
	if name == "" {
		name = "arena-" + uuid.NewString()[:8]
	}

	creator, err := userRepo.Upsert(ctx, "bot", "arena-seat-1", "Bot ("+cfg.Difficulties[0]+")", "")
	if err != nil {
		return "", fmt.Errorf("upsert bot user: %w", err)
	}
	game, err := gameRepo.Create(ctx, name, creator.ID, cfg.Width, cfg.Height, len(cfg.Difficulties), 0)
	if err != nil {
		return "", err
	}
	if err := gameRepo.JoinGameAsBot(ctx, game.ID, creator.ID, cfg.Difficulties[0]); err != nil {
		return "", err
	}

	seats := map[string]int{creator.ID: 1}
	for i := 1; i < len(cfg.Difficulties); i++ {
		u, err := userRepo.Upsert(ctx, "bot", fmt.Sprintf("arena-seat-%d", i+1), "Bot ("+cfg.Difficulties[i]+")", "")
		if err != nil {
			return "", fmt.Errorf("upsert bot user: %w", err)
		}
		if err := gameRepo.JoinGameAsBot(ctx, game.ID, u.ID, cfg.Difficulties[i]); err != nil {
			return "", err
		}
		seats[u.ID] = i + 1
	}
	if err := gameRepo.AssignSeats(ctx, game.ID, seats); err != nil {
		return "", err
	}
	return game.ID, nil
}
