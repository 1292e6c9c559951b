package bot

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// Orchestrator drives a full game of headless bot players against a live
// server, exercising the same HTTP and WebSocket surface a human client uses.
type Orchestrator struct {
	baseURL     string
	difficulty  string
	numPlayers  int
	width       int
	height      int
	turnSeconds int
	bots        []*BotPlayer
}

// BotPlayer wraps a Client with its assigned seat and strategy.
type BotPlayer struct {
	Client *Client
	Seat   uint8
	AI     Ai
	rng    *rand.Rand
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(baseURL, difficulty string, numPlayers, width, height, turnSeconds int) *Orchestrator {
	return &Orchestrator{
		baseURL:     baseURL,
		difficulty:  difficulty,
		numPlayers:  numPlayers,
		width:       width,
		height:      height,
		turnSeconds: turnSeconds,
	}
}

// Run executes a full game: create bots, create game, join, start, play loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().Str("difficulty", o.difficulty).Int("players", o.numPlayers).Msg("Starting bot game")

	for i := 1; i <= o.numPlayers; i++ {
		name := fmt.Sprintf("Bot%d", i)
		c := NewClient(name, o.baseURL)
		if err := c.Login(); err != nil {
			return fmt.Errorf("login %s: %w", name, err)
		}
		o.bots = append(o.bots, &BotPlayer{
			Client: c,
			AI:     ForDifficulty(o.difficulty),
			rng:    rand.New(rand.NewSource(time.Now().UnixNano() + int64(i))),
		})
	}

	// Bot1 creates the game
	gameID, err := o.bots[0].Client.CreateGame("Bot Test Game", o.width, o.height, o.numPlayers, o.turnSeconds)
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	log.Info().Str("gameId", gameID).Msg("Game created")

	// The rest join, replacing the seeded bot seats, and ready up so the
	// creator may start.
	for _, bp := range o.bots[1:] {
		if err := bp.Client.JoinGame(gameID); err != nil {
			return fmt.Errorf("join %s: %w", bp.Client.Name(), err)
		}
		if err := bp.Client.SetReady(gameID); err != nil {
			return fmt.Errorf("ready %s: %w", bp.Client.Name(), err)
		}
	}
	log.Info().Int("count", o.numPlayers).Msg("All bots joined")

	// Bot1 starts
	if err := o.bots[0].Client.StartGame(gameID); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	log.Info().Msg("Game started")

	// Discover assigned seats
	game, err := o.bots[0].Client.GetGame(gameID)
	if err != nil {
		return fmt.Errorf("get game: %w", err)
	}
	if err := o.assignSeats(game); err != nil {
		return fmt.Errorf("assign seats: %w", err)
	}
	for _, bp := range o.bots {
		log.Info().Str("bot", bp.Client.Name()).Uint8("seat", bp.Seat).Msg("Seat assigned")
	}

	// Connect WebSockets and subscribe
	for _, bp := range o.bots {
		if err := bp.Client.ConnectWS(); err != nil {
			return fmt.Errorf("ws connect %s: %w", bp.Client.Name(), err)
		}
		if err := bp.Client.SubscribeGame(gameID); err != nil {
			return fmt.Errorf("ws subscribe %s: %w", bp.Client.Name(), err)
		}
	}
	defer func() {
		for _, bp := range o.bots {
			bp.Client.CloseWS()
		}
	}()

	return o.playLoop(ctx, gameID)
}

// playLoop fetches the board, lets the seated bot think, submits the move,
// and waits for the server to hand the turn on.
func (o *Orchestrator) playLoop(ctx context.Context, gameID string) error {
	bySeat := make(map[uint8]*BotPlayer, len(o.bots))
	for _, bp := range o.bots {
		bySeat[bp.Seat] = bp
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping bots")
			return ctx.Err()
		default:
		}

		st, err := o.bots[0].Client.GetState(gameID)
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}
		bp, ok := bySeat[st.CurrentSeat]
		if !ok {
			return fmt.Errorf("no bot holds seat %d", st.CurrentSeat)
		}
		g, err := st.Board()
		if err != nil {
			return fmt.Errorf("decode board: %w", err)
		}

		pos, err := o.think(ctx, bp, g, st.CurrentSeat)
		if err != nil {
			return err
		}

		log.Info().
			Int("turn", st.TurnNumber+1).
			Uint8("seat", st.CurrentSeat).
			Uint8("x", pos.X).Uint8("y", pos.Y).
			Msg("Submitting move")
		if err := bp.Client.SubmitMove(gameID, pos); err != nil {
			return fmt.Errorf("submit move: %w", err)
		}

		event, err := o.waitForEvent(ctx, o.bots[0].Client, "turn_changed", "game_won")
		if err != nil {
			return fmt.Errorf("wait for event: %w", err)
		}
		if event.Type == "game_won" {
			winner := 0.0
			if w, ok := event.Data["winner_seat"].(float64); ok {
				winner = w
			}
			log.Info().Int("winnerSeat", int(winner)).Msg("Game won")
			return nil
		}
	}
}

// think runs the strategy at its frame cadence until it decides.
func (o *Orchestrator) think(ctx context.Context, bp *BotPlayer, g *chain.Grid, seat uint8) (chain.Pos, error) {
	bp.AI.StartMove(g)

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	for ticks := 0; ticks < 100_000; ticks++ {
		select {
		case <-ctx.Done():
			return chain.Pos{}, ctx.Err()
		case <-ticker.C:
		}
		if pos, decided := bp.AI.Tick(g, seat, bp.rng); decided {
			return pos, nil
		}
	}
	return chain.Pos{}, fmt.Errorf("seat %d never decided", seat)
}

// waitForEvent blocks until one of the given event types is received or context cancels.
func (o *Orchestrator) waitForEvent(ctx context.Context, c *Client, eventTypes ...string) (WSEvent, error) {
	typeSet := make(map[string]bool)
	for _, t := range eventTypes {
		typeSet[t] = true
	}

	timeout := time.After(time.Duration(o.turnSeconds)*time.Second + 30*time.Second)
	for {
		select {
		case <-ctx.Done():
			return WSEvent{}, ctx.Err()
		case <-timeout:
			return WSEvent{}, fmt.Errorf("timeout waiting for events %v", eventTypes)
		case event, ok := <-c.Events():
			if !ok {
				return WSEvent{}, fmt.Errorf("ws connection closed")
			}
			if typeSet[event.Type] {
				return event, nil
			}
			log.Debug().Str("type", event.Type).Msg("Ignoring event")
		}
	}
}

// assignSeats maps each bot to its shuffled seat by matching user IDs.
func (o *Orchestrator) assignSeats(game map[string]any) error {
	players, ok := game["players"].([]any)
	if !ok {
		return fmt.Errorf("missing players in game data")
	}

	seatByUserID := make(map[string]uint8)
	for _, p := range players {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		uid, _ := pm["user_id"].(string)
		seat, _ := pm["seat"].(float64)
		if uid != "" && seat > 0 {
			seatByUserID[uid] = uint8(seat)
		}
	}

	for _, bp := range o.bots {
		seat, ok := seatByUserID[bp.Client.UserID()]
		if !ok {
			return fmt.Errorf("no seat assignment for %s (user %s)", bp.Client.Name(), bp.Client.UserID())
		}
		bp.Seat = seat
	}
	return nil
}
