package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/critical-mass/internal/bot"
	"github.com/freeeve/critical-mass/internal/repository"
)

// tickInterval is the bot thinking cadence. Strategies are written to stay
// within one frame per Tick, so this is also their per-slice time budget.
const tickInterval = time.Second / 60

// BotDriver plays the bot seats of live games. One goroutine per watched
// game ticks the seated bot's strategy at 60 Hz whenever it is a bot's turn
// and submits the decision through the same path as human moves.
type BotDriver struct {
	gameRepo repository.GameRepository
	matchSvc *MatchService
	ctx      context.Context
	watched  sync.Map // gameID -> struct{}
}

// NewBotDriver creates a BotDriver; ctx bounds the lifetime of every watch
// goroutine it spawns.
func NewBotDriver(ctx context.Context, gameRepo repository.GameRepository, matchSvc *MatchService) *BotDriver {
	return &BotDriver{gameRepo: gameRepo, matchSvc: matchSvc, ctx: ctx}
}

// Watch starts driving the bots of a game. Watching the same game twice is
// a no-op.
func (d *BotDriver) Watch(gameID string) {
	if _, loaded := d.watched.LoadOrStore(gameID, struct{}{}); loaded {
		return
	}
	go d.run(gameID)
}

// ResumeActive re-watches every active game, for server restarts.
func (d *BotDriver) ResumeActive(ctx context.Context) error {
	games, err := d.gameRepo.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, g := range games {
		d.Watch(g.ID)
	}
	if len(games) > 0 {
		log.Info().Int("count", len(games)).Msg("Resumed bot driving for active games")
	}
	return nil
}

// botSeat is one bot's persistent strategy state across its turns.
type botSeat struct {
	userID string
	ai     bot.Ai
}

func (d *BotDriver) run(gameID string) {
	defer d.watched.Delete(gameID)

	game, err := d.gameRepo.FindByID(d.ctx, gameID)
	if err != nil || game == nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Bot driver could not load game")
		return
	}
	seats := make(map[uint8]*botSeat)
	for _, p := range game.Players {
		if p.IsBot {
			seats[uint8(p.Seat)] = &botSeat{userID: p.UserID, ai: bot.ForDifficulty(p.BotDifficulty)}
		}
	}
	if len(seats) == 0 {
		return
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// A turn is identified by (turn number, seat): StartMove fires once per
	// turn, Tick every frame after until the strategy decides.
	lastTurn := -1
	var lastSeat uint8

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
		}

		st, err := d.matchSvc.State(d.ctx, gameID)
		if errors.Is(err, ErrNoLiveState) {
			return // game finished and cleaned up
		}
		if err != nil {
			log.Error().Err(err).Str("gameId", gameID).Msg("Bot driver state read failed")
			continue
		}
		seat, ok := seats[st.CurrentSeat]
		if !ok {
			continue // a human's turn
		}
		g, err := st.grid()
		if err != nil {
			log.Error().Err(err).Str("gameId", gameID).Msg("Bot driver grid decode failed")
			continue
		}

		if st.TurnNumber != lastTurn || st.CurrentSeat != lastSeat {
			seat.ai.StartMove(g)
			lastTurn, lastSeat = st.TurnNumber, st.CurrentSeat
		}
		pos, decided := seat.ai.Tick(g, st.CurrentSeat, rng)
		if !decided {
			continue
		}
		if _, err := d.matchSvc.ApplyMove(d.ctx, gameID, seat.userID, pos.X, pos.Y); err != nil {
			// Usually a race with a resignation or the game ending; the next
			// tick re-reads the state and recovers.
			log.Warn().Err(err).Str("gameId", gameID).Uint8("seat", st.CurrentSeat).Msg("Bot move rejected")
			lastTurn = -1
		}
	}
}
