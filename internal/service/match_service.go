package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/critical-mass/internal/bot"
	"github.com/freeeve/critical-mass/internal/model"
	"github.com/freeeve/critical-mass/internal/repository"
	"github.com/freeeve/critical-mass/pkg/chain"
)

var (
	ErrNotYourTurn = errors.New("not your turn")
	ErrIllegalCell = errors.New("cell is owned by another player")
	ErrOutOfBounds = errors.New("cell is outside the board")
	ErrEliminated  = errors.New("you have been eliminated")
	ErrNoLiveState = errors.New("game has no live state")
)

// MatchService drives active games: move application with cascade
// resolution, elimination, turn rotation, win detection, and the turn clock.
// All mutations of one game are serialized through a per-game lock; moves
// arrive concurrently from handlers, the bot driver, and the timer listener.
type MatchService struct {
	gameRepo    repository.GameRepository
	moveRepo    repository.MoveRepository
	cache       repository.GameCache
	broadcaster Broadcaster
	locks       sync.Map // gameID -> *sync.Mutex
}

// NewMatchService creates a MatchService.
func NewMatchService(
	gameRepo repository.GameRepository,
	moveRepo repository.MoveRepository,
	cache repository.GameCache,
	broadcaster Broadcaster,
) *MatchService {
	return &MatchService{
		gameRepo:    gameRepo,
		moveRepo:    moveRepo,
		cache:       cache,
		broadcaster: broadcaster,
	}
}

func (s *MatchService) lock(gameID string) func() {
	mu, _ := s.locks.LoadOrStore(gameID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

// Begin seeds the live state for a game whose seats are already assigned and
// starts the turn clock. Called by GameService.StartGame.
func (s *MatchService) Begin(ctx context.Context, game *model.Game) error {
	g := chain.New(uint8(game.Width), uint8(game.Height), uint8(game.MaxPlayers))
	g.InitCapacity()

	st := newLiveState(g)
	raw, err := st.encode()
	if err != nil {
		return err
	}
	if err := s.cache.SetGameState(ctx, game.ID, raw); err != nil {
		return fmt.Errorf("seed live state: %w", err)
	}
	if err := s.resetTurnClock(ctx, game); err != nil {
		return err
	}
	s.broadcaster.BroadcastGameEvent(game.ID, "game_started", map[string]any{
		"state":   st,
		"players": game.Players,
	})
	return nil
}

// State returns the current live state of an active game.
func (s *MatchService) State(ctx context.Context, gameID string) (*LiveState, error) {
	raw, err := s.cache.GetGameState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNoLiveState
	}
	return decodeLiveState(raw)
}

// ApplyMove validates and applies one placement for the given user.
func (s *MatchService) ApplyMove(ctx context.Context, gameID, userID string, x, y uint8) (*LiveState, error) {
	defer s.lock(gameID)()

	game, seat, err := s.activeSeat(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	st, err := s.State(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if st.isEliminated(seat) {
		return nil, ErrEliminated
	}
	if st.CurrentSeat != seat {
		return nil, ErrNotYourTurn
	}
	return s.applySeatMove(ctx, game, st, seat, x, y)
}

// applySeatMove runs the cascade and all its consequences. The caller holds
// the game lock and has validated that seat is the current one.
func (s *MatchService) applySeatMove(ctx context.Context, game *model.Game, st *LiveState, seat, x, y uint8) (*LiveState, error) {
	if x >= st.Width || y >= st.Height {
		return nil, ErrOutOfBounds
	}
	g, err := st.grid()
	if err != nil {
		return nil, err
	}
	cell := g.At(x, y)
	if cell.Owner != 0 && cell.Owner != seat {
		return nil, ErrIllegalCell
	}

	next, cascaded := g.WithMove(x, y, seat, nil)
	st.TurnNumber++

	move := &model.Move{
		GameID:     game.ID,
		TurnNumber: st.TurnNumber,
		Seat:       int(seat),
		X:          int(x),
		Y:          int(y),
		Cascaded:   cascaded,
	}
	if err := s.moveRepo.Save(ctx, move); err != nil {
		return nil, fmt.Errorf("save move: %w", err)
	}

	if next == nil {
		// The cascade swept the board; only the mover remains.
		for other := uint8(1); other <= st.NumPlayers; other++ {
			if other != seat && !st.isEliminated(other) {
				s.eliminateSeat(ctx, game, st, other)
			}
		}
		s.broadcaster.BroadcastGameEvent(game.ID, "move_played", map[string]any{
			"seat": seat, "x": x, "y": y, "cascaded": cascaded,
			"turn_number": st.TurnNumber,
		})
		return st, s.finish(ctx, game, st, seat)
	}

	st.Grid = next.Pack()
	s.broadcaster.BroadcastGameEvent(game.ID, "move_played", map[string]any{
		"seat": seat, "x": x, "y": y, "cascaded": cascaded,
		"turn_number": st.TurnNumber, "grid": st.Grid,
	})

	// A cascade can take another player's last cell.
	for other := uint8(1); other <= st.NumPlayers; other++ {
		if other != seat && !st.isEliminated(other) && !bot.HasLegalMove(next, other) {
			s.eliminateSeat(ctx, game, st, other)
		}
	}
	if st.aliveCount() == 1 {
		return st, s.finish(ctx, game, st, seat)
	}

	st.advanceSeat()
	raw, err := st.encode()
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetGameState(ctx, game.ID, raw); err != nil {
		return nil, fmt.Errorf("store live state: %w", err)
	}
	if err := s.resetTurnClock(ctx, game); err != nil {
		return nil, err
	}
	s.broadcaster.BroadcastGameEvent(game.ID, "turn_changed", map[string]any{
		"seat": st.CurrentSeat, "turn_number": st.TurnNumber,
	})
	return st, nil
}

// Resign eliminates the calling player immediately.
func (s *MatchService) Resign(ctx context.Context, gameID, userID string) error {
	defer s.lock(gameID)()

	game, seat, err := s.activeSeat(ctx, gameID, userID)
	if err != nil {
		return err
	}
	st, err := s.State(ctx, gameID)
	if err != nil {
		return err
	}
	if st.isEliminated(seat) {
		return ErrEliminated
	}
	return s.removeSeat(ctx, game, st, seat)
}

// HandleTimeout resigns the seat whose turn clock expired.
func (s *MatchService) HandleTimeout(ctx context.Context, gameID string) error {
	defer s.lock(gameID)()

	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil || game.Status != "active" {
		return nil // raced with game end; the expiry is stale
	}
	st, err := s.State(ctx, gameID)
	if err != nil {
		return err
	}
	log.Info().Str("gameId", gameID).Uint8("seat", st.CurrentSeat).Msg("Turn clock expired, resigning seat")
	return s.removeSeat(ctx, game, st, st.CurrentSeat)
}

// removeSeat eliminates a seat outside the normal cascade flow (resign,
// timeout, disconnect) and advances the turn if it was theirs.
func (s *MatchService) removeSeat(ctx context.Context, game *model.Game, st *LiveState, seat uint8) error {
	wasCurrent := st.CurrentSeat == seat
	s.eliminateSeat(ctx, game, st, seat)

	if st.aliveCount() == 1 {
		var winner uint8
		for cand := uint8(1); cand <= st.NumPlayers; cand++ {
			if !st.isEliminated(cand) {
				winner = cand
			}
		}
		return s.finish(ctx, game, st, winner)
	}

	if wasCurrent {
		st.advanceSeat()
	}
	raw, err := st.encode()
	if err != nil {
		return err
	}
	if err := s.cache.SetGameState(ctx, game.ID, raw); err != nil {
		return fmt.Errorf("store live state: %w", err)
	}
	if wasCurrent {
		if err := s.resetTurnClock(ctx, game); err != nil {
			return err
		}
		s.broadcaster.BroadcastGameEvent(game.ID, "turn_changed", map[string]any{
			"seat": st.CurrentSeat, "turn_number": st.TurnNumber,
		})
	}
	return nil
}

// eliminateSeat records the elimination in the live state and Postgres and
// tells the clients. It does not advance the turn or end the game.
func (s *MatchService) eliminateSeat(ctx context.Context, game *model.Game, st *LiveState, seat uint8) {
	st.Eliminated = append(st.Eliminated, seat)
	if err := s.gameRepo.SetEliminated(ctx, game.ID, int(seat)); err != nil {
		log.Error().Err(err).Str("gameId", game.ID).Uint8("seat", seat).Msg("Failed to persist elimination")
	}
	s.broadcaster.BroadcastGameEvent(game.ID, "player_eliminated", map[string]any{"seat": seat})
}

// finish closes out the game: Postgres result, Redis cleanup, broadcast.
func (s *MatchService) finish(ctx context.Context, game *model.Game, st *LiveState, winner uint8) error {
	if err := s.gameRepo.SetFinished(ctx, game.ID, int(winner)); err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	if err := s.cache.DeleteGameData(ctx, game.ID); err != nil {
		log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to clear live state")
	}
	s.broadcaster.BroadcastGameEvent(game.ID, "game_won", map[string]any{
		"winner_seat": winner, "turn_number": st.TurnNumber,
	})
	log.Info().Str("gameId", game.ID).Uint8("winnerSeat", winner).Int("turns", st.TurnNumber).Msg("Game finished")
	return nil
}

// resetTurnClock restarts the move timer, or clears it for untimed games.
func (s *MatchService) resetTurnClock(ctx context.Context, game *model.Game) error {
	if game.TurnSeconds <= 0 {
		return nil
	}
	deadline := time.Now().Add(time.Duration(game.TurnSeconds) * time.Second)
	if err := s.cache.SetTimer(ctx, game.ID, deadline); err != nil {
		return fmt.Errorf("set turn clock: %w", err)
	}
	return nil
}

// activeSeat resolves the user's seat in an active game.
func (s *MatchService) activeSeat(ctx context.Context, gameID, userID string) (*model.Game, uint8, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, 0, err
	}
	if game == nil {
		return nil, 0, ErrGameNotFound
	}
	if game.Status != "active" {
		return nil, 0, ErrGameNotActive
	}
	for _, p := range game.Players {
		if p.UserID == userID {
			return game, uint8(p.Seat), nil
		}
	}
	return nil, 0, ErrNotInGame
}
