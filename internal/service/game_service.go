package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/freeeve/critical-mass/internal/bot"
	"github.com/freeeve/critical-mass/internal/model"
	"github.com/freeeve/critical-mass/internal/repository"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameNotWaiting  = errors.New("game is not in waiting status")
	ErrGameNotActive   = errors.New("game is not active")
	ErrGameFull        = errors.New("game is full")
	ErrNotEnough       = errors.New("need at least 2 players to start")
	ErrNotCreator      = errors.New("only the creator can do that")
	ErrAlreadyJoined   = errors.New("already joined this game")
	ErrNotInGame       = errors.New("you are not in this game")
	ErrBadBoard        = errors.New("board must be between 2x2 and 18x10")
	ErrBadPlayerCount  = errors.New("games support 2 to 7 seats")
	ErrBadDifficulty   = errors.New("unknown bot difficulty")
	ErrNotAllReady     = errors.New("not all players are ready")
)

// GameService handles the lobby side of the game lifecycle: creation,
// seating, and the hand-off to MatchService when the game starts.
type GameService struct {
	gameRepo repository.GameRepository
	userRepo repository.UserRepository
	matchSvc *MatchService
	bots     *BotDriver
}

// NewGameService creates a GameService. bots may be nil when no bot driver
// runs (arena and tests).
func NewGameService(gameRepo repository.GameRepository, userRepo repository.UserRepository, matchSvc *MatchService, bots *BotDriver) *GameService {
	return &GameService{gameRepo: gameRepo, userRepo: userRepo, matchSvc: matchSvc, bots: bots}
}

// CreateGame creates a new game in "waiting" status. Unfilled seats are
// seeded with bots at the given difficulty; botOnly fills every seat.
func (s *GameService) CreateGame(ctx context.Context, name, creatorID string, width, height, maxPlayers, turnSeconds int, botDifficulty string, botOnly bool) (*model.Game, error) {
	if width < 2 || width > 18 || height < 2 || height > 10 {
		return nil, ErrBadBoard
	}
	if maxPlayers < 2 || maxPlayers > 7 {
		return nil, ErrBadPlayerCount
	}
	if botDifficulty == "" {
		botDifficulty = bot.DifficultyEasy
	}
	if !validDifficulty(botDifficulty) {
		return nil, ErrBadDifficulty
	}

	game, err := s.gameRepo.Create(ctx, name, creatorID, width, height, maxPlayers, turnSeconds)
	if err != nil {
		return nil, err
	}

	botCount := maxPlayers
	if !botOnly {
		if err := s.gameRepo.JoinGame(ctx, game.ID, creatorID); err != nil {
			return nil, err
		}
		botCount--
	}
	for i := 1; i <= botCount; i++ {
		providerID := fmt.Sprintf("bot-%d", i)
		displayName := fmt.Sprintf("Bot %d", i)
		botUser, err := s.userRepo.Upsert(ctx, "bot", providerID, displayName, "")
		if err != nil {
			return nil, fmt.Errorf("create bot user %d: %w", i, err)
		}
		if err := s.gameRepo.JoinGameAsBot(ctx, game.ID, botUser.ID, botDifficulty); err != nil {
			return nil, fmt.Errorf("join bot %d: %w", i, err)
		}
	}

	return s.gameRepo.FindByID(ctx, game.ID)
}

// JoinGame adds a player to a waiting game, replacing a bot when the seats
// are all taken but some are bots.
func (s *GameService) JoinGame(ctx context.Context, gameID, userID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != "waiting" {
		return ErrGameNotWaiting
	}

	for _, p := range game.Players {
		if p.UserID == userID {
			return ErrAlreadyJoined
		}
	}

	count, err := s.gameRepo.PlayerCount(ctx, gameID)
	if err != nil {
		return err
	}
	if count >= game.MaxPlayers {
		hasBots := false
		for _, p := range game.Players {
			if p.IsBot {
				hasBots = true
				break
			}
		}
		if !hasBots {
			return ErrGameFull
		}
		return s.gameRepo.ReplaceBot(ctx, gameID, userID)
	}
	return s.gameRepo.JoinGame(ctx, gameID, userID)
}

// SetReady records a player's lobby readiness. Starting is gated on every
// human seat except the creator being ready; bots are always ready.
func (s *GameService) SetReady(ctx context.Context, gameID, userID string, ready bool) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != "waiting" {
		return ErrGameNotWaiting
	}
	inGame := false
	for _, p := range game.Players {
		if p.UserID == userID {
			inGame = true
			break
		}
	}
	if !inGame {
		return ErrNotInGame
	}

	if ready {
		err = s.matchSvc.cache.MarkReady(ctx, gameID, userID)
	} else {
		err = s.matchSvc.cache.UnmarkReady(ctx, gameID, userID)
	}
	if err != nil {
		return fmt.Errorf("update ready state: %w", err)
	}
	count, err := s.matchSvc.cache.ReadyCount(ctx, gameID)
	if err != nil {
		return fmt.Errorf("count ready: %w", err)
	}
	s.matchSvc.broadcaster.BroadcastGameEvent(gameID, "player_ready", map[string]any{
		"user_id": userID, "ready": ready, "ready_count": count,
	})
	return nil
}

// StartGame shuffles seat order, activates the game, and seeds live state.
func (s *GameService) StartGame(ctx context.Context, gameID, userID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != "waiting" {
		return nil, ErrGameNotWaiting
	}
	if game.CreatorID != userID {
		return nil, ErrNotCreator
	}
	if len(game.Players) < 2 {
		return nil, ErrNotEnough
	}

	readyUsers, err := s.matchSvc.cache.ReadyUsers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list ready: %w", err)
	}
	readySet := make(map[string]bool, len(readyUsers))
	for _, id := range readyUsers {
		readySet[id] = true
	}
	for _, p := range game.Players {
		if p.IsBot || p.UserID == userID {
			continue
		}
		if !readySet[p.UserID] {
			return nil, ErrNotAllReady
		}
	}

	order := rand.Perm(len(game.Players))
	seats := make(map[string]int, len(game.Players))
	for i, p := range game.Players {
		seats[p.UserID] = order[i] + 1
	}
	if err := s.gameRepo.AssignSeats(ctx, gameID, seats); err != nil {
		return nil, err
	}

	game, err = s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := s.matchSvc.Begin(ctx, game); err != nil {
		return nil, err
	}
	if s.bots != nil {
		s.bots.Watch(game.ID)
	}
	return game, nil
}

// GetGame returns a game by ID.
func (s *GameService) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// UpdateBotDifficulty validates and updates a bot's difficulty level.
func (s *GameService) UpdateBotDifficulty(ctx context.Context, gameID, userID, botUserID, difficulty string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != "waiting" {
		return ErrGameNotWaiting
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	if !validDifficulty(difficulty) {
		return ErrBadDifficulty
	}
	return s.gameRepo.UpdateBotDifficulty(ctx, gameID, botUserID, difficulty)
}

// DeleteGame removes a waiting game. Only the game creator can delete it.
func (s *GameService) DeleteGame(ctx context.Context, gameID, userID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != "waiting" {
		return ErrGameNotWaiting
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	if err := s.matchSvc.cache.DeleteGameData(ctx, gameID); err != nil {
		return err
	}
	return s.gameRepo.Delete(ctx, gameID)
}

// StopGame ends an active game without a winner. Creator only.
func (s *GameService) StopGame(ctx context.Context, gameID, userID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != "active" {
		return nil, ErrGameNotActive
	}
	if game.CreatorID != userID {
		return nil, ErrNotCreator
	}
	if err := s.gameRepo.SetFinished(ctx, gameID, 0); err != nil {
		return nil, err
	}
	if err := s.matchSvc.cache.DeleteGameData(ctx, gameID); err != nil {
		return nil, err
	}
	return s.gameRepo.FindByID(ctx, gameID)
}

// ListGames returns open games, or the user's games, or finished games.
func (s *GameService) ListGames(ctx context.Context, userID string, filter string) ([]model.Game, error) {
	switch filter {
	case "my":
		return s.gameRepo.ListByUser(ctx, userID)
	case "finished":
		return s.gameRepo.ListFinished(ctx)
	default:
		return s.gameRepo.ListOpen(ctx)
	}
}

func validDifficulty(d string) bool {
	switch d {
	case bot.DifficultyEasiest, bot.DifficultyEasy, bot.DifficultyMedium,
		bot.DifficultyMediumSharp, bot.DifficultyHard, bot.DifficultyGonnx:
		return true
	}
	return false
}
