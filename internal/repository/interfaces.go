package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/freeeve/critical-mass/internal/model"
)

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// GameRepository defines game and seat data operations.
type GameRepository interface {
	Create(ctx context.Context, name, creatorID string, width, height, maxPlayers, turnSeconds int) (*model.Game, error)
	FindByID(ctx context.Context, id string) (*model.Game, error)
	ListOpen(ctx context.Context) ([]model.Game, error)
	ListByUser(ctx context.Context, userID string) ([]model.Game, error)
	ListFinished(ctx context.Context) ([]model.Game, error)
	ListActive(ctx context.Context) ([]model.Game, error)
	JoinGame(ctx context.Context, gameID, userID string) error
	JoinGameAsBot(ctx context.Context, gameID, userID, difficulty string) error
	ReplaceBot(ctx context.Context, gameID, newUserID string) error
	PlayerCount(ctx context.Context, gameID string) (int, error)
	AssignSeats(ctx context.Context, gameID string, seats map[string]int) error
	SetEliminated(ctx context.Context, gameID string, seat int) error
	SetFinished(ctx context.Context, gameID string, winnerSeat int) error
	Delete(ctx context.Context, gameID string) error
	UpdateBotDifficulty(ctx context.Context, gameID, botUserID, difficulty string) error
}

// MoveRepository defines move log operations.
type MoveRepository interface {
	Save(ctx context.Context, m *model.Move) error
	ListByGame(ctx context.Context, gameID string) ([]model.Move, error)
	CountByGame(ctx context.Context, gameID string) (int, error)
}

// MessageRepository defines chat message operations.
type MessageRepository interface {
	Create(ctx context.Context, gameID, senderID, recipientID, content string) (*model.Message, error)
	ListByGame(ctx context.Context, gameID, userID string) ([]model.Message, error)
}

// GameCache defines live game state operations (Redis).
type GameCache interface {
	SetGameState(ctx context.Context, gameID string, state json.RawMessage) error
	GetGameState(ctx context.Context, gameID string) (json.RawMessage, error)
	MarkReady(ctx context.Context, gameID, userID string) error
	UnmarkReady(ctx context.Context, gameID, userID string) error
	ReadyCount(ctx context.Context, gameID string) (int64, error)
	ReadyUsers(ctx context.Context, gameID string) ([]string, error)
	SetTimer(ctx context.Context, gameID string, deadline time.Time) error
	GetTimer(ctx context.Context, gameID string) (time.Time, error)
	ClearTimer(ctx context.Context, gameID string) error
	DeleteGameData(ctx context.Context, gameID string) error
}
