package model

import "time"

// User represents a registered user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Game represents one chain-reaction match.
type Game struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	CreatorID    string       `json:"creator_id"`
	Status       string       `json:"status"` // waiting, active, finished
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	MaxPlayers   int          `json:"max_players"`
	WinnerSeat   int          `json:"winner_seat,omitempty"` // 0 while unfinished or drawn
	TurnSeconds  int          `json:"turn_seconds"`          // 0 = no move clock
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
	Players      []GamePlayer `json:"players,omitempty"`
}

// GamePlayer represents a seat in a game. Seat is 1-based and doubles as the
// cell owner value on the board; 0 means not yet assigned.
type GamePlayer struct {
	GameID        string    `json:"game_id"`
	UserID        string    `json:"user_id"`
	Seat          int       `json:"seat,omitempty"`
	IsBot         bool      `json:"is_bot"`
	BotDifficulty string    `json:"bot_difficulty,omitempty"`
	Eliminated    bool      `json:"eliminated"`
	JoinedAt      time.Time `json:"joined_at"`
}

// Move is one applied placement, the game's permanent record.
type Move struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id"`
	TurnNumber int       `json:"turn_number"`
	Seat       int       `json:"seat"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Cascaded   bool      `json:"cascaded"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message represents an in-game chat message.
type Message struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id,omitempty"` // empty = public broadcast
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}
