package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/critical-mass/internal/model"
)

// MoveRepo handles move log database operations.
type MoveRepo struct {
	db *sql.DB
}

// NewMoveRepo creates a MoveRepo.
func NewMoveRepo(db *sql.DB) *MoveRepo {
	return &MoveRepo{db: db}
}

// Save inserts one applied move and fills in its ID and timestamp.
func (r *MoveRepo) Save(ctx context.Context, m *model.Move) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO moves (game_id, turn_number, seat, x, y, cascaded)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		m.GameID, m.TurnNumber, m.Seat, m.X, m.Y, m.Cascaded,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("save move: %w", err)
	}
	return nil
}

// ListByGame returns a game's moves in turn order.
func (r *MoveRepo) ListByGame(ctx context.Context, gameID string) ([]model.Move, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, turn_number, seat, x, y, cascaded, created_at
		 FROM moves WHERE game_id = $1 ORDER BY turn_number`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	var moves []model.Move
	for rows.Next() {
		var m model.Move
		if err := rows.Scan(&m.ID, &m.GameID, &m.TurnNumber, &m.Seat, &m.X, &m.Y, &m.Cascaded, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// CountByGame returns how many moves a game has recorded.
func (r *MoveRepo) CountByGame(ctx context.Context, gameID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM moves WHERE game_id = $1`, gameID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count moves: %w", err)
	}
	return count, nil
}
