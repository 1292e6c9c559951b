package main

import (
	"testing"

	"github.com/freeeve/critical-mass/internal/model"
)

func testGame() *model.Game {
	return &model.Game{
		ID:         "game-1",
		Name:       "test",
		Width:      4,
		Height:     4,
		WinnerSeat: 1,
		Players: []model.GamePlayer{
			{UserID: "u1", Seat: 1, IsBot: true, BotDifficulty: "hard"},
			{UserID: "u2", Seat: 2, IsBot: true, BotDifficulty: "easy"},
		},
	}
}

func TestBuildRecordReplaysMoves(t *testing.T) {
	moves := []model.Move{
		{TurnNumber: 0, Seat: 1, X: 0, Y: 0},
		{TurnNumber: 1, Seat: 2, X: 3, Y: 3},
		{TurnNumber: 2, Seat: 1, X: 0, Y: 0, Cascaded: true},
	}

	rec, err := buildRecord(testGame(), moves)
	if err != nil {
		t.Fatalf("buildRecord: %v", err)
	}
	if rec.NumPlayers != 2 || rec.WinnerSeat != 1 {
		t.Errorf("got numPlayers=%d winnerSeat=%d", rec.NumPlayers, rec.WinnerSeat)
	}
	if len(rec.Seats) != 2 || rec.Seats[0].Difficulty != "hard" {
		t.Errorf("unexpected seats: %+v", rec.Seats)
	}
	if len(rec.Samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(rec.Samples))
	}
	for i, s := range rec.Samples {
		if len(s.Board) != 16 {
			t.Errorf("sample %d board is %d bytes, want 16", i, len(s.Board))
		}
	}
	// First snapshot is the untouched board: every cell unclaimed at one dot.
	for i, b := range rec.Samples[0].Board {
		if b != 0 {
			t.Errorf("fresh board byte %d = %d, want 0", i, b)
		}
	}
	if !rec.Samples[2].Cascaded {
		t.Error("third sample should carry the cascaded flag")
	}
}

func TestBuildRecordAcceptsQuietOpening(t *testing.T) {
	// No move here cascades; the replay must not mistake that for illegality.
	moves := []model.Move{
		{TurnNumber: 0, Seat: 1, X: 1, Y: 1},
		{TurnNumber: 1, Seat: 2, X: 2, Y: 2},
		{TurnNumber: 2, Seat: 1, X: 1, Y: 1},
	}
	rec, err := buildRecord(testGame(), moves)
	if err != nil {
		t.Fatalf("buildRecord: %v", err)
	}
	if len(rec.Samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(rec.Samples))
	}
}

func TestBuildRecordRejectsCascadeMismatch(t *testing.T) {
	moves := []model.Move{
		{TurnNumber: 0, Seat: 1, X: 0, Y: 0, Cascaded: true}, // first move cannot cascade
	}
	if _, err := buildRecord(testGame(), moves); err == nil {
		t.Fatal("expected replay error for cascade flag mismatch")
	}
}

func TestBuildRecordRejectsOffBoardMove(t *testing.T) {
	moves := []model.Move{
		{TurnNumber: 0, Seat: 1, X: 7, Y: 0},
	}
	if _, err := buildRecord(testGame(), moves); err == nil {
		t.Fatal("expected replay error for off-board move")
	}
}

func TestBuildRecordRejectsIllegalLog(t *testing.T) {
	moves := []model.Move{
		{TurnNumber: 0, Seat: 1, X: 0, Y: 0},
		{TurnNumber: 1, Seat: 2, X: 0, Y: 0}, // seat 1 owns this cell
	}
	if _, err := buildRecord(testGame(), moves); err == nil {
		t.Fatal("expected replay error for illegal move")
	}
}

func TestBuildRecordRejectsUnseatedGame(t *testing.T) {
	g := testGame()
	g.Players = g.Players[:1]
	if _, err := buildRecord(g, nil); err == nil {
		t.Fatal("expected error for game with one player")
	}
}

func TestAllBots(t *testing.T) {
	g := testGame()
	if !allBots(g.Players) {
		t.Error("all-bot game not detected")
	}
	g.Players[1].IsBot = false
	if allBots(g.Players) {
		t.Error("human seat not detected")
	}
	if allBots(nil) {
		t.Error("empty seat list should not count as all bots")
	}
}
