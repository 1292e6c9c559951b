package bot

import (
	"context"
	"testing"
)

func TestRunGame_DryRunTwoSeats(t *testing.T) {
	res, err := RunGame(context.Background(), ArenaConfig{
		Width:        4,
		Height:       4,
		Difficulties: []string{DifficultyEasiest, DifficultyMedium},
		Seed:         1234,
		DryRun:       true,
	}, nil, nil, nil)
	if err != nil {
		t.Fatalf("RunGame: %v", err)
	}
	if res.TotalTurns == 0 {
		t.Error("game finished without a single move")
	}
	if res.WinnerSeat < 0 || res.WinnerSeat > 2 {
		t.Errorf("invalid winner seat %d", res.WinnerSeat)
	}
	if len(res.Scores) != 2 {
		t.Errorf("expected scores for both seats, got %v", res.Scores)
	}
}

func TestRunGame_DryRunThreeSeats(t *testing.T) {
	res, err := RunGame(context.Background(), ArenaConfig{
		Width:        5,
		Height:       5,
		Difficulties: []string{DifficultyEasy, DifficultyEasy, DifficultyMediumSharp},
		Seed:         99,
		DryRun:       true,
	}, nil, nil, nil)
	if err != nil {
		t.Fatalf("RunGame: %v", err)
	}
	if res.WinnerSeat != 0 && len(res.Eliminated) != 2 {
		t.Errorf("a decisive 3-seat game must eliminate exactly two seats, got winner=%d eliminated=%v",
			res.WinnerSeat, res.Eliminated)
	}
	for _, seat := range res.Eliminated {
		if seat == res.WinnerSeat {
			t.Errorf("winner seat %d appears in the eliminated list %v", res.WinnerSeat, res.Eliminated)
		}
	}
}

func TestRunGame_DeterministicWithSeed(t *testing.T) {
	cfg := ArenaConfig{
		Width:        4,
		Height:       4,
		Difficulties: []string{DifficultyEasiest, DifficultyEasiest},
		Seed:         7,
		DryRun:       true,
	}
	a, err := RunGame(context.Background(), cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := RunGame(context.Background(), cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if a.WinnerSeat != b.WinnerSeat || a.TotalTurns != b.TotalTurns {
		t.Errorf("seeded runs diverged: %+v vs %+v", a, b)
	}
}

func TestRunGame_RejectsBadConfigs(t *testing.T) {
	cases := []ArenaConfig{
		{Width: 4, Height: 4, Difficulties: []string{DifficultyEasy}, DryRun: true},
		{Width: 4, Height: 4, Difficulties: make([]string, 8), DryRun: true},
		{Width: 1, Height: 4, Difficulties: []string{DifficultyEasy, DifficultyEasy}, DryRun: true},
	}
	for i, cfg := range cases {
		if _, err := RunGame(context.Background(), cfg, nil, nil, nil); err == nil {
			t.Errorf("case %d: config %+v should be rejected", i, cfg)
		}
	}
}

func TestRunGame_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunGame(ctx, ArenaConfig{
		Width:        4,
		Height:       4,
		Difficulties: []string{DifficultyEasiest, DifficultyEasiest},
		Seed:         1,
		DryRun:       true,
	}, nil, nil, nil); err == nil {
		t.Error("cancelled context should abort the game")
	}
}
