package bot

import (
	"math/rand"
	"testing"

	"github.com/freeeve/critical-mass/pkg/chain"
)

func TestMedium_TakesWinningMove(t *testing.T) {
	// All four corners of a 2x2 board are claimed and full; any placement by
	// player 2 now cascades across the entire board and ends the game.
	g := chain.New(2, 2, 2)
	g.InitCapacity()
	g, _ = g.WithMove(0, 0, 1, nil)
	g, _ = g.WithMove(1, 0, 1, nil)
	g, _ = g.WithMove(0, 1, 2, nil)
	g, _ = g.WithMove(1, 1, 2, nil)

	rng := rand.New(rand.NewSource(5))
	ai := NewMedium(0)
	pos := tickUntilDecided(t, ai, g, 2, rng)
	if g.At(pos.X, pos.Y).Owner != 2 {
		t.Fatalf("picked a cell player 2 cannot place on: %v", pos)
	}
	if next, _ := g.WithMove(pos.X, pos.Y, 2, nil); next != nil {
		t.Errorf("move %v does not end the game", pos)
	}
}

func TestMedium_ChasesBigScoreSwing(t *testing.T) {
	// Player 2 holds two full corners; cascading (0,2) captures player 1's
	// edge cell at (0,1) for a swing of three, strictly better than any
	// other placement.
	g := chain.New(3, 3, 2)
	g.InitCapacity()
	g, _ = g.WithMove(0, 0, 1, nil)
	g, _ = g.WithMove(0, 1, 1, nil)
	g, _ = g.WithMove(0, 2, 2, nil)
	g, _ = g.WithMove(2, 2, 2, nil)

	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 20; i++ {
		ai := NewMedium(0)
		pos := tickUntilDecided(t, ai, g, 2, rng)
		if pos != (chain.Pos{X: 0, Y: 2}) {
			t.Fatalf("want the capturing cascade at (0,2), got %v", pos)
		}
	}
}

func TestMedium_OpensWithCorners(t *testing.T) {
	g := chain.New(5, 5, 2)
	g.InitCapacity()

	rng := rand.New(rand.NewSource(5))
	ai := NewMedium(0)
	pos := tickUntilDecided(t, ai, g, 1, rng)
	isCorner := (pos.X == 0 || pos.X == 4) && (pos.Y == 0 || pos.Y == 4)
	if !isCorner {
		t.Errorf("opening pick should be a corner, got %v", pos)
	}
}

func TestMedium_NeverPicksOpponentCell(t *testing.T) {
	// Random mid-game positions; the pick must always be unclaimed or own.
	rng := rand.New(rand.NewSource(99))
	for round := 0; round < 50; round++ {
		g := chain.New(4, 4, 2)
		g.InitCapacity()
		player := uint8(1)
		for i := 0; i < 6; i++ {
			var open []chain.Pos
			for y := uint8(0); y < g.Height(); y++ {
				for x, cell := range g.Row(y) {
					if legalTarget(cell, player) {
						open = append(open, chain.Pos{X: uint8(x), Y: y})
					}
				}
			}
			p := open[rng.Intn(len(open))]
			next, _ := g.WithMove(p.X, p.Y, player, nil)
			if next == nil {
				break
			}
			g = next
			player = player%2 + 1
		}
		if !HasLegalMove(g, 2) {
			continue
		}
		ai := NewMedium(mediumFailChance)
		pos := tickUntilDecided(t, ai, g, 2, rng)
		if owner := g.At(pos.X, pos.Y).Owner; owner != 0 && owner != 2 {
			t.Fatalf("round %d: picked opponent cell %v on\n%s", round, pos, g)
		}
	}
}

func TestMovesWithEval(t *testing.T) {
	evals := []scoredMove{
		{chain.Pos{X: 0, Y: 0}, 3},
		{chain.Pos{X: 1, Y: 0}, 5},
		{chain.Pos{X: 0, Y: 1}, 5},
	}
	got := movesWithEval(evals, 5)
	if len(got) != 2 || got[0] != (chain.Pos{X: 1, Y: 0}) || got[1] != (chain.Pos{X: 0, Y: 1}) {
		t.Errorf("expected both score-5 moves, got %v", got)
	}
	if movesWithEval(evals, 9) != nil {
		t.Error("no move has score 9")
	}
}

func TestNeighbors_CountsByPosition(t *testing.T) {
	g := chain.New(3, 3, 2)
	g.InitCapacity()
	if n := len(neighbors(g, chain.Pos{X: 0, Y: 0})); n != 2 {
		t.Errorf("corner has 2 neighbors, got %d", n)
	}
	if n := len(neighbors(g, chain.Pos{X: 1, Y: 0})); n != 3 {
		t.Errorf("edge has 3 neighbors, got %d", n)
	}
	if n := len(neighbors(g, chain.Pos{X: 1, Y: 1})); n != 4 {
		t.Errorf("center has 4 neighbors, got %d", n)
	}
}
