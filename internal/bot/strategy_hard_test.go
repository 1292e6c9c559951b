package bot

import (
	"math/rand"
	"testing"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// zeroSource makes rand.Rand fully deterministic: every draw is zero, so
// Intn always returns 0 and choose always takes the first candidate.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func zeroRng() *rand.Rand { return rand.New(zeroSource{}) }

// This is a "don't be dumb" test for the Hard AI. It exists because the Hard
// AI was, in fact, dumb. On a 2x2 board the only correct reply to player 1's
// corner is the opposite corner; with one full round of lookahead that should
// never be missed.
func TestHard_TakesOppositeCornerOnTinyBoard(t *testing.T) {
	ai := NewHard(NewMedium(0), 0)
	for _, y := range []uint8{0, 1} {
		for _, x := range []uint8{0, 1} {
			g := chain.New(2, 2, 2)
			g.InitCapacity()
			g, _ = g.WithMove(x, y, 1, nil)

			ai.StartMove(g)
			pos, ok := ai.Tick(g, 2, zeroRng())
			if !ok {
				t.Fatalf("player 1 at (%d,%d): search did not finish in one tick", x, y)
			}
			want := chain.Pos{X: 1 - x, Y: 1 - y}
			if pos != want {
				t.Errorf("player 1 at (%d,%d): got %v, want the opposite corner %v", x, y, pos, want)
			}
		}
	}
}

func TestHard_DecisionIsSticky(t *testing.T) {
	g := chain.New(2, 2, 2)
	g.InitCapacity()
	g, _ = g.WithMove(0, 0, 1, nil)

	ai := NewHard(NewMedium(0), 0)
	ai.StartMove(g)
	rng := zeroRng()
	first, ok := ai.Tick(g, 2, rng)
	if !ok {
		t.Fatal("search did not finish in one tick")
	}
	for i := 0; i < 5; i++ {
		pos, ok := ai.Tick(g, 2, rng)
		if !ok || pos != first {
			t.Fatalf("tick %d changed a made decision: got %v ok=%v, want %v", i, pos, ok, first)
		}
	}
}

func TestHard_StartMoveResetsSearch(t *testing.T) {
	g1 := chain.New(2, 2, 2)
	g1.InitCapacity()
	g1, _ = g1.WithMove(0, 0, 1, nil)

	g2 := chain.New(2, 2, 2)
	g2.InitCapacity()
	g2, _ = g2.WithMove(1, 1, 1, nil)

	ai := NewHard(NewMedium(0), 0)
	ai.StartMove(g1)
	if pos, ok := ai.Tick(g1, 2, zeroRng()); !ok || pos != (chain.Pos{X: 1, Y: 1}) {
		t.Fatalf("first turn: got %v ok=%v", pos, ok)
	}
	ai.StartMove(g2)
	if pos, ok := ai.Tick(g2, 2, zeroRng()); !ok || pos != (chain.Pos{X: 0, Y: 0}) {
		t.Errorf("second turn should re-search the new position: got %v ok=%v", pos, ok)
	}
}

func TestHard_LargeBoardSpreadsAcrossTicks(t *testing.T) {
	g := chain.New(9, 9, 2)
	g.InitCapacity()
	g, _ = g.WithMove(0, 0, 1, nil)

	ai := NewHard(NewMedium(0), 0)
	ai.StartMove(g)
	rng := zeroRng()

	// 9x9 with a round of lookahead is ~80^3 positions, far over one tick's
	// move budget; the decision must take several ticks but still arrive.
	if _, ok := ai.Tick(g, 2, rng); ok {
		t.Fatal("9x9 search finished within a single tick budget")
	}
	for i := 0; i < 300; i++ {
		if pos, ok := ai.Tick(g, 2, rng); ok {
			if !legalTarget(g.At(pos.X, pos.Y), 2) {
				t.Errorf("search picked an illegal cell %v", pos)
			}
			return
		}
	}
	t.Fatal("9x9 search never finished")
}

func TestHard_FallbackRollDelegates(t *testing.T) {
	g := chain.New(5, 5, 2)
	g.InitCapacity()
	g, _ = g.WithMove(0, 0, 1, nil)

	// Chance 255 with an all-zero rng makes every tick roll into the
	// fallback, which decides immediately; the tree queue stays untouched.
	ai := NewHard(NewMedium(0), 255)
	ai.StartMove(g)
	pos, ok := ai.Tick(g, 2, zeroRng())
	if !ok {
		t.Fatal("fallback tick should decide immediately")
	}
	if !legalTarget(g.At(pos.X, pos.Y), 2) {
		t.Errorf("fallback picked an illegal cell %v", pos)
	}
	if ai.tree.queue.Len() == 0 {
		t.Error("fallback decision should leave the seeded search queue alone")
	}
}

func TestHardEval_DecidedPositions(t *testing.T) {
	g := chain.New(3, 3, 2)
	g.InitCapacity()
	if got := hardEval(g, 1, 2); got != g.ScoreForPlayer(2) {
		t.Errorf("ongoing game should score material, got %d", got)
	}
	if got := hardEval(nil, 2, 2); got <= 0 {
		t.Errorf("winning the game myself should score the maximum, got %d", got)
	}
	if got := hardEval(nil, 1, 2); got >= 0 {
		t.Errorf("the opponent ending the game should score the minimum, got %d", got)
	}
}
