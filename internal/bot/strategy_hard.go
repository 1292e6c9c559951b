package bot

import (
	"math"
	"math/rand"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// Per-tick search budgets. A tick stops early once either is spent and
// reports "not ready", resuming from the same queue next frame.
const (
	hardMaxMoves    = 50000
	hardMaxCascades = 10000
)

// Hard runs TreeState as an anytime search, roughly one full round of
// lookahead deep. Each tick first rolls against fallbackChance, biased by the
// current material score so a leading Hard plays more like its fallback; a
// fallback roll delegates the whole tick to the embedded weaker strategy.
type Hard struct {
	decided        bool
	pos            chain.Pos
	tree           *TreeState[int32]
	numPlayers     uint8
	fallback       Ai
	fallbackChance uint8
}

// NewHard wraps fallback (typically Medium) with the tree search.
func NewHard(fallback Ai, fallbackChance uint8) *Hard {
	return &Hard{
		tree:           NewTreeState[int32](),
		fallback:       fallback,
		fallbackChance: fallbackChance,
	}
}

// StartMove discards all pending search state and seeds a fresh tree with
// the current position.
func (a *Hard) StartMove(g *chain.Grid) {
	a.decided = false
	a.tree.Clear()
	a.tree.SetGrid(g)
	a.numPlayers = g.PlayerCount()
	a.fallback.StartMove(g)
}

func (a *Hard) Tick(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool) {
	if !a.decided {
		// A leading player rolls against a smaller range, so the fallback
		// fires more often the further ahead we are.
		biasedMax := 128 - g.ScoreForPlayer(player)*int32(g.Width())*int32(g.Height())/256
		biasedMax = min(max(biasedMax, 0), 255)

		var pos chain.Pos
		var ok bool
		if rng.Intn(int(biasedMax)+1) < int(a.fallbackChance) {
			pos, ok = a.fallback.Tick(g, player, rng)
		} else {
			pos, ok = a.search(player, rng)
		}
		if ok {
			a.pos, a.decided = pos, true
		}
	}
	return a.pos, a.decided
}

// search advances the tree until the queue drains or a budget is spent.
func (a *Hard) search(player uint8, rng *rand.Rand) (chain.Pos, bool) {
	a.tree.SetPlayer(player)

	totalMoves := 0
	totalCascades := 0
	for totalMoves < hardMaxMoves && totalCascades < hardMaxCascades {
		switch a.tree.EvalNext(hardEval, int(a.numPlayers)+1) {
		case EvalCascaded:
			totalCascades++
		case EvalUneventful:
		case EvalDone:
			best := int32(math.MinInt32)
			var bestMoves []chain.Pos
			for _, sm := range a.tree.RootMoves() {
				if sm.Score >= best {
					if sm.Score > best {
						bestMoves = bestMoves[:0]
						best = sm.Score
					}
					bestMoves = append(bestMoves, sm.Pos)
				}
			}
			return choose(rng, bestMoves), true
		}
		totalMoves++
	}
	return chain.Pos{}, false
}

// hardEval scores a position for the searching player: material score while
// the game is ongoing, the extremes once it is decided. With more than two
// players this is an approximation of adversarial play, not real N-player
// game theory; it is kept as-is because it is what makes the AI work.
func hardEval(g *chain.Grid, mover, me uint8) int32 {
	if g != nil {
		return g.ScoreForPlayer(me)
	}
	if mover != me {
		return math.MinInt32
	}
	return math.MaxInt32
}

func (a *Hard) Name() string { return "Hard" }
