package bot

import (
	"math/rand"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// Medium is a one-ply searcher: it simulates every legal move, takes outright
// wins, chases score swings of two or more, and otherwise applies a "don't
// open the door" filter that refuses to build next to an opponent cell that
// would overflow first. failChance (out of 256) is the probability of
// deliberately skipping a good move, used to scale the difficulty down.
type Medium struct {
	failChance uint8
	scratch    chain.Scratch
	decided    bool
	pos        chain.Pos
}

// NewMedium creates a Medium strategy with the given fail chance.
func NewMedium(failChance uint8) *Medium {
	return &Medium{failChance: failChance}
}

// StartMove discards any cached decision from a previous turn.
func (a *Medium) StartMove(*chain.Grid) {
	a.decided = false
}

func (a *Medium) Tick(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool) {
	if !a.decided {
		pos, ok := a.pick(g, player, rng)
		if !ok {
			return chain.Pos{}, false
		}
		a.pos, a.decided = pos, true
	}
	return a.pos, true
}

type scoredMove struct {
	pos  chain.Pos
	eval int32
}

func (a *Medium) pick(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool) {
	if pos, ok := openCorner(g, player, rng); ok {
		return pos, true
	}

	baseline := g.ScoreForPlayer(player)
	var evals []scoredMove
	var winning []chain.Pos
	for y := uint8(0); y < g.Height(); y++ {
		for x, cell := range g.Row(y) {
			if !legalTarget(cell, player) {
				continue
			}
			p := chain.Pos{X: uint8(x), Y: y}
			next, _ := g.WithMove(p.X, p.Y, player, &a.scratch)
			if next == nil {
				winning = append(winning, p)
			} else {
				evals = append(evals, scoredMove{p, next.ScoreForPlayer(player)})
			}
		}
	}
	if len(winning) > 0 {
		// WE WON OMG WE ACTUALLY WON
		return choose(rng, winning), true
	}

	maxEval := baseline
	for _, e := range evals {
		maxEval = max(maxEval, e.eval)
	}
	if maxEval-baseline >= 2 && randByte(rng) >= a.failChance {
		// We can actually make a dent if we do something. Let's do it.
		return choose(rng, movesWithEval(evals, maxEval)), true
	}

	// No big swing available; look for anything that doesn't shoot us in
	// the foot. A candidate is dropped if any non-self neighbor has fewer
	// holes left (it would cascade first and hand them the race) and gets a
	// bonus point per neighbor it would beat to the overflow.
	var candidates []scoredMove
outer:
	for _, e := range evals {
		cell := g.At(e.pos.X, e.pos.Y)
		holes := cell.Capacity - cell.Dots
		eval := e.eval
		for _, n := range neighbors(g, e.pos) {
			if n.Owner == player {
				continue
			}
			nHoles := n.Capacity - n.Dots
			if nHoles < holes {
				// They will cascade first. Don't chance it.
				continue outer
			} else if nHoles > holes {
				// We're going to win. Let's do this.
				eval++
			}
		}
		candidates = append(candidates, scoredMove{e.pos, eval})
	}
	adjMax := baseline
	for _, c := range candidates {
		adjMax = max(adjMax, c.eval)
	}
	if len(candidates) > 0 && randByte(rng) >= a.failChance {
		return choose(rng, movesWithEval(candidates, adjMax)), true
	}

	// If we got here, there are no good moves. Do something so we aren't
	// deadlocked.
	if len(evals) > 0 {
		return choose(rng, movesWithEval(evals, maxEval)), true
	}
	return chain.Pos{}, false // Something has gone dreadfully wrong
}

func (a *Medium) Name() string { return "Medium" }

func movesWithEval(evals []scoredMove, eval int32) []chain.Pos {
	var out []chain.Pos
	for _, e := range evals {
		if e.eval == eval {
			out = append(out, e.pos)
		}
	}
	return out
}

// neighbors returns the up-to-four orthogonal neighbor cells.
func neighbors(g *chain.Grid, p chain.Pos) []chain.Cell {
	out := make([]chain.Cell, 0, 4)
	if p.X > 0 {
		out = append(out, g.At(p.X-1, p.Y))
	}
	if p.Y > 0 {
		out = append(out, g.At(p.X, p.Y-1))
	}
	if p.X < g.Width()-1 {
		out = append(out, g.At(p.X+1, p.Y))
	}
	if p.Y < g.Height()-1 {
		out = append(out, g.At(p.X, p.Y+1))
	}
	return out
}

func randByte(rng *rand.Rand) uint8 {
	return uint8(rng.Intn(256))
}
