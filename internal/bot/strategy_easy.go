package bot

import (
	"math/rand"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// Easy adds two reflexes on top of random play: grab corners early, and
// prefer moves that set off a multi-cell chain. Still no simulation.
type Easy struct {
	decided bool
	pos     chain.Pos
}

// StartMove discards any cached decision from a previous turn.
func (a *Easy) StartMove(*chain.Grid) {
	a.decided = false
}

func (a *Easy) Tick(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool) {
	if !a.decided {
		pos, ok := a.pick(g, player, rng)
		if !ok {
			return chain.Pos{}, false
		}
		a.pos, a.decided = pos, true
	}
	return a.pos, true
}

func (a *Easy) pick(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool) {
	if pos, ok := openCorner(g, player, rng); ok {
		return pos, true
	}

	// Full own cells that connect to at least one other full cell would
	// start a real chain. Ignore lone cascades. Baby want chaos.
	var origins []chain.Pos
	for y := uint8(0); y < g.Height(); y++ {
		for x, cell := range g.Row(y) {
			p := chain.Pos{X: uint8(x), Y: y}
			if cell.Owner == player && cell.IsFull() && chainSize(g, p) > 1 {
				origins = append(origins, p)
			}
		}
	}
	if len(origins) > 0 {
		return choose(rng, origins), true
	}

	var owned []chain.Pos
	for y := uint8(0); y < g.Height(); y++ {
		for x, cell := range g.Row(y) {
			if cell.Owner == player {
				owned = append(owned, chain.Pos{X: uint8(x), Y: y})
			}
		}
	}
	if len(owned) > 0 {
		// This may include some minor cascades. Oh well.
		return choose(rng, owned), true
	}

	var unowned []chain.Pos
	for y := uint8(0); y < g.Height(); y++ {
		for x, cell := range g.Row(y) {
			if cell.Owner == 0 {
				unowned = append(unowned, chain.Pos{X: uint8(x), Y: y})
			}
		}
	}
	if len(unowned) > 0 {
		// Last ditch: get a new cell.
		return choose(rng, unowned), true
	}
	return chain.Pos{}, false
}

func (a *Easy) Name() string { return "Easy" }

// openCorner implements the shared corner-greedy opening: while the player
// holds fewer than two corners and an unclaimed corner exists, take one.
func openCorner(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool) {
	cornerCount := 0
	var viable []chain.Pos
	for _, y := range [2]uint8{0, g.Height() - 1} {
		for _, x := range [2]uint8{0, g.Width() - 1} {
			switch g.At(x, y).Owner {
			case player:
				cornerCount++
			case 0:
				viable = append(viable, chain.Pos{X: x, Y: y})
			}
		}
	}
	if cornerCount < 2 && len(viable) > 0 {
		return choose(rng, viable), true
	}
	return chain.Pos{}, false
}

// chainSize flood-fills over orthogonally adjacent full cells and returns
// how many the chain reaches, counting the origin.
func chainSize(g *chain.Grid, origin chain.Pos) int {
	visited := make(map[chain.Pos]bool)
	queue := []chain.Pos{origin}
	count := 0
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if visited[p] {
			continue
		}
		visited[p] = true
		count++
		if p.X > 0 && g.At(p.X-1, p.Y).IsFull() {
			queue = append(queue, chain.Pos{X: p.X - 1, Y: p.Y})
		}
		if p.Y > 0 && g.At(p.X, p.Y-1).IsFull() {
			queue = append(queue, chain.Pos{X: p.X, Y: p.Y - 1})
		}
		if p.X < g.Width()-1 && g.At(p.X+1, p.Y).IsFull() {
			queue = append(queue, chain.Pos{X: p.X + 1, Y: p.Y})
		}
		if p.Y < g.Height()-1 && g.At(p.X, p.Y+1).IsFull() {
			queue = append(queue, chain.Pos{X: p.X, Y: p.Y + 1})
		}
	}
	return count
}
