package bot

import (
	"math/rand"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// Easiest plays near-randomly: it grabs unclaimed cells until it has a
// foothold, then mostly tops up its own cells, occasionally favoring full
// ones. No lookahead at all.
type Easiest struct {
	decided bool
	pos     chain.Pos
}

// StartMove discards any cached decision from a previous turn.
func (a *Easiest) StartMove(*chain.Grid) {
	a.decided = false
}

// Tick computes a decision on the first call and returns it for the rest of
// the turn.
func (a *Easiest) Tick(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool) {
	if !a.decided {
		pos, ok := a.pick(g, player, rng)
		if !ok {
			return chain.Pos{}, false
		}
		a.pos, a.decided = pos, true
	}
	return a.pos, true
}

func (a *Easiest) pick(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool) {
	var newCells, midCells, fullCells []chain.Pos
	ownedCells := 0
	for y := uint8(0); y < g.Height(); y++ {
		for x, cell := range g.Row(y) {
			p := chain.Pos{X: uint8(x), Y: y}
			switch {
			case cell.Owner == 0:
				newCells = append(newCells, p)
			case cell.Owner == player:
				ownedCells++
				if cell.IsFull() {
					fullCells = append(fullCells, p)
				} else {
					midCells = append(midCells, p)
				}
			}
		}
	}

	switch {
	case ownedCells < 2 && len(newCells) > 0:
		return choose(rng, newCells), true
	case ownedCells > 0:
		roll := rng.Intn(10)
		switch {
		case roll < 1 && len(newCells) > 0:
			return choose(rng, newCells), true
		case roll < 4 && len(fullCells) > 0:
			return choose(rng, fullCells), true
		case len(midCells) > 0:
			return choose(rng, midCells), true
		}
		return chain.Pos{}, false // Something went horribly wrong
	default:
		return chain.Pos{}, false
	}
}

func (a *Easiest) Name() string { return "Easiest" }
