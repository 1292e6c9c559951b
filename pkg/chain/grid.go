// Package chain implements the board engine for the chain-reaction game:
// a rectangular grid of charged cells, move application with cascade
// propagation, and material scoring. The package has no opinion about
// turn order or legality; callers must only target cells that are
// unclaimed or already owned by the mover.
package chain

import (
	"fmt"
	"strings"
)

// Cell is one board square. Owner 0 means unclaimed. Between moves every
// cell satisfies Dots <= Capacity; the invariant is only broken mid-cascade.
type Cell struct {
	Dots     uint8
	Owner    uint8
	Capacity uint8
}

// IsFull reports whether one more dot would make the cell overflow.
func (c Cell) IsFull() bool { return c.Dots == c.Capacity }

// Pos addresses a cell by column and row.
type Pos struct {
	X uint8 `json:"x"`
	Y uint8 `json:"y"`
}

// Grid is a value type: Clone produces an independent deep copy and WithMove
// never mutates the receiver. A fresh Grid has every cell at one dot,
// unclaimed, with zero capacity until InitCapacity runs.
type Grid struct {
	cells      []Cell
	width      uint8
	height     uint8
	numPlayers uint8
}

// New allocates a width x height grid for the given player count.
// Call InitCapacity before simulating moves.
func New(width, height, numPlayers uint8) *Grid {
	cells := make([]Cell, int(width)*int(height))
	for i := range cells {
		cells[i] = Cell{Dots: 1}
	}
	return &Grid{
		cells:      cells,
		width:      width,
		height:     height,
		numPlayers: numPlayers,
	}
}

// Clone returns a deep copy sharing no storage with the receiver.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		cells:      make([]Cell, len(g.cells)),
		width:      g.width,
		height:     g.height,
		numPlayers: g.numPlayers,
	}
	copy(out.cells, g.cells)
	return out
}

// InitCapacity assigns positional capacities: 2 at corners, 3 on non-corner
// edges, 4 in the interior.
func (g *Grid) InitCapacity() {
	w, h := int(g.width), int(g.height)
	for y := 0; y < h; y++ {
		udEdge := y == 0 || y == h-1
		for x := 0; x < w; x++ {
			lrEdge := x == 0 || x == w-1
			c := &g.cells[y*w+x]
			switch {
			case udEdge && lrEdge:
				c.Capacity = 2
			case udEdge || lrEdge:
				c.Capacity = 3
			default:
				c.Capacity = 4
			}
		}
	}
}

// Width returns the number of columns.
func (g *Grid) Width() uint8 { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() uint8 { return g.height }

// PlayerCount returns the number of players the board was created for.
func (g *Grid) PlayerCount() uint8 { return g.numPlayers }

// Len returns the total cell count.
func (g *Grid) Len() int { return len(g.cells) }

// At returns the cell at (x, y).
func (g *Grid) At(x, y uint8) Cell {
	return g.cells[g.index(x, y)]
}

// Row returns row y as a shared slice; callers must not modify it.
func (g *Grid) Row(y uint8) []Cell {
	w := int(g.width)
	return g.cells[int(y)*w : (int(y)+1)*w]
}

// Cells returns the flat cell array in row-major order; callers must not
// modify it.
func (g *Grid) Cells() []Cell { return g.cells }

func (g *Grid) index(x, y uint8) int {
	return int(y)*int(g.width) + int(x)
}

// WithMove applies a move at (x, y) for player on a clone of the grid and
// returns the resulting grid plus whether any cell overflowed. A nil grid
// with cascaded == true means the cascade touched every cell on the board:
// the move decided the game (or the board went into a loop, which only
// happens once no opponent cells remain to absorb it).
//
// scratch may be nil; passing a reused Scratch avoids the per-call visited
// and queue allocations, which matters to the search AIs.
func (g *Grid) WithMove(x, y, player uint8, scratch *Scratch) (*Grid, bool) {
	if scratch == nil {
		scratch = &Scratch{}
	}
	visited := scratch.reset(g.Len())

	result := g.Clone()
	target := &result.cells[result.index(x, y)]
	target.Dots++
	target.Owner = player

	visitedCount := 0
	queue := append(scratch.queue[:0], Pos{x, y})
	head := 0
	cascaded := false

	for head < len(queue) {
		p := queue[head]
		head++
		// Every square on the board has been touched; the game is over.
		if visitedCount == result.Len() {
			scratch.queue = queue[:0]
			return nil, true
		}
		idx := result.index(p.X, p.Y)
		if !visited[idx] {
			visitedCount++
			visited[idx] = true
		}
		cell := &result.cells[idx]
		cell.Owner = player
		if cell.Dots > cell.Capacity {
			cascaded = true
			// Leave any remainder so a heavily overloaded cell carries its
			// extra charge into the next round of the cascade.
			cell.Dots -= cell.Capacity
			if p.X > 0 {
				result.cells[idx-1].Dots++
				queue = append(queue, Pos{p.X - 1, p.Y})
			}
			if p.Y > 0 {
				result.cells[idx-int(result.width)].Dots++
				queue = append(queue, Pos{p.X, p.Y - 1})
			}
			if p.X < result.width-1 {
				result.cells[idx+1].Dots++
				queue = append(queue, Pos{p.X + 1, p.Y})
			}
			if p.Y < result.height-1 {
				result.cells[idx+int(result.width)].Dots++
				queue = append(queue, Pos{p.X, p.Y + 1})
			}
		}
	}
	scratch.queue = queue[:0]

	return result, cascaded
}

// ScoreForPlayer returns a material score: +1 per cell owned by player,
// -1 per cell owned by anyone else, 0 for unclaimed. A heuristic, not a
// win/loss oracle.
func (g *Grid) ScoreForPlayer(player uint8) int32 {
	var score int32
	for i := range g.cells {
		owner := g.cells[i].Owner
		if owner == player {
			score++
		} else if owner != 0 {
			score--
		}
	}
	return score
}

// String renders the grid one row per line as [owner;dots] groups.
func (g *Grid) String() string {
	var b strings.Builder
	for y := uint8(0); y < g.height; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for _, c := range g.Row(y) {
			fmt.Fprintf(&b, "[%d;%d]", c.Owner, c.Dots)
		}
	}
	return b.String()
}
