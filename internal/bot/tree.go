package bot

import (
	"cmp"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// EvalStatus is the outcome of a single EvalNext step.
type EvalStatus int

const (
	// EvalDone means the move queue is empty; the search is complete.
	EvalDone EvalStatus = iota
	// EvalCascaded means the evaluated move triggered a cascade.
	EvalCascaded
	// EvalUneventful means the evaluated move placed a dot and nothing more.
	EvalUneventful
)

// moveSegment is one slot of the flattened move queue: either a move or,
// when y is the sentinel, a path-length marker terminating a path.
type moveSegment struct {
	x, y uint8
}

const segSentinel = 0xff

// MoveQueue holds the paths of moves still to be explored, flattened into a
// single buffer: each path is its moves followed by a length marker, so
// pushing and popping never allocate per path.
type MoveQueue struct {
	segs []moveSegment
}

// Clear drops all pending paths, keeping the buffer.
func (q *MoveQueue) Clear() {
	q.segs = q.segs[:0]
}

// Push appends a path.
func (q *MoveQueue) Push(path []chain.Pos) {
	if len(path) >= 256 {
		panic("bot: analysis depth above 255 is not supported")
	}
	for _, m := range path {
		q.segs = append(q.segs, moveSegment{m.X, m.Y})
	}
	q.segs = append(q.segs, moveSegment{uint8(len(path)), segSentinel})
}

// PushSuffixed appends path + next as one path without building the
// concatenation first.
func (q *MoveQueue) PushSuffixed(path []chain.Pos, next chain.Pos) {
	if len(path) >= 255 {
		panic("bot: analysis depth above 255 is not supported")
	}
	for _, m := range path {
		q.segs = append(q.segs, moveSegment{m.X, m.Y})
	}
	q.segs = append(q.segs, moveSegment{next.X, next.Y})
	q.segs = append(q.segs, moveSegment{uint8(len(path) + 1), segSentinel})
}

// Pop removes the most recently pushed path, appending its moves to buf and
// returning the result. ok is false when the queue is empty.
func (q *MoveQueue) Pop(buf []chain.Pos) (path []chain.Pos, ok bool) {
	if len(q.segs) == 0 {
		return buf, false
	}
	marker := q.segs[len(q.segs)-1]
	if marker.y != segSentinel {
		panic("bot: move queue in invalid state")
	}
	depth := int(marker.x)
	start := len(q.segs) - 1 - depth
	for _, s := range q.segs[start : len(q.segs)-1] {
		if s.y == segSentinel {
			panic("bot: move queue in invalid state")
		}
		buf = append(buf, chain.Pos{X: s.x, Y: s.y})
	}
	q.segs = q.segs[:start]
	return buf, true
}

// Len returns the number of segments buffered (not the number of paths).
func (q *MoveQueue) Len() int { return len(q.segs) }

// vacantNode marks an unexplored or pruned child slot in the tree arena.
const vacantNode = int32(-1)

// treeNode is one explored position. grid is nil once the game is decided
// there. children holds one arena index per destination cell and is empty at
// the depth limit. unvisited counts queued-but-unexplored paths anywhere in
// this node's subtree; a node's score is only trustworthy for pruning once
// it reaches zero.
type treeNode[T cmp.Ordered] struct {
	grid      *chain.Grid
	children  []int32
	score     T
	unvisited uint16
}

// ScoredMove pairs a root move with its propagated score.
type ScoredMove[T cmp.Ordered] struct {
	Pos   chain.Pos
	Score T
}

// EvalFunc scores a position: the grid after the move (nil if the move
// decided the game), the player who made the move, and the player the search
// is run for.
type EvalFunc[T cmp.Ordered] func(g *chain.Grid, mover, me uint8) T

// TreeState is the incremental adversarial search engine: a sparse,
// lazily-expanded move tree with bottom-up score propagation and exact-safe
// pruning. Nodes live in one growable arena and reference children by index;
// pruned subtrees go on a freelist for reuse.
//
// Each EvalNext call does one fixed unit of work (explore one queued path),
// so a caller can time-slice the search across frames and stop on any
// budget; see Hard.
type TreeState[T cmp.Ordered] struct {
	nodes    []treeNode[T]
	free     []int32
	root     int32
	me       uint8
	grid     *chain.Grid
	queue    MoveQueue
	movesBuf []chain.Pos
	scratch  chain.Scratch
}

// NewTreeState creates an empty search.
func NewTreeState[T cmp.Ordered]() *TreeState[T] {
	return &TreeState[T]{
		root:     vacantNode,
		movesBuf: make([]chain.Pos, 0, 32), // some extra buffer
	}
}

// SetGrid seeds the search with the position to analyze and resets the work
// queue to the empty path (the root).
func (t *TreeState[T]) SetGrid(g *chain.Grid) {
	t.grid = g.Clone()
	t.queue.Clear()
	t.queue.Push(nil)
}

// SetPlayer sets the player the search maximizes for.
func (t *TreeState[T]) SetPlayer(me uint8) {
	t.me = me
}

// Clear discards the whole tree and the player; SetGrid/SetPlayer must run
// again before the next EvalNext.
func (t *TreeState[T]) Clear() {
	t.release(t.root)
	t.root = vacantNode
	t.me = 0
}

// EvalNext performs one search step: pop a queued path, replay it from the
// root grid, evaluate the resulting position with eval, materialize its node,
// enqueue its children (while the path is shorter than maxDepth and the game
// is undecided), and propagate scores back up the path.
//
// It panics when the grid or player has not been set; those are contract
// violations of the orchestrating caller, not runtime conditions.
func (t *TreeState[T]) EvalNext(eval EvalFunc[T], maxDepth int) EvalStatus {
	if t.grid == nil {
		panic("bot: call SetGrid before EvalNext")
	}
	if t.me == 0 {
		panic("bot: call SetPlayer before EvalNext")
	}

	path, ok := t.queue.Pop(t.movesBuf[:0])
	t.movesBuf = path
	if !ok {
		return EvalDone // out of unexplored positions
	}

	pc := t.grid.PlayerCount()
	curPlayer := (t.me + pc - 1) % pc

	// Walk the tree along the path, decrementing each ancestor's unvisited
	// count, and apply the path's final move on the grid cached one level up.
	var grid *chain.Grid
	cascade := false
	slot := &t.root
	if len(path) == 0 {
		grid = t.grid.Clone()
	} else {
		curGrid := t.grid
		for i, m := range path {
			idx := *slot
			if idx == vacantNode {
				panic("bot: eval path leads through a pruned node")
			}
			curGrid = t.nodes[idx].grid
			t.nodes[idx].unvisited--
			curPlayer = curPlayer%pc + 1
			childSlot := &t.nodes[idx].children[t.cellIndex(m)]
			if i == len(path)-1 {
				grid, cascade = curGrid.WithMove(m.X, m.Y, curPlayer, &t.scratch)
			}
			slot = childSlot
		}
	}

	score := eval(grid, curPlayer, t.me)

	// Enqueue one child path per legal cell for the next player, unless the
	// depth budget is spent or the game is decided here.
	nextPlayer := curPlayer%pc + 1
	var numMoves uint16
	var children []int32
	if len(path) < maxDepth && grid != nil {
		for y := uint8(0); y < grid.Height(); y++ {
			for x, cell := range grid.Row(y) {
				if legalTarget(cell, nextPlayer) {
					numMoves++
					t.queue.PushSuffixed(path, chain.Pos{X: uint8(x), Y: y})
				}
			}
		}
		children = make([]int32, grid.Len())
		for i := range children {
			children[i] = vacantNode
		}
	}

	*slot = t.alloc(treeNode[T]{
		grid:      grid,
		children:  children, // populated on explore
		score:     score,
		unvisited: numMoves,
	})

	// Every ancestor now has numMoves more unexplored paths below it.
	if numMoves > 0 {
		idx := t.root
		for _, m := range path {
			t.nodes[idx].unvisited += numMoves
			idx = t.nodes[idx].children[t.cellIndex(m)]
		}
	}

	t.propagate(t.root, path, t.me)

	if cascade {
		return EvalCascaded
	}
	return EvalUneventful
}

// propagate re-derives scores bottom-up along the just-explored path. A
// node's score becomes the best child score from me's perspective: maximized
// where it was me's turn to move, minimized otherwise. Once a node has no
// unexplored descendants, siblings strictly dominated by the new best are
// released; pruning any earlier could discard a branch whose evaluation is
// not yet reliable.
func (t *TreeState[T]) propagate(idx int32, path []chain.Pos, player uint8) {
	if idx == vacantNode {
		panic("bot: propagation reached a pruned node")
	}
	if len(path) == 0 {
		return
	}
	m, rest := path[0], path[1:]
	if len(rest) > 0 {
		pc := t.nodes[idx].grid.PlayerCount()
		t.propagate(t.nodes[idx].children[t.cellIndex(m)], rest, player%pc+1)
	}

	n := &t.nodes[idx]
	if len(n.children) == 0 {
		return
	}
	var best T
	haveBest := false
	for _, c := range n.children {
		if c == vacantNode {
			continue
		}
		s := t.nodes[c].score
		if !haveBest {
			best, haveBest = s, true
			continue
		}
		if (player == t.me && s > best) || (player != t.me && s < best) {
			best = s
		}
	}
	if !haveBest {
		return
	}
	n.score = best
	if n.unvisited == 0 {
		for i, c := range n.children {
			if c == vacantNode {
				continue
			}
			s := t.nodes[c].score
			if (player == t.me && s < best) || (player != t.me && s > best) {
				t.release(c)
				n.children[i] = vacantNode
			}
		}
	}
}

// RootMoves returns the root's immediate moves and their current scores.
// It panics before the first evaluation round has materialized the root.
func (t *TreeState[T]) RootMoves() []ScoredMove[T] {
	if t.root == vacantNode {
		panic("bot: need at least one evaluation round")
	}
	root := &t.nodes[t.root]
	var out []ScoredMove[T]
	w := int(t.grid.Width())
	for i, c := range root.children {
		if c == vacantNode {
			continue
		}
		out = append(out, ScoredMove[T]{
			Pos:   chain.Pos{X: uint8(i % w), Y: uint8(i / w)},
			Score: t.nodes[c].score,
		})
	}
	return out
}

func (t *TreeState[T]) cellIndex(m chain.Pos) int {
	return int(m.Y)*int(t.grid.Width()) + int(m.X)
}

func (t *TreeState[T]) alloc(n treeNode[T]) int32 {
	if k := len(t.free); k > 0 {
		idx := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[idx] = n
		return idx
	}
	t.nodes = append(t.nodes, n)
	return int32(len(t.nodes) - 1)
}

// release returns a subtree's nodes to the freelist.
func (t *TreeState[T]) release(idx int32) {
	if idx == vacantNode {
		return
	}
	for _, c := range t.nodes[idx].children {
		t.release(c)
	}
	t.nodes[idx].grid = nil
	t.nodes[idx].children = nil
	t.free = append(t.free, idx)
}
