package chain

// Scratch holds the reusable visited buffer and work queue for cascade
// simulation. It is not safe for concurrent use; each component that drives
// simulations (an AI instance, a game session) should own its own.
type Scratch struct {
	visited []bool
	queue   []Pos
}

// reset returns a cleared visited slice of at least n entries, growing the
// buffer if needed.
func (s *Scratch) reset(n int) []bool {
	if cap(s.visited) < n {
		s.visited = make([]bool, n)
	} else {
		s.visited = s.visited[:n]
		for i := range s.visited {
			s.visited[i] = false
		}
	}
	return s.visited
}
