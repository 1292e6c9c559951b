package chain

import "fmt"

// PackedCell is the one-byte wire form of a cell: owner in the top three
// bits, dots-1 in the low bits. Capacity is not carried; receivers rebuild
// it positionally with InitCapacity.
type PackedCell uint8

// Owner returns the packed owner, 0 for unclaimed.
func (p PackedCell) Owner() uint8 { return uint8(p) >> 5 }

// Dots returns the packed dot count, always >= 1.
func (p PackedCell) Dots() uint8 { return uint8(p)&0x1f + 1 }

// PackCell encodes a stable cell. It panics on a mid-cascade cell or an
// owner above 7; both are programmer errors, not wire conditions.
func PackCell(c Cell) PackedCell {
	if c.Dots > c.Capacity {
		panic("chain: packing a cell that is still cascading")
	}
	if c.Dots < 1 || c.Dots > 4 {
		panic(fmt.Sprintf("chain: cell dot count %d outside wire range", c.Dots))
	}
	if c.Owner > 7 {
		panic(fmt.Sprintf("chain: owner %d does not fit the wire format", c.Owner))
	}
	return PackedCell(c.Owner<<5 | (c.Dots - 1))
}

// Pack encodes the whole grid, one byte per cell in row-major order.
func (g *Grid) Pack() []byte {
	out := make([]byte, len(g.cells))
	for i, c := range g.cells {
		out[i] = byte(PackCell(c))
	}
	return out
}

// Unpack rebuilds a grid from its packed form. The returned grid has
// capacities initialized.
func Unpack(data []byte, width, height, numPlayers uint8) (*Grid, error) {
	if len(data) != int(width)*int(height) {
		return nil, fmt.Errorf("chain: packed grid is %d bytes, want %d", len(data), int(width)*int(height))
	}
	g := New(width, height, numPlayers)
	g.InitCapacity()
	for i, b := range data {
		p := PackedCell(b)
		g.cells[i].Owner = p.Owner()
		g.cells[i].Dots = p.Dots()
	}
	return g, nil
}
