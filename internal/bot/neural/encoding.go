// Package neural encodes board positions as tensors for the ONNX policy
// model and decodes its per-cell logits back into scored moves.
package neural

import "github.com/freeeve/critical-mass/pkg/chain"

// MaxPlayers is the most seats the encoding supports; the wire format caps
// owners at 7 anyway.
const MaxPlayers = 8

// NumFeatures is the per-cell feature width: normalized dots, normalized
// capacity, holes left, one mine-flag, and an owner one-hot.
const NumFeatures = 4 + MaxPlayers

// EncodeGrid flattens a grid into a (cells x NumFeatures) float32 buffer in
// row-major cell order, from the perspective of player me.
func EncodeGrid(g *chain.Grid, me uint8) []float32 {
	out := make([]float32, g.Len()*NumFeatures)
	for i, c := range g.Cells() {
		f := out[i*NumFeatures:]
		f[0] = float32(c.Dots) / 4
		f[1] = float32(c.Capacity) / 4
		f[2] = float32(c.Capacity-c.Dots) / 4
		if c.Owner == me {
			f[3] = 1
		}
		if c.Owner < MaxPlayers {
			f[4+int(c.Owner)] = 1
		}
	}
	return out
}

// LegalMask returns one flag per cell: true where player may place.
func LegalMask(g *chain.Grid, player uint8) []bool {
	out := make([]bool, g.Len())
	for i, c := range g.Cells() {
		out[i] = c.Owner == 0 || c.Owner == player
	}
	return out
}
