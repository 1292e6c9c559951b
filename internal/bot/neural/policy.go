package neural

import (
	"sort"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// ScoredCell is a legal placement with its policy logit.
type ScoredCell struct {
	Pos   chain.Pos
	Logit float32
}

// DecodePolicyLogits masks illegal cells out of the model's flat per-cell
// logits and returns the survivors sorted best-first. A logits slice shorter
// than the board yields nil, which callers treat as an inference failure.
func DecodePolicyLogits(logits []float32, g *chain.Grid, player uint8) []ScoredCell {
	if len(logits) < g.Len() {
		return nil
	}
	mask := LegalMask(g, player)
	w := int(g.Width())
	var out []ScoredCell
	for i, legal := range mask {
		if !legal {
			continue
		}
		out = append(out, ScoredCell{
			Pos:   chain.Pos{X: uint8(i % w), Y: uint8(i / w)},
			Logit: logits[i],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Logit > out[j].Logit })
	return out
}
