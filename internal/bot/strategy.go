// Package bot implements the AI ladder for the chain-reaction game, from a
// random-ish Easiest up to the incremental tree-searching Hard, plus the
// offline arena that pits difficulties against each other.
package bot

import (
	"math/rand"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// Ai is the contract every difficulty implements.
//
// StartMove is called once at the start of the AI's turn and discards any
// state left over from a previous turn. Tick is then called once per frame
// (roughly 60 Hz) with the same logical grid until it returns ok == true; a
// single Tick call is expected to stay within about 1/60th of a second. Once
// a decision is available Tick keeps returning one for the rest of the turn,
// though the specific cell may vary among still-tied-best choices.
type Ai interface {
	StartMove(g *chain.Grid)
	Tick(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool)
	Name() string
}

// Difficulty levels accepted by ForDifficulty.
const (
	DifficultyEasiest     = "easiest"
	DifficultyEasy        = "easy"
	DifficultyMedium      = "medium"
	DifficultyMediumSharp = "medium-sharp"
	DifficultyHard        = "hard"
	DifficultyGonnx       = "hard-gonnx"
)

// Default tuning for the factory. Medium's fail chance is the probability
// (out of 256) of deliberately skipping a good move; Hard's fallback chance
// feeds the score-biased roll that sends a tick to the weaker strategy.
const (
	mediumFailChance   = 48
	hardFallbackChance = 32
)

// ForDifficulty returns the strategy for a difficulty level. Unknown levels
// get Easiest so a mistyped lobby setting still produces a playable bot.
func ForDifficulty(difficulty string) Ai {
	switch difficulty {
	case DifficultyEasy:
		return &Easy{}
	case DifficultyMedium:
		return NewMedium(mediumFailChance)
	case DifficultyMediumSharp:
		return NewMedium(0)
	case DifficultyHard:
		return NewHard(NewMedium(0), hardFallbackChance)
	case DifficultyGonnx:
		return newGonnxOrFallback()
	default:
		return &Easiest{}
	}
}

// legalTarget reports whether player may place on the cell.
func legalTarget(c chain.Cell, player uint8) bool {
	return c.Owner == 0 || c.Owner == player
}

// HasLegalMove reports whether any cell on the grid is a legal target for
// player. Strategies return no decision when this is false; callers use it
// to detect elimination.
func HasLegalMove(g *chain.Grid, player uint8) bool {
	for _, c := range g.Cells() {
		if legalTarget(c, player) {
			return true
		}
	}
	return false
}
