package bot

import (
	"math/rand"
	"time"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// botRng is the package-level random source used where no caller-supplied
// rng exists (the arena, benchmarks). Use SeedBotRng for reproducible runs.
var botRng = rand.New(rand.NewSource(time.Now().UnixNano()))

// SeedBotRng sets a deterministic random source for reproducible bot behavior.
func SeedBotRng(seed int64) {
	botRng = rand.New(rand.NewSource(seed))
}

// choose picks a uniformly random element. Callers guarantee the slice is
// non-empty.
func choose(rng *rand.Rand, xs []chain.Pos) chain.Pos {
	return xs[rng.Intn(len(xs))]
}
