package bot

import (
	"math/rand"
	"sync"

	gonnx "github.com/advancedclimatesystems/gonnx"
	"github.com/rs/zerolog/log"
	"gorgonia.org/tensor"

	"github.com/freeeve/critical-mass/internal/bot/neural"
	"github.com/freeeve/critical-mass/pkg/chain"
)

// GonnxModelPath is the directory containing policy.onnx. Set at startup
// from the GONNX_MODEL_PATH env var or default to "engine/models".
var GonnxModelPath string

// newGonnxOrFallback attempts to create a GonnxStrategy. If loading fails,
// it falls back to Hard so the game can proceed.
func newGonnxOrFallback() Ai {
	s, err := newGonnxStrategy()
	if err != nil {
		log.Warn().Err(err).Msg("hard-gonnx requested but model load failed; falling back to hard")
		return NewHard(NewMedium(0), hardFallbackChance)
	}
	return s
}

// GonnxStrategy uses gonnx (pure Go ONNX runtime) to pick moves with a
// policy network trained on arena self-play. Inference failures on a given
// position fall through to the embedded Medium so a turn always completes.
type GonnxStrategy struct {
	policy   *gonnx.Model
	mu       sync.Mutex
	fallback *Medium
	decided  bool
	pos      chain.Pos
}

func newGonnxStrategy() (*GonnxStrategy, error) {
	path := GonnxModelPath
	if path == "" {
		path = "engine/models"
	}
	policy, err := gonnx.NewModelFromFile(path + "/policy.onnx")
	if err != nil {
		return nil, err
	}
	return &GonnxStrategy{policy: policy, fallback: NewMedium(0)}, nil
}

// StartMove discards any cached decision from a previous turn.
func (s *GonnxStrategy) StartMove(g *chain.Grid) {
	s.decided = false
	s.fallback.StartMove(g)
}

func (s *GonnxStrategy) Tick(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool) {
	if !s.decided {
		pos, ok := s.pick(g, player, rng)
		if !ok {
			return chain.Pos{}, false
		}
		s.pos, s.decided = pos, true
	}
	return s.pos, true
}

func (s *GonnxStrategy) pick(g *chain.Grid, player uint8, rng *rand.Rand) (chain.Pos, bool) {
	logits := s.runPolicy(g, player)
	ranked := neural.DecodePolicyLogits(logits, g, player)
	if len(ranked) == 0 {
		if HasLegalMove(g, player) {
			log.Debug().Uint8("player", player).Msg("gonnx inference failed, using medium fallback")
			return s.fallback.pick(g, player, rng)
		}
		return chain.Pos{}, false
	}
	return ranked[0].Pos, true
}

// runPolicy encodes the position and runs the policy model, returning flat
// per-cell logits or nil on failure.
func (s *GonnxStrategy) runPolicy(g *chain.Grid, player uint8) []float32 {
	boardTensor := tensor.New(
		tensor.WithShape(1, g.Len(), neural.NumFeatures),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(neural.EncodeGrid(g, player)),
	)
	sizeTensor := tensor.New(
		tensor.WithShape(2),
		tensor.Of(tensor.Int64),
		tensor.WithBacking([]int64{int64(g.Width()), int64(g.Height())}),
	)

	inputs := gonnx.Tensors{
		"board":      boardTensor,
		"board_size": sizeTensor,
	}

	s.mu.Lock()
	outputs, err := s.policy.Run(inputs)
	s.mu.Unlock()
	if err != nil {
		log.Debug().Err(err).Msg("gonnx policy run error")
		return nil
	}

	out, ok := outputs["cell_logits"]
	if !ok {
		log.Debug().Msg("gonnx output 'cell_logits' not found")
		return nil
	}
	switch d := out.Data().(type) {
	case []float32:
		return d
	case []float64:
		f32 := make([]float32, len(d))
		for i, v := range d {
			f32[i] = float32(v)
		}
		return f32
	default:
		log.Debug().Msgf("gonnx unexpected output type %T", d)
		return nil
	}
}

func (s *GonnxStrategy) Name() string { return "hard-gonnx" }
