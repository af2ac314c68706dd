package reader

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Evaluator turns a finished reading into per-substance results. The
// simulator uses the cassette's outcome; a hardware evaluator ignores it and
// reads the strip.
type Evaluator interface {
	Evaluate(ctx context.Context, panel Panel, outcome Outcome) ([]SubstanceResult, error)
}

// IsPositive reports whether any substance reads positive.
func IsPositive(results []SubstanceResult) bool {
	return lo.SomeBy(results, func(r SubstanceResult) bool { return r.Result == OutcomePositive })
}

// Overall collapses substance results into a single outcome.
func Overall(results []SubstanceResult) Outcome {
	if IsPositive(results) {
		return OutcomePositive
	}
	return OutcomeNegative
}

// SimulatedEvaluator stands in for the optical reader.
type SimulatedEvaluator struct {
	probability float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedEvaluator returns a simulator where each secondary substance on
// a positive cassette is positive with the given probability. A nil source is
// seeded from the wall clock.
func NewSimulatedEvaluator(probability float64, src rand.Source) *SimulatedEvaluator {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>1|1)
	}
	return &SimulatedEvaluator{probability: probability, rng: rand.New(src)}
}

// Evaluate implements Evaluator. A negative outcome reads negative on every
// line; a positive outcome always reads positive on the first line.
func (e *SimulatedEvaluator) Evaluate(_ context.Context, panel Panel, outcome Outcome) ([]SubstanceResult, error) {
	if outcome != OutcomePositive {
		return lo.Map(panel.Substances, func(name string, _ int) SubstanceResult {
			return SubstanceResult{Name: name, Result: OutcomeNegative}
		}), nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	results := lo.Map(panel.Substances, func(name string, i int) SubstanceResult {
		if i == 0 || e.rng.Float64() < e.probability {
			return SubstanceResult{Name: name, Result: OutcomePositive}
		}
		return SubstanceResult{Name: name, Result: OutcomeNegative}
	})
	if len(results) > 0 && !IsPositive(results) {
		results[0].Result = OutcomePositive
	}
	return results, nil
}
