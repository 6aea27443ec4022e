// Package diagnosis runs the prediction path: symptoms are vectorized and
// classified, then optionally checked by a language-model validator whose
// bounded adjustment is blended into the classifier confidence.
package diagnosis

import (
	"math"

	"github.com/souchan25/virtualHealthAssistant/internal/repair"
)

// Opinion is a validator's judgment of a prediction.
type Opinion = repair.Opinion

// NeutralReasoning marks an opinion that stands in for a missing validator.
const NeutralReasoning = "unavailable"

// NeutralOpinion is used when no validator produced a usable opinion. It
// leaves the classifier confidence unchanged.
func NeutralOpinion() Opinion {
	return Opinion{Agrees: true, Reasoning: NeutralReasoning}
}

// Blend applies the opinion's adjustment to the classifier confidence and
// keeps the result in [0, 1]. The adjustment applies whether or not the
// validator agrees.
func Blend(primary float64, op Opinion) float64 {
	return math.Min(1, math.Max(0, primary+op.Delta))
}
