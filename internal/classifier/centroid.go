package classifier

import (
	"fmt"

	"github.com/souchan25/virtualHealthAssistant/internal/symptoms"
)

// Centroid is a hard-label model: each class has a weight per feature and
// the class with the largest summed weight over present features wins.
// It exposes no probabilities.
type Centroid struct {
	ClassNames []string    `json:"classes"`
	Weights    [][]float64 `json:"weights"`
}

func (m *Centroid) Classes() []string { return m.ClassNames }

func (m *Centroid) Predict(vec symptoms.Vector) (string, error) {
	active := vec.Active()
	best, bestScore := 0, -1.0
	for c, w := range m.Weights {
		var score float64
		for _, i := range active {
			score += w[i]
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return m.ClassNames[best], nil
}

func (m *Centroid) validate(features int) error {
	if len(m.ClassNames) == 0 {
		return fmt.Errorf("centroid model has no classes")
	}
	if len(m.Weights) != len(m.ClassNames) {
		return fmt.Errorf("centroid model has %d weight rows for %d classes", len(m.Weights), len(m.ClassNames))
	}
	for c, w := range m.Weights {
		if len(w) != features {
			return fmt.Errorf("class %q has %d weights, want %d", m.ClassNames[c], len(w), features)
		}
	}
	return nil
}
