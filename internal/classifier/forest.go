package classifier

import (
	"fmt"

	"github.com/souchan25/virtualHealthAssistant/internal/symptoms"
)

// Node is one node of a binary decision tree over presence features.
// A node with Feature < 0 is a leaf and Value holds per-class weights.
// Internal nodes send absent features (0) Left and present features Right.
type Node struct {
	Feature int       `json:"feature"`
	Left    int       `json:"left"`
	Right   int       `json:"right"`
	Value   []float64 `json:"value,omitempty"`
}

// Tree is a flat node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a soft-voting ensemble of decision trees.
type Forest struct {
	ClassNames []string `json:"classes"`
	Trees      []Tree   `json:"trees"`
}

func (f *Forest) Classes() []string { return f.ClassNames }

// Probabilities averages each tree's normalized leaf distribution.
func (f *Forest) Probabilities(vec symptoms.Vector) ([]float64, error) {
	out := make([]float64, len(f.ClassNames))
	for ti := range f.Trees {
		leaf, err := f.Trees[ti].leaf(vec)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
		var sum float64
		for _, w := range leaf.Value {
			sum += w
		}
		if sum == 0 {
			continue
		}
		for c, w := range leaf.Value {
			out[c] += w / sum
		}
	}
	n := float64(len(f.Trees))
	for c := range out {
		out[c] /= n
	}
	return out, nil
}

// Predict returns the class with the highest averaged probability.
func (f *Forest) Predict(vec symptoms.Vector) (string, error) {
	probs, err := f.Probabilities(vec)
	if err != nil {
		return "", err
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return f.ClassNames[best], nil
}

func (t *Tree) leaf(vec symptoms.Vector) (*Node, error) {
	i := 0
	// A well-formed tree reaches a leaf in at most len(Nodes) steps.
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n, nil
		}
		if vec[n.Feature] == 0 {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return nil, fmt.Errorf("cycle detected")
}

// validate checks structural consistency against the feature dimension.
func (f *Forest) validate(features int) error {
	if len(f.ClassNames) == 0 {
		return fmt.Errorf("forest has no classes")
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				if len(n.Value) != len(f.ClassNames) {
					return fmt.Errorf("tree %d node %d: leaf has %d values, want %d", ti, ni, len(n.Value), len(f.ClassNames))
				}
				continue
			}
			if n.Feature >= features {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			if n.Left < 0 || n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
			}
		}
	}
	return nil
}
