// Package classifier wraps a pre-trained disease model behind a single
// Predict call. The model and its vocabulary are loaded once and are
// read-only afterwards, so a Classifier is safe for concurrent use.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/souchan25/virtualHealthAssistant/internal/symptoms"
)

// DefaultConfidence is reported when the loaded model only yields a hard
// label and no class probabilities. Results carrying it are marked
// Approximate.
const DefaultConfidence = 0.85

// TopN is the number of ranked predictions returned for probabilistic models.
const TopN = 3

// ErrModelLoad is returned when no usable model artifact could be loaded.
var ErrModelLoad = errors.New("model load error")

// Model is a trained classifier over binary symptom vectors.
type Model interface {
	// Classes returns the label set in the model's internal order.
	Classes() []string

	// Predict returns the single most likely label.
	Predict(vec symptoms.Vector) (string, error)
}

// ProbabilisticModel is a Model that can also score every class.
type ProbabilisticModel interface {
	Model

	// Probabilities returns one probability per entry of Classes().
	Probabilities(vec symptoms.Vector) ([]float64, error)
}

// Prediction is one ranked (label, confidence) pair.
type Prediction struct {
	Label      string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

// Tags are the categorical attributes derived from a label.
type Tags struct {
	Communicable bool   `json:"communicable"`
	Acute        bool   `json:"acute"`
	Code         string `json:"code"`
}

// Result is the outcome of a single classification.
type Result struct {
	Label       string
	Confidence  float64
	Ranked      []Prediction
	Tags        Tags
	Approximate bool
	Description string
	Precautions []string
}

// Classifier pairs a model with its feature vocabulary and optional
// disease metadata.
type Classifier struct {
	model  Model
	vocab  *symptoms.Vocabulary
	meta   *Metadata
	source string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMetadata attaches descriptions and precautions to results.
func WithMetadata(m *Metadata) Option {
	return func(c *Classifier) { c.meta = m }
}

// WithSource records where the model was loaded from.
func WithSource(path string) Option {
	return func(c *Classifier) { c.source = path }
}

// New creates a Classifier from an already-constructed model.
func New(model Model, vocab *symptoms.Vocabulary, opts ...Option) *Classifier {
	c := &Classifier{model: model, vocab: vocab}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Vocabulary returns the symptom vocabulary the model was trained on.
func (c *Classifier) Vocabulary() *symptoms.Vocabulary { return c.vocab }

// Metadata returns the attached metadata store, which may be nil.
func (c *Classifier) Metadata() *Metadata { return c.meta }

// Source returns the artifact path the model was loaded from, if known.
func (c *Classifier) Source() string { return c.source }

// Probabilistic reports whether results will carry real class probabilities.
func (c *Classifier) Probabilistic() bool {
	_, ok := c.model.(ProbabilisticModel)
	return ok
}

// Predict classifies a feature vector. Probabilistic models yield up to
// TopN predictions sorted by descending confidence; hard-label models yield
// one prediction at DefaultConfidence.
func (c *Classifier) Predict(ctx context.Context, vec symptoms.Vector) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.vocab.Len() == 0 {
		return nil, symptoms.ErrModelNotReady
	}
	if len(vec) != c.vocab.Len() {
		return nil, fmt.Errorf("feature vector length %d does not match vocabulary size %d", len(vec), c.vocab.Len())
	}

	var ranked []Prediction
	approximate := false

	if pm, ok := c.model.(ProbabilisticModel); ok {
		probs, err := pm.Probabilities(vec)
		if err != nil {
			return nil, fmt.Errorf("model probabilities: %w", err)
		}
		ranked = rank(pm.Classes(), probs, TopN)
	} else {
		label, err := c.model.Predict(vec)
		if err != nil {
			return nil, fmt.Errorf("model predict: %w", err)
		}
		ranked = []Prediction{{Label: label, Confidence: DefaultConfidence}}
		approximate = true
	}

	if len(ranked) == 0 {
		return nil, fmt.Errorf("model returned no classes")
	}

	primary := ranked[0]
	res := &Result{
		Label:       primary.Label,
		Confidence:  primary.Confidence,
		Ranked:      ranked,
		Tags:        Tag(primary.Label),
		Approximate: approximate,
	}
	if c.meta != nil {
		res.Description = c.meta.Description(primary.Label)
		res.Precautions = c.meta.Precautions(primary.Label)
	}
	return res, nil
}

// rank returns the n highest-probability classes. Ties keep class order.
func rank(classes []string, probs []float64, n int) []Prediction {
	idx := make([]int, 0, len(classes))
	for i := range classes {
		if i < len(probs) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return probs[idx[a]] > probs[idx[b]]
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	out := make([]Prediction, len(idx))
	for i, j := range idx {
		out[i] = Prediction{Label: classes[j], Confidence: clamp01(probs[j])}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
