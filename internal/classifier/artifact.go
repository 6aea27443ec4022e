package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/souchan25/virtualHealthAssistant/internal/logger"
	"github.com/souchan25/virtualHealthAssistant/internal/symptoms"
)

// Artifact file names, tried in this order.
const (
	ArtifactV2     = "disease_predictor_v2.json"
	ArtifactLegacy = "disease_predictor.json"
)

// Model kinds understood by the artifact decoder.
const (
	KindForest   = "forest"
	KindCentroid = "centroid"
)

// artifact is the on-disk model format.
type artifact struct {
	FormatVersion int             `json:"format_version"`
	Vocabulary    []string        `json:"vocabulary"`
	Model         json.RawMessage `json:"model"`
}

type modelHeader struct {
	Kind string `json:"kind"`
}

// Load reads the versioned artifact from dir, falling back to the legacy
// artifact in the same directory. Metadata CSVs are attached when
// metaDir is non-empty.
func Load(dir, metaDir string) (*Classifier, error) {
	var errs []error
	for _, name := range []string{ArtifactV2, ArtifactLegacy} {
		path := filepath.Join(dir, name)
		c, err := LoadFile(path)
		if err == nil {
			if metaDir != "" {
				meta, merr := LoadMetadata(metaDir)
				if merr != nil {
					logger.Warn("disease metadata unavailable", "dir", metaDir, "error", merr)
				} else {
					c.meta = meta
				}
			}
			return c, nil
		}
		logger.Debug("model artifact rejected", "path", path, "error", err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrModelLoad, errors.Join(errs...))
}

// LoadFile decodes a single artifact file.
func LoadFile(path string) (*Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrModelLoad, path, err)
	}
	model, vocab, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelLoad, path, err)
	}
	return New(model, vocab, WithSource(path)), nil
}

// Decode parses artifact bytes into a model and its vocabulary.
func Decode(raw []byte) (Model, *symptoms.Vocabulary, error) {
	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, nil, fmt.Errorf("decode artifact: %w", err)
	}

	vocab := symptoms.NewVocabulary(a.Vocabulary)
	if vocab.Len() == 0 {
		return nil, nil, fmt.Errorf("artifact has empty vocabulary")
	}
	if vocab.Len() != len(a.Vocabulary) {
		return nil, nil, fmt.Errorf("artifact vocabulary has duplicate or blank entries")
	}

	var hdr modelHeader
	if err := json.Unmarshal(a.Model, &hdr); err != nil {
		return nil, nil, fmt.Errorf("decode model header: %w", err)
	}

	switch hdr.Kind {
	case KindForest:
		var f Forest
		if err := json.Unmarshal(a.Model, &f); err != nil {
			return nil, nil, fmt.Errorf("decode forest: %w", err)
		}
		if err := f.validate(vocab.Len()); err != nil {
			return nil, nil, err
		}
		return &f, vocab, nil
	case KindCentroid:
		var m Centroid
		if err := json.Unmarshal(a.Model, &m); err != nil {
			return nil, nil, fmt.Errorf("decode centroid: %w", err)
		}
		if err := m.validate(vocab.Len()); err != nil {
			return nil, nil, err
		}
		return &m, vocab, nil
	default:
		return nil, nil, fmt.Errorf("unknown model kind %q", hdr.Kind)
	}
}
