package classifier

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/souchan25/virtualHealthAssistant/internal/logger"
	"github.com/souchan25/virtualHealthAssistant/internal/symptoms"
)

// Metadata file names inside the datasets directory.
const (
	SeverityFile    = "Symptom-severity.csv"
	DescriptionFile = "symptom_Description.csv"
	PrecautionFile  = "symptom_precaution.csv"
)

// Metadata holds per-disease descriptions and precautions and per-symptom
// severity weights. It is immutable after LoadMetadata returns.
type Metadata struct {
	descriptions map[string]string
	precautions  map[string][]string
	severity     map[string]int
}

func diseaseKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Description returns the description for a disease, or "".
func (m *Metadata) Description(label string) string {
	if m == nil {
		return ""
	}
	return m.descriptions[diseaseKey(label)]
}

// Precautions returns the precautions for a disease, or nil.
func (m *Metadata) Precautions(label string) []string {
	if m == nil {
		return nil
	}
	p := m.precautions[diseaseKey(label)]
	if p == nil {
		return nil
	}
	out := make([]string, len(p))
	copy(out, p)
	return out
}

// Severity returns the weight for a normalized symptom token.
func (m *Metadata) Severity(token string) (int, bool) {
	if m == nil {
		return 0, false
	}
	w, ok := m.severity[token]
	return w, ok
}

// LoadMetadata reads the three metadata CSVs from dir. A missing file is
// logged and skipped; a malformed file is an error.
func LoadMetadata(dir string) (*Metadata, error) {
	m := &Metadata{
		descriptions: map[string]string{},
		precautions:  map[string][]string{},
		severity:     map[string]int{},
	}

	loaders := []struct {
		name string
		fn   func(rows [][]string) error
	}{
		{SeverityFile, m.loadSeverity},
		{DescriptionFile, m.loadDescriptions},
		{PrecautionFile, m.loadPrecautions},
	}

	for _, l := range loaders {
		rows, err := readCSV(filepath.Join(dir, l.name))
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("metadata file missing", "file", l.name, "dir", dir)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := l.fn(rows); err != nil {
			return nil, fmt.Errorf("%s: %w", l.name, err)
		}
	}
	return m, nil
}

// readCSV returns all data rows, skipping the header.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	header := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		if header {
			header = false
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (m *Metadata) loadSeverity(rows [][]string) error {
	for i, r := range rows {
		if len(r) < 2 {
			continue
		}
		w, err := strconv.Atoi(strings.TrimSpace(r[1]))
		if err != nil {
			return fmt.Errorf("row %d: weight %q: %w", i+2, r[1], err)
		}
		m.severity[symptoms.Normalize(r[0])] = w
	}
	return nil
}

func (m *Metadata) loadDescriptions(rows [][]string) error {
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		m.descriptions[diseaseKey(r[0])] = strings.TrimSpace(r[1])
	}
	return nil
}

func (m *Metadata) loadPrecautions(rows [][]string) error {
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		var ps []string
		for _, p := range r[1:] {
			if p = strings.TrimSpace(p); p != "" {
				ps = append(ps, p)
			}
		}
		m.precautions[diseaseKey(r[0])] = ps
	}
	return nil
}
