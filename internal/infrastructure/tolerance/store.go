// Package tolerance persists the euro tolerance used by the matching
// engine as a small JSON document.
//
// Reads never fail the caller: a missing file is initialized with the
// default, and a corrupt one falls back to the default with a logged
// warning. Writes are whole-file and atomic (temp file + rename);
// write failures are surfaced, not swallowed.
package tolerance

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

// Default is the tolerance applied when no configuration exists.
const Default = 3.00

// document is the on-disk shape. The field names match the historical
// configuration file consumed by the rest of the Aleph70 tooling.
type document struct {
	ToleranceEuros float64 `json:"tolerancia_euros"`
	Description    string  `json:"descripcion"`
	ModifiedAt     string  `json:"fecha_modificacion"`
}

// Store reads and writes the tolerance configuration file.
// Last-writer-wins; tolerance edits are infrequent administrative
// operations and need no locking.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store backed by the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Get returns the current tolerance. A missing file is initialized
// with the default before returning; any other read or parse problem
// is logged and the default is returned so the caller keeps operating.
func (s *Store) Get() float64 {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if werr := s.Set(Default); werr != nil {
			s.logger.Error("could not initialize tolerance config, using default",
				"path", s.path, "default", Default, "error", werr)
		}
		return Default
	}
	if err != nil {
		s.logger.Error("could not read tolerance config, using default",
			"path", s.path, "default", Default, "error", err)
		return Default
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Error("tolerance config is corrupt, using default",
			"path", s.path, "default", Default, "error", err)
		return Default
	}
	if doc.ToleranceEuros < 0 || math.IsNaN(doc.ToleranceEuros) || math.IsInf(doc.ToleranceEuros, 0) {
		s.logger.Error("tolerance config holds an invalid value, using default",
			"path", s.path, "value", doc.ToleranceEuros, "default", Default)
		return Default
	}

	return doc.ToleranceEuros
}

// Set validates and persists a new tolerance with an update timestamp.
func (s *Store) Set(value float64) error {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: tolerance %v", model.ErrInvalidInput, value)
	}

	doc := document{
		ToleranceEuros: value,
		Description:    "Maximum euro discrepancy for automatic reconciliation",
		ModifiedAt:     time.Now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrConfigWrite, err)
	}

	// Whole-file replace via rename so a concurrent reader never sees
	// a half-written document.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tolerance-*")
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrConfigWrite, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", model.ErrConfigWrite, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", model.ErrConfigWrite, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", model.ErrConfigWrite, err)
	}

	return nil
}
