// Package model provides the estimator interfaces, fitted-state bookkeeping
// and gob persistence shared by the houseprice estimators.
package model

import (
	"sync"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// StateManager manages the fitted state of a model in a thread-safe manner.
// Estimators embed it by value pointer; its exported fields survive gob
// encoding so a loaded model reports the same state it was saved with.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	// Dimensions seen during fitting - Public for gob encoding
	NFeatures int
	NSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted with the dimensions it was fitted on.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted returns a NotFittedError naming model and method when the
// model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// RequireFeatures checks that X has the column count seen during fitting.
func (s *StateManager) RequireFeatures(op string, nFeatures int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if nFeatures != s.NFeatures {
		return errors.NewDimensionError(op, s.NFeatures, nFeatures, 1)
	}
	return nil
}
