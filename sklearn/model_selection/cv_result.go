package model_selection

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// CVResult stores cross-validation results
type CVResult struct {
	// TestScores holds one validation score per fold, in fold order
	TestScores []float64
	FitTimes   []time.Duration
}

// NewCVResult allocates a result for nFolds folds
func NewCVResult(nFolds int) *CVResult {
	return &CVResult{
		TestScores: make([]float64, nFolds),
		FitTimes:   make([]time.Duration, nFolds),
	}
}

// Mean returns the mean test score
func (cv *CVResult) Mean() float64 {
	if len(cv.TestScores) == 0 {
		return 0.0
	}
	return stat.Mean(cv.TestScores, nil)
}

// Std returns the population standard deviation of the test scores
func (cv *CVResult) Std() float64 {
	if len(cv.TestScores) == 0 {
		return 0.0
	}
	_, std := stat.PopMeanStdDev(cv.TestScores, nil)
	return std
}
