// Package model_selection provides data splitters and cross-validation results.
package model_selection

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// Splitter defines interface for cross-validation splitters
type Splitter interface {
	Split(nSamples int) ([]CVFold, error)
	GetNSplits() int
}

// CVFold represents a single fold in cross-validation
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int64) *KFold {
	if nSplits < 2 {
		nSplits = 5 // Default to 5-fold
	}
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold. The first
// nSamples % NSplits folds get one extra test sample. With Shuffle the
// assignment is driven by a PCG generator seeded with RandomSeed, so a fixed
// seed always yields the same folds.
func (kf *KFold) Split(nSamples int) ([]CVFold, error) {
	if nSamples < kf.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have number of splits greater than the number of samples")
	}

	indices := permutation(nSamples, kf.Shuffle, kf.RandomSeed)

	folds := make([]CVFold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	inTest := make([]bool, nSamples)
	currentIdx := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		testIndices := make([]int, testSize)
		copy(testIndices, indices[currentIdx:currentIdx+testSize])
		for _, idx := range testIndices {
			inTest[idx] = true
		}

		trainIndices := make([]int, 0, nSamples-testSize)
		for _, idx := range indices {
			if !inTest[idx] {
				trainIndices = append(trainIndices, idx)
			}
		}
		for _, idx := range testIndices {
			inTest[idx] = false
		}

		folds[i] = CVFold{
			TrainIndices: trainIndices,
			TestIndices:  testIndices,
		}
		currentIdx += testSize
	}

	return folds, nil
}

// permutation returns 0..n-1, shuffled with PCG(seed, seed) when shuffle is set
func permutation(n int, shuffle bool, seed int64) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}
	return indices
}

// Take returns the elements of s at the given indices, in index order
func Take[T any](s []T, indices []int) []T {
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = s[idx]
	}
	return out
}
