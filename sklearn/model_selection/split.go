package model_selection

import (
	"math"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// TrainTestSplit shuffles 0..nSamples-1 and splits it into a train and a test
// part. The test part has ceil(testSize·nSamples) indices. The same seed
// always yields the same partition.
func TrainTestSplit(nSamples int, testSize float64, randomSeed int64) (train, test []int, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(nSamples)))
	nTrain := nSamples - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			"the resulting train or test set would be empty")
	}

	indices := permutation(nSamples, true, randomSeed)
	test = append([]int(nil), indices[:nTest]...)
	train = append([]int(nil), indices[nTest:]...)
	return train, test, nil
}
