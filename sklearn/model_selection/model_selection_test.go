package model_selection

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

func TestKFold_Split(t *testing.T) {
	kf := NewKFold(5, true, 43)
	folds, err := kf.Split(23)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	seen := make(map[int]int)
	for i, f := range folds {
		want := 4
		if i < 3 {
			want = 5
		}
		assert.Len(t, f.TestIndices, want, "fold %d", i)
		assert.Len(t, f.TrainIndices, 23-want)

		train := make(map[int]bool)
		for _, idx := range f.TrainIndices {
			train[idx] = true
		}
		for _, idx := range f.TestIndices {
			assert.False(t, train[idx], "fold %d: %d in both train and test", i, idx)
			seen[idx]++
		}
	}
	assert.Len(t, seen, 23)
	for idx, count := range seen {
		assert.Equal(t, 1, count, "index %d", idx)
	}
}

func TestKFold_Deterministic(t *testing.T) {
	a, err := NewKFold(5, true, 43).Split(100)
	require.NoError(t, err)
	b, err := NewKFold(5, true, 43).Split(100)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NewKFold(5, true, 44).Split(100)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestKFold_NoShuffle(t *testing.T) {
	folds, err := NewKFold(3, false, 0).Split(6)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, folds[0].TestIndices)
	assert.Equal(t, []int{2, 3, 4, 5}, folds[0].TrainIndices)
	assert.Equal(t, []int{4, 5}, folds[2].TestIndices)
}

func TestKFold_Errors(t *testing.T) {
	_, err := NewKFold(5, true, 1).Split(4)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	assert.Equal(t, 5, NewKFold(1, false, 0).GetNSplits())
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(101, 0.2, 43)
	require.NoError(t, err)
	assert.Len(t, test, 21)
	assert.Len(t, train, 80)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v)
	}

	train2, test2, err := TrainTestSplit(101, 0.2, 43)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	for _, size := range []float64{0, 1, -0.5, math.NaN()} {
		_, _, err := TrainTestSplit(10, size, 1)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve), "test size %v", size)
	}

	_, _, err = TrainTestSplit(1, 0.2, 1)
	assert.Error(t, err)
}

func TestTake(t *testing.T) {
	assert.Equal(t, []string{"c", "a"}, Take([]string{"a", "b", "c"}, []int{2, 0}))
	assert.Empty(t, Take([]int{1}, nil))
}

func TestCVResult(t *testing.T) {
	cv := NewCVResult(4)
	copy(cv.TestScores, []float64{1, 2, 3, 4})
	assert.InDelta(t, 2.5, cv.Mean(), 1e-12)
	// population std: sqrt(1.25)
	assert.InDelta(t, math.Sqrt(1.25), cv.Std(), 1e-12)

	empty := &CVResult{}
	assert.Zero(t, empty.Mean())
	assert.Zero(t, empty.Std())
}
