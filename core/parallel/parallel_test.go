package parallel

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

func TestParallelize_CoversAllItems(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000} {
		seen := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, c := range seen {
			assert.Equal(t, int32(1), c, "items=%d index=%d", items, i)
		}
	}
}

func TestParallelizeWithThreshold_Sequential(t *testing.T) {
	var calls int
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestRun(t *testing.T) {
	var total atomic.Int64
	require.NoError(t, Run(5, 2, "sum", func(i int) error {
		total.Add(int64(i))
		return nil
	}))
	assert.Equal(t, int64(10), total.Load())
}

func TestRun_LowestIndexErrorWins(t *testing.T) {
	err := Run(4, 0, "folds", func(i int) error {
		if i >= 1 {
			return fmt.Errorf("task %d failed", i)
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, "task 1 failed", err.Error())
}

func TestRun_Panic(t *testing.T) {
	err := Run(3, 0, "folds", func(i int) error {
		if i == 2 {
			panic("boom")
		}
		return nil
	})
	var panicErr *errors.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "folds", panicErr.Operation)
}
