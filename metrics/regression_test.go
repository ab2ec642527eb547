package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  Report
	}{
		{
			name:  "perfect prediction",
			yTrue: []float64{11.5, 12.1, 12.7},
			yPred: []float64{11.5, 12.1, 12.7},
			want:  Report{MSE: 0, RMSE: 0, MAE: 0, R2: 1},
		},
		{
			name:  "constant offset",
			yTrue: []float64{1, 2, 3, 4},
			yPred: []float64{1.5, 2.5, 2.5, 3.5},
			want:  Report{MSE: 0.25, RMSE: 0.5, MAE: 0.5, R2: 0.8},
		},
		{
			name:  "single large miss",
			yTrue: []float64{0, 0, 0, 4},
			yPred: []float64{0, 0, 0, 0},
			want:  Report{MSE: 4, RMSE: 2, MAE: 1, R2: -1 / 3.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.MSE, got.MSE, 1e-12)
			assert.InDelta(t, tt.want.RMSE, got.RMSE, 1e-12)
			assert.InDelta(t, tt.want.MAE, got.MAE, 1e-12)
			assert.InDelta(t, tt.want.R2, got.R2, 1e-12)
		})
	}
}

func TestEvaluate_ConstantTarget(t *testing.T) {
	r, err := Evaluate([]float64{2, 2}, []float64{1, 3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.MSE)
	assert.True(t, math.IsNaN(r.R2))

	_, err = R2Score(mat.NewVecDense(2, []float64{2, 2}), mat.NewVecDense(2, []float64{1, 3}))
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestEvaluate_Errors(t *testing.T) {
	_, err := Evaluate(nil, nil)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	_, err = Evaluate([]float64{1, 2}, []float64{1})
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = Evaluate([]float64{1, 2}, []float64{1, math.NaN()})
	var ni *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &ni))
}

func TestMetrics_DimensionMismatch(t *testing.T) {
	a := mat.NewVecDense(3, []float64{1, 2, 3})
	b := mat.NewVecDense(2, []float64{1, 2})

	for name, fn := range map[string]func(yTrue, yPred mat.Vector) (float64, error){
		"MSE": MSE, "RMSE": RMSE, "MAE": MAE, "R2Score": R2Score,
	} {
		_, err := fn(a, b)
		var de *errors.DimensionError
		assert.True(t, errors.As(err, &de), name)
	}
}

func BenchmarkEvaluate(b *testing.B) {
	size := 10000
	yTrue := make([]float64, size)
	yPred := make([]float64, size)
	for i := 0; i < size; i++ {
		yTrue[i] = float64(i)
		yPred[i] = float64(i) + 0.1*float64(i%10)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Evaluate(yTrue, yPred)
	}
}
