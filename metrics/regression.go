// Package metrics は回帰モデルの評価指標を提供する
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// checkPair は評価対象の2ベクトルの長さを検証する
func checkPair(op string, yTrue, yPred mat.Vector) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する。yTrue が定数の場合はエラー
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// Report は1回の評価で得られる指標のまとめ
type Report struct {
	MSE  float64
	RMSE float64
	MAE  float64
	// R2 は yTrue が定数の場合 NaN
	R2 float64
}

// Evaluate はスライス形式の正解値と予測値から Report を作成する
func Evaluate(yTrue, yPred []float64) (Report, error) {
	if len(yTrue) == 0 {
		return Report{}, errors.NewValueError("Evaluate", "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return Report{}, errors.NewDimensionError("Evaluate", len(yTrue), len(yPred), 0)
	}
	if err := errors.CheckNumericalStability("Evaluate", yPred, 0); err != nil {
		return Report{}, err
	}

	t := mat.NewVecDense(len(yTrue), yTrue)
	p := mat.NewVecDense(len(yPred), yPred)

	mse, err := MSE(t, p)
	if err != nil {
		return Report{}, err
	}
	rmse, err := RMSE(t, p)
	if err != nil {
		return Report{}, err
	}
	mae, err := MAE(t, p)
	if err != nil {
		return Report{}, err
	}
	r2, err := R2Score(t, p)
	if err != nil {
		r2 = math.NaN()
	}
	return Report{MSE: mse, RMSE: rmse, MAE: mae, R2: r2}, nil
}
