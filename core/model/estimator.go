package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は (n_samples, 1) の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を (n_samples, 1) で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は回帰モデルの基本インターフェース
type Regressor interface {
	Fitter
	Predictor

	// IsFitted はモデルが学習済みかどうかを返す
	IsFitted() bool
}

// ParameterGetter はハイパーパラメータを公開するモデルのインターフェース
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter はハイパーパラメータを変更できるモデルのインターフェース
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
