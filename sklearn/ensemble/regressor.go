// Package ensemble implements gradient boosted decision trees for regression.
package ensemble

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/houseprice/core/model"
	"github.com/YuminosukeSato/houseprice/core/parallel"
	"github.com/YuminosukeSato/houseprice/metrics"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
	"github.com/YuminosukeSato/houseprice/pkg/log"
)

const modelName = "GradientBoostingRegressor"

// predictParallelThreshold is the row count above which Predict fans out
const predictParallelThreshold = 256

// GradientBoostingRegressor is a histogram-based gradient boosting regressor
// with an L2 objective.
//
// The parameter map passed at construction is kept verbatim: recognised keys
// (and their aliases) configure the booster, any other scalar key is retained
// and ignored.
type GradientBoostingRegressor struct {
	State *model.StateManager

	// RawParams is the parameter map as given
	RawParams map[string]any
	// Config is RawParams resolved against the defaults
	Config Params

	Trees     []Tree
	InitScore float64
}

var _ model.Regressor = (*GradientBoostingRegressor)(nil)

// NewGradientBoostingRegressor creates a regressor from an opaque parameter map.
//
// Example:
//
//	reg, err := ensemble.NewGradientBoostingRegressor(map[string]any{
//	    "depth":       5,
//	    "l2_leaf_reg": 1,
//	})
func NewGradientBoostingRegressor(params map[string]any) (*GradientBoostingRegressor, error) {
	raw, err := normalizeParams(params)
	if err != nil {
		return nil, err
	}
	cfg, err := resolveParams(raw)
	if err != nil {
		return nil, err
	}
	return &GradientBoostingRegressor{
		State:     model.NewStateManager(),
		RawParams: raw,
		Config:    cfg,
	}, nil
}

// IsFitted reports whether Fit has completed successfully
func (g *GradientBoostingRegressor) IsFitted() bool {
	return g.State.IsFitted()
}

// Fit trains the ensemble. X is (n_samples × n_features), y is (n_samples × 1).
// Every failure is returned as a FitFailureError.
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")
	const op = "GradientBoostingRegressor.Fit"

	start := time.Now()
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows == 0 || cols == 0 {
		return errors.NewFitFailureError(op, "empty training data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewFitFailureError(op, "X and y have different row counts",
			errors.NewDimensionError("Fit", rows, yRows, 0))
	}
	if yCols != 1 {
		return errors.NewFitFailureError(op, "y must be a column vector",
			errors.NewDimensionError("Fit", 1, yCols, 1))
	}

	xd := mat.DenseCopyOf(X)
	targets := mat.Col(nil, 0, y)
	if err := errors.CheckMatrix(op, xd, rows, cols, 0); err != nil {
		return errors.NewFitFailureError(op, "non-finite feature value", err)
	}
	if err := errors.CheckNumericalStability(op, targets, 0); err != nil {
		return errors.NewFitFailureError(op, "non-finite target value", err)
	}

	logger := log.GetLoggerWithName("ensemble").With(log.ModelNameKey, modelName)

	g.State.Reset()
	b := newBooster(g.Config, xd, targets, logger)
	if err := b.train(); err != nil {
		return errors.NewFitFailureError(op, "boosting diverged", err)
	}

	g.Trees = b.trees
	g.InitScore = b.initScore
	g.State.SetFitted(cols, rows)

	logger.Debug("fit finished",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.LossKey, b.loss(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict returns (n_samples × 1) predictions. Rows are scored in parallel.
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := g.State.RequireFitted(modelName, "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := g.State.RequireFeatures("Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, predictParallelThreshold, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out.Set(i, 0, g.predictRow(row))
		}
	})
	return out, nil
}

func (g *GradientBoostingRegressor) predictRow(row []float64) float64 {
	pred := g.InitScore
	for i := range g.Trees {
		pred += g.Trees[i].Predict(row)
	}
	return pred
}

// Score returns the coefficient of determination R^2 of the prediction
func (g *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := g.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	pRows, _ := predictions.Dims()
	if rows != pRows {
		return 0, errors.NewDimensionError("Score", pRows, rows, 0)
	}
	return metrics.R2Score(
		mat.NewVecDense(rows, mat.Col(nil, 0, y)),
		mat.NewVecDense(pRows, mat.Col(nil, 0, predictions)),
	)
}

// FeatureImportance returns normalised importances per feature.
// importanceType is "split" (number of splits) or "gain" (total split gain).
func (g *GradientBoostingRegressor) FeatureImportance(importanceType string) ([]float64, error) {
	if err := g.State.RequireFitted(modelName, "FeatureImportance"); err != nil {
		return nil, err
	}
	if importanceType != "split" && importanceType != "gain" {
		return nil, errors.NewValidationError("importance_type", "must be \"split\" or \"gain\"", importanceType)
	}

	nFeatures, _ := g.State.GetDimensions()
	importance := make([]float64, nFeatures)
	for _, tree := range g.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			switch importanceType {
			case "split":
				importance[node.SplitFeature]++
			case "gain":
				importance[node.SplitFeature] += node.Gain
			}
		}
	}

	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return importance, nil
}

// NumTrees returns the number of fitted trees
func (g *GradientBoostingRegressor) NumTrees() int {
	return len(g.Trees)
}

// GetParams returns a copy of the parameter map as given
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	out := make(map[string]interface{}, len(g.RawParams))
	for k, v := range g.RawParams {
		out[k] = v
	}
	return out
}

// SetParams merges params into the parameter map, replacing any alias of the
// same parameter. The model must be refitted afterwards.
func (g *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	merged := g.GetParams()
	for k, v := range params {
		canonical := CanonicalParamName(k)
		for existing := range merged {
			if CanonicalParamName(existing) == canonical {
				delete(merged, existing)
			}
		}
		merged[k] = v
	}
	raw, err := normalizeParams(merged)
	if err != nil {
		return err
	}
	cfg, err := resolveParams(raw)
	if err != nil {
		return err
	}
	g.RawParams = raw
	g.Config = cfg
	g.Trees = nil
	g.InitScore = 0
	g.State.Reset()
	return nil
}
