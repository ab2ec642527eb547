// Package pipeline chains the cleaning policy, the encoder and the regressor
// into the single unit that is trained, persisted and served.
//
// Training and serving call the same Clean → Transform → Predict path, and
// the fitted encoder travels with the model, so inference always sees the
// feature coordinates the model was fitted on. Targets are modelled in
// log1p space; expm1 is applied only by PredictPrice.
package pipeline

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/houseprice/core/model"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
	"github.com/YuminosukeSato/houseprice/pkg/log"
	"github.com/YuminosukeSato/houseprice/preprocessing"
	"github.com/YuminosukeSato/houseprice/sklearn/ensemble"
)

// Pipeline is (Imputer → DictVectorizer → GradientBoostingRegressor).
// A fitted Pipeline is read-only and safe for concurrent prediction.
type Pipeline struct {
	State *model.StateManager

	Imputer   *preprocessing.Imputer
	Encoder   *preprocessing.DictVectorizer
	Regressor *ensemble.GradientBoostingRegressor
}

// New creates an unfitted pipeline for schema with the given model parameters
func New(schema preprocessing.Schema, params map[string]any) (*Pipeline, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	reg, err := ensemble.NewGradientBoostingRegressor(params)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		State:     model.NewStateManager(),
		Imputer:   preprocessing.NewImputer(schema),
		Encoder:   preprocessing.NewDictVectorizer(schema),
		Regressor: reg,
	}, nil
}

// Schema returns the schema the pipeline cleans and encodes with
func (p *Pipeline) Schema() preprocessing.Schema {
	return p.Imputer.Schema
}

// IsFitted reports whether Fit has completed successfully
func (p *Pipeline) IsFitted() bool {
	return p.State.IsFitted()
}

// Fit cleans records, fits the encoder, and fits the regressor on
// log1p(prices). Any failure is returned as a FitFailureError.
func (p *Pipeline) Fit(records []preprocessing.Record, prices []float64) error {
	const op = "Pipeline.Fit"
	start := time.Now()

	if len(records) == 0 {
		return errors.NewFitFailureError(op, "no training records", errors.ErrEmptyData)
	}
	if len(records) != len(prices) {
		return errors.NewFitFailureError(op, "records and prices differ in length",
			errors.NewDimensionError(op, len(records), len(prices), 0))
	}

	y := mat.NewDense(len(prices), 1, nil)
	for i, price := range prices {
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= -1 {
			return errors.NewFitFailureError(op, "prices must be finite and greater than -1",
				errors.NewNumericalInstabilityError(op, []float64{price}, i))
		}
		y.Set(i, 0, math.Log1p(price))
	}

	p.State.Reset()
	cleaned := p.Imputer.CleanAll(records)
	X, err := p.Encoder.FitTransform(cleaned)
	if err != nil {
		return errors.NewFitFailureError(op, "encoding failed", err)
	}
	if err := p.Regressor.Fit(X, y); err != nil {
		var ff *errors.FitFailureError
		if errors.As(err, &ff) {
			return err
		}
		return errors.NewFitFailureError(op, "model fit failed", err)
	}
	p.State.SetFitted(p.Encoder.NFeatures(), len(records))

	log.GetLoggerWithName("pipeline").Debug("pipeline fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(records),
		log.FeaturesKey, p.Encoder.NFeatures(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict returns predictions in log1p space, one per record
func (p *Pipeline) Predict(records []preprocessing.Record) ([]float64, error) {
	if err := p.State.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	X, err := p.Encoder.Transform(p.Imputer.CleanAll(records))
	if err != nil {
		return nil, err
	}
	pred, err := p.Regressor.Predict(X)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, pred), nil
}

// PredictPrice returns predictions in price space (expm1 of Predict)
func (p *Pipeline) PredictPrice(records []preprocessing.Record) ([]float64, error) {
	logPreds, err := p.Predict(records)
	if err != nil {
		return nil, err
	}
	prices := make([]float64, len(logPreds))
	for i, v := range logPreds {
		prices[i] = math.Expm1(v)
	}
	return prices, nil
}

// UnseenCategories lists the categorical fields of r whose cleaned value was
// not observed at fit time. Encoding itself ignores them silently.
func (p *Pipeline) UnseenCategories(r preprocessing.Record) []string {
	return p.Encoder.UnseenCategories(p.Imputer.Clean(r))
}

// FeatureNames returns the encoded feature names
func (p *Pipeline) FeatureNames() []string {
	return p.Encoder.FeatureNames()
}
