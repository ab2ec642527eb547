// Package training runs one complete training job: hold-out split, k-fold
// cross-validation, final fit, hold-out evaluation and artifact persistence.
//
// Any failure aborts the run. The artifact is written atomically as the last
// step, so a failed run never leaves a model behind.
package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/houseprice/artifact"
	"github.com/YuminosukeSato/houseprice/core/parallel"
	"github.com/YuminosukeSato/houseprice/metrics"
	"github.com/YuminosukeSato/houseprice/pipeline"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
	"github.com/YuminosukeSato/houseprice/pkg/log"
	"github.com/YuminosukeSato/houseprice/preprocessing"
	ms "github.com/YuminosukeSato/houseprice/sklearn/model_selection"
)

// Config holds the settings of one training run
type Config struct {
	Schema      preprocessing.Schema
	ModelParams map[string]any

	NSplits       int
	TestSize      float64
	RandomSeed    int64
	ParallelFolds bool

	ArtifactPath string
	PlotPath     string // Empty disables the fold chart
	FoldsCSVPath string // Empty disables the per-fold CSV
}

// Trainer executes training runs
type Trainer struct {
	Config Config
	logger log.Logger
}

// NewTrainer creates a Trainer for cfg
func NewTrainer(cfg Config) *Trainer {
	return &Trainer{
		Config: cfg,
		logger: log.GetLoggerWithName("training"),
	}
}

// Run trains and persists a model on records and their sale prices.
// Cancelling ctx stops the run between folds and before the final fit.
func (t *Trainer) Run(ctx context.Context, records []preprocessing.Record, prices []float64) (*Report, error) {
	const op = "Trainer.Run"
	start := time.Now()
	cfg := t.Config

	if err := t.validate(records, prices); err != nil {
		return nil, err
	}

	runID := uuid.New()
	logger := t.logger.With(log.RunIDKey, runID.String())
	logger.Info("training started",
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, len(records),
		log.FoldsKey, cfg.NSplits,
		log.RandomSeedKey, cfg.RandomSeed,
		log.HyperParamsKey, fmt.Sprint(cfg.ModelParams),
	)

	trainIdx, testIdx, err := ms.TrainTestSplit(len(records), cfg.TestSize, cfg.RandomSeed)
	if err != nil {
		return nil, errors.NewFitFailureError(op, "hold-out split failed", err)
	}
	fullRecords, fullPrices := ms.Take(records, trainIdx), ms.Take(prices, trainIdx)
	testRecords, testPrices := ms.Take(records, testIdx), ms.Take(prices, testIdx)

	report := &Report{
		RunID:        runID,
		NTrain:       len(trainIdx),
		NTest:        len(testIdx),
		ArtifactPath: cfg.ArtifactPath,
	}

	// validation
	cvStart := time.Now()
	cv, err := t.crossValidate(ctx, logger, fullRecords, fullPrices)
	if err != nil {
		return nil, err
	}
	report.FoldMSE = cv.TestScores
	report.FoldFitTimes = cv.FitTimes
	report.CVMeanMSE = cv.Mean()
	report.CVStdMSE = cv.Std()
	report.CVDuration = time.Since(cvStart)
	logger.Info("validation results",
		log.PhaseKey, log.PhaseValidation,
		log.MSEKey, report.CVMeanMSE,
		"metrics.mse_std", report.CVStdMSE,
	)

	// final model
	if err := ctx.Err(); err != nil {
		return nil, errors.NewFitFailureError(op, "cancelled before the final fit", err)
	}
	fitStart := time.Now()
	final, err := pipeline.New(cfg.Schema, cfg.ModelParams)
	if err != nil {
		return nil, errors.NewFitFailureError(op, "invalid configuration", err)
	}
	if err := final.Fit(fullRecords, fullPrices); err != nil {
		return nil, err
	}
	report.FitDuration = time.Since(fitStart)
	report.FeatureCount = final.Encoder.NFeatures()

	holdout, err := evaluate(final, testRecords, testPrices)
	if err != nil {
		return nil, errors.NewFitFailureError(op, "hold-out evaluation failed", err)
	}
	report.Holdout = holdout
	logger.Info("hold-out evaluation",
		log.PhaseKey, log.PhaseTesting,
		log.MSEKey, holdout.MSE,
		log.RMSEKey, holdout.RMSE,
		log.R2ScoreKey, holdout.R2,
	)

	// persist
	a, err := artifact.New(final, runID)
	if err != nil {
		return nil, errors.NewFitFailureError(op, "cannot build artifact", err)
	}
	a.Meta.CVMeanMSE = report.CVMeanMSE
	a.Meta.CVStdMSE = report.CVStdMSE
	a.Meta.HoldoutMSE = holdout.MSE
	if err := artifact.Save(cfg.ArtifactPath, a); err != nil {
		return nil, errors.NewFitFailureError(op, "cannot save artifact", err)
	}

	if cfg.PlotPath != "" {
		if err := SaveFoldPlot(cfg.PlotPath, report); err != nil {
			logger.Warn("fold chart not written", "path", cfg.PlotPath, err)
		} else {
			report.PlotPath = cfg.PlotPath
		}
	}
	if cfg.FoldsCSVPath != "" {
		if err := report.SaveFoldsCSV(cfg.FoldsCSVPath); err != nil {
			logger.Warn("fold csv not written", "path", cfg.FoldsCSVPath, err)
		}
	}

	report.TotalDuration = time.Since(start)
	logger.Info("training finished",
		log.ArtifactPathKey, cfg.ArtifactPath,
		log.DurationMsKey, report.TotalDuration.Milliseconds(),
	)
	return report, nil
}

func (t *Trainer) validate(records []preprocessing.Record, prices []float64) error {
	const op = "Trainer.Run"
	cfg := t.Config
	if err := cfg.Schema.Validate(); err != nil {
		return errors.NewFitFailureError(op, "invalid schema", err)
	}
	if cfg.NSplits < 2 {
		return errors.NewFitFailureError(op, "invalid configuration",
			errors.NewValidationError("n_splits", "must be at least 2", cfg.NSplits))
	}
	if cfg.ArtifactPath == "" {
		return errors.NewFitFailureError(op, "invalid configuration",
			errors.NewValidationError("artifact_path", "must not be empty", cfg.ArtifactPath))
	}
	if len(records) != len(prices) {
		return errors.NewFitFailureError(op, "records and prices differ in length",
			errors.NewDimensionError(op, len(records), len(prices), 0))
	}
	if len(records) < cfg.NSplits+1 {
		return errors.NewFitFailureError(op,
			fmt.Sprintf("need at least %d rows for %d folds, got %d", cfg.NSplits+1, cfg.NSplits, len(records)),
			errors.ErrEmptyData)
	}
	for i, p := range prices {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= -1 {
			return errors.NewFitFailureError(op, "prices must be finite and greater than -1",
				errors.NewNumericalInstabilityError(op, []float64{p}, i))
		}
	}
	return nil
}

// crossValidate fits a fresh pipeline per fold and scores it by MSE in log space
func (t *Trainer) crossValidate(ctx context.Context, logger log.Logger, records []preprocessing.Record, prices []float64) (*ms.CVResult, error) {
	const op = "Trainer.crossValidate"
	cfg := t.Config

	kf := ms.NewKFold(cfg.NSplits, true, cfg.RandomSeed)
	folds, err := kf.Split(len(records))
	if err != nil {
		return nil, errors.NewFitFailureError(op, "cannot split folds", err)
	}
	result := ms.NewCVResult(len(folds))

	runFold := func(i int) error {
		if err := ctx.Err(); err != nil {
			return errors.NewFitFailureError(op, fmt.Sprintf("cancelled before fold %d", i), err)
		}
		fold := folds[i]
		start := time.Now()

		p, err := pipeline.New(cfg.Schema, cfg.ModelParams)
		if err != nil {
			return errors.NewFitFailureError(op, "invalid configuration", err)
		}
		if err := p.Fit(ms.Take(records, fold.TrainIndices), ms.Take(prices, fold.TrainIndices)); err != nil {
			return errors.Wrapf(err, "fold %d", i)
		}
		eval, err := evaluate(p, ms.Take(records, fold.TestIndices), ms.Take(prices, fold.TestIndices))
		if err != nil {
			return errors.NewFitFailureError(op, fmt.Sprintf("fold %d evaluation failed", i), err)
		}

		result.TestScores[i] = eval.MSE
		result.FitTimes[i] = time.Since(start)
		logger.Info(fmt.Sprintf("mse on fold %d is %.5f", i, eval.MSE),
			log.PhaseKey, log.PhaseValidation,
			log.FoldKey, i,
			log.MSEKey, eval.MSE,
			log.DurationMsKey, result.FitTimes[i].Milliseconds(),
		)
		return nil
	}

	if cfg.ParallelFolds {
		err = parallel.Run(len(folds), 0, op, runFold)
	} else {
		for i := range folds {
			if err = runFold(i); err != nil {
				break
			}
		}
	}
	if err != nil {
		var ff *errors.FitFailureError
		if !errors.As(err, &ff) {
			err = errors.NewFitFailureError(op, "fold failed", err)
		}
		return nil, err
	}
	return result, nil
}

// evaluate scores p on records against log1p(prices)
func evaluate(p *pipeline.Pipeline, records []preprocessing.Record, prices []float64) (metrics.Report, error) {
	pred, err := p.Predict(records)
	if err != nil {
		return metrics.Report{}, err
	}
	truth := make([]float64, len(prices))
	for i, price := range prices {
		truth[i] = math.Log1p(price)
	}
	return metrics.Evaluate(truth, pred)
}
