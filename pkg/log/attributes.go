// Package log defines standard attribute keys for the training and serving
// pipeline. Keys follow a hierarchical naming convention ("data.samples",
// "cv.fold") so logs can be filtered consistently.
package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type, e.g. "GradientBoostingRegressor".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed ("fit", "predict", ...).
	OperationKey = "ml.operation"

	// ComponentKey identifies the package or subsystem emitting the record.
	ComponentKey = "component"

	// PhaseKey indicates the lifecycle phase ("training", "validation", ...).
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
)

// Performance Metrics
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	MSEKey        = "metrics.mse"
	RMSEKey       = "metrics.rmse"
	R2ScoreKey    = "metrics.r2_score"
	IterationKey  = "training.iteration"
)

// Cross-validation and artifacts
const (
	// FoldKey is the zero-based cross-validation fold index.
	FoldKey = "cv.fold"

	// FoldsKey is the number of folds in the run.
	FoldsKey = "cv.folds"

	// RunIDKey identifies one training run and the artifact it produced.
	RunIDKey = "run.id"

	// ArtifactPathKey is the artifact file location.
	ArtifactPathKey = "artifact.path"

	// SchemaFingerprintKey is the digest of the feature schema.
	SchemaFingerprintKey = "schema.fingerprint"
)

// Serving
const (
	PriceKey  = "preds.price"
	UnseenKey = "preds.unseen_categories"
)

// Error and configuration context
const (
	ErrorCodeKey   = "error.code"
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationSave    = "save"
	OperationLoad    = "load"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseTesting    = "testing"
	PhaseInference  = "inference"

	ErrorNotFitted       = "NOT_FITTED"
	ErrorEmptyData       = "EMPTY_DATA"
	ErrorCorruptArtifact = "CORRUPT_ARTIFACT"
	ErrorFitFailure      = "FIT_FAILURE"
	ErrorUnknown         = "UNKNOWN"
)
