package ensemble

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// Params are the resolved boosting hyperparameters
type Params struct {
	Depth         int     // Maximum tree depth, root is depth 0
	L2LeafReg     float64 // L2 regularization on leaf values (λ)
	Iterations    int     // Number of boosting rounds
	LearningRate  float64 // Shrinkage applied to every tree
	RandomSeed    int64   // Seed for row subsampling
	MinDataInLeaf int     // Minimum number of rows in a leaf
	Subsample     float64 // Fraction of rows used per tree
	MaxBin        int     // Maximum number of histogram bins per feature
}

// DefaultParams returns the defaults applied to keys absent from the map
func DefaultParams() Params {
	return Params{
		Depth:         6,
		L2LeafReg:     3,
		Iterations:    500,
		LearningRate:  0.05,
		RandomSeed:    0,
		MinDataInLeaf: 1,
		Subsample:     1.0,
		MaxBin:        255,
	}
}

// paramAliases maps accepted aliases to canonical parameter names
var paramAliases = map[string]string{
	"max_depth":         "depth",
	"reg_lambda":        "l2_leaf_reg",
	"lambda_l2":         "l2_leaf_reg",
	"n_estimators":      "iterations",
	"num_iterations":    "iterations",
	"eta":               "learning_rate",
	"random_state":      "random_seed",
	"seed":              "random_seed",
	"min_child_samples": "min_data_in_leaf",
	"bagging_fraction":  "subsample",
}

// CanonicalParamName resolves an alias to its canonical name. Unknown keys are
// returned unchanged.
func CanonicalParamName(key string) string {
	if canonical, ok := paramAliases[key]; ok {
		return canonical
	}
	return key
}

// normalizeParams copies params, checks every value is a scalar and converts
// json.Number so the map can be gob-encoded.
func normalizeParams(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		switch x := v.(type) {
		case bool, string,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			out[k] = v
		case json.Number:
			if i, err := x.Int64(); err == nil {
				out[k] = i
			} else if f, err := x.Float64(); err == nil {
				out[k] = f
			} else {
				return nil, errors.NewValidationError(k, "not a number", v)
			}
		default:
			return nil, errors.NewValidationError(k, "parameter values must be scalars", v)
		}
	}
	return out, nil
}

// resolveParams applies aliases, defaults and range checks. Unknown keys are
// ignored. Keys are visited in sorted order so conflicts are reported
// deterministically.
func resolveParams(params map[string]any) (Params, error) {
	p := DefaultParams()

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// given records the key and resolved value of each canonical name, so
	// aliases that agree numerically (5 and 5.0) are not a conflict.
	type setting struct {
		key   string
		value float64
	}
	given := make(map[string]setting)
	for _, key := range keys {
		canonical := CanonicalParamName(key)
		v := params[key]
		var (
			val float64
			err error
		)
		switch canonical {
		case "depth":
			p.Depth, err = intParam(key, v)
			val = float64(p.Depth)
		case "l2_leaf_reg":
			p.L2LeafReg, err = floatParam(key, v)
			val = p.L2LeafReg
		case "iterations":
			p.Iterations, err = intParam(key, v)
			val = float64(p.Iterations)
		case "learning_rate":
			p.LearningRate, err = floatParam(key, v)
			val = p.LearningRate
		case "random_seed":
			var seed int
			seed, err = intParam(key, v)
			p.RandomSeed = int64(seed)
			val = float64(seed)
		case "min_data_in_leaf":
			p.MinDataInLeaf, err = intParam(key, v)
			val = float64(p.MinDataInLeaf)
		case "subsample":
			p.Subsample, err = floatParam(key, v)
			val = p.Subsample
		case "max_bin":
			p.MaxBin, err = intParam(key, v)
			val = float64(p.MaxBin)
		default:
			continue
		}
		if err != nil {
			return Params{}, err
		}
		if prev, ok := given[canonical]; ok && prev.value != val {
			return Params{}, errors.NewValidationError(key, "conflicts with "+prev.key, v)
		}
		given[canonical] = setting{key: key, value: val}
	}

	return p, p.Validate()
}

// Validate checks parameter ranges
func (p Params) Validate() error {
	switch {
	case p.Depth < 1 || p.Depth > 16:
		return errors.NewValidationError("depth", "must be in [1, 16]", p.Depth)
	case p.L2LeafReg < 0 || math.IsNaN(p.L2LeafReg) || math.IsInf(p.L2LeafReg, 0):
		return errors.NewValidationError("l2_leaf_reg", "must be a finite value >= 0", p.L2LeafReg)
	case p.Iterations < 1:
		return errors.NewValidationError("iterations", "must be >= 1", p.Iterations)
	case !(p.LearningRate > 0 && p.LearningRate <= 1):
		return errors.NewValidationError("learning_rate", "must be in (0, 1]", p.LearningRate)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be >= 1", p.MinDataInLeaf)
	case !(p.Subsample > 0 && p.Subsample <= 1):
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.Subsample)
	case p.MaxBin < 2 || p.MaxBin > math.MaxUint16:
		return errors.NewValidationError("max_bin", "must be in [2, 65535]", p.MaxBin)
	}
	return nil
}

func intParam(key string, v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int8:
		return int(x), nil
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint:
		return int(x), nil
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	case uint32:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float32, float64:
		f, _ := floatParam(key, v)
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, errors.NewValidationError(key, "must be an integer", v)
		}
		return int(f), nil
	default:
		return 0, errors.NewValidationError(key, "must be an integer", v)
	}
}

func floatParam(key string, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case bool, string:
		return 0, errors.NewValidationError(key, "must be a number", v)
	default:
		i, err := intParam(key, v)
		return float64(i), err
	}
}
