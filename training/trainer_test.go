package training

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/houseprice/artifact"
	"github.com/YuminosukeSato/houseprice/housing"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
	"github.com/YuminosukeSato/houseprice/pkg/log"
	"github.com/YuminosukeSato/houseprice/preprocessing"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Schema: housing.Schema(),
		ModelParams: map[string]any{
			"depth": 4, "l2_leaf_reg": 1, "iterations": 120, "learning_rate": 0.1,
		},
		NSplits:      3,
		TestSize:     0.2,
		RandomSeed:   43,
		ArtifactPath: filepath.Join(t.TempDir(), "model.bin"),
	}
}

func TestTrainer_EndToEnd(t *testing.T) {
	records, prices := housing.SampleListings(200, 11)
	cfg := testConfig(t)
	dir := filepath.Dir(cfg.ArtifactPath)
	cfg.PlotPath = filepath.Join(dir, "folds.png")
	cfg.FoldsCSVPath = filepath.Join(dir, "folds.csv")

	report, err := NewTrainer(cfg).Run(context.Background(), records, prices)
	require.NoError(t, err)

	assert.Equal(t, 160, report.NTrain)
	assert.Equal(t, 40, report.NTest)
	require.Len(t, report.FoldMSE, 3)
	for _, mse := range report.FoldMSE {
		assert.Less(t, mse, 0.05)
	}
	assert.Less(t, report.Holdout.MSE, 0.05)
	assert.InDelta(t, math.Sqrt(report.Holdout.MSE), report.Holdout.RMSE, 1e-12)
	assert.Greater(t, report.FeatureCount, 0)
	assert.Equal(t, cfg.PlotPath, report.PlotPath)

	info, err := os.Stat(cfg.PlotPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	csv, err := os.ReadFile(cfg.FoldsCSVPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	assert.Equal(t, "fold,mse,rmse,fit_ms", lines[0])
	assert.Len(t, lines, 4)

	a, err := artifact.Load(cfg.ArtifactPath, housing.Schema())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, a.Meta.RunID)
	assert.Equal(t, report.Holdout.MSE, a.Meta.HoldoutMSE)
	assert.Equal(t, report.CVMeanMSE, a.Meta.CVMeanMSE)
	assert.Equal(t, report.FeatureCount, a.Meta.FeatureCount)
}

func TestTrainer_LogsPhases(t *testing.T) {
	records, prices := housing.SampleListings(80, 5)
	cfg := testConfig(t)
	cfg.ModelParams = map[string]any{"depth": 3, "iterations": 20}

	logger, _ := log.NewTestLogger(log.LevelInfo)
	tr := NewTrainer(cfg)
	tr.logger = logger
	report, err := tr.Run(context.Background(), records, prices)
	require.NoError(t, err)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	phases := make(map[string]string)
	for _, e := range entries {
		if phase, ok := e[log.PhaseKey].(string); ok {
			phases[e["message"].(string)] = phase
		}
		assert.Equal(t, report.RunID.String(), e[log.RunIDKey])
	}
	assert.Equal(t, log.PhaseTraining, phases["training started"])
	assert.Equal(t, log.PhaseValidation, phases["validation results"])
	assert.Equal(t, log.PhaseTesting, phases["hold-out evaluation"])
	assert.Equal(t, log.PhaseValidation, phases["mse on fold 0 is "+strconv.FormatFloat(report.FoldMSE[0], 'f', 5, 64)])
}

func TestTrainer_ParallelFoldsMatchSequential(t *testing.T) {
	records, prices := housing.SampleListings(90, 5)

	cfg := testConfig(t)
	seq, err := NewTrainer(cfg).Run(context.Background(), records, prices)
	require.NoError(t, err)

	cfg = testConfig(t)
	cfg.ParallelFolds = true
	par, err := NewTrainer(cfg).Run(context.Background(), records, prices)
	require.NoError(t, err)

	assert.Equal(t, seq.FoldMSE, par.FoldMSE)
	assert.Equal(t, seq.Holdout.MSE, par.Holdout.MSE)
	assert.NotEqual(t, seq.RunID, par.RunID)
}

func TestTrainer_Errors(t *testing.T) {
	records, prices := housing.SampleListings(30, 2)
	var ff *errors.FitFailureError

	t.Run("too few rows", func(t *testing.T) {
		_, err := NewTrainer(testConfig(t)).Run(context.Background(), records[:3], prices[:3])
		require.True(t, errors.As(err, &ff))
		assert.True(t, errors.Is(err, errors.ErrEmptyData))
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := NewTrainer(testConfig(t)).Run(context.Background(), records, prices[:20])
		require.True(t, errors.As(err, &ff))
	})

	t.Run("bad price", func(t *testing.T) {
		bad := append([]float64(nil), prices...)
		bad[7] = math.NaN()
		_, err := NewTrainer(testConfig(t)).Run(context.Background(), records, bad)
		require.True(t, errors.As(err, &ff))
	})

	t.Run("bad params", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.ModelParams = map[string]any{"learning_rate": 2.0}
		_, err := NewTrainer(cfg).Run(context.Background(), records, prices)
		require.True(t, errors.As(err, &ff))
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve))
		_, statErr := os.Stat(cfg.ArtifactPath)
		assert.True(t, os.IsNotExist(statErr), "failed runs must not write an artifact")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cfg := testConfig(t)
		_, err := NewTrainer(cfg).Run(ctx, records, prices)
		require.True(t, errors.As(err, &ff))
		assert.True(t, errors.Is(err, context.Canceled))
		_, statErr := os.Stat(cfg.ArtifactPath)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestTrainer_NumericTypesInRecords(t *testing.T) {
	records, prices := housing.SampleListings(40, 9)
	for i, r := range records {
		if i%2 == 0 {
			r["GrLivArea"] = int(r["GrLivArea"].(float64))
		}
	}
	records = append(records, preprocessing.Record{"GrLivArea": "1500", "Neighborhood": "NAmes"})
	prices = append(prices, 180000)

	_, err := NewTrainer(testConfig(t)).Run(context.Background(), records, prices)
	assert.NoError(t, err)
}

func TestReport_Print(t *testing.T) {
	r := &Report{
		FoldMSE:      []float64{0.012346, 0.02},
		CVMeanMSE:    0.0161725,
		CVStdMSE:     0.0038275,
		ArtifactPath: "model.bin",
	}
	r.Holdout.MSE = 0.014

	var buf bytes.Buffer
	require.NoError(t, r.Print(&buf))
	assert.Equal(t, `doing validation
mse on fold 0 is 0.01235
mse on fold 1 is 0.02000
validation results:
0.0162 +- 0.0038
training the final model
mse=0.01400
the model is saved to model.bin
`, buf.String())
}

func TestReport_FoldRows(t *testing.T) {
	r := &Report{
		FoldMSE:      []float64{0.04, 0.09},
		FoldFitTimes: []time.Duration{1500 * time.Millisecond},
	}
	rows := r.FoldRows()
	require.Len(t, rows, 2)
	assert.InDelta(t, 0.2, rows[0].RMSE, 1e-12)
	assert.Equal(t, int64(1500), rows[0].FitMillis)
	assert.Equal(t, int64(0), rows[1].FitMillis)
	assert.Equal(t, 1, rows[1].Fold)
}

func TestFoldPlot(t *testing.T) {
	_, err := FoldPlot(&Report{})
	assert.Error(t, err)

	p, err := FoldPlot(&Report{FoldMSE: []float64{0.01, 0.03, 0.02}, CVMeanMSE: 0.02})
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "0.0200")

	path := filepath.Join(t.TempDir(), "folds.svg")
	require.NoError(t, SaveFoldPlot(path, &Report{FoldMSE: []float64{0.01}, CVMeanMSE: 0.01}))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
