package training

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/houseprice/metrics"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// Report summarises a finished training run. All MSE values are in log1p
// space.
type Report struct {
	RunID uuid.UUID

	NTrain int
	NTest  int

	FoldMSE      []float64
	FoldFitTimes []time.Duration
	CVMeanMSE    float64
	CVStdMSE     float64 // population standard deviation

	Holdout      metrics.Report
	FeatureCount int

	ArtifactPath string
	PlotPath     string

	CVDuration    time.Duration
	FitDuration   time.Duration
	TotalDuration time.Duration
}

// Print writes the operator summary of the run
func (r *Report) Print(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("doing validation\n")
	for i, mse := range r.FoldMSE {
		printf("mse on fold %d is %.5f\n", i, mse)
	}
	printf("validation results:\n")
	printf("%.4f +- %.4f\n", r.CVMeanMSE, r.CVStdMSE)
	printf("training the final model\n")
	printf("mse=%.5f\n", r.Holdout.MSE)
	printf("the model is saved to %s\n", r.ArtifactPath)
	return err
}

// FoldRow is one line of the per-fold CSV export
type FoldRow struct {
	Fold      int     `csv:"fold"`
	MSE       float64 `csv:"mse"`
	RMSE      float64 `csv:"rmse"`
	FitMillis int64   `csv:"fit_ms"`
}

// FoldRows returns the per-fold scores as CSV rows
func (r *Report) FoldRows() []*FoldRow {
	rows := make([]*FoldRow, len(r.FoldMSE))
	for i, mse := range r.FoldMSE {
		row := &FoldRow{Fold: i, MSE: mse, RMSE: math.Sqrt(mse)}
		if i < len(r.FoldFitTimes) {
			row.FitMillis = r.FoldFitTimes[i].Milliseconds()
		}
		rows[i] = row
	}
	return rows
}

// WriteFoldsCSV writes the per-fold scores as CSV with a header row
func (r *Report) WriteFoldsCSV(w io.Writer) error {
	rows := r.FoldRows()
	if err := gocsv.Marshal(&rows, w); err != nil {
		return errors.Wrap(err, "failed to write fold csv")
	}
	return nil
}

// SaveFoldsCSV writes the per-fold scores to path
func (r *Report) SaveFoldsCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := r.WriteFoldsCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
