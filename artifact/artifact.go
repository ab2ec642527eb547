// Package artifact persists a fitted pipeline together with its run metadata
// as one immutable file.
//
// Layout: an 8 byte magic header followed by a snappy framed stream holding
// the gob encoded Artifact. Saving goes through a temporary file in the
// target directory that is fsynced and renamed, so a crashed or failed run
// never leaves a partial artifact behind.
package artifact

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/houseprice/core/model"
	"github.com/YuminosukeSato/houseprice/pipeline"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
	"github.com/YuminosukeSato/houseprice/pkg/log"
	"github.com/YuminosukeSato/houseprice/preprocessing"
)

// FormatVersion is bumped whenever the encoded layout changes
const FormatVersion = 1

var magic = []byte("HPRICE\x00\x01")

// Metadata describes the run that produced an artifact
type Metadata struct {
	FormatVersion     int            `json:"format_version"`
	RunID             uuid.UUID      `json:"run_id"`
	CreatedAt         time.Time      `json:"created_at"`
	SchemaVersion     string         `json:"schema_version"`
	SchemaFingerprint string         `json:"schema_fingerprint"`
	FeatureCount      int            `json:"feature_count"`
	Params            map[string]any `json:"params"`
	CVMeanMSE         float64        `json:"cv_mean_mse"`
	CVStdMSE          float64        `json:"cv_std_mse"`
	HoldoutMSE        float64        `json:"holdout_mse"`
}

// Artifact is the fitted (encoder, model) pair plus metadata.
// It is never mutated after creation.
type Artifact struct {
	Meta     Metadata
	Pipeline *pipeline.Pipeline
}

// New wraps a fitted pipeline, filling the metadata fields derived from it.
// Metrics are left for the caller to set.
func New(p *pipeline.Pipeline, runID uuid.UUID) (*Artifact, error) {
	if p == nil || !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "artifact.New")
	}
	schema := p.Schema()
	return &Artifact{
		Meta: Metadata{
			FormatVersion:     FormatVersion,
			RunID:             runID,
			CreatedAt:         time.Now().UTC(),
			SchemaVersion:     schema.Version,
			SchemaFingerprint: schema.Fingerprint(),
			FeatureCount:      p.Encoder.NFeatures(),
			Params:            p.Regressor.GetParams(),
		},
		Pipeline: p,
	}, nil
}

// Write encodes a to w
func Write(w io.Writer, a *Artifact) error {
	if a == nil || a.Pipeline == nil || !a.Pipeline.IsFitted() {
		return errors.NewNotFittedError("Pipeline", "artifact.Write")
	}
	if _, err := w.Write(magic); err != nil {
		return errors.Wrap(err, "failed to write artifact header")
	}
	sw := snappy.NewBufferedWriter(w)
	if err := model.SaveModelToWriter(a, sw); err != nil {
		return err
	}
	if err := sw.Close(); err != nil {
		return errors.Wrap(err, "failed to flush artifact payload")
	}
	return nil
}

// Save writes a to path atomically
func Save(path string, a *Artifact) (err error) {
	start := time.Now()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create artifact directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary artifact file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = Write(bw, a); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return errors.Wrap(err, "failed to write artifact")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync artifact")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close artifact")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to move artifact into %s", path)
	}

	log.GetLoggerWithName("artifact").Info("artifact saved",
		log.OperationKey, log.OperationSave,
		log.ArtifactPathKey, path,
		log.RunIDKey, a.Meta.RunID.String(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Load reads the artifact at path and checks it against schema
func Load(path string, schema preprocessing.Schema) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewCorruptArtifactError(path, "cannot open", err)
	}
	defer f.Close()

	a, err := read(path, bufio.NewReader(f), schema)
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("artifact").Info("artifact loaded",
		log.OperationKey, log.OperationLoad,
		log.ArtifactPathKey, path,
		log.RunIDKey, a.Meta.RunID.String(),
		log.SchemaFingerprintKey, a.Meta.SchemaFingerprint,
	)
	return a, nil
}

// Read decodes an artifact from r and checks it against schema
func Read(r io.Reader, schema preprocessing.Schema) (*Artifact, error) {
	return read("<stream>", r, schema)
}

func read(path string, r io.Reader, schema preprocessing.Schema) (*Artifact, error) {
	header := make([]byte, len(magic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.NewCorruptArtifactError(path, "truncated header", err)
	}
	if !bytes.Equal(header, magic) {
		return nil, errors.NewCorruptArtifactError(path, "bad magic header", nil)
	}

	var a Artifact
	if err := model.LoadModelFromReader(&a, snappy.NewReader(r)); err != nil {
		return nil, errors.NewCorruptArtifactError(path, "cannot decode payload", err)
	}
	if err := a.check(schema); err != nil {
		return nil, errors.NewCorruptArtifactError(path, err.Error(), nil)
	}
	return &a, nil
}

func (a *Artifact) check(schema preprocessing.Schema) error {
	if a.Meta.FormatVersion != FormatVersion {
		return errors.Newf("unsupported format version %d", a.Meta.FormatVersion)
	}
	p := a.Pipeline
	if p == nil || p.State == nil || p.Imputer == nil || p.Encoder == nil || p.Regressor == nil {
		return errors.New("missing pipeline component")
	}
	if p.Encoder.State == nil || p.Regressor.State == nil ||
		!p.IsFitted() || !p.Encoder.State.IsFitted() || !p.Regressor.IsFitted() {
		return errors.New("pipeline component is not fitted")
	}
	want := schema.Fingerprint()
	if a.Meta.SchemaFingerprint != want || p.Schema().Fingerprint() != want {
		return errors.Newf("schema fingerprint %s does not match %s (%s)",
			a.Meta.SchemaFingerprint, want, schema.Version)
	}
	return nil
}
