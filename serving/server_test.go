package serving

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/houseprice/artifact"
	"github.com/YuminosukeSato/houseprice/housing"
	"github.com/YuminosukeSato/houseprice/pipeline"
	"github.com/YuminosukeSato/houseprice/pkg/log"
	"github.com/YuminosukeSato/houseprice/preprocessing"
)

type fixture struct {
	server     *Server
	handler    http.Handler
	logger     *log.TestLogger
	heldOut    []preprocessing.Record
	heldPrices []float64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	records, prices := housing.SampleListings(200, 21)
	p, err := pipeline.New(housing.Schema(), map[string]any{
		"iterations": 150, "depth": 4, "learning_rate": 0.1, "l2_leaf_reg": 1,
	})
	require.NoError(t, err)
	require.NoError(t, p.Fit(records[:180], prices[:180]))
	a, err := artifact.New(p, uuid.New())
	require.NoError(t, err)

	logger, _ := log.NewTestLogger(log.LevelDebug)
	s := New(a, logger)
	return &fixture{server: s, handler: s.Routes(), logger: logger, heldOut: records[180:], heldPrices: prices[180:]}
}

func (f *fixture) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestPredict_HeldOutRows(t *testing.T) {
	f := newFixture(t)

	within := 0
	for i, house := range f.heldOut {
		body, err := json.Marshal(house)
		require.NoError(t, err)

		rec := f.post(t, string(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp map[string]float64
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		price, ok := resp["houseprice"]
		require.True(t, ok)
		assert.Greater(t, price, 0.0)
		assert.False(t, math.IsInf(price, 0) || math.IsNaN(price))

		direct, err := f.server.artifact.Pipeline.PredictPrice([]preprocessing.Record{house})
		require.NoError(t, err)
		assert.InDelta(t, direct[0], price, 1e-6*direct[0])

		if math.Abs(price-f.heldPrices[i])/f.heldPrices[i] <= 0.15 {
			within++
		}
	}
	assert.GreaterOrEqual(t, within, 16, "most held-out houses should be priced within 15 percent")
}

func TestPredict_LogsInferencePhase(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, `{"GrLivArea": 1500, "OverallQual": 7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.logger.ContainsMessage("prediction served"))
	assert.True(t, f.logger.ContainsField(log.PhaseKey, log.PhaseInference))
	assert.True(t, f.logger.ContainsField(log.OperationKey, log.OperationPredict))
}

func TestPredict_NumericCategoryMatchesString(t *testing.T) {
	f := newFixture(t)

	asNumber := f.post(t, `{"GrLivArea": 1500, "OverallQual": 7, "Neighborhood": "CollgCr", "YearBuilt": 1990}`)
	asString := f.post(t, `{"GrLivArea": "1500", "OverallQual": "7", "Neighborhood": "CollgCr", "YearBuilt": 1990.0}`)
	require.Equal(t, http.StatusOK, asNumber.Code)
	require.Equal(t, http.StatusOK, asString.Code)
	assert.JSONEq(t, asNumber.Body.String(), asString.Body.String())
}

func TestPredict_SparseAndUnknownFields(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		`{}`,
		`{"Neighborhood": "Atlantis", "Pool": "yes", "GrLivArea": null}`,
		`{"LotFrontage": "NA", "Alley": "NA"}`,
	} {
		rec := f.post(t, body)
		require.Equal(t, http.StatusOK, rec.Code, body)
		var resp PredictResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Greater(t, resp.HousePrice, 0.0)
	}
}

func TestPredict_BadRequests(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		``,
		`{"GrLivArea": `,
		`[{"GrLivArea": 1500}]`,
		`null`,
		`"house"`,
		`{"GrLivArea": 1500} {"GrLivArea": 900}`,
	} {
		rec := f.post(t, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), body)
		assert.NotEmpty(t, resp.Error)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndMetadata(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metadata", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var meta struct {
		RunID         string   `json:"run_id"`
		SchemaVersion string   `json:"schema_version"`
		FeatureCount  int      `json:"feature_count"`
		Features      []string `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, f.server.artifact.Meta.RunID.String(), meta.RunID)
	assert.Equal(t, housing.SchemaVersion, meta.SchemaVersion)
	assert.Len(t, meta.Features, meta.FeatureCount)
}

func TestPredict_Concurrent(t *testing.T) {
	f := newFixture(t)
	body, err := json.Marshal(f.heldOut[0])
	require.NoError(t, err)
	want := f.post(t, string(body)).Body.String()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body))
			f.handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, want, rec.Body.String())
		}()
	}
	wg.Wait()
}

func TestRoutes_RecoversPanics(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	s := New(&artifact.Artifact{}, logger)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, logger.ContainsMessage("handler panic"))
}

func TestDecodeHouse(t *testing.T) {
	r, err := DecodeHouse(strings.NewReader(`{"MSSubClass": 60, "Alley": "NA"}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("60"), r["MSSubClass"])
	assert.Equal(t, "NA", r["Alley"])
}
