// Package serving exposes a loaded artifact over HTTP.
//
// The artifact is loaded once by the caller and held read-only for the life
// of the process; handlers share it without locking.
package serving

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/YuminosukeSato/houseprice/artifact"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
	"github.com/YuminosukeSato/houseprice/pkg/log"
	"github.com/YuminosukeSato/houseprice/preprocessing"
)

// maxBodyBytes bounds the size of a /predict request body
const maxBodyBytes = 1 << 20

// PredictResponse is the body of a successful /predict call
type PredictResponse struct {
	HousePrice float64 `json:"houseprice"`
}

// ErrorResponse is the body of a failed call
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server answers prediction requests from one artifact
type Server struct {
	artifact *artifact.Artifact
	logger   log.Logger
	started  time.Time
}

// New creates a Server for a. A nil logger uses the "serving" component logger.
func New(a *artifact.Artifact, logger log.Logger) *Server {
	if logger == nil {
		logger = log.GetLoggerWithName("serving")
	}
	return &Server{artifact: a, logger: logger, started: time.Now()}
}

// Routes returns the HTTP handler of the server
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/metadata", s.handleMetadata).Methods(http.MethodGet)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(router)
}

// Predict returns the predicted sale price of one house
func (s *Server) Predict(house preprocessing.Record) (float64, error) {
	p := s.artifact.Pipeline
	if s.logger.Enabled(context.Background(), log.LevelDebug) {
		if unseen := p.UnseenCategories(house); len(unseen) > 0 {
			s.logger.Debug("unseen categories", log.UnseenKey, unseen)
		}
	}
	prices, err := p.PredictPrice([]preprocessing.Record{house})
	if err != nil {
		return 0, err
	}
	if err := errors.CheckScalar("Server.Predict", prices[0], 0); err != nil {
		return 0, err
	}
	return prices[0], nil
}

// DecodeHouse parses a flat JSON object into a Record. Numbers are kept as
// json.Number so integer-valued categories keep their exact spelling.
func DecodeHouse(r io.Reader) (preprocessing.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, errors.Wrap(err, "malformed JSON")
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, errors.Newf("request body must be a JSON object, got %s", jsonKind(body))
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after the JSON object")
	}
	return preprocessing.Record(obj), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	house, err := DecodeHouse(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.logger.Debug("bad predict request", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	price, err := s.Predict(house)
	if err != nil {
		s.logger.Error("prediction failed", err)
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}

	s.logger.Debug("prediction served",
		log.PhaseKey, log.PhaseInference,
		log.OperationKey, log.OperationPredict,
		log.PriceKey, price,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, PredictResponse{HousePrice: price})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"run_id":     s.artifact.Meta.RunID.String(),
		"uptime_sec": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	meta := s.artifact.Meta
	writeJSON(w, http.StatusOK, struct {
		artifact.Metadata
		Features []string `json:"features"`
	}{meta, s.artifact.Pipeline.FeatureNames()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// recoveryLogger routes gorilla/handlers panic reports into the server logger
type recoveryLogger struct {
	logger log.Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.logger.Error("handler panic", "panic", fmt.Sprint(args...))
}
