// Package houseprice predicts house sale prices from tabular listing data.
//
// The repository trains a gradient boosted regression model on numeric and
// categorical house attributes, validates it with k-fold cross-validation,
// persists the fitted encoder and model as one artifact, and serves
// predictions over HTTP.
//
// # Train/serve parity
//
// The same cleaning and encoding code runs at fit time and at inference
// time. The fitted encoder is stored next to the model in the artifact, so a
// served request is always encoded into the feature coordinates the model
// was trained on. Targets are modelled as log1p(price); expm1 is applied only
// when a price leaves the system.
//
// # Quick Start
//
//	houseprice train --config config.yaml --data data/train.csv --output model.bin
//	houseprice serve --artifact model.bin --addr :9696
//
//	curl -X POST localhost:9696/predict \
//	    -d '{"GrLivArea": 1710, "Neighborhood": "CollgCr", "OverallQual": 7}'
//	{"houseprice":208312.4}
//
// From Go:
//
//	records, prices, err := dataset.Load("data/train.csv", housing.Schema(), housing.TargetColumn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := pipeline.New(housing.Schema(), map[string]any{"depth": 5, "l2_leaf_reg": 1})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := p.Fit(records, prices); err != nil {
//	    log.Fatal(err)
//	}
//	price, err := p.PredictPrice([]preprocessing.Record{{"GrLivArea": 1500}})
//
// # Packages
//
//   - preprocessing: Record, Schema, the cleaning Imputer and the DictVectorizer encoder
//   - housing: the versioned house feature schema
//   - sklearn/ensemble: histogram based gradient boosting regressor
//   - sklearn/model_selection: KFold, TrainTestSplit and CV results
//   - metrics: regression metrics (MSE, RMSE, MAE, R²)
//   - pipeline: cleaning, encoding and model chained into one fitted unit
//   - artifact: atomic persistence of a fitted pipeline with run metadata
//   - dataset: CSV ingestion
//   - training: the training run and its report
//   - serving: the prediction HTTP server
//   - config: YAML configuration with environment overrides
//   - core/model, core/parallel: estimator interfaces, fitted state and parallel helpers
//   - pkg/errors, pkg/log: typed errors and zerolog based structured logging
package houseprice
