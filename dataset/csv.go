// Package dataset loads labelled house listings from CSV files.
package dataset

import (
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
	"github.com/YuminosukeSato/houseprice/pkg/log"
	"github.com/YuminosukeSato/houseprice/preprocessing"
)

// missingNumeric is the raw data's marker for an absent numeric value
const missingNumeric = "NA"

// Load reads the CSV file at path. See Read.
func Load(path string, schema preprocessing.Schema, target string) ([]preprocessing.Record, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open dataset %s", path)
	}
	defer f.Close()

	records, prices, err := Read(f, schema, target)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read dataset %s", path)
	}
	log.GetLoggerWithName("dataset").Info("dataset loaded",
		"path", path,
		log.SamplesKey, len(records),
	)
	return records, prices, nil
}

// Read parses a CSV stream with a header row into Records and target prices.
//
// Schema fields become typed Record values: numeric cells that are empty or
// "NA" are left out of the record, other numeric cells must parse as numbers.
// Empty categorical cells are left out, "NA" is kept as a category. Columns
// outside the schema are ignored. The target column must be present and
// hold a finite number on every row.
//
// Every rejection is a SchemaViolationError naming the 1-based data row and
// the column.
func Read(r io.Reader, schema preprocessing.Schema, target string) ([]preprocessing.Record, []float64, error) {
	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse CSV")
	}
	if len(rows) == 0 {
		return nil, nil, errors.NewSchemaViolationError(target, 0, "no data rows")
	}
	if _, ok := rows[0][target]; !ok {
		return nil, nil, errors.NewSchemaViolationError(target, 0, "target column missing from header")
	}

	records := make([]preprocessing.Record, len(rows))
	prices := make([]float64, len(rows))
	for i, row := range rows {
		rowNum := i + 1

		price, err := parseTarget(row[target])
		if err != nil {
			return nil, nil, errors.NewSchemaViolationError(target, rowNum, err.Error())
		}
		prices[i] = price

		rec := make(preprocessing.Record, len(schema.NumericFields)+len(schema.CategoricalFields))
		for _, field := range schema.NumericFields {
			cell, ok := row[field]
			if !ok {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" || cell == missingNumeric {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, errors.NewSchemaViolationError(field, rowNum, "not a number: "+strconv.Quote(cell))
			}
			rec[field] = v
		}
		for _, field := range schema.CategoricalFields {
			if cell, ok := row[field]; ok && cell != "" {
				rec[field] = cell
			}
		}
		records[i] = rec
	}
	return records, prices, nil
}

func parseTarget(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == missingNumeric {
		return 0, errors.New("target value is missing")
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, errors.Newf("target is not a number: %q", cell)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Newf("target is not finite: %q", cell)
	}
	return v, nil
}
