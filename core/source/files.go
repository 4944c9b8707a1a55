package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/core/persistence"
)

// JSONFile loads the dataset name from a JSON file holding an object, an array
// or a {"dataSetName":..,"data":[..]} envelope. A missing file yields no
// dataset.
func JSONFile(name, path string) persistence.DataSetSource {
	return persistence.SourceFunc(func(ctx context.Context, _ map[string]any) (*dataset.DataSet, error) {
		data, err := readFile(path)
		if err != nil || data == nil {
			return nil, err
		}
		return decodeJSON(name, data)
	})
}

// Inline returns a source yielding the dataset encoded in data.
func Inline(name string, data []byte) persistence.DataSetSource {
	return persistence.SourceFunc(func(ctx context.Context, _ map[string]any) (*dataset.DataSet, error) {
		return decodeJSON(name, data)
	})
}

func decodeJSON(name string, data []byte) (*dataset.DataSet, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("source %s: %w", name, err)
	}
	return dataset.DataSetFromAny(name, raw), nil
}

// CSVOptions configures CSVFile.
type CSVOptions struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// RawStrings keeps every cell a string instead of reading numbers.
	RawStrings bool
}

// CSVFile loads the dataset name from a CSV file whose first record holds the
// field names. Empty cells are null. A missing file yields no dataset.
func CSVFile(name, path string, options CSVOptions) persistence.DataSetSource {
	return persistence.SourceFunc(func(ctx context.Context, _ map[string]any) (*dataset.DataSet, error) {
		data, err := readFile(path)
		if err != nil || data == nil {
			return nil, err
		}
		ds, err := parseCSV(name, bytes.NewReader(data), options)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		return ds, nil
	})
}

func parseCSV(name string, r io.Reader, options CSVOptions) (*dataset.DataSet, error) {
	reader := csv.NewReader(r)
	if options.Comma != 0 {
		reader.Comma = options.Comma
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return dataset.New(name, nil), nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []dataset.Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(dataset.Row, len(header))
		for i, field := range header {
			if i >= len(record) {
				row[field] = dataset.Null()
				continue
			}
			row[field] = csvValue(record[i], options.RawStrings)
		}
		rows = append(rows, row)
	}
	return dataset.New(name, rows), nil
}

func csvValue(cell string, raw bool) dataset.Value {
	if cell == "" {
		return dataset.Null()
	}
	if raw {
		return dataset.String(cell)
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return dataset.Number(f)
	}
	return dataset.String(cell)
}

// readFile returns nil data and no error when path does not exist.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
