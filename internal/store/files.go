package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/parquet-go/parquet-go"

	"cryptolens/internal/analysis/series"
	apperrors "cryptolens/internal/errors"
	"cryptolens/internal/models"
)

// SourceCSV marks rows imported from a history file.
const SourceCSV = "csv_import"

// HistoryWriter writes a coin's history to a file in one format.
type HistoryWriter interface {
	Write(cryptoID string, points models.Series, path string) error
	Extension() string
}

// NewHistoryWriter returns the writer for format (csv, parquet or json), or
// nil when the format is not supported.
func NewHistoryWriter(format string) HistoryWriter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVWriter{}
	case "parquet":
		return ParquetWriter{}
	case "json":
		return JSONWriter{}
	default:
		return nil
	}
}

// CSVWriter writes history rows with the dashboard's CSV columns.
type CSVWriter struct{}

func (CSVWriter) Extension() string { return "csv" }

func (CSVWriter) Write(_ string, points models.Series, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := WriteHistoryCSV(f, points); err != nil {
		return err
	}
	return f.Close()
}

// JSONWriter writes history rows as an indented JSON array.
type JSONWriter struct{}

func (JSONWriter) Extension() string { return "json" }

func (JSONWriter) Write(_ string, points models.Series, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(points); err != nil {
		return err
	}
	return f.Close()
}

// ParquetRow is the columnar form of a history row. Prices are resolved the
// same way the analysis reads them.
type ParquetRow struct {
	CryptoID string   `parquet:"crypto_id"`
	Date     string   `parquet:"date"`
	Open     *float64 `parquet:"open,optional"`
	High     *float64 `parquet:"high,optional"`
	Low      *float64 `parquet:"low,optional"`
	Close    *float64 `parquet:"close,optional"`
	Volume   float64  `parquet:"volume"`
	Price    float64  `parquet:"price"`
	Source   string   `parquet:"source,optional"`
}

// ParquetWriter writes history rows as Parquet.
type ParquetWriter struct{}

func (ParquetWriter) Extension() string { return "parquet" }

func (ParquetWriter) Write(cryptoID string, points models.Series, path string) error {
	return parquet.WriteFile(path, ParquetRows(cryptoID, points))
}

// ParquetRows converts history rows to their columnar form.
func ParquetRows(cryptoID string, points models.Series) []ParquetRow {
	rows := make([]ParquetRow, len(points))
	for i, p := range points {
		rows[i] = ParquetRow{
			CryptoID: cryptoID,
			Date:     p.Date.String(),
			Open:     optional(p.Open),
			High:     optional(p.High),
			Low:      optional(p.Low),
			Close:    optional(p.Close),
			Volume:   series.VolumeOf(p),
			Price:    series.PriceOf(p),
			Source:   p.Source,
		}
	}
	return rows
}

func optional(f models.Field) *float64 {
	v, ok := f.Float()
	if !ok {
		return nil
	}
	return &v
}

// ReadHistoryCSV decodes history rows from CSV. Columns are matched by header
// name; missing columns leave their fields unset.
func ReadHistoryCSV(r io.Reader) (models.Series, error) {
	var points []models.PricePoint
	if err := gocsv.Unmarshal(r, &points); err != nil {
		return nil, fmt.Errorf("failed to decode history csv: %w", err)
	}
	return models.Series(points), nil
}

// WriteHistoryCSV encodes history rows as CSV.
func WriteHistoryCSV(w io.Writer, points models.Series) error {
	rows := []models.PricePoint(points)
	if rows == nil {
		rows = []models.PricePoint{}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to encode history csv: %w", err)
	}
	return nil
}

// ImportHistoryFile merges the rows of a CSV file into the stored history of
// cryptoID and returns how many rows were new.
func ImportHistoryFile(ctx context.Context, ds DataStore, cryptoID, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, apperrors.NewDataError("history", cryptoID, "open "+path, err)
	}
	defer f.Close()

	points, err := ReadHistoryCSV(f)
	if err != nil {
		return 0, apperrors.NewDataError("history", cryptoID, "read "+path, err)
	}

	valid := points[:0]
	for _, p := range points {
		if p.Date == "" {
			continue
		}
		if p.Source == "" {
			p.Source = SourceCSV
		}
		valid = append(valid, p)
	}
	// Duplicate dates inside the file keep their first row.
	return ds.SaveHistory(ctx, cryptoID, series.Merge(nil, valid))
}

// ExportHistoryFile writes the stored history of cryptoID to path in format
// and returns the number of rows written.
func ExportHistoryFile(ctx context.Context, ds DataStore, cryptoID, path, format string) (int, error) {
	w := NewHistoryWriter(format)
	if w == nil {
		return 0, apperrors.NewValidationError("format", format, "supported formats: csv, parquet, json")
	}
	points, err := ds.GetHistory(ctx, cryptoID)
	if err != nil {
		return 0, err
	}
	if err := w.Write(cryptoID, points, path); err != nil {
		return 0, apperrors.NewDataError("history", cryptoID, "write "+path, err)
	}
	return len(points), nil
}
