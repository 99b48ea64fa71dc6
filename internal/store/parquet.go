package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"quantbot/internal/domain"
)

// Compile-time interface check.
var _ CandleStore = (*ParquetStore)(nil)

// ParquetStore implements CandleStore using Parquet files on disk, one file
// per symbol, timeframe, and year.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// CandleRecord is the Parquet schema for candle history.
type CandleRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
	Timeframe string  `parquet:"timeframe"`
	Source    string  `parquet:"source"`
}

// WriteCandles writes candles to Parquet files grouped by symbol, timeframe,
// and year. Existing records in a target file are merged and deduplicated by
// timestamp, with incoming records winning.
func (s *ParquetStore) WriteCandles(_ context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	type key struct {
		symbol    string
		timeframe string
		year      int
	}
	groups := make(map[key][]CandleRecord)
	for _, c := range candles {
		tf := c.Timeframe
		if tf == "" {
			tf = "1h"
		}
		k := key{symbol: c.Symbol, timeframe: tf, year: c.Timestamp.Year()}
		groups[k] = append(groups[k], CandleRecord{
			Symbol:    c.Symbol,
			Timestamp: c.Timestamp.UnixMilli(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			Timeframe: tf,
			Source:    c.Source,
		})
	}

	for k, records := range groups {
		path := s.candlePath(k.symbol, k.timeframe, k.year)

		existing, _ := readParquetFile[CandleRecord](path)
		merged := mergeCandleRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing candles for %s/%s/%d: %w", k.symbol, k.timeframe, k.year, err)
		}
	}
	return nil
}

// ReadCandles reads candles for the symbol and timeframe within [start, end].
func (s *ParquetStore) ReadCandles(_ context.Context, symbol, timeframe string, start, end time.Time) ([]domain.Candle, error) {
	if timeframe == "" {
		timeframe = "1h"
	}

	var candles []domain.Candle
	for year := start.Year(); year <= end.Year(); year++ {
		path := s.candlePath(symbol, timeframe, year)

		records, err := readParquetFile[CandleRecord](path)
		if err != nil {
			// No file for this year.
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			candles = append(candles, domain.Candle{
				Symbol:    r.Symbol,
				Timestamp: ts,
				Open:      r.Open,
				High:      r.High,
				Low:       r.Low,
				Close:     r.Close,
				Volume:    r.Volume,
				Timeframe: r.Timeframe,
				Source:    r.Source,
			})
		}
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// ListSymbols lists all symbols with stored candle data.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	dir := filepath.Join(s.DataDir, "candles")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, unescapeSymbol(e.Name()))
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// candlePath returns the filesystem path for a candle Parquet file.
// Layout: <dataDir>/candles/<SYMBOL>/<timeframe>/<YYYY>.parquet
func (s *ParquetStore) candlePath(symbol, timeframe string, year int) string {
	return filepath.Join(s.DataDir, "candles", escapeSymbol(symbol), timeframe,
		fmt.Sprintf("%d.parquet", year))
}

// escapeSymbol makes a symbol safe as a directory name. Pair symbols like
// BTC/USD contain a path separator.
func escapeSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "-")
}

func unescapeSymbol(name string) string {
	return strings.ReplaceAll(name, "-", "/")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeCandleRecords deduplicates candle records by timestamp, preferring
// incoming records over existing ones. Results are sorted by timestamp.
func mergeCandleRecords(existing, incoming []CandleRecord) []CandleRecord {
	seen := make(map[int64]CandleRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]CandleRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
