package market

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
)

// BarRecord is the on-disk Parquet schema for daily bars. Signal is the
// optional model output column read by the column predictor.
type BarRecord struct {
	Date   int64    `parquet:"date,timestamp(millisecond)"`
	Open   float64  `parquet:"open"`
	High   float64  `parquet:"high"`
	Low    float64  `parquet:"low"`
	Close  float64  `parquet:"close"`
	Volume float64  `parquet:"volume"`
	Signal *float64 `parquet:"signal,optional"`
}

// LoadParquet reads a bar file written by WriteParquet (or any writer using
// the BarRecord schema). The ticker is taken from the file name.
func LoadParquet(path string) (Series, error) {
	rows, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return Series{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(rows) == 0 {
		return Series{}, fmt.Errorf("%s: %w", path, ErrNoData)
	}

	bars := make([]Bar, 0, len(rows))
	for _, r := range rows {
		b := Bar{
			Date:   Day(time.UnixMilli(r.Date)),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
		if r.Signal != nil {
			b.Extra = map[string]float64{SignalColumn: *r.Signal}
		}
		bars = append(bars, b)
	}
	return NewSeries(tickerFromPath(path), bars), nil
}

// WriteParquet writes s to path, creating parent directories. Only the
// signal extra column is kept.
func WriteParquet(path string, s Series) error {
	records := make([]BarRecord, 0, len(s.Bars))
	for _, b := range s.Bars {
		r := BarRecord{
			Date:   b.Date.UnixMilli(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
		if v, ok := b.Extra[SignalColumn]; ok && !math.IsNaN(v) {
			sig := v
			r.Signal = &sig
		}
		records = append(records, r)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
