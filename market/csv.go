package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "20060102"}

// LoadCSV reads a daily bar file:
//
//	Date,Open,High,Low,Close,Volume[,extra...]
//
// Column names are matched case-insensitively and only Date and Close are
// required. Extra numeric columns land in Bar.Extra; empty or unparsable
// cells become NaN. Files ending in .xz or .lzma are decompressed.
// The ticker is taken from the file name.
func LoadCSV(path string) (Series, error) {
	rc, err := openMaybeCompressed(path)
	if err != nil {
		return Series{}, err
	}
	defer rc.Close()

	bars, err := ReadCSV(rc)
	if err != nil {
		return Series{}, fmt.Errorf("%s: %w", path, err)
	}
	return NewSeries(tickerFromPath(path), bars), nil
}

// ReadCSV parses bar rows from r. See LoadCSV for the format.
func ReadCSV(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: %w", ErrNoData)
	}
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateIdx, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("missing date column")
	}
	if _, ok := cols["close"]; !ok {
		return nil, fmt.Errorf("missing close column")
	}

	var bars []Bar
	line := 1
	for {
		row, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 || dateIdx >= len(row) || strings.TrimSpace(row[dateIdx]) == "" {
			continue
		}

		d, err := parseDate(row[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		b := Bar{Date: d}
		for name, i := range cols {
			if i == dateIdx {
				continue
			}
			v := cell(row, i)
			switch name {
			case "open":
				b.Open = v
			case "high":
				b.High = v
			case "low":
				b.Low = v
			case "close":
				b.Close = v
			case "volume":
				b.Volume = v
			default:
				if b.Extra == nil {
					b.Extra = make(map[string]float64)
				}
				b.Extra[name] = v
			}
		}
		bars = append(bars, b)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("no rows: %w", ErrNoData)
	}
	return bars, nil
}

// WriteCSV writes a series in the format LoadCSV reads. Extra columns are
// written in sorted order.
func WriteCSV(w io.Writer, s Series) error {
	extras := extraColumns(s)
	cw := csv.NewWriter(w)

	header := append([]string{"Date", "Open", "High", "Low", "Close", "Volume"}, extras...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, b := range s.Bars {
		row := []string{
			b.Date.Format("2006-01-02"),
			f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume),
		}
		for _, name := range extras {
			v, ok := b.Extra[name]
			if !ok {
				v = math.NaN()
			}
			row = append(row, f(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func extraColumns(s Series) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range s.Bars {
		for name := range b.Extra {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}

func cell(row []string, i int) float64 {
	if i >= len(row) {
		return math.NaN()
	}
	s := strings.TrimSpace(row[i])
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func f(x float64) string {
	if math.IsNaN(x) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

type readCloser struct {
	io.Reader
	f *os.File
}

func (r readCloser) Close() error { return r.f.Close() }

func openMaybeCompressed(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var r io.Reader
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz":
		r, err = xz.NewReader(fh)
	case ".lzma":
		r, err = lzma.NewReader(fh)
	default:
		return fh, nil
	}
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return readCloser{Reader: r, f: fh}, nil
}

// tickerFromPath turns "data/aapl.csv.xz" into "AAPL".
func tickerFromPath(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".xz", ".lzma", ".csv", ".parquet"} {
		base = strings.TrimSuffix(strings.TrimSuffix(base, ext), strings.ToUpper(ext))
	}
	return NormalizeTicker(base)
}
