package predict

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/signalsim/market"
)

// Column reads a signal precomputed by an external model and stored as an
// extra data column.
type Column struct {
	column    string
	threshold float64
}

// NewColumn reads column (default market.SignalColumn) and maps values
// above threshold (default 0.5) to 1.
func NewColumn(column string, threshold float64) *Column {
	column = strings.ToLower(strings.TrimSpace(column))
	if column == "" {
		column = market.SignalColumn
	}
	if threshold == 0 {
		threshold = 0.5
	}
	return &Column{column: column, threshold: threshold}
}

func (c *Column) Name() string { return "COLUMN(" + c.column + ")" }
func (c *Column) Warmup() int  { return 0 }

func (c *Column) Predict(history []market.Bar) (int, error) {
	if len(history) == 0 {
		return 0, market.ErrNoData
	}
	v, ok := history[len(history)-1].Extra[c.column]
	if !ok || math.IsNaN(v) {
		return 0, fmt.Errorf("column %q: %w", c.column, market.ErrNoData)
	}
	if v > c.threshold {
		return 1, nil
	}
	return 0, nil
}
