// Package indicators computes moving averages over close prices. Predictors
// use them to turn a price history into a buy signal.
package indicators

import "fmt"

// Average is a moving average over the tail of a close series.
type Average func(closes []float64, period int) (float64, error)

func checkPeriod(closes []float64, period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period {
		return fmt.Errorf("not enough closes: need %d, got %d", period, len(closes))
	}
	return nil
}
