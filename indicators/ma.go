package indicators

// SMA is the simple moving average of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if err := checkPeriod(closes, period); err != nil {
		return 0, err
	}

	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period), nil
}

// EMA is the exponential moving average over the whole series, seeded with
// the SMA of the first period closes.
func EMA(closes []float64, period int) (float64, error) {
	if err := checkPeriod(closes, period); err != nil {
		return 0, err
	}

	multiplier := 2.0 / float64(period+1)

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += closes[i]
	}
	ema := sma / float64(period)

	for i := period; i < len(closes); i++ {
		ema = (closes[i]-ema)*multiplier + ema
	}
	return ema, nil
}
