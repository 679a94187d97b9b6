package indicators

import (
	"fmt"
	"math"
)

// ADX is Wilder's Average Directional Index, fed one bar at a time.
//
// The first N periods (differences between bars) seed the smoothed true
// range and directional movement; the next N-1 collect DX values whose mean
// seeds the ADX. Ready therefore needs 2N bars, which is what Warmup
// reports.
type ADX struct {
	n    int
	name string

	prevHigh, prevLow, prevClose float64
	hasPrev                      bool

	periods int
	ready   bool
	adx     float64
	plusDI  float64
	minusDI float64
	lastDX  float64

	// Wilder-smoothed sums; plain sums until the first N periods are in.
	smTR      float64
	smPlusDM  float64
	smMinusDM float64

	dxSum   float64
	dxCount int
}

func NewADX(period int) *ADX {
	if period <= 0 {
		panic("ADX period must be > 0")
	}
	return &ADX{n: period, name: fmt.Sprintf("ADX(%d)", period)}
}

func (a *ADX) Name() string   { return a.name }
func (a *ADX) Warmup() int    { return 2 * a.n }
func (a *ADX) Ready() bool    { return a.ready }
func (a *ADX) Value() float64 { return a.adx }

func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }
func (a *ADX) DX() float64      { return a.lastDX }

func (a *ADX) Reset() {
	*a = ADX{n: a.n, name: a.name}
}

// Update consumes the next bar.
func (a *ADX) Update(high, low, close float64) {
	if !a.hasPrev {
		a.prevHigh, a.prevLow, a.prevClose = high, low, close
		a.hasPrev = true
		return
	}

	tr := math.Max(high-low, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))

	upMove := high - a.prevHigh
	downMove := a.prevLow - low
	var plusDM, minusDM float64
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}

	a.prevHigh, a.prevLow, a.prevClose = high, low, close
	a.periods++
	nf := float64(a.n)

	if a.periods <= a.n {
		a.smTR += tr
		a.smPlusDM += plusDM
		a.smMinusDM += minusDM
		if a.periods == a.n {
			a.plusDI, a.minusDI = di(a.smPlusDM, a.smMinusDM, a.smTR)
			a.lastDX = dx(a.plusDI, a.minusDI)
			a.dxSum, a.dxCount = a.lastDX, 1
		}
		return
	}

	a.smTR = a.smTR - a.smTR/nf + tr
	a.smPlusDM = a.smPlusDM - a.smPlusDM/nf + plusDM
	a.smMinusDM = a.smMinusDM - a.smMinusDM/nf + minusDM

	a.plusDI, a.minusDI = di(a.smPlusDM, a.smMinusDM, a.smTR)
	a.lastDX = dx(a.plusDI, a.minusDI)

	if a.ready {
		a.adx = (a.adx*(nf-1) + a.lastDX) / nf
		return
	}
	a.dxSum += a.lastDX
	a.dxCount++
	if a.dxCount >= a.n {
		a.adx = a.dxSum / nf
		a.ready = true
	}
}

func di(smPlusDM, smMinusDM, smTR float64) (plusDI, minusDI float64) {
	if smTR <= 0 {
		return 0, 0
	}
	return 100 * smPlusDM / smTR, 100 * smMinusDM / smTR
}

func dx(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / den
}
