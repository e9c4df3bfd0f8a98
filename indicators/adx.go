package indicators

import "math"

// ADX is the average directional index. Directional movement and true range
// are smoothed with alpha = 1/period, then DX is smoothed the same way.
// Undefined values are reported as 0.
func ADX(high, low, close []float64, period int) []float64 {
	if period <= 0 {
		panic("ADX period must be > 0")
	}
	n := minLen(high, low, close)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := high[i] - high[i-1]
		downMove := low[i-1] - low[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	alpha := 1.0 / float64(period)
	atr := ATR(high[:n], low[:n], close[:n], period)
	smPlus := ewm(plusDM, alpha)
	smMinus := ewm(minusDM, alpha)

	dxs := nanSeries(n)
	for i := 0; i < n; i++ {
		plusDI, minusDI := di(smPlus[i], smMinus[i], atr[i])
		dxs[i] = dx(plusDI, minusDI)
	}

	out := ewm(dxs, alpha)
	for i, v := range out {
		if math.IsNaN(v) {
			out[i] = 0
		}
	}
	return out
}

func di(smPlusDM, smMinusDM, smTR float64) (plusDI, minusDI float64) {
	if smTR <= 0 || math.IsNaN(smTR) {
		return math.NaN(), math.NaN()
	}
	plusDI = 100.0 * (smPlusDM / smTR)
	minusDI = 100.0 * (smMinusDM / smTR)
	return plusDI, minusDI
}

// dx is NaN when both DIs are zero so it does not drag the average down.
func dx(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if math.IsNaN(den) || den <= 0 {
		return math.NaN()
	}
	return 100.0 * (math.Abs(plusDI-minusDI) / den)
}
