package indicator

// macdSeries computes the MACD line, signal line and histogram over closes.
// The line is defined from index slow-1, the signal and histogram from index
// slow+signal-2; earlier indices stay nil.
func macdSeries(closes []float64, fast, slow, signal int) (line, sig, hist []*float64) {
	n := len(closes)
	line = make([]*float64, n)
	sig = make([]*float64, n)
	hist = make([]*float64, n)
	if fast <= 0 || slow <= fast || signal <= 0 || n < slow {
		return line, sig, hist
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	lineVals := make([]float64, 0, n-slow+1)
	for i := slow - 1; i < n; i++ {
		v := *fastEMA[i] - *slowEMA[i]
		line[i] = ptr(v)
		lineVals = append(lineVals, v)
	}

	sigCompact := emaSeries(lineVals, signal)
	for j, v := range sigCompact {
		if v == nil {
			continue
		}
		i := slow - 1 + j
		sig[i] = ptr(*v)
		hist[i] = ptr(*line[i] - *v)
	}
	return line, sig, hist
}
