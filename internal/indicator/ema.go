package indicator

// emaSeries computes an exponential moving average over values. The EMA is
// seeded with a simple average of the first period points, so indices below
// period-1 stay nil.
func emaSeries(values []float64, period int) []*float64 {
	out := make([]*float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ptr(ema)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*k + ema
		out[i] = ptr(ema)
	}
	return out
}

func ptr(v float64) *float64 { return &v }
