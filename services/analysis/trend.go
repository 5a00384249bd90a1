package analysis

// Trend labels
const (
	TrendStrongUptrend   = "Strong Uptrend"
	TrendUptrend         = "Uptrend"
	TrendNeutral         = "Neutral"
	TrendDowntrend       = "Downtrend"
	TrendStrongDowntrend = "Strong Downtrend"
)

const baseScore = 50

// ScoreTrend turns SMA, RSI and MACD readings into a trend label and a score in [0, 100].
//
// RSI is read as a contrarian signal: overbought readings lower the score and
// oversold readings raise it. A positive MACD adds 15, anything else subtracts 15.
// A positive SMA adds 5.
func ScoreTrend(sma, rsi, macd float64) (string, int) {
	score := baseScore

	switch {
	case rsi > 70:
		score -= 20
	case rsi > 60:
		score -= 10
	case rsi < 30:
		score += 20
	case rsi < 40:
		score += 10
	}

	if macd > 0 {
		score += 15
	} else {
		score -= 15
	}

	if sma > 0 {
		score += 5
	}

	score = clamp(score, 0, 100)
	return Label(score), score
}

// Label maps a trend score onto its label
func Label(score int) string {
	switch {
	case score >= 70:
		return TrendStrongUptrend
	case score >= 60:
		return TrendUptrend
	case score >= 40:
		return TrendNeutral
	case score >= 30:
		return TrendDowntrend
	default:
		return TrendStrongDowntrend
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
