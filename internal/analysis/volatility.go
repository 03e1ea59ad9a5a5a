// Package analysis derives volatility inputs for the risk engine from
// kline data.
package analysis

import (
	"github.com/markcheno/go-talib"

	"priceaction-bot/internal/binance"
)

// DefaultATRPeriod is the conventional 14-bar ATR window.
const DefaultATRPeriod = 14

// ATR returns the latest average true range over the given klines, or 0
// when there are not enough bars for the period.
func ATR(klines []binance.Kline, period int) float64 {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	if len(klines) < period+1 {
		return 0
	}
	highs := make([]float64, len(klines))
	lows := make([]float64, len(klines))
	closes := make([]float64, len(klines))
	for i, k := range klines {
		highs[i] = k.High
		lows[i] = k.Low
		closes[i] = k.Close
	}
	series := talib.Atr(highs, lows, closes, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// ATRPercent returns ATR as a percentage of the last close, or 0 when
// either input is unavailable.
func ATRPercent(klines []binance.Kline, period int) float64 {
	atr := ATR(klines, period)
	if atr == 0 || len(klines) == 0 {
		return 0
	}
	last := klines[len(klines)-1].Close
	if last == 0 {
		return 0
	}
	return atr / last * 100
}
