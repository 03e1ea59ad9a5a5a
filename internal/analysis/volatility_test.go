package analysis

import (
	"testing"

	"priceaction-bot/internal/binance"
)

func flatKlines(n int, high, low, close float64) []binance.Kline {
	klines := make([]binance.Kline, n)
	for i := range klines {
		klines[i] = binance.Kline{High: high, Low: low, Close: close}
	}
	return klines
}

// TestATRFlatSeries tests ATR on constant-range candles
func TestATRFlatSeries(t *testing.T) {
	// Every candle spans exactly 2.0, so ATR converges to 2.0.
	klines := flatKlines(50, 101, 99, 100)
	got := ATR(klines, 14)
	if got < 1.99 || got > 2.01 {
		t.Errorf("ATR = %v, want ~2.0", got)
	}
}

// TestATRInsufficientData tests the short-series guard
func TestATRInsufficientData(t *testing.T) {
	klines := flatKlines(10, 101, 99, 100)
	if got := ATR(klines, 14); got != 0 {
		t.Errorf("ATR = %v, want 0 for short series", got)
	}
}

// TestATRPercent tests the percent-of-close conversion
func TestATRPercent(t *testing.T) {
	klines := flatKlines(50, 101, 99, 100)
	got := ATRPercent(klines, 14)
	if got < 1.99 || got > 2.01 {
		t.Errorf("ATRPercent = %v, want ~2.0", got)
	}
}
