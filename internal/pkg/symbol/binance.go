package symbol

import "strings"

type BinanceConverter struct{}

// ToExchange drops the slash: "BTC/USDT" -> "BTCUSDT". Unknown shapes pass through upper-cased.
func (BinanceConverter) ToExchange(internal string) string {
	if sym := Parse(internal); sym.Valid() {
		return sym.Binance()
	}
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(internal)), "/", "")
}

func (BinanceConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

var Binance = BinanceConverter{}
