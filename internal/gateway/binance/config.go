package binance

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	APIKey      string
	APISecret   string
	HTTPTimeout time.Duration

	// PricePrecision / QuantityPrecision are decimal places sent to the exchange.
	PricePrecision    int32
	QuantityPrecision int32
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://api.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.PricePrecision < 0 {
		out.PricePrecision = 0
	}
	if out.QuantityPrecision < 0 {
		out.QuantityPrecision = 0
	}
	return out
}
