package binance

import (
	"net/http"

	gobinance "github.com/adshao/go-binance/v2"
)

func newClient(cfg Config) *gobinance.Client {
	client := gobinance.NewClient(cfg.APIKey, cfg.APISecret)
	client.BaseURL = cfg.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	return client
}
