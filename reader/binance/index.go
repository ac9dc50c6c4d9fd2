package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"

	appconfig "optionflow/config"
	"optionflow/logger"
)

// IndexSource resolves spot index prices for option underlyings from the
// Binance spot market. Portfolio delta is quoted in units of the underlying;
// the index price converts it to USD for display and snapshots.
type IndexSource struct {
	client *binance.Client
	log    *logger.Log
	quote  string
}

func NewIndexSource(cfg *appconfig.Config) *IndexSource {
	log := logger.GetLogger()

	client := binance.NewClient("", "")
	if parsed, err := url.Parse(cfg.Source.Binance.URL); err == nil && parsed.Host != "" {
		client.SetApiEndpoint(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host))
	}
	if cfg.Reader.TimeoutMs > 0 {
		client.HTTPClient.Timeout = time.Duration(cfg.Reader.TimeoutMs) * time.Millisecond
	}

	log.WithComponent("index_source").Info("binance index source initialized")

	return &IndexSource{
		client: client,
		log:    log,
		quote:  "USDT",
	}
}

// IndexPrice returns the current spot price of underlying quoted in USD.
func (s *IndexSource) IndexPrice(ctx context.Context, underlying string) (float64, error) {
	symbol := strings.ToUpper(underlying) + s.quote

	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch index price for %s: %w", underlying, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no index price for %s", symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid index price %q for %s", prices[0].Price, symbol)
	}
	return price, nil
}

// IndexPrices fetches index prices for a set of underlyings, skipping the
// ones that fail and reporting only what resolved.
func (s *IndexSource) IndexPrices(ctx context.Context, underlyings []string) map[string]float64 {
	log := s.log.WithComponent("index_source")
	out := make(map[string]float64, len(underlyings))
	for _, u := range underlyings {
		price, err := s.IndexPrice(ctx, u)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"underlying": u}).Warn("index price unavailable")
			continue
		}
		out[u] = price
	}
	return out
}
