package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	appconfig "optionflow/config"
	"optionflow/logger"
	"optionflow/models"
)

const defaultBaseURL = "https://api.bybit.com"

// Client fetches option marks from the Bybit v5 market API. Bybit reports a
// per-contract multiplier through instruments-info; when available it
// overrides the default multiplier of 1, so valuation scales each contract by
// what the venue says it is worth.
type Client struct {
	config *appconfig.Config
	client *bybit.Client
	log    *logger.Log

	mu          sync.Mutex
	multipliers map[string]*float64
}

func NewClient(cfg *appconfig.Config) *Client {
	log := logger.GetLogger()

	pool := cfg.Source.Bybit.ConnectionPool
	transport := &http.Transport{
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     time.Duration(pool.IdleConnTimeoutMs) * time.Millisecond,
		DisableCompression:  false,
	}

	timeout := time.Duration(cfg.Reader.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Transport: transport, Timeout: timeout}

	base := cfg.Source.Bybit.URL
	if base == "" {
		base = defaultBaseURL
	}
	if parsed, err := url.Parse(base); err == nil && parsed.Host != "" {
		base = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}

	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(base))
	client.HTTPClient = httpClient

	log.WithComponent("bybit_reader").WithFields(logger.Fields{
		"timeout": timeout,
	}).Info("bybit mark client initialized")

	return &Client{
		config:      cfg,
		client:      client,
		log:         log,
		multipliers: make(map[string]*float64),
	}
}

type tickerResult struct {
	Category string `json:"category"`
	List     []struct {
		Symbol    string `json:"symbol"`
		MarkPrice string `json:"markPrice"`
		Delta     string `json:"delta"`
		Gamma     string `json:"gamma"`
		Vega      string `json:"vega"`
		Theta     string `json:"theta"`
	} `json:"list"`
}

type instrumentsResult struct {
	List []struct {
		Symbol             string `json:"symbol"`
		ContractMultiplier string `json:"contractMultiplier"`
	} `json:"list"`
}

// GetBest returns the current mark for one option symbol.
func (c *Client) GetBest(ctx context.Context, symbol string) (models.MarkInfo, error) {
	log := c.log.WithComponent("bybit_reader").WithFields(logger.Fields{"symbol": symbol})

	params := map[string]interface{}{
		"category": "option",
		"symbol":   symbol,
	}

	start := time.Now()
	resp, err := c.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return models.MarkInfo{}, fmt.Errorf("bybit ticker request failed: %w", err)
	}
	logger.LogPerformanceEntry(log, "bybit_reader", "ticker", time.Since(start), nil)

	if resp.RetCode != 0 {
		return models.MarkInfo{}, fmt.Errorf("bybit error %d: %s", resp.RetCode, resp.RetMsg)
	}

	var result tickerResult
	if err := remarshal(resp.Result, &result); err != nil {
		return models.MarkInfo{}, fmt.Errorf("failed to decode bybit ticker: %w", err)
	}
	if len(result.List) == 0 {
		return models.MarkInfo{}, fmt.Errorf("bybit ticker for %s returned no entries", symbol)
	}

	ticker := result.List[0]
	price, err := strconv.ParseFloat(ticker.MarkPrice, 64)
	if err != nil {
		return models.MarkInfo{}, fmt.Errorf("bybit ticker for %s carries no mark price", symbol)
	}

	info := models.MarkInfo{
		Price:      &price,
		Multiplier: c.multiplier(ctx, symbol),
		UpdatedAt:  time.Now().UTC(),
	}

	greeks := &models.Greeks{}
	populated := false
	for _, pair := range []struct {
		raw string
		dst *float64
	}{
		{ticker.Delta, &greeks.Delta},
		{ticker.Gamma, &greeks.Gamma},
		{ticker.Vega, &greeks.Vega},
		{ticker.Theta, &greeks.Theta},
	} {
		if pair.raw == "" {
			continue
		}
		if v, err := strconv.ParseFloat(pair.raw, 64); err == nil {
			*pair.dst = v
			populated = true
		}
	}
	if populated {
		info.Greeks = greeks
	}

	return info, nil
}

// multiplier resolves the live contract multiplier for symbol, memoizing the
// answer for the lifetime of the client. A failed lookup resolves to nil, so
// valuation falls back to the default multiplier.
func (c *Client) multiplier(ctx context.Context, symbol string) *float64 {
	c.mu.Lock()
	if m, ok := c.multipliers[symbol]; ok {
		c.mu.Unlock()
		return m
	}
	c.mu.Unlock()

	log := c.log.WithComponent("bybit_reader").WithFields(logger.Fields{"symbol": symbol})

	params := map[string]interface{}{
		"category": "option",
		"symbol":   symbol,
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to fetch instrument info, keeping default multiplier")
		return nil
	}
	if resp.RetCode != 0 {
		log.WithFields(logger.Fields{"ret_code": resp.RetCode}).Warn("instrument info rejected, keeping default multiplier")
		return nil
	}

	var result instrumentsResult
	if err := remarshal(resp.Result, &result); err != nil {
		log.WithError(err).Warn("failed to decode instrument info")
		return nil
	}

	var resolved *float64
	for _, inst := range result.List {
		if inst.Symbol != symbol || inst.ContractMultiplier == "" {
			continue
		}
		if v, err := strconv.ParseFloat(inst.ContractMultiplier, 64); err == nil && v > 0 {
			resolved = &v
		}
		break
	}

	c.mu.Lock()
	c.multipliers[symbol] = resolved
	c.mu.Unlock()
	return resolved
}

// remarshal converts the SDK's loosely-typed Result into a concrete struct.
func remarshal(src interface{}, dst interface{}) error {
	payload, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dst)
}
