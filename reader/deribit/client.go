package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	appconfig "optionflow/config"
	"optionflow/logger"
	"optionflow/models"
)

const defaultBaseURL = "https://www.deribit.com"

// Client fetches option marks from the Deribit public ticker endpoint.
// Deribit option prices are quoted in the underlying and the contract
// multiplier is 1, so the client reports no multiplier and callers keep the
// default.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	log        *logger.Log
}

func NewClient(cfg *appconfig.Config) *Client {
	pool := cfg.Source.Deribit.ConnectionPool
	transport := &http.Transport{
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     time.Duration(pool.IdleConnTimeoutMs) * time.Millisecond,
	}

	timeout := time.Duration(cfg.Reader.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	base := cfg.Source.Deribit.URL
	if base == "" {
		base = defaultBaseURL
	}
	if parsed, err := url.Parse(base); err == nil && parsed.Host != "" {
		base = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}

	rl := cfg.Reader.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		httpClient: &http.Client{
			Transport: userAgentTransport{agent: "optionflow", base: transport},
			Timeout:   timeout,
		},
		baseURL: base,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger(),
	}
}

type tickerResponse struct {
	Result struct {
		MarkPrice *float64 `json:"mark_price"`
		Greeks    *struct {
			Delta float64 `json:"delta"`
			Gamma float64 `json:"gamma"`
			Theta float64 `json:"theta"`
			Vega  float64 `json:"vega"`
			Rho   float64 `json:"rho"`
		} `json:"greeks"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetBest returns the current mark for one instrument symbol.
func (c *Client) GetBest(ctx context.Context, symbol string) (models.MarkInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.MarkInfo{}, err
	}

	endpoint := fmt.Sprintf("%s/api/v2/public/ticker?instrument_name=%s", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.MarkInfo{}, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.MarkInfo{}, fmt.Errorf("deribit ticker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.MarkInfo{}, fmt.Errorf("deribit ticker returned status %d", resp.StatusCode)
	}

	var ticker tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return models.MarkInfo{}, fmt.Errorf("failed to decode deribit ticker: %w", err)
	}
	if ticker.Error != nil {
		return models.MarkInfo{}, fmt.Errorf("deribit error %d: %s", ticker.Error.Code, ticker.Error.Message)
	}
	if ticker.Result.MarkPrice == nil {
		return models.MarkInfo{}, fmt.Errorf("deribit ticker for %s carries no mark price", symbol)
	}

	logger.LogPerformanceEntry(c.log.WithComponent("deribit_reader"), "deribit_reader", "ticker", time.Since(start), logger.Fields{"symbol": symbol})

	info := models.MarkInfo{
		Price:     ticker.Result.MarkPrice,
		UpdatedAt: time.Now().UTC(),
	}
	if g := ticker.Result.Greeks; g != nil {
		info.Greeks = &models.Greeks{Delta: g.Delta, Gamma: g.Gamma, Theta: g.Theta, Vega: g.Vega, Rho: g.Rho}
	}
	return info, nil
}
