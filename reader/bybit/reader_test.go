package bybit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	appconfig "optionflow/config"
)

func testConfig(baseURL string) *appconfig.Config {
	cfg := &appconfig.Config{}
	cfg.Source.Bybit.URL = baseURL
	cfg.Reader.TimeoutMs = 2000
	return cfg
}

func marketHandler(tickerBody, instrumentBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v5/market/tickers":
			w.Write([]byte(tickerBody))
		case "/v5/market/instruments-info":
			w.Write([]byte(instrumentBody))
		default:
			http.NotFound(w, r)
		}
	}
}

func TestGetBestParsesTickerAndMultiplier(t *testing.T) {
	ticker := `{"retCode":0,"retMsg":"OK","result":{"category":"option","list":[
		{"symbol":"BTCUSD-26SEP25-50000-C","markPrice":"2150.5","delta":"0.48","gamma":"0.00012","vega":"34.2","theta":"-18.7"}
	]}}`
	instruments := `{"retCode":0,"retMsg":"OK","result":{"list":[
		{"symbol":"BTCUSD-26SEP25-50000-C","contractMultiplier":"0.01"}
	]}}`
	server := httptest.NewServer(marketHandler(ticker, instruments))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	info, err := client.GetBest(context.Background(), "BTCUSD-26SEP25-50000-C")
	if err != nil {
		t.Fatalf("GetBest: %v", err)
	}
	if info.Price == nil || *info.Price != 2150.5 {
		t.Errorf("price = %v", info.Price)
	}
	if info.Multiplier == nil || *info.Multiplier != 0.01 {
		t.Errorf("multiplier = %v", info.Multiplier)
	}
	if info.Greeks == nil || info.Greeks.Delta != 0.48 || info.Greeks.Theta != -18.7 {
		t.Errorf("greeks = %+v", info.Greeks)
	}
	if info.Greeks.Rho != 0 {
		t.Errorf("rho should stay zero, got %v", info.Greeks.Rho)
	}
}

func TestGetBestWithoutMultiplier(t *testing.T) {
	ticker := `{"retCode":0,"retMsg":"OK","result":{"category":"option","list":[
		{"symbol":"ETHUSD-26SEP25-3000-P","markPrice":"120.25","delta":"-0.4"}
	]}}`
	instruments := `{"retCode":0,"retMsg":"OK","result":{"list":[
		{"symbol":"ETHUSD-26SEP25-3000-P"}
	]}}`
	server := httptest.NewServer(marketHandler(ticker, instruments))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	info, err := client.GetBest(context.Background(), "ETHUSD-26SEP25-3000-P")
	if err != nil {
		t.Fatalf("GetBest: %v", err)
	}
	if info.Multiplier != nil {
		t.Errorf("multiplier should be nil, got %v", *info.Multiplier)
	}
	if info.Price == nil || *info.Price != 120.25 {
		t.Errorf("price = %v", info.Price)
	}
}

func TestGetBestVenueError(t *testing.T) {
	body := `{"retCode":10001,"retMsg":"params error","result":{}}`
	server := httptest.NewServer(marketHandler(body, body))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if _, err := client.GetBest(context.Background(), "BTCUSD-26SEP25-50000-C"); err == nil {
		t.Fatal("expected venue error")
	}
}

func TestGetBestEmptyList(t *testing.T) {
	ticker := `{"retCode":0,"retMsg":"OK","result":{"category":"option","list":[]}}`
	server := httptest.NewServer(marketHandler(ticker, ticker))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if _, err := client.GetBest(context.Background(), "BTCUSD-26SEP25-50000-C"); err == nil {
		t.Fatal("expected empty list error")
	}
}

func TestMultiplierMemoized(t *testing.T) {
	instrumentCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v5/market/tickers":
			w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"option","list":[
				{"symbol":"BTCUSD-26SEP25-50000-C","markPrice":"2150.5"}
			]}}`))
		case "/v5/market/instruments-info":
			instrumentCalls++
			w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
				{"symbol":"BTCUSD-26SEP25-50000-C","contractMultiplier":"0.01"}
			]}}`))
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	for i := 0; i < 3; i++ {
		if _, err := client.GetBest(context.Background(), "BTCUSD-26SEP25-50000-C"); err != nil {
			t.Fatalf("GetBest: %v", err)
		}
	}
	if instrumentCalls != 1 {
		t.Errorf("instrument info fetched %d times, want 1", instrumentCalls)
	}
}
