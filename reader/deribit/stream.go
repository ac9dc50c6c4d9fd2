package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	appconfig "optionflow/config"
	"optionflow/internal/symbols"
	"optionflow/logger"
	"optionflow/marks"
	"optionflow/models"
)

const defaultStreamURL = "wss://www.deribit.com/ws/api/v2"

// Stream keeps a set of Deribit option marks live between refresh runs by
// subscribing to the public ticker channels over websocket. Updates are merged
// into the shared mark cache as they arrive. If the connection drops it is
// re-established automatically until the context is cancelled.
type Stream struct {
	config  *appconfig.Config
	cache   *marks.Cache
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
	symbols []string
}

func NewStream(cfg *appconfig.Config, cache *marks.Cache, instruments []string) *Stream {
	return &Stream{
		config:  cfg,
		cache:   cache,
		wg:      &sync.WaitGroup{},
		log:     logger.GetLogger(),
		symbols: instruments,
	}
}

// Start subscribes to ticker channels for all configured instruments.
func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("deribit stream already running")
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	log := s.log.WithComponent("deribit_stream").WithFields(logger.Fields{"operation": "Start"})
	if !s.config.Source.Deribit.Stream.Enabled {
		log.Warn("deribit ticker stream is disabled")
		return fmt.Errorf("deribit ticker stream is disabled")
	}
	if len(s.symbols) == 0 {
		log.Warn("no instruments to stream")
		return fmt.Errorf("no instruments to stream")
	}

	wsURL := s.config.Source.Deribit.Stream.URL
	if wsURL == "" {
		wsURL = defaultStreamURL
	}

	log.WithFields(logger.Fields{"instruments": len(s.symbols)}).Info("starting deribit ticker stream")
	s.wg.Add(1)
	go s.stream(wsURL)
	log.Info("deribit ticker stream started successfully")
	return nil
}

// Stop terminates the websocket subscription and waits for the stream
// goroutine to finish.
func (s *Stream) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.log.WithComponent("deribit_stream").Info("stopping deribit ticker stream")
	s.wg.Wait()
	s.log.WithComponent("deribit_stream").Info("deribit ticker stream stopped")
}

// stream handles websocket lifecycle, reconnection and forwarding of ticker
// updates into the cache.
func (s *Stream) stream(wsURL string) {
	defer s.wg.Done()
	log := s.log.WithComponent("deribit_stream").WithFields(logger.Fields{"worker": "ticker_stream"})

	for {
		if s.ctx.Err() != nil {
			return
		}

		dialer := websocket.Dialer{}
		conn, _, err := dialer.Dial(wsURL, nil)
		if err != nil {
			log.WithError(err).Warn("failed to connect websocket, retrying")
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-s.ctx.Done():
				return
			}
		}

		channels := make([]string, 0, len(s.symbols))
		for _, sym := range s.symbols {
			channels = append(channels, fmt.Sprintf("ticker.%s.100ms", sym))
		}
		sub := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"method":  "public/subscribe",
			"params":  map[string]interface{}{"channels": channels},
		}
		if err := conn.WriteJSON(sub); err != nil {
			log.WithError(err).Warn("failed to subscribe")
			conn.Close()
			continue
		}

		pingTicker := time.NewTicker(20 * time.Second)
		done := make(chan struct{})
		go func() {
			defer pingTicker.Stop()
			for {
				select {
				case <-done:
					return
				case <-s.ctx.Done():
					conn.Close()
					return
				case <-pingTicker.C:
					conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "method": "public/test"})
				}
			}
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				close(done)
				conn.Close()
				if s.ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("websocket read error, reconnecting")
				break
			}
			s.processMessage(msg)
		}

		time.Sleep(time.Second)
	}
}

type tickerNotification struct {
	Method string `json:"method"`
	Params struct {
		Channel string `json:"channel"`
		Data    struct {
			InstrumentName string   `json:"instrument_name"`
			MarkPrice      *float64 `json:"mark_price"`
			Greeks         *struct {
				Delta float64 `json:"delta"`
				Gamma float64 `json:"gamma"`
				Theta float64 `json:"theta"`
				Vega  float64 `json:"vega"`
				Rho   float64 `json:"rho"`
			} `json:"greeks"`
		} `json:"data"`
	} `json:"params"`
}

func (s *Stream) processMessage(msg []byte) {
	var evt tickerNotification
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.log.WithComponent("deribit_stream").WithError(err).Debug("failed to decode message")
		return
	}
	if evt.Method != "subscription" || evt.Params.Data.InstrumentName == "" {
		return
	}
	if evt.Params.Data.MarkPrice == nil {
		return
	}

	info := models.MarkInfo{
		Price:     evt.Params.Data.MarkPrice,
		UpdatedAt: time.Now().UTC(),
	}
	if g := evt.Params.Data.Greeks; g != nil {
		info.Greeks = &models.Greeks{Delta: g.Delta, Gamma: g.Gamma, Theta: g.Theta, Vega: g.Vega, Rho: g.Rho}
	}

	key := symbols.CacheKey(models.VenueDeribit, evt.Params.Data.InstrumentName)
	s.cache.MergeAll(map[string]models.MarkInfo{key: info})
}
