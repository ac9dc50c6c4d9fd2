package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"optionflow/config"
	"optionflow/ingest"
	"optionflow/internal/dashboard"
	"optionflow/logger"
	"optionflow/marks"
	"optionflow/models"
	"optionflow/processor"
	binancereader "optionflow/reader/binance"
	bybitreader "optionflow/reader/bybit"
	deribitreader "optionflow/reader/deribit"
	"optionflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	tradesPath := flag.String("trades", "", "Path to trade CSV file, overrides ingest.path")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if *tradesPath != "" {
		cfg.Ingest.Path = *tradesPath
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Optionflow.Name,
		"version": cfg.Optionflow.Version,
	}).Info("starting optionflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}
	if os.Getenv("AWS_REGION") != "" {
		logger.InitCloudWatch("", "", "")
	}

	loader := ingest.NewLoader(cfg)
	loadResult, err := loader.LoadFile(cfg.Ingest.Path)
	if err != nil {
		if config.IsProductionLike(config.AppEnvironment()) {
			log.WithError(err).Error("failed to load trade file")
			os.Exit(1)
		}
		// in development an absent trade file starts an empty portfolio
		log.WithError(err).Warn("failed to load trade file, starting empty")
		loadResult = &ingest.LoadResult{}
	}

	aggregator := processor.NewAggregator()
	snapshot := aggregator.Aggregate(loadResult.Trades, time.Now().UTC())

	cache := marks.NewCache()
	clients := map[models.Venue]marks.Client{
		models.VenueDeribit: deribitreader.NewClient(cfg),
		models.VenueBybit:   bybitreader.NewClient(cfg),
	}
	refresher := marks.NewRefresher(cache, clients, cfg.Marks.BatchSize)

	var indexSource *binancereader.IndexSource
	if cfg.Source.Binance.Enabled {
		indexSource = binancereader.NewIndexSource(cfg)
	}

	var snapshotWriter *writer.SnapshotWriter
	if cfg.Storage.S3.Enabled {
		snapshotWriter, err = writer.NewSnapshotWriter(cfg)
		if err != nil {
			log.WithError(err).Error("failed to create S3 snapshot writer")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("S3 storage disabled; skipping snapshot writer")
	}

	var kafkaWriter *writer.KafkaWriter
	if cfg.Storage.Kafka.Enabled {
		kafkaWriter, err = writer.NewKafkaWriter(cfg)
		if err != nil {
			log.WithError(err).Error("failed to create kafka writer")
			os.Exit(1)
		}
	}

	store := dashboard.NewStore()
	store.SetLoad(loadResult.LoadID, loadResult.Excluded)

	dashboardServer, err := dashboard.NewServer(cfg.Dashboard, log, store, cache, refresher)
	if err != nil {
		log.WithError(err).Error("failed to create dashboard server")
		os.Exit(1)
	}

	var stream *deribitreader.Stream
	if cfg.Source.Deribit.Stream.Enabled {
		stream = deribitreader.NewStream(cfg, cache, deribitInstruments(snapshot.Positions))
	}

	var wg sync.WaitGroup

	if dashboardServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dashboardServer.Run(ctx, cfg.Optionflow.Name); err != nil {
				log.WithError(err).Warn("dashboard server exited with error")
			}
		}()
		log.WithFields(logger.Fields{"address": dashboardServer.Address()}).Info("dashboard server started")
	}

	if stream != nil {
		if err := stream.Start(ctx); err != nil {
			log.WithError(err).Warn("deribit stream failed to start")
			stream = nil
		}
	}

	refreshOnce := func() {
		progress, err := refresher.Refresh(ctx, snapshot.Positions)
		if err != nil {
			log.WithError(err).Warn("mark refresh skipped")
			return
		}
		log.WithComponent("main").WithFields(logger.Fields{
			"total":  progress.Total,
			"errors": progress.Errors,
		}).Info("mark refresh finished")

		valuations := marks.ValueAll(snapshot.Positions, cache)
		portfolio := marks.PortfolioGreeks(valuations)
		store.SetSnapshot(snapshot, valuations, portfolio)

		export := &writer.ValuationExport{
			SnapshotID:  uuid.New().String(),
			GeneratedAt: time.Now().UTC(),
			Valuations:  valuations,
			Portfolio:   portfolio,
		}
		if indexSource != nil {
			export.IndexPrices = indexSource.IndexPrices(ctx, underlyings(snapshot.Positions))
			export.DeltaUSD = deltaUSD(valuations, export.IndexPrices)
		}
		if snapshotWriter != nil {
			if err := snapshotWriter.Write(ctx, export); err != nil {
				log.WithError(err).Warn("failed to export snapshot to S3")
			}
		}
		if kafkaWriter != nil {
			if err := kafkaWriter.Publish(ctx, export); err != nil {
				log.WithError(err).Warn("failed to publish snapshot to kafka")
			}
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		refreshOnce()
		if cfg.Marks.RefreshIntervalSec <= 0 {
			log.WithComponent("main").Info("periodic refresh disabled")
			return
		}
		ticker := time.NewTicker(time.Duration(cfg.Marks.RefreshIntervalSec) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshOnce()
			}
		}
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	if stream != nil {
		log.Info("stopping deribit stream")
		stream.Stop()
	}
	if kafkaWriter != nil {
		log.Info("closing kafka writer")
		if err := kafkaWriter.Close(); err != nil {
			log.WithError(err).Warn("kafka writer close failed")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("optionflow stopped")
}

// deribitInstruments lists the distinct Deribit symbols referenced by the
// aggregated positions, for the optional ticker stream.
func deribitInstruments(positions []*models.Position) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, pos := range positions {
		for _, leg := range pos.Legs {
			ref := marks.Resolve(pos, leg)
			if ref == nil || ref.Venue != models.VenueDeribit {
				continue
			}
			if _, ok := seen[ref.Symbol]; ok {
				continue
			}
			seen[ref.Symbol] = struct{}{}
			out = append(out, ref.Symbol)
		}
	}
	return out
}

// underlyings lists the distinct underlyings across positions.
func underlyings(positions []*models.Position) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, pos := range positions {
		if _, ok := seen[pos.Underlying]; ok {
			continue
		}
		seen[pos.Underlying] = struct{}{}
		out = append(out, pos.Underlying)
	}
	return out
}

// deltaUSD converts per-underlying delta exposure to USD through the spot
// index prices. Underlyings with no resolved index price contribute nothing.
func deltaUSD(valuations []marks.PositionValuation, prices map[string]float64) float64 {
	var total float64
	for _, val := range valuations {
		price, ok := prices[val.Position.Underlying]
		if !ok {
			continue
		}
		total += val.Greeks.Delta * price
	}
	return total
}
