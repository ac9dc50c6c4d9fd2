package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	appconfig "optionflow/config"
	"optionflow/internal/symbols"
	"optionflow/logger"
	"optionflow/models"
)

// Expected CSV column layout. The header row is required and checked.
var expectedHeader = []string{
	"venue", "instrument", "side", "action", "amount", "price",
	"fee", "timestamp", "trade_id", "order_id", "structure_key",
}

// LoadResult is the outcome of one trade-file load. Excluded rows are data,
// not silent drops: callers surface them so users can see what was refused.
type LoadResult struct {
	LoadID   string                 `json:"load_id"`
	Trades   []models.TradeRecord   `json:"trades"`
	Excluded []models.ExcludedTrade `json:"excluded"`
}

// Loader validates raw import rows into immutable TradeRecords. Everything
// past this boundary is strictly typed; the aggregation core never sees a
// loose row.
type Loader struct {
	config *appconfig.Config
	log    *logger.Log
}

func NewLoader(cfg *appconfig.Config) *Loader {
	return &Loader{config: cfg, log: logger.GetLogger()}
}

// LoadFile reads and validates the configured CSV trade file.
func (l *Loader) LoadFile(path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trade file: %w", err)
	}
	defer f.Close()
	return l.Load(f)
}

// Load reads and validates CSV trade rows from r, preserving input order.
func (l *Loader) Load(r io.Reader) (*LoadResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read trade file header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	result := &LoadResult{LoadID: uuid.New().String()}
	log := l.log.WithComponent("ingest").WithFields(logger.Fields{"load_id": result.LoadID})

	line := 1
	for {
		line++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Excluded = append(result.Excluded, models.ExcludedTrade{
				Line:   line,
				Reason: fmt.Sprintf("malformed csv row: %v", err),
			})
			continue
		}

		trade, reason := l.validateRow(row)
		if reason != "" {
			result.Excluded = append(result.Excluded, models.ExcludedTrade{
				Line:       line,
				Venue:      field(row, 0),
				Instrument: field(row, 1),
				Reason:     reason,
			})
			continue
		}
		result.Trades = append(result.Trades, trade)
	}

	logger.IncrementTradesIngested(len(result.Trades))
	logger.IncrementTradesExcluded(len(result.Excluded))
	log.WithFields(logger.Fields{
		"trades":   len(result.Trades),
		"excluded": len(result.Excluded),
	}).Info("trade file loaded")

	return result, nil
}

// validateRow turns one raw row into a TradeRecord, or a non-empty exclusion
// reason.
func (l *Loader) validateRow(row []string) (models.TradeRecord, string) {
	if len(row) != len(expectedHeader) {
		return models.TradeRecord{}, fmt.Sprintf("expected %d columns, got %d", len(expectedHeader), len(row))
	}

	venueStr := strings.ToLower(strings.TrimSpace(row[0]))
	if venueStr == "" {
		venueStr = strings.ToLower(l.config.Ingest.DefaultVenue)
	}
	var venue models.Venue
	switch venueStr {
	case string(models.VenueDeribit):
		venue = models.VenueDeribit
	case string(models.VenueBybit):
		venue = models.VenueBybit
	default:
		return models.TradeRecord{}, fmt.Sprintf("unknown venue %q", row[0])
	}

	instrument := strings.TrimSpace(row[1])
	if instrument == "" {
		return models.TradeRecord{}, "missing instrument"
	}

	var side models.Side
	switch strings.ToLower(strings.TrimSpace(row[2])) {
	case "buy":
		side = models.SideBuy
	case "sell":
		side = models.SideSell
	default:
		return models.TradeRecord{}, fmt.Sprintf("invalid side %q", row[2])
	}

	var action models.Action
	switch strings.ToLower(strings.TrimSpace(row[3])) {
	case "":
	case "open":
		action = models.ActionOpen
	case "close":
		action = models.ActionClose
	default:
		return models.TradeRecord{}, fmt.Sprintf("invalid action %q", row[3])
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
	if err != nil || amount == 0 {
		return models.TradeRecord{}, fmt.Sprintf("invalid amount %q", row[4])
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
	if err != nil || price < 0 {
		return models.TradeRecord{}, fmt.Sprintf("invalid price %q", row[5])
	}

	var fee float64
	if s := strings.TrimSpace(row[6]); s != "" {
		fee, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return models.TradeRecord{}, fmt.Sprintf("invalid fee %q", row[6])
		}
	}

	var timestamp time.Time
	if s := strings.TrimSpace(row[7]); s != "" {
		timestamp, err = parseTimestamp(s)
		if err != nil {
			return models.TradeRecord{}, fmt.Sprintf("invalid timestamp %q", row[7])
		}
	}

	inst, err := symbols.Parse(venue, instrument)
	if err != nil {
		return models.TradeRecord{}, fmt.Sprintf("unrecognized instrument format: %v", err)
	}

	canonical, err := symbols.Build(venue, inst)
	if err != nil {
		return models.TradeRecord{}, fmt.Sprintf("unrecognized instrument format: %v", err)
	}

	structureKey := strings.TrimSpace(row[10])
	if structureKey == "" {
		// ungrouped trades form a single-leg structure per contract
		structureKey = canonical
	}

	return models.TradeRecord{
		Instrument:   canonical,
		Side:         side,
		Action:       action,
		Amount:       amount,
		Price:        price,
		Fee:          fee,
		Timestamp:    timestamp,
		TradeID:      strings.TrimSpace(row[8]),
		OrderID:      strings.TrimSpace(row[9]),
		Venue:        venue,
		Underlying:   inst.Underlying,
		Expiry:       inst.Expiry,
		Strike:       inst.Strike,
		OptionType:   inst.OptionType,
		StructureKey: structureKey,
	}, ""
}

func checkHeader(header []string) error {
	if len(header) != len(expectedHeader) {
		return fmt.Errorf("trade file header has %d columns, expected %d", len(header), len(expectedHeader))
	}
	for i, name := range expectedHeader {
		if strings.ToLower(strings.TrimSpace(header[i])) != name {
			return fmt.Errorf("trade file column %d is %q, expected %q", i, header[i], name)
		}
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format")
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
