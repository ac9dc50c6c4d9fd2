package dashboard

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"optionflow/marks"
	"optionflow/models"
	"optionflow/processor"
)

func TestStoreSnapshotIsCopied(t *testing.T) {
	store := NewStore()

	pos := &models.Position{Underlying: "BTC", StructureKey: "s1"}
	snap := &processor.Snapshot{Positions: []*models.Position{pos}, GeneratedAt: time.Now().UTC()}
	valuations := []marks.PositionValuation{{Position: pos, UnrealizedPnl: 5}}
	store.SetSnapshot(snap, valuations, models.Greeks{Delta: 1})

	got, portfolio, updatedAt := store.Positions()
	if len(got) != 1 || got[0].UnrealizedPnl != 5 {
		t.Fatalf("positions = %+v", got)
	}
	if portfolio.Delta != 1 {
		t.Errorf("portfolio = %+v", portfolio)
	}
	if updatedAt.IsZero() {
		t.Error("updated_at not set")
	}

	// mutating the returned slice must not affect the store
	got[0].UnrealizedPnl = 99
	again, _, _ := store.Positions()
	if again[0].UnrealizedPnl != 5 {
		t.Error("store contents mutated through returned slice")
	}
}

func TestStoreExcluded(t *testing.T) {
	store := NewStore()
	store.SetLoad("load-7", []models.ExcludedTrade{{Line: 2, Reason: "bad row"}})

	loadID, excluded := store.Excluded()
	if loadID != "load-7" || len(excluded) != 1 || excluded[0].Line != 2 {
		t.Fatalf("excluded = %s %+v", loadID, excluded)
	}
}

func TestStoreDroppedEmptyBeforeSnapshot(t *testing.T) {
	store := NewStore()
	if dropped := store.Dropped(); dropped != nil {
		t.Fatalf("dropped = %+v", dropped)
	}

	snap := &processor.Snapshot{Dropped: []models.TradeRecord{{Instrument: "X"}}}
	store.SetSnapshot(snap, nil, models.Greeks{})
	if dropped := store.Dropped(); len(dropped) != 1 {
		t.Fatalf("dropped = %+v", dropped)
	}
}

func TestLogStoreCapturesEntries(t *testing.T) {
	store := newLogStore(3)
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Unix(10, 0)
	entry.Level = logrus.WarnLevel
	entry.Message = "warning"
	entry.Data = logrus.Fields{"component": "test", "foo": "bar"}

	if err := store.Fire(entry); err != nil {
		t.Fatalf("store.Fire returned error: %v", err)
	}

	snapshot := store.snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(snapshot))
	}

	if snapshot[0].Component != "test" || snapshot[0].Fields["foo"] != "bar" {
		t.Fatalf("unexpected snapshot data: %#v", snapshot[0])
	}
}

func TestLogStoreRespectsLimitAndClose(t *testing.T) {
	store := newLogStore(2)
	for i := 0; i < 4; i++ {
		entry := logrus.NewEntry(logrus.New())
		entry.Message = "msg"
		entry.Level = logrus.InfoLevel
		entry.Data = logrus.Fields{"index": i}
		if err := store.Fire(entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snapshot := store.snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 entries after pruning, got %d", len(snapshot))
	}

	store.close()
	entry := logrus.NewEntry(logrus.New())
	entry.Message = "ignored"
	if err := store.Fire(entry); err != nil {
		t.Fatalf("unexpected error after close: %v", err)
	}

	snapshot = store.snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("store accepted entries after close")
	}
}
