package marks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"optionflow/logger"
	"optionflow/models"
)

// DefaultBatchSize bounds in-flight venue calls per refresh batch.
const DefaultBatchSize = 5

// Client is the venue mark collaborator. GetBest may fail; the refresher
// tolerates failure per task without aborting the run.
type Client interface {
	GetBest(ctx context.Context, symbol string) (models.MarkInfo, error)
}

type fetchTask struct {
	key    string
	venue  models.Venue
	symbol string
}

// Refresher fetches live marks for every leg of a set of positions. Leg
// references are deduplicated across all structures, fetched in fixed-size
// batches with a barrier between batches, and merged into the shared cache in
// a single step after the whole run completes.
type Refresher struct {
	cache     *Cache
	clients   map[models.Venue]Client
	batchSize int
	log       *logger.Log

	mu       sync.Mutex
	running  bool
	progress models.RefreshProgress
}

func NewRefresher(cache *Cache, clients map[models.Venue]Client, batchSize int) *Refresher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Refresher{
		cache:     cache,
		clients:   clients,
		batchSize: batchSize,
		log:       logger.GetLogger(),
	}
}

// Progress returns a copy of the current refresh state. It is updated once
// per settled batch, never mid-batch.
func (r *Refresher) Progress() models.RefreshProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Refresh runs one full mark refresh over the given positions. A second call
// while a run is in flight returns an error; runs are serialized, not
// coalesced. The returned progress is the final state of the run.
func (r *Refresher) Refresh(ctx context.Context, positions []*models.Position) (models.RefreshProgress, error) {
	tasks := collectTasks(positions)

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return models.RefreshProgress{}, fmt.Errorf("refresh already running")
	}
	r.running = true
	r.progress = models.RefreshProgress{InProgress: true, Total: len(tasks)}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.progress.InProgress = false
		r.mu.Unlock()
	}()

	runID := uuid.New().String()
	log := r.log.WithComponent("mark_refresher").WithFields(logger.Fields{
		"run_id": runID,
		"total":  len(tasks),
	})
	log.Info("starting mark refresh run")

	results := make(map[string]models.MarkInfo, len(tasks))
	var resultsMu sync.Mutex
	errors := 0

	for start := 0; start < len(tasks); start += r.batchSize {
		end := start + r.batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := tasks[start:end]

		var wg sync.WaitGroup
		var batchErrors int
		for _, task := range batch {
			wg.Add(1)
			go func(task fetchTask) {
				defer wg.Done()
				info, err := r.fetch(ctx, task)
				resultsMu.Lock()
				defer resultsMu.Unlock()
				if err != nil {
					// downgraded to a null result, never aborts the batch
					results[task.key] = models.MarkInfo{UpdatedAt: time.Now().UTC()}
					batchErrors++
					return
				}
				results[task.key] = info
			}(task)
		}
		// barrier: the next batch starts only once every task has settled
		wg.Wait()

		errors += batchErrors
		r.mu.Lock()
		r.progress.Done = end
		r.progress.Errors = errors
		r.mu.Unlock()

		if batchErrors > 0 {
			log.WithFields(logger.Fields{"batch_errors": batchErrors, "done": end}).Warn("mark batch completed with errors")
		}
	}

	// one-shot merge: readers never observe a partially-applied run
	r.cache.MergeAll(results)

	logger.IncrementRefreshRuns()
	logger.IncrementMarkFetches(len(tasks))
	logger.IncrementMarkFetchErrors(errors)

	final := models.RefreshProgress{Total: len(tasks), Done: len(tasks), Errors: errors}
	log.WithFields(logger.Fields{"errors": errors}).Info("mark refresh run complete")
	return final, nil
}

func (r *Refresher) fetch(ctx context.Context, task fetchTask) (models.MarkInfo, error) {
	client, ok := r.clients[task.venue]
	if !ok {
		return models.MarkInfo{}, fmt.Errorf("no mark client for venue %q", task.venue)
	}
	info, err := client.GetBest(ctx, task.symbol)
	if err != nil {
		return models.MarkInfo{}, err
	}
	if info.UpdatedAt.IsZero() {
		info.UpdatedAt = time.Now().UTC()
	}
	return info, nil
}

// collectTasks flattens positions into fetch tasks, deduplicating by cache
// key so an instrument referenced by many structures is fetched once.
func collectTasks(positions []*models.Position) []fetchTask {
	seen := make(map[string]struct{})
	var tasks []fetchTask
	for _, pos := range positions {
		for _, leg := range pos.Legs {
			ref := Resolve(pos, leg)
			if ref == nil {
				continue
			}
			if _, ok := seen[ref.Key]; ok {
				continue
			}
			seen[ref.Key] = struct{}{}
			tasks = append(tasks, fetchTask{key: ref.Key, venue: ref.Venue, symbol: ref.Symbol})
		}
	}
	return tasks
}
