package embedding

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ITHealer/book-m-ai/plugin/ai/search"
	"github.com/ITHealer/book-m-ai/store"
)

const (
	// DefaultInterval is the default time between backfill runs.
	DefaultInterval = 30 * time.Minute
	// DefaultBatchSize is the default number of bookmarks embedded per run.
	DefaultBatchSize = 50
)

// Generator embeds bookmarks. *search.Embedder implements it.
type Generator interface {
	GenerateEmbeddings(ctx context.Context, bookmarkIDs []int32) []*search.EmbedResult
}

// RunResult summarises one backfill run.
type RunResult struct {
	StartedAt time.Time `json:"startedAt"`
	Found     int       `json:"found"`
	Succeeded int       `json:"succeeded"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	// Busy is true when the run did nothing because another run was in progress.
	Busy bool `json:"busy,omitempty"`
}

// Status reports the worker state.
type Status struct {
	Running    bool          `json:"running"`
	Processing bool          `json:"processing"`
	Interval   time.Duration `json:"interval"`
	BatchSize  int           `json:"batchSize"`
	LastRun    *RunResult    `json:"lastRun,omitempty"`
}

// Runner periodically embeds bookmarks that have no embedding yet.
type Runner struct {
	store     *store.Store
	generator Generator
	interval  time.Duration
	batchSize int

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	lastRun  *RunResult

	processing atomic.Bool
}

// NewRunner creates an embedding backfill runner. Non-positive values use the defaults.
func NewRunner(store *store.Store, generator Generator, interval time.Duration, batchSize int) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Runner{
		store:     store,
		generator: generator,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start runs the backfill immediately and then on every interval until Stop is called
// or ctx is done. Starting a running worker is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		slog.Warn("embedding runner is already running")
		return
	}
	r.running = true
	r.stopChan = make(chan struct{})

	r.wg.Add(1)
	go r.run(ctx, r.stopChan)

	slog.Info("embedding runner started", "interval", r.interval, "batch_size", r.batchSize)
}

// Stop stops the schedule and waits for the loop to exit. Stopping an idle worker is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.stopChan)
	r.running = false
	r.mu.Unlock()

	r.wg.Wait()
	slog.Info("embedding runner stopped")
}

// RunOnce processes one batch now. It returns a result with Busy set when a run is
// already in progress.
func (r *Runner) RunOnce(ctx context.Context) *RunResult {
	return r.process(ctx)
}

// TriggerGeneration is a manual RunOnce.
func (r *Runner) TriggerGeneration(ctx context.Context) *RunResult {
	slog.Info("embedding generation triggered manually")
	return r.process(ctx)
}

// IsRunning returns whether the schedule is active.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Status returns the current worker state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := Status{
		Running:    r.running,
		Processing: r.processing.Load(),
		Interval:   r.interval,
		BatchSize:  r.batchSize,
	}
	if r.lastRun != nil {
		last := *r.lastRun
		status.LastRun = &last
	}
	return status
}

func (r *Runner) run(ctx context.Context, stop <-chan struct{}) {
	defer r.wg.Done()

	r.process(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.process(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			slog.Info("embedding runner context done")
			return
		}
	}
}

func (r *Runner) process(ctx context.Context) *RunResult {
	if !r.processing.CompareAndSwap(false, true) {
		slog.Info("embedding generation already in progress, skipping")
		return &RunResult{StartedAt: time.Now(), Busy: true}
	}
	defer r.processing.Store(false)

	result := &RunResult{StartedAt: time.Now()}
	defer func() {
		r.mu.Lock()
		r.lastRun = result
		r.mu.Unlock()
	}()

	bookmarks, err := r.store.FindBookmarksWithoutEmbedding(ctx, &store.FindBookmarksWithoutEmbedding{Limit: r.batchSize})
	if err != nil {
		slog.Error("failed to find bookmarks without embedding", "error", err)
		return result
	}
	result.Found = len(bookmarks)
	if len(bookmarks) == 0 {
		return result
	}

	ids := make([]int32, len(bookmarks))
	for i, b := range bookmarks {
		ids[i] = b.ID
	}

	slog.Info("generating bookmark embeddings", "count", len(ids))
	for _, res := range r.generator.GenerateEmbeddings(ctx, ids) {
		switch res.Status {
		case search.EmbedStatusSucceeded:
			result.Succeeded++
		case search.EmbedStatusSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	slog.Info("bookmark embeddings generated",
		"succeeded", result.Succeeded,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", time.Since(result.StartedAt))
	return result
}
