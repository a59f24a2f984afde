package tokenusage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Toucher is the interface used by Recorder to persist last-used stamps. It
// exists to allow testing without a real database.
type Toucher interface {
	TouchBatch(ctx context.Context, ids []string) error
}

// Metrics is the subset of the metrics surface the Recorder reports into.
type Metrics interface {
	SetRecorderBufferSize(n int)
	IncRecorderFlush(status string)
	IncRecorderStamp()
}

// Recorder buffers token-use events in memory and periodically flushes them
// as last_used_at updates. Recording is deliberately off the request path:
// a lost stamp costs a little audit accuracy, never request latency. It is
// safe for concurrent use.
type Recorder struct {
	store         Toucher
	pending       map[string]struct{}
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	done          chan struct{}
	metrics       Metrics
}

// NewRecorder creates a Recorder that flushes to the given store when the
// number of distinct pending tokens reaches batchSize or every
// flushInterval, whichever comes first.
func NewRecorder(store Toucher, batchSize int, flushInterval time.Duration) *Recorder {
	return &Recorder{
		store:         store,
		pending:       make(map[string]struct{}, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
}

// SetMetrics attaches a metrics sink. Must be called before Start.
func (r *Recorder) SetMetrics(m Metrics) {
	r.metrics = m
}

// Start begins a background goroutine that flushes pending stamps on a
// timer. It blocks until Stop is called or the context is cancelled.
func (r *Recorder) Start(ctx context.Context) {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-ctx.Done():
			r.flush()
			return
		case <-r.done:
			r.flush()
			return
		}
	}
}

// Record marks a token as used. Repeated uses of the same token between
// flushes collapse into one stamp. If the pending set reaches batchSize, a
// flush is triggered immediately.
func (r *Recorder) Record(tokenID string) {
	r.mu.Lock()
	r.pending[tokenID] = struct{}{}
	size := len(r.pending)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.IncRecorderStamp()
		r.metrics.SetRecorderBufferSize(size)
	}

	if size >= r.batchSize {
		r.flush()
	}
}

// flush drains the pending set and stamps the tokens. Errors are logged and
// swallowed so callers are never blocked or failed by a missed stamp.
func (r *Recorder) flush() {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	r.pending = make(map[string]struct{}, r.batchSize)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetRecorderBufferSize(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.store.TouchBatch(ctx, ids); err != nil {
		slog.Error("failed to flush token last-used stamps", "count", len(ids), "error", err)
		if r.metrics != nil {
			r.metrics.IncRecorderFlush("error")
		}
		return
	}
	if r.metrics != nil {
		r.metrics.IncRecorderFlush("success")
	}
}

// Stop signals the background goroutine to exit and performs a final flush.
func (r *Recorder) Stop() {
	close(r.done)
}
