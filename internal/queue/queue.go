// Package queue implements the offline queue: a bounded FIFO of mutating calls
// that failed while the network was unreachable, replayed when it returns.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/metrics"
	"github.com/bft-labs/reqguard/internal/ports"
)

// Default configuration values.
const (
	DefaultMaxSize     = 50
	DefaultMaxAge      = time.Hour
	DefaultMaxRetries  = 3
	DefaultReplayDelay = 100 * time.Millisecond
)

// Config holds queue settings.
type Config struct {
	// MaxSize bounds the queue. Inserting beyond it evicts the oldest item.
	MaxSize int

	// MaxAge is how long an item may wait. Older items are dropped unreplayed.
	MaxAge time.Duration

	// MaxRetries is how many failed replays an item survives.
	MaxRetries int

	// ReplayDelay separates consecutive replays.
	ReplayDelay time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxSize:     DefaultMaxSize,
		MaxAge:      DefaultMaxAge,
		MaxRetries:  DefaultMaxRetries,
		ReplayDelay: DefaultReplayDelay,
	}
}

// Status is the observability snapshot of the queue.
type Status struct {
	QueueLength int  `json:"queue_length"`
	IsOffline   bool `json:"is_offline"`
}

// Result summarizes one Process pass.
type Result struct {
	Replayed int
	Requeued int
	Dropped  int
	Expired  int
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithSleep replaces the delay between replays, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(q *Queue) { q.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(q *Queue) { q.logger = logAdapter.OrNoop(logger) }
}

// WithSnapshotStore persists the queue as one record under key after every
// mutation, and restores it on construction.
func WithSnapshotStore(store ports.KVStore, key string) Option {
	return func(q *Queue) {
		q.store = store
		q.storeKey = key
	}
}

// Queue holds pending mutating calls.
type Queue struct {
	mu         sync.Mutex
	items      []domain.QueueItem
	offline    bool
	processing bool

	cfg       Config
	transport ports.Transport
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	logger    ports.Logger
	store     ports.KVStore
	storeKey  string

	wg sync.WaitGroup
}

// New creates a queue that replays through transport.
func New(ctx context.Context, cfg Config, transport ports.Transport, opts ...Option) *Queue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.ReplayDelay < 0 {
		cfg.ReplayDelay = 0
	}

	q := &Queue{
		cfg:       cfg,
		transport: transport,
		now:       time.Now,
		sleep:     sleepCtx,
		logger:    logAdapter.NoopLogger{},
	}
	for _, opt := range opts {
		opt(q)
	}
	q.restore(ctx)
	return q
}

// Bind follows conn: the queue's offline flag tracks conn, and every
// offline-to-online transition starts a replay pass in the background.
// The returned function stops following conn.
func (q *Queue) Bind(ctx context.Context, conn ports.Connectivity) (cancel func()) {
	q.SetOffline(ctx, !conn.Online())
	return conn.Subscribe(func(online bool) {
		q.SetOffline(ctx, !online)
	})
}

// SetOffline records a connectivity transition. Going online starts Process in
// the background.
func (q *Queue) SetOffline(ctx context.Context, offline bool) {
	q.mu.Lock()
	was := q.offline
	q.offline = offline
	q.mu.Unlock()

	metrics.SetOnline(!offline)
	if was && !offline {
		q.logger.Info("connectivity restored, replaying queue", ports.Int("queued", q.Len()))
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.Process(ctx)
		}()
	} else if !was && offline {
		q.logger.Warn("connectivity lost, mutations will be queued")
	}
}

// IsOffline reports the current connectivity flag.
func (q *Queue) IsOffline() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.offline
}

// Enqueue adds a mutating call. GET calls are ignored (ok is false).
// When the queue is full the oldest item is evicted.
func (q *Queue) Enqueue(ctx context.Context, call domain.Call) (item domain.QueueItem, ok bool) {
	if call.IsRead() {
		return domain.QueueItem{}, false
	}
	item = domain.QueueItem{
		ID:         uuid.NewString(),
		Call:       call.Clone(),
		EnqueuedAt: q.now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.insertLocked(ctx, item)
	metrics.RecordQueueEvent("enqueued")
	q.logger.Info("request queued",
		ports.String("id", item.ID),
		ports.String("method", call.NormalizedMethod()),
		ports.String("url", call.URL),
		ports.Int("queued", len(q.items)),
	)
	return item, true
}

// Process replays every queued item once. It does nothing while offline, when
// the queue is empty, or when another pass is running. Replay failures are
// logged, never returned: the original callers were already told their call
// was queued.
func (q *Queue) Process(ctx context.Context) Result {
	var res Result

	q.mu.Lock()
	if q.offline || len(q.items) == 0 || q.processing {
		q.mu.Unlock()
		return res
	}
	q.processing = true
	batch := q.items
	q.items = nil
	q.persistLocked(ctx)
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}()

	replays := 0
	for i, item := range batch {
		if ctx.Err() != nil {
			q.putBack(ctx, batch[i:])
			return res
		}

		if age := item.Age(q.now()); age > q.cfg.MaxAge {
			res.Expired++
			metrics.RecordQueueEvent("expired")
			q.logger.Warn("dropping expired queued request",
				ports.String("id", item.ID),
				ports.String("url", item.Call.URL),
				ports.Duration("age", age),
			)
			continue
		}

		if replays > 0 && q.cfg.ReplayDelay > 0 {
			if err := q.sleep(ctx, q.cfg.ReplayDelay); err != nil {
				q.putBack(ctx, batch[i:])
				return res
			}
		}
		replays++

		_, err := q.transport.Do(ctx, item.Call)
		if err == nil {
			res.Replayed++
			metrics.RecordQueueEvent("replayed")
			q.logger.Info("queued request replayed", ports.String("id", item.ID), ports.String("url", item.Call.URL))
			continue
		}

		if item.RetryCount < q.cfg.MaxRetries {
			item.RetryCount++
			q.mu.Lock()
			q.insertLocked(ctx, item)
			q.mu.Unlock()
			res.Requeued++
			metrics.RecordQueueEvent("requeued")
			q.logger.Warn("queued request replay failed, requeued",
				ports.String("id", item.ID),
				ports.Int("retry_count", item.RetryCount),
				ports.Err(err),
			)
			continue
		}

		res.Dropped++
		metrics.RecordQueueEvent("dropped")
		q.logger.Error("queued request dropped after max retries",
			ports.String("id", item.ID),
			ports.String("url", item.Call.URL),
			ports.Err(err),
		)
	}
	return res
}

// Wait blocks until background replay passes started by SetOffline finish.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Status returns the queue length and connectivity flag.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{QueueLength: len(q.items), IsOffline: q.offline}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queued items, oldest first.
func (q *Queue) Items() []domain.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.QueueItem(nil), q.items...)
}

// insertLocked appends item and evicts from the front past MaxSize. Caller holds q.mu.
func (q *Queue) insertLocked(ctx context.Context, item domain.QueueItem) {
	q.items = append(q.items, item)
	for len(q.items) > q.cfg.MaxSize {
		evicted := q.items[0]
		q.items = q.items[1:]
		metrics.RecordQueueEvent("evicted")
		q.logger.Warn("offline queue full, evicted oldest request",
			ports.String("id", evicted.ID),
			ports.String("url", evicted.Call.URL),
		)
	}
	q.persistLocked(ctx)
}

// putBack returns unprocessed items to the front of the queue.
func (q *Queue) putBack(ctx context.Context, rest []domain.QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append([]domain.QueueItem(nil), rest...), q.items...)
	if len(q.items) > q.cfg.MaxSize {
		q.items = q.items[len(q.items)-q.cfg.MaxSize:]
	}
	q.persistLocked(ctx)
}

func (q *Queue) persistLocked(ctx context.Context) {
	metrics.SetQueueLength(len(q.items))
	if q.store == nil {
		return
	}
	data, err := json.Marshal(q.items)
	if err != nil {
		q.logger.Error("failed to encode queue snapshot", ports.Err(err))
		return
	}
	if err := q.store.Write(ctx, q.storeKey, data); err != nil {
		q.logger.Warn("failed to persist queue snapshot", ports.Err(err))
	}
}

func (q *Queue) restore(ctx context.Context) {
	if q.store == nil {
		return
	}
	data, err := q.store.Read(ctx, q.storeKey)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			q.logger.Warn("failed to read queue snapshot", ports.Err(err))
		}
		return
	}
	var items []domain.QueueItem
	if err := json.Unmarshal(data, &items); err != nil {
		q.logger.Warn("discarding unreadable queue snapshot", ports.Err(err))
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range items {
		if item.Call.IsRead() {
			continue
		}
		q.items = append(q.items, item)
	}
	if len(q.items) > q.cfg.MaxSize {
		q.items = q.items[len(q.items)-q.cfg.MaxSize:]
	}
	metrics.SetQueueLength(len(q.items))
	q.logger.Info("queue restored", ports.Int("queued", len(q.items)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
