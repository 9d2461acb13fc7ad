// Package coordinator funnels enrichment lookups through a bounded queue and
// executes them in batches, so that many concurrent documents cost few store
// round trips.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matchgate/enrichd/internal/domain/lookup"
	"github.com/matchgate/enrichd/internal/metrics"
	"github.com/matchgate/enrichd/internal/usecase/enrich"
)

// Queueing defaults.
const (
	DefaultQueueCapacity = 1024
	DefaultWorkers       = 8
	DefaultBatchSize     = 128
)

// Sentinel errors delivered through the done callback.
var (
	// ErrQueueFull rejects a lookup when the queue is at capacity.
	ErrQueueFull = errors.New("coordinator: lookup queue is full")
	// ErrStopped rejects a lookup submitted after shutdown began.
	ErrStopped = errors.New("coordinator: stopped")
)

// Config tunes the coordinator.
type Config struct {
	// QueueCapacity bounds how many lookups may wait. Full queue rejects.
	QueueCapacity int
	// Workers is the number of goroutines draining the queue.
	Workers int
	// BatchSize caps how many lookups one worker coalesces per round trip.
	BatchSize int
	// CacheSize is the number of cached results; 0 disables caching.
	CacheSize int
	// CacheTTL bounds staleness against in-place reference data updates.
	CacheTTL time.Duration
	// RateLimit caps store round trips per second; 0 means unlimited.
	RateLimit float64
	// RateBurst is the limiter burst; defaults to Workers when 0.
	RateBurst int
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.RateBurst <= 0 {
		c.RateBurst = c.Workers
	}
	return c
}

// pending is one queued lookup awaiting execution.
type pending struct {
	query *lookup.Query
	done  func(*lookup.Result, error)
}

// Coordinator batches lookups across concurrent submitters. Every submitted
// lookup completes exactly once: delivered, rejected, or drained on Stop.
type Coordinator struct {
	searcher Searcher
	logger   *zap.Logger
	queue    chan *pending
	cache    *expirable.LRU[string, *lookup.Result]
	limiter  *rate.Limiter
	batch    int

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a coordinator and starts its workers.
func New(searcher Searcher, cfg Config, logger *zap.Logger) *Coordinator {
	cfg = cfg.withDefaults()

	c := &Coordinator{
		searcher: searcher,
		logger:   logger,
		queue:    make(chan *pending, cfg.QueueCapacity),
		batch:    cfg.BatchSize,
	}
	if cfg.CacheSize > 0 {
		c.cache = expirable.NewLRU[string, *lookup.Result](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.worker()
	}
	return c
}

// Bind returns a SearchRunner dispatching through the coordinator.
func (c *Coordinator) Bind() enrich.SearchRunner {
	return c.Submit
}

// Submit queues one lookup. done fires exactly once: inline on a cache hit
// or rejection, from a worker goroutine otherwise.
func (c *Coordinator) Submit(q *lookup.Query, done func(*lookup.Result, error)) {
	if res, ok := c.cachedResult(q); ok {
		metrics.LookupsTotal.WithLabelValues(metrics.OutcomeCacheHit).Inc()
		done(res, nil)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		done(nil, ErrStopped)
		return
	}
	select {
	case c.queue <- &pending{query: q, done: done}:
		c.mu.Unlock()
		metrics.LookupQueueDepth.Inc()
	default:
		c.mu.Unlock()
		metrics.LookupsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		done(nil, ErrQueueFull)
	}
}

// Stop closes intake and blocks until every queued lookup has completed.
// Safe to call more than once.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()
	c.wg.Wait()
}

// QueueHeadroom returns free queue capacity, for health reporting.
func (c *Coordinator) QueueHeadroom() int {
	return cap(c.queue) - len(c.queue)
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for {
		first, ok := <-c.queue
		if !ok {
			return
		}
		c.execute(c.gather(first))
	}
}

// gather collects up to batch-1 more lookups without waiting, so a busy
// queue coalesces and an idle one stays low latency.
func (c *Coordinator) gather(first *pending) []*pending {
	batch := []*pending{first}
	for len(batch) < c.batch {
		select {
		case p, ok := <-c.queue:
			if !ok {
				return batch
			}
			batch = append(batch, p)
		default:
			return batch
		}
	}
	return batch
}

// execute runs one batch against the store and fans outcomes back out.
func (c *Coordinator) execute(batch []*pending) {
	metrics.LookupQueueDepth.Sub(float64(len(batch)))
	metrics.LookupBatchSize.Observe(float64(len(batch)))

	ctx := context.Background()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.fail(batch, err)
			return
		}
	}

	queries := make([]*lookup.Query, len(batch))
	for i, p := range batch {
		queries[i] = p.query
	}

	start := time.Now()
	outcomes, err := c.searcher.SearchMulti(ctx, queries)
	metrics.LookupDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Error("lookup batch failed",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		c.fail(batch, err)
		return
	}
	if len(outcomes) != len(batch) {
		c.fail(batch, errors.New("coordinator: outcome count mismatch"))
		return
	}

	for i, p := range batch {
		out := outcomes[i]
		if out.Err != nil {
			metrics.LookupsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			c.deliver(p, nil, out.Err)
			continue
		}
		c.cacheResult(p.query, out.Result)
		metrics.LookupsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
		c.deliver(p, out.Result, nil)
	}
}

func (c *Coordinator) fail(batch []*pending, err error) {
	for _, p := range batch {
		metrics.LookupsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		c.deliver(p, nil, err)
	}
}

// deliver completes one lookup. A panicking callback must not take the
// worker down with it.
func (c *Coordinator) deliver(p *pending, res *lookup.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("lookup callback panicked",
				zap.String("index", p.query.Index),
				zap.Any("panic", r),
			)
		}
	}()
	p.done(res, err)
}

func (c *Coordinator) cachedResult(q *lookup.Query) (*lookup.Result, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(q.CacheKey())
}

func (c *Coordinator) cacheResult(q *lookup.Query, res *lookup.Result) {
	if c.cache == nil {
		return
	}
	c.cache.Add(q.CacheKey(), res)
}
