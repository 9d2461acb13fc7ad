package enrichd

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver   string
	addrs    []string
	password string
	path     string

	policies  []policyConfig
	enrichers []EnricherSpec

	queueCapacity int
	workers       int
	batchSize     int
	cacheSize     int
	cacheTTL      time.Duration
	rateLimit     float64
	rateBurst     int

	readinessTimeout time.Duration
	logger           *zap.Logger
}

type policyConfig struct {
	name       string
	matchField string
}

// WithRedis backs the client with a RediSearch-capable Redis deployment.
func WithRedis(addrs ...string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = addrs
	}
}

// WithPassword sets the store password.
func WithPassword(password string) Option {
	return func(c *clientConfig) {
		c.password = password
	}
}

// WithSQLite backs the client with an embedded SQLite database. ":memory:"
// keeps everything in process.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.driver = "sqlite"
		c.path = path
	}
}

// WithPolicy declares an exact-match enrichment policy: matchField is the
// reference record field holding the match key.
func WithPolicy(name, matchField string) Option {
	return func(c *clientConfig) {
		c.policies = append(c.policies, policyConfig{name: name, matchField: matchField})
	}
}

// WithEnricher registers an enricher over a declared policy.
func WithEnricher(spec EnricherSpec) Option {
	return func(c *clientConfig) {
		c.enrichers = append(c.enrichers, spec)
	}
}

// WithCoordinator tunes the lookup queue. Zero values keep the defaults.
func WithCoordinator(queueCapacity, workers, batchSize int) Option {
	return func(c *clientConfig) {
		c.queueCapacity = queueCapacity
		c.workers = workers
		c.batchSize = batchSize
	}
}

// WithCache enables the lookup result cache. Cached results serve repeated
// keys until ttl bounds their staleness.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *clientConfig) {
		c.cacheSize = size
		c.cacheTTL = ttl
	}
}

// WithRateLimit caps reference store round trips per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *clientConfig) {
		c.rateLimit = perSecond
		c.rateBurst = burst
	}
}

// WithReadinessTimeout bounds the startup wait for the store.
func WithReadinessTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.readinessTimeout = d
	}
}

// WithLogger sets the logger. Without it the client stays silent.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
