package tree

import (
	"io"
	"log"
	"time"
)

// DefaultConcurrency bounds the in-flight list calls of one level.
const DefaultConcurrency = 8

type options struct {
	policy      FailurePolicy
	concurrency int
	logger      *log.Logger
	metrics     *Metrics
	publisher   Publisher
	now         func() time.Time
}

func defaultOptions() options {
	return options{
		policy:      DefaultPolicy,
		concurrency: DefaultConcurrency,
		logger:      log.Default(),
		now:         time.Now,
	}
}

// Option configures a Loader or an Engine.
type Option func(*options)

// WithPolicy sets the failure policy applied during loads.
func WithPolicy(p FailurePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithConcurrency bounds the number of parallel list calls within a level.
// Values below one mean unbounded.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithLogger sends structured events to logger. A nil logger discards them.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = log.New(io.Discard, "", 0)
		}
		o.logger = logger
	}
}

// WithMetrics records fetch, mutation and load metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPublisher announces committed mutations and installed loads.
// Only the Engine publishes.
func WithPublisher(p Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
