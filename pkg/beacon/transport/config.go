package transport

import (
	"time"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultMaxRetries       = 3
	DefaultRetryBaseDelay   = 400 * time.Millisecond
	DefaultBreakerThreshold = 6
	DefaultBreakerCooldown  = 60 * time.Second
	DefaultMaxBatchSize     = 50
	DefaultMaxBatchBytes    = 30000
	DefaultFlushInterval    = 3 * time.Second
	DefaultMaxQueueSize     = 1000
)

// Config tunes the transport. The zero value is a disabled transport; any
// numeric field left at zero takes its default.
type Config struct {
	// Endpoint is the collection endpoint URL. Empty disables sending.
	Endpoint string

	// Enabled gates all network activity.
	Enabled bool

	// FlushOnClose sends the remaining queue (single attempt per batch)
	// when Close is called.
	FlushOnClose bool

	// MaxRetries is the total number of send attempts per batch,
	// including the first. Default 3.
	MaxRetries int

	// RetryBaseDelay is the delay before the first retry; it doubles on
	// each subsequent retry. Default 400ms.
	RetryBaseDelay time.Duration

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit breaker. Default 6.
	BreakerThreshold int

	// BreakerCooldown is how long an open breaker waits before allowing
	// one trial send. Default 60s.
	BreakerCooldown time.Duration

	// MaxBatchSize is the maximum events per batch. Default 50.
	MaxBatchSize int

	// MaxBatchBytes caps the summed serialized size of a batch. A single
	// event larger than the cap is still sent alone. Default 30000.
	MaxBatchBytes int

	// FlushInterval debounces scheduled flushes. Default 3s.
	FlushInterval time.Duration

	// MaxQueueSize caps the outbound queue; past it new events are
	// dropped and a queue_overflow lifecycle event fires. Default 1000.
	MaxQueueSize int
}

// withDefaults returns cfg with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = DefaultBreakerThreshold
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = DefaultBreakerCooldown
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.MaxBatchBytes <= 0 {
		c.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	return c
}

// Overrides is a partial Config; nil fields keep the current value.
// This is the merge-over-defaults configuration surface exposed to host
// applications (and to the yaml/json settings loader).
type Overrides struct {
	Endpoint         *string        `yaml:"endpoint" json:"endpoint"`
	Enabled          *bool          `yaml:"enabled" json:"enabled"`
	FlushOnClose     *bool          `yaml:"flushOnClose" json:"flushOnClose"`
	MaxRetries       *int           `yaml:"maxRetries" json:"maxRetries"`
	RetryBaseDelay   *time.Duration `yaml:"-" json:"-"`
	BreakerThreshold *int           `yaml:"breakerThreshold" json:"breakerThreshold"`
	BreakerCooldown  *time.Duration `yaml:"-" json:"-"`
	MaxBatchSize     *int           `yaml:"maxBatchSize" json:"maxBatchSize"`
	MaxBatchBytes    *int           `yaml:"maxBatchBytes" json:"maxBatchBytes"`
	FlushInterval    *time.Duration `yaml:"-" json:"-"`
	MaxQueueSize     *int           `yaml:"maxQueueSize" json:"maxQueueSize"`
}

// apply merges non-nil override fields onto cfg.
func (o Overrides) apply(cfg Config) Config {
	if o.Endpoint != nil {
		cfg.Endpoint = *o.Endpoint
	}
	if o.Enabled != nil {
		cfg.Enabled = *o.Enabled
	}
	if o.FlushOnClose != nil {
		cfg.FlushOnClose = *o.FlushOnClose
	}
	if o.MaxRetries != nil {
		cfg.MaxRetries = *o.MaxRetries
	}
	if o.RetryBaseDelay != nil {
		cfg.RetryBaseDelay = *o.RetryBaseDelay
	}
	if o.BreakerThreshold != nil {
		cfg.BreakerThreshold = *o.BreakerThreshold
	}
	if o.BreakerCooldown != nil {
		cfg.BreakerCooldown = *o.BreakerCooldown
	}
	if o.MaxBatchSize != nil {
		cfg.MaxBatchSize = *o.MaxBatchSize
	}
	if o.MaxBatchBytes != nil {
		cfg.MaxBatchBytes = *o.MaxBatchBytes
	}
	if o.FlushInterval != nil {
		cfg.FlushInterval = *o.FlushInterval
	}
	if o.MaxQueueSize != nil {
		cfg.MaxQueueSize = *o.MaxQueueSize
	}
	return cfg.withDefaults()
}
