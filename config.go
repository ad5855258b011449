package zenoh

import "time"

const (
	// DefaultLeaseMillis is the lease advertised when none is configured.
	DefaultLeaseMillis uint64 = 10000
	// DefaultConfigBatchSize is the batch_size upper bound advertised when
	// none is configured.
	DefaultConfigBatchSize BatchSize = 65535
)

// Option is a functional option for NewConfig.
type Option func(*Config)

// Config holds the settings a session is built from: own ZenohID, streamed
// mode flag, batch_size upper bound, lease duration, Resolution preference,
// cookie sealing strategy and metrics sink. Zero value is unusable; build
// one with NewConfig, which applies library defaults first.
type Config struct {
	zid          ZenohID
	streamed     bool
	batchSize    BatchSize
	leaseMillis  uint64
	resolution   Resolution
	cookieSealer CookieSealer
	metrics      Metrics
}

// Validate reports ErrInvalidConfig for a contradictory or unusable
// configuration.
func (c *Config) Validate() error {
	if c.batchSize == 0 {
		return ErrInvalidConfig
	}
	if c.leaseMillis == 0 {
		return ErrInvalidConfig
	}
	if c.cookieSealer == nil {
		return ErrInvalidConfig
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		zid:          NewRandomZenohID(),
		streamed:     false,
		batchSize:    DefaultConfigBatchSize,
		leaseMillis:  DefaultLeaseMillis,
		resolution:   DefaultResolution(),
		cookieSealer: IdentityCookieSealer{},
		metrics:      NewDefaultMetrics(),
	}
}

// NewConfig builds a Config from library defaults plus the supplied
// options, validating the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := applyConfig(opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithZenohID sets this peer's identifier explicitly, overriding the
// randomly generated default.
func WithZenohID(zid ZenohID) Option {
	return func(c *Config) { c.zid = zid }
}

// WithStreamed switches the session between streamed (length-prefixed) and
// datagram batch framing.
func WithStreamed(streamed bool) Option {
	return func(c *Config) { c.streamed = streamed }
}

// WithBatchSize sets the batch_size upper bound this side proposes during
// the handshake.
func WithBatchSize(b BatchSize) Option {
	return func(c *Config) {
		if b > 0 {
			c.batchSize = b
		}
	}
}

// WithLease sets the session lease; KeepAlives should be emitted at
// lease/4 and a silent peer presumed dead after four misses.
func WithLease(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.leaseMillis = uint64(d.Milliseconds())
		}
	}
}

// WithResolution sets the per-field width proposal this side advertises.
func WithResolution(r Resolution) Option {
	return func(c *Config) { c.resolution = r }
}

// WithCookieSealer sets the algorithm used to seal/open the InitAck
// cookie. The default is IdentityCookieSealer (plain echo).
func WithCookieSealer(s CookieSealer) Option {
	return func(c *Config) {
		if s != nil {
			c.cookieSealer = s
		}
	}
}

// WithMetrics sets a custom metrics sink. If not provided, DefaultMetrics
// (atomic counters) is used.
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Handshake projects the negotiation-relevant fields into a
// HandshakeConfig, as consumed by NewListenerEstablishment /
// NewConnectorEstablishment.
func (c *Config) Handshake() HandshakeConfig {
	return HandshakeConfig{
		Resolution:   c.resolution,
		BatchSize:    c.batchSize,
		LeaseMillis:  c.leaseMillis,
		CookieSealer: c.cookieSealer,
	}
}

// SessionParams projects the full configuration into SessionParams over
// the given TX/RX buffers.
func (c *Config) SessionParams(txBuf, rxBuf []byte) SessionParams {
	return SessionParams{
		ZID:       c.zid,
		Streamed:  c.streamed,
		TXBuf:     txBuf,
		RXBuf:     rxBuf,
		Handshake: c.Handshake(),
		Metrics:   c.metrics,
	}
}
