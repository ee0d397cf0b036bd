package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultEnvironment       = EnvLocal
	DefaultLocalHost         = "127.0.0.1:8000"
	DefaultLocalAPIURL       = "http://127.0.0.1:8000"
	DefaultReconnectInterval = 3 * time.Second
	DefaultReconnectAttempts = 10
	DefaultQueueSize         = 64
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultCacheBackend      = CacheNone
	DefaultCachePrefix       = "nbclient"
	DefaultCacheTTL          = 30 * time.Second
	DefaultJournalTable      = "protocol_journal"
	DefaultBatchSize         = 100
	DefaultFlushInterval     = 2 * time.Second
	DefaultBufferSize        = 4096
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultPollInterval      = 10 * time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "auto"
)

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}

	// Kernel and API location
	switch c.Environment {
	case EnvLocal:
		if c.Kernel.Host == "" {
			c.Kernel.Host = DefaultLocalHost
		}
		if c.Kernel.Scheme == "" {
			c.Kernel.Scheme = "ws"
		}
		if c.API.BaseURL == "" {
			c.API.BaseURL = DefaultLocalAPIURL
		}
	case EnvHosted:
		if c.Kernel.Scheme == "" {
			c.Kernel.Scheme = "wss"
		}
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.API.MaxRetries = &retries
	}

	// Connection defaults
	if c.Connection.ReconnectInterval == 0 {
		c.Connection.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Connection.ReconnectAttempts == 0 {
		c.Connection.ReconnectAttempts = DefaultReconnectAttempts
	}
	if c.Connection.QueueSize == nil {
		size := DefaultQueueSize
		c.Connection.QueueSize = &size
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}

	// Cache defaults
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = DefaultCachePrefix
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	// Journal defaults
	if c.Journal.Table == "" {
		c.Journal.Table = DefaultJournalTable
	}
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}
	applyDBDefaults(&c.Journal.Database)

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
