package config

import "time"

// Environments.
const (
	EnvLocal  = "local"
	EnvHosted = "hosted"
)

// Config is the root configuration for the notebook client.
type Config struct {
	Environment string           `yaml:"environment"`
	Kernel      KernelConfig     `yaml:"kernel"`
	Connection  ConnectionConfig `yaml:"connection"`
	API         APIConfig        `yaml:"api"`
	Auth        AuthConfig       `yaml:"auth"`
	Cache       CacheConfig      `yaml:"cache"`
	Journal     JournalConfig    `yaml:"journal"`
	Poller      PollerConfig     `yaml:"poller"`
	Log         LogConfig        `yaml:"log"`
}

// KernelConfig locates the kernel WebSocket endpoint.
type KernelConfig struct {
	Host   string `yaml:"host"`   // host[:port], no path
	Scheme string `yaml:"scheme"` // ws or wss
}

// ConnectionConfig holds connection manager settings.
type ConnectionConfig struct {
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	QueueSize         *int          `yaml:"queue_size"` // nil = default, 0 = no buffering
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
}

// APIConfig holds backend HTTP settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries *int          `yaml:"max_retries"` // nil = default, 0 = single attempt
}

// AuthConfig holds the credentials issued by the identity provider.
type AuthConfig struct {
	UserID    string `yaml:"user_id"`
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig holds read-through cache settings for backend reads.
type CacheConfig struct {
	Backend  string        `yaml:"backend"`
	RedisURL string        `yaml:"redis_url"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// JournalConfig holds protocol journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	Table         string        `yaml:"table"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PollerConfig holds job poller settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // auto, text, json
}
