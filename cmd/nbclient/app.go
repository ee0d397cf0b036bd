package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/notebook-client/internal/api"
	"github.com/rickgao/notebook-client/internal/auth"
	"github.com/rickgao/notebook-client/internal/cache"
	"github.com/rickgao/notebook-client/internal/config"
	"github.com/rickgao/notebook-client/internal/connection"
	"github.com/rickgao/notebook-client/internal/database"
	"github.com/rickgao/notebook-client/internal/journal"
)

// EnvPrefix prefixes every environment override, e.g. NBCLIENT_KERNEL_HOST.
const EnvPrefix = "NBCLIENT"

// app carries state shared by every subcommand.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &app{v: v, logger: slog.Default()}
}

// flagKeys maps persistent flags to viper keys.
var flagKeys = map[string]string{
	"config":      "config",
	"log-level":   "log.level",
	"env-file":    "env_file",
	"environment": "environment",
	"kernel-host": "kernel.host",
	"api-url":     "api.base_url",
}

func (a *app) bindFlags(flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}
}

// overrides are the config fields that flags and NBCLIENT_* variables may set.
var overrides = []struct {
	key string
	set func(*config.Config, string)
}{
	{"environment", func(c *config.Config, s string) { c.Environment = s }},
	{"kernel.host", func(c *config.Config, s string) { c.Kernel.Host = s }},
	{"kernel.scheme", func(c *config.Config, s string) { c.Kernel.Scheme = s }},
	{"api.base_url", func(c *config.Config, s string) { c.API.BaseURL = s }},
	{"cache.backend", func(c *config.Config, s string) { c.Cache.Backend = s }},
	{"cache.redis_url", func(c *config.Config, s string) { c.Cache.RedisURL = s }},
	{"log.level", func(c *config.Config, s string) { c.Log.Level = s }},
	{"log.format", func(c *config.Config, s string) { c.Log.Format = s }},
}

// init loads .env, the config file and overrides, then installs the logger.
func (a *app) init(cmd *cobra.Command) error {
	if err := loadEnvFile(a.v.GetString("env_file"), cmd.Flags().Changed("env-file")); err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger)

	logger.Debug("configuration loaded",
		"environment", cfg.Environment,
		"kernel", cfg.Kernel.Scheme+"://"+cfg.Kernel.Host,
		"api_url", cfg.API.BaseURL,
		"cache", cfg.Cache.Backend,
		"journal", cfg.Journal.Enabled,
	)
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if path := a.v.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	for _, o := range overrides {
		if a.v.IsSet(o.key) {
			if s := a.v.GetString(o.key); s != "" {
				o.set(cfg, s)
			}
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// loadEnvFile loads a dotenv file. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load env file: %w", err)
}

// credentials resolves the caller identity: the config file first, then
// NBCLIENT_USER_ID / NBCLIENT_TOKEN(_FILE). Without either, userID is used
// unauthenticated, which local backends accept.
func (a *app) credentials(userID string) (auth.Credentials, error) {
	c := a.cfg.Auth
	if c.UserID != "" || c.Token != "" || c.TokenFile != "" {
		if c.UserID == "" {
			c.UserID = userID
		}
		creds, err := auth.LoadCredentials(c.UserID, c.TokenFile)
		if err != nil {
			return auth.Credentials{}, err
		}
		if c.Token != "" {
			creds.Token = c.Token
		}
		return creds, nil
	}

	if os.Getenv(auth.EnvUserID) != "" {
		return auth.FromEnv()
	}
	return auth.Credentials{UserID: userID}, nil
}

// closer releases a component during shutdown.
type closer func(context.Context) error

// shutdown runs independent closers concurrently and joins their errors.
func shutdown(ctx context.Context, closers ...closer) error {
	g, gctx := errgroup.WithContext(ctx)
	errs := make([]error, len(closers))
	for i, c := range closers {
		if c == nil {
			continue
		}
		g.Go(func() error {
			errs[i] = c(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// apiClient builds the backend client with the configured cache.
func (a *app) apiClient(ctx context.Context, creds auth.Credentials) (*api.Client, closer, error) {
	opts := []api.ClientOption{
		api.WithLogger(a.logger),
		api.WithTimeout(a.cfg.API.Timeout),
		api.WithRetries(lo.FromPtr(a.cfg.API.MaxRetries), time.Second),
	}

	var done closer
	switch a.cfg.Cache.Backend {
	case config.CacheMemory:
		opts = append(opts, api.WithCache(cache.NewMemory(clock.New()), a.cfg.Cache.TTL))
	case config.CacheRedis:
		rc, err := cache.NewRedis(ctx, a.cfg.Cache.RedisURL, a.cfg.Cache.Prefix)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, api.WithCache(rc, a.cfg.Cache.TTL))
		done = func(context.Context) error { return rc.Close() }
	}

	return api.NewClient(a.cfg.API.BaseURL, creds, opts...), done, nil
}

// recorder starts the protocol journal when enabled.
func (a *app) recorder(ctx context.Context) (journal.Recorder, closer, error) {
	jc := a.cfg.Journal
	if !jc.Enabled {
		return journal.Nop{}, nil, nil
	}

	pool, err := database.Connect(ctx, jc.Database, a.logger)
	if err != nil {
		return nil, nil, err
	}

	w := journal.NewWriter(journal.WriterConfig{
		Table:         jc.Table,
		BatchSize:     jc.BatchSize,
		FlushInterval: jc.FlushInterval,
		BufferSize:    jc.BufferSize,
	}, pool, a.logger)

	if err := w.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := w.Start(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return w, func(ctx context.Context) error {
		defer pool.Close()
		return w.Stop(ctx)
	}, nil
}

// managerConfig maps the connection section onto the manager settings.
func managerConfig(cfg *config.Config) connection.ManagerConfig {
	m := connection.DefaultManagerConfig()
	m.Scheme = cfg.Kernel.Scheme
	m.Host = cfg.Kernel.Host
	m.ReconnectInterval = cfg.Connection.ReconnectInterval
	m.ReconnectAttempts = cfg.Connection.ReconnectAttempts
	if cfg.Connection.QueueSize != nil {
		m.QueueSize = *cfg.Connection.QueueSize
	}
	m.Client.HandshakeTimeout = cfg.Connection.HandshakeTimeout
	m.Client.PingInterval = cfg.Connection.PingInterval
	m.Client.PingTimeout = cfg.Connection.PingTimeout
	m.Client.WriteTimeout = cfg.Connection.WriteTimeout
	return m
}
