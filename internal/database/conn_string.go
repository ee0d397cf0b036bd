package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/notebook-client/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	port := cfg.Port
	if port == 0 {
		port = config.DefaultDBPort
	}

	userinfo := cfg.User
	if cfg.Password != "" {
		userinfo += ":" + escapedPassword
	}

	return fmt.Sprintf(
		"postgres://%s@%s:%d/%s?sslmode=%s",
		userinfo,
		cfg.Host,
		port,
		cfg.Name,
		sslMode,
	)
}
