package config

import (
	"os"
	"strconv"
)

// Config carries everything the daemon reads from the environment. Every
// field has a usable default so a bare `custodia` starts against local
// sqlite, an in-memory nonce store, and the public devnet RPC.
type Config struct {
	Addr        string // HTTP listen address
	DatabaseURL string // postgres DSN; empty selects sqlite
	SQLitePath  string
	RedisURL    string // enables the redis nonce store and event stream
	RPCURL      string // JSON-RPC endpoint of the ledger node
	JWTSecret   string // empty generates a per-process secret
	ExportDir   string // wallet archive output directory
	LogLevel    string
	LogJSON     bool
}

// FromEnv reads the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        getenv("CUSTODIA_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getenv("CUSTODIA_SQLITE_PATH", "custodia.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		RPCURL:      getenv("CUSTODIA_RPC_URL", "https://api.devnet.solana.com"),
		JWTSecret:   os.Getenv("CUSTODIA_JWT_SECRET"),
		ExportDir:   getenv("CUSTODIA_EXPORT_DIR", "exports"),
		LogLevel:    getenv("CUSTODIA_LOG_LEVEL", "info"),
		LogJSON:     getbool("CUSTODIA_LOG_JSON", false),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
