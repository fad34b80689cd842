package global

import (
	"os"
	"strconv"
	"time"

	ids "KingShare/tools/ids"
)

// Load builds the AppConfig from the environment, falling back to
// development defaults. Missing or malformed values never fail
// startup; they fall back.
func Load() AppConfig {
	cfg := AppConfig{
		NodeID: envStr("GATEWAY_ID", "ks_gw-1"),
		Port:   envInt("PORT", 8080),

		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		SendQueueSize:   envInt("WS_SEND_QUEUE", 256),
		WriteWait:       10 * time.Second,
		PingInterval:    envDur("WS_PING_INTERVAL", 25*time.Second),

		IdleTimeout: envDur("WS_IDLE_TIMEOUT", 5*time.Minute),
		SweepEvery:  envDur("WS_SWEEP_EVERY", 30*time.Second),

		JWTSecret: envStr("JWT_SECRET", "dev-secret-change-me"),
		JWTTTL:    envDur("JWT_TTL", 2*time.Hour),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		PresenceTTL:   envDur("PRESENCE_TTL", 5*time.Minute),
		NATSURL:       os.Getenv("NATS_URL"),

		OpsToken: os.Getenv("OPS_TOKEN"),
	}
	return cfg
}

// ConfigIds seeds the snowflake node part from the numeric suffix of
// the gateway id so two nodes never mint the same connection id.
func ConfigIds(nodeID int64) {
	ids.SetNodeID(nodeID)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
