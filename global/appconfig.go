package global

import "time"

// AppConfig is the process-wide configuration of the realtime gateway
// node. One instance is loaded at startup and handed to every
// component that needs it.
type AppConfig struct {
	NodeID string // gateway node id (nats client name, presence values, snowflake seed)
	Port   int    // http listen port

	// websocket tuning
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int           // per-connection outbound queue capacity
	WriteWait       time.Duration // transport write deadline
	PingInterval    time.Duration // transport-level ping cadence

	// liveness reaper
	IdleTimeout time.Duration // connection evicted when last activity is older than this
	SweepEvery  time.Duration // reaper cadence, independent of IdleTimeout

	// auth collaborator
	JWTSecret string
	JWTTTL    time.Duration

	// optional collaborators; empty means disabled
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration
	NATSURL       string

	// ops endpoints bearer token; empty leaves them open
	OpsToken string
}
