package natsx

import (
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectNotify carries notification envelopes from backend services
// to every gateway node. Plain pub/sub on purpose: each node delivers
// to its own local connections, so all nodes must see every envelope.
const SubjectNotify = "kingshare.notify"

type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Connect dials NATS with endless reconnects; the relay is an optional
// collaborator and a flapping broker must not kill the gateway.
func Connect(cfg Config) (*nats.Conn, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	return nats.Connect(cfg.URL, opts...)
}
