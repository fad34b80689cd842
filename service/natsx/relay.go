package natsx

import (
	"encoding/json"

	"KingShare/logger"
	ws "KingShare/service/ws"

	"github.com/nats-io/nats.go"
)

// Envelope is the relay wire format: which recipients, plus one
// protocol frame exactly as it would go over a websocket.
type Envelope struct {
	Scope   string          `json:"scope"` // conn | user | users | all
	ConnID  string          `json:"conn_id,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	UserIDs []string        `json:"user_ids,omitempty"`
	Message json.RawMessage `json:"message"`
}

const (
	ScopeConn  = "conn"
	ScopeUser  = "user"
	ScopeUsers = "users"
	ScopeAll   = "all"
)

// Notifier is the slice of the gateway the relay feeds into; the
// connection manager satisfies it.
type Notifier interface {
	SendToConn(connID string, msg *ws.Message) error
	SendToUser(userID string, msg *ws.Message)
	Broadcast(msg *ws.Message)
	BroadcastToUsers(userIDs []string, msg *ws.Message)
}

// Relay subscribes to the notify subject and forwards envelopes into
// the local notification API. Bad envelopes are logged and dropped;
// the relay inherits the gateway's best-effort contract.
type Relay struct {
	nc  *nats.Conn
	n   Notifier
	sub *nats.Subscription
}

func NewRelay(nc *nats.Conn, n Notifier) *Relay {
	return &Relay{nc: nc, n: n}
}

func (r *Relay) Start() error {
	sub, err := r.nc.Subscribe(SubjectNotify, r.onMsg)
	if err != nil {
		return err
	}
	r.sub = sub
	return nil
}

func (r *Relay) Stop() {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
}

func (r *Relay) onMsg(m *nats.Msg) {
	var env Envelope
	if err := json.Unmarshal(m.Data, &env); err != nil {
		logger.Warnf("[natsx] bad envelope: %v", err)
		return
	}
	msg, err := ws.ParseFrame(env.Message)
	if err != nil {
		logger.Warnf("[natsx] bad frame in envelope scope=%s err=%v", env.Scope, err)
		return
	}

	switch env.Scope {
	case ScopeConn:
		// the target connection may live on another node; a miss here
		// is expected and not an error
		_ = r.n.SendToConn(env.ConnID, msg)
	case ScopeUser:
		r.n.SendToUser(env.UserID, msg)
	case ScopeUsers:
		r.n.BroadcastToUsers(env.UserIDs, msg)
	case ScopeAll:
		r.n.Broadcast(msg)
	default:
		logger.Warnf("[natsx] unknown scope %q", env.Scope)
	}
}
