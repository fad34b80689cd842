package natsx

import (
	"encoding/json"

	ws "KingShare/service/ws"

	"github.com/nats-io/nats.go"
)

// Publisher is the service-side half of the relay: file/share/document
// services hold one of these and fire notifications without knowing
// which gateway node, if any, the recipient is connected to.
type Publisher struct {
	nc *nats.Conn
}

func NewPublisher(nc *nats.Conn) *Publisher { return &Publisher{nc: nc} }

func (p *Publisher) publish(env Envelope, msg *ws.Message) error {
	frame, err := msg.Encode()
	if err != nil {
		return err
	}
	env.Message = frame
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.nc.Publish(SubjectNotify, data)
}

func (p *Publisher) SendToConn(connID string, msg *ws.Message) error {
	return p.publish(Envelope{Scope: ScopeConn, ConnID: connID}, msg)
}

func (p *Publisher) SendToUser(userID string, msg *ws.Message) error {
	return p.publish(Envelope{Scope: ScopeUser, UserID: userID}, msg)
}

func (p *Publisher) Broadcast(msg *ws.Message) error {
	return p.publish(Envelope{Scope: ScopeAll}, msg)
}

func (p *Publisher) BroadcastToUsers(userIDs []string, msg *ws.Message) error {
	return p.publish(Envelope{Scope: ScopeUsers, UserIDs: userIDs}, msg)
}
