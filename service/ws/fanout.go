package ws

import (
	"KingShare/logger"
	errs "KingShare/tools/errs"
)

// Notification API. All four entry points are fire-and-forget with
// respect to delivery: success means the message reached the
// per-connection queue, nothing more. Callers treat every error as
// non-fatal.

// SendToConn enqueues to a single connection. ErrConnNotFound when the
// connection has already been torn down.
func (m *ConnManager) SendToConn(connID string, msg *Message) error {
	c, ok := m.Lookup(connID)
	if !ok {
		return errs.ErrConnNotFound.WrapMsg("conn", connID)
	}
	if err := c.enqueue(msg); err != nil {
		// queue closed or full: the peer is gone or drowning, either
		// way the message is droppable
		logger.Debugf("[ws] enqueue miss conn=%s err=%v", connID, err)
	}
	return nil
}

// SendToUser enqueues to every live connection of the user. An offline
// user, or a connection torn down mid-iteration, is silently skipped.
func (m *ConnManager) SendToUser(userID string, msg *Message) {
	for _, connID := range m.ConnsForUser(userID) {
		_ = m.SendToConn(connID, msg)
	}
}

// Broadcast enqueues to every registered connection.
func (m *ConnManager) Broadcast(msg *Message) {
	m.connsMu.RLock()
	targets := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		targets = append(targets, c)
	}
	m.connsMu.RUnlock()

	for _, c := range targets {
		if err := c.enqueue(msg); err != nil {
			logger.Debugf("[ws] broadcast miss conn=%s err=%v", c.ID, err)
		}
	}
}

// BroadcastToUsers is a repeated SendToUser.
func (m *ConnManager) BroadcastToUsers(userIDs []string, msg *Message) {
	for _, uid := range userIDs {
		m.SendToUser(uid, msg)
	}
}
