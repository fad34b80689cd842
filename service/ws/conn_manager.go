package ws

import (
	"sync"
	"time"

	"KingShare/logger"
	errs "KingShare/tools/errs"
	"KingShare/tools/safe"
)

// ===== configuration =====

type ManagerConf struct {
	IdleTimeout   time.Duration    // reaper evicts connections idle longer than this
	SweepEvery    time.Duration    // reaper cadence (0 => default, <0 => no background sweeper)
	SendQueueSize int              // per-connection outbound queue capacity
	PingInterval  time.Duration    // transport ping cadence
	WriteWait     time.Duration    // transport write deadline
	Clock         func() time.Time // injectable clock (tests); nil => time.Now

	// optional presence hooks, fired off-goroutine on user
	// online/offline transitions (e.g. the redis mirror)
	OnUserOnline  func(userID string)
	OnUserOffline func(userID string)
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery == 0 {
		c.SweepEvery = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
}

// ===== registry =====

// ConnManager is the single source of truth for which connections
// exist and who owns them. The two indexes are guarded by independent
// locks so notification fanout for one user never contends with
// accept/teardown traffic on the main index.
type ConnManager struct {
	conf ManagerConf

	connsMu sync.RWMutex
	conns   map[string]*Conn // conn_id -> conn

	usersMu sync.RWMutex
	byUser  map[string]map[string]struct{} // user_id -> set of conn_ids

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewConnManager(conf ManagerConf) *ConnManager {
	conf.norm()
	m := &ConnManager{
		conf:   conf,
		conns:  make(map[string]*Conn),
		byUser: make(map[string]map[string]struct{}),
		stopCh: make(chan struct{}),
	}
	if conf.SweepEvery > 0 {
		safe.Go(m.sweeper)
	}
	return m
}

// Close tears down every connection and stops the sweeper.
func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.connsMu.RLock()
	all := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		all = append(all, c)
	}
	m.connsMu.RUnlock()
	for _, c := range all {
		c.shutdown("manager close")
	}
}

// Register inserts a new connection. Duplicate connection ids are a
// caller contract violation: the insert is refused so the previous
// queue is never silently orphaned.
func (m *ConnManager) Register(c *Conn) (first bool, err error) {
	m.connsMu.Lock()
	if _, exists := m.conns[c.ID]; exists {
		m.connsMu.Unlock()
		logger.Warnf("[ws] duplicate register refused conn=%s", c.ID)
		return false, errs.ErrDuplicateID.WrapMsg("conn", c.ID)
	}
	m.conns[c.ID] = c
	m.connsMu.Unlock()

	uid := c.UserID()
	if uid == "" {
		return false, nil
	}
	return m.indexUser(uid, c.ID), nil
}

// BindUser re-keys a connection from anonymous (or another user) to
// the given user. Reports whether this is now the user's only
// connection, i.e. the online transition.
func (m *ConnManager) BindUser(connID, userID, username string) (first bool, err error) {
	c, ok := m.Lookup(connID)
	if !ok {
		return false, errs.ErrConnNotFound.WrapMsg("conn", connID)
	}
	old := c.UserID()
	if old == userID {
		return false, nil
	}
	c.setIdentity(userID, username)
	if old != "" {
		if last := m.unindexUser(old, connID); last {
			m.announceOffline(old, username)
		}
	}
	return m.indexUser(userID, c.ID), nil
}

// Deregister removes the connection from both indexes. Absent ids are
// a no-op: the reaper and a transport-detected close race here by
// design. Reports the owning user and whether it was their last
// connection.
func (m *ConnManager) Deregister(connID string) (userID string, last bool) {
	m.connsMu.Lock()
	c, ok := m.conns[connID]
	if ok {
		delete(m.conns, connID)
	}
	m.connsMu.Unlock()
	if !ok {
		return "", false
	}

	uid := c.UserID()
	if uid == "" {
		return "", false
	}
	return uid, m.unindexUser(uid, connID)
}

func (m *ConnManager) Lookup(connID string) (*Conn, bool) {
	m.connsMu.RLock()
	defer m.connsMu.RUnlock()
	c, ok := m.conns[connID]
	return c, ok
}

// ConnsForUser returns the ids of the user's live connections.
func (m *ConnManager) ConnsForUser(userID string) []string {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	set := m.byUser[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (m *ConnManager) OnlineUsers() []string {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	out := make([]string, 0, len(m.byUser))
	for uid := range m.byUser {
		out = append(out, uid)
	}
	return out
}

func (m *ConnManager) IsOnline(userID string) bool {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	return len(m.byUser[userID]) > 0
}

// ConnectionStats is the snapshot served by the ops endpoint.
type ConnectionStats struct {
	TotalConnections  int            `json:"total_connections"`
	UniqueUsers       int            `json:"unique_users"`
	ConnectionsByUser map[string]int `json:"connections_by_user"`
}

func (m *ConnManager) Stats() ConnectionStats {
	m.connsMu.RLock()
	total := len(m.conns)
	m.connsMu.RUnlock()

	m.usersMu.RLock()
	byUser := make(map[string]int, len(m.byUser))
	for uid, set := range m.byUser {
		byUser[uid] = len(set)
	}
	m.usersMu.RUnlock()

	return ConnectionStats{
		TotalConnections:  total,
		UniqueUsers:       len(byUser),
		ConnectionsByUser: byUser,
	}
}

// ===== user index =====

// indexUser adds conn to the user's set; true when the set was empty.
func (m *ConnManager) indexUser(userID, connID string) (first bool) {
	m.usersMu.Lock()
	set := m.byUser[userID]
	if set == nil {
		set = make(map[string]struct{})
		m.byUser[userID] = set
		first = true
	}
	set[connID] = struct{}{}
	m.usersMu.Unlock()
	return first
}

// unindexUser removes conn from the user's set; true when the set
// became empty (the user-offline transition). The empty set is deleted
// so OnlineUsers stays exact.
func (m *ConnManager) unindexUser(userID, connID string) (last bool) {
	m.usersMu.Lock()
	if set := m.byUser[userID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(m.byUser, userID)
			last = true
		}
	}
	m.usersMu.Unlock()
	return last
}

// ===== presence transitions =====

func (m *ConnManager) announceOnline(userID, username string) {
	m.Broadcast(BuildUserOnline(userID, username))
	if m.conf.OnUserOnline != nil {
		hook := m.conf.OnUserOnline
		safe.Go(func() { hook(userID) })
	}
}

func (m *ConnManager) announceOffline(userID, username string) {
	m.Broadcast(BuildUserOffline(userID, username))
	if m.conf.OnUserOffline != nil {
		hook := m.conf.OnUserOffline
		safe.Go(func() { hook(userID) })
	}
}

// ===== liveness reaper =====

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			if n := m.CleanupInactive(m.conf.IdleTimeout); n > 0 {
				logger.Infof("[ws] reaped %d idle connections", n)
			}
		}
	}
}

// CleanupInactive evicts every connection whose last activity is at
// least timeout old, through the same teardown path a transport close
// takes. timeout 0 therefore purges all current connections. Returns
// how many this call actually removed.
func (m *ConnManager) CleanupInactive(timeout time.Duration) int {
	now := m.conf.Clock()

	m.connsMu.RLock()
	victims := make([]*Conn, 0)
	for _, c := range m.conns {
		if now.Sub(c.LastActivity()) >= timeout {
			victims = append(victims, c)
		}
	}
	m.connsMu.RUnlock()

	removed := 0
	for _, c := range victims {
		if c.shutdown("idle timeout") {
			removed++
		}
	}
	return removed
}
