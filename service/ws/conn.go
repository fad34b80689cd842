package ws

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"KingShare/logger"
	errs "KingShare/tools/errs"
	"KingShare/tools/ids"

	"github.com/gorilla/websocket"
)

// Conn owns exactly one accepted websocket. The reader and writer
// goroutines are the only code that touches the underlying transport;
// everything else talks to the connection through its outbound queue.
type Conn struct {
	ID          string
	connectedAt time.Time

	mu       sync.RWMutex // identity and metadata
	userID   string
	username string
	metadata map[string]string

	lastActivity atomic.Int64 // unix nanos

	ws   *websocket.Conn
	send chan *Message

	sendMu sync.RWMutex // guards closed + the close of send
	closed bool

	mgr  *ConnManager
	srv  *Server // nil in registry-only tests
	done chan struct{}
	once sync.Once
}

func newConn(mgr *ConnManager, srv *Server, wsc *websocket.Conn, queueSize int) *Conn {
	now := mgr.conf.Clock()
	c := &Conn{
		ID:          ids.GenerateString(),
		connectedAt: now,
		metadata:    map[string]string{},
		ws:          wsc,
		send:        make(chan *Message, queueSize),
		mgr:         mgr,
		srv:         srv,
		done:        make(chan struct{}),
	}
	c.lastActivity.Store(now.UnixNano())
	if wsc != nil {
		if ra := wsc.RemoteAddr(); ra != nil {
			c.metadata["remote_addr"] = ra.String()
		}
	}
	return c
}

func (c *Conn) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Conn) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Conn) setIdentity(userID, username string) {
	c.mu.Lock()
	c.userID = userID
	c.username = username
	c.mu.Unlock()
}

func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// Metadata returns a copy; the live map is only written at accept time
// and by SetMeta.
func (c *Conn) Metadata() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

func (c *Conn) SetMeta(key, value string) {
	c.mu.Lock()
	c.metadata[key] = value
	c.mu.Unlock()
}

// Touch refreshes the last-activity stamp. Called for every decodable
// inbound frame and for transport pongs.
func (c *Conn) Touch() {
	c.lastActivity.Store(c.mgr.conf.Clock().UnixNano())
}

func (c *Conn) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// enqueue places a message on the outbound queue. A closed queue means
// the connection is gone; a full queue drops the message. Both are
// best-effort conditions the caller is expected to discard.
func (c *Conn) enqueue(msg *Message) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return errs.ErrConnNotFound.WrapMsg("queue closed", "conn", c.ID)
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errs.ErrQueueFull.WrapMsg("drop", "conn", c.ID, "type", msg.Type)
	}
}

func (c *Conn) closeSend() {
	c.sendMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.sendMu.Unlock()
}

// shutdown is the single teardown path: reader exit, writer exit and
// the reaper all end here, and only the first caller does the work.
// Reports whether this call performed the teardown.
func (c *Conn) shutdown(reason string) bool {
	ran := false
	c.once.Do(func() {
		ran = true
		close(c.done)

		userID, last := c.mgr.Deregister(c.ID)
		c.closeSend()
		if c.ws != nil {
			_ = c.ws.Close()
		}
		if last && userID != "" {
			c.mgr.announceOffline(userID, c.Username())
		}
		logger.Infof("[ws] closed conn=%s user=%s reason=%s", c.ID, userID, reason)
	})
	return ran
}

// writePump is the sole consumer of the outbound queue. It exits when
// the queue is closed (connection deregistered) or a transport write
// fails, and then runs the shared teardown.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.mgr.conf.PingInterval)
	defer func() {
		ticker.Stop()
		c.shutdown("writer exit")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// deregistered; best effort close frame
				_ = c.ws.SetWriteDeadline(time.Now().Add(c.mgr.conf.WriteWait))
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := msg.Encode()
			if err != nil {
				logger.Errorf("[ws] encode err conn=%s err=%v", c.ID, err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.mgr.conf.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Infof("[ws] write err conn=%s user=%s err=%v", c.ID, c.UserID(), err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"),
				time.Now().Add(c.mgr.conf.WriteWait)); err != nil {
				logger.Infof("[ws] ping err conn=%s err=%v", c.ID, err)
				return
			}
		}
	}
}

// readPump drains inbound frames. Malformed frames are logged and
// skipped; only transport errors or close frames end the loop.
func (c *Conn) readPump() {
	defer c.shutdown("reader exit")

	c.ws.SetPongHandler(func(string) error {
		c.Touch()
		return nil
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s err=%v", c.ID, err)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", c.ID, err)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", c.ID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		msg, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[ws] bad frame conn=%s err=%v sample=%q", c.ID, perr, sample)
			continue
		}

		c.Touch()
		if c.srv != nil {
			c.srv.handleInbound(c, msg)
		}
	}
}
