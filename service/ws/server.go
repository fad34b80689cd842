package ws

import (
	"net/http"
	"strings"
	"time"

	"KingShare/logger"
	decode "KingShare/tools/decode"
	"KingShare/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Identity is a resolved principal, produced by the authentication
// collaborator from a bearer credential.
type Identity struct {
	UserID   string
	Username string
}

// TokenVerifier is the authentication collaborator. The gateway never
// inspects credentials itself.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// Server accepts websocket upgrades and answers protocol-level inbound
// messages. Domain messages arriving inbound are accepted and dropped;
// forwarding them anywhere is not this subsystem's job.
type Server struct {
	mgr      *ConnManager
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

func NewServer(mgr *ConnManager, verifier TokenVerifier, readBuf, writeBuf int) *Server {
	if readBuf <= 0 {
		readBuf = 4096
	}
	if writeBuf <= 0 {
		writeBuf = 4096
	}
	return &Server{
		mgr:      mgr,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Manager() *ConnManager { return s.mgr }

// RegisterRoutes wires the upgrade endpoint plus the ops surface. The
// middlewares guard only the ops group; the upgrade endpoint does its
// own (optional) authentication.
func (s *Server) RegisterRoutes(r gin.IRouter, opsMW ...gin.HandlerFunc) {
	r.GET("/ws", s.HandleWS)

	api := r.Group("/api/v1/ws")
	api.Use(opsMW...)
	api.GET("/stats", s.HandleStats)
	api.POST("/cleanup", s.HandleCleanup)
}

// HandleWS upgrades the request and runs the connection until the
// transport dies. A bearer token in the upgrade request resolves the
// identity up front; no token, or a bad one, yields an anonymous
// connection rather than a refusal.
func (s *Server) HandleWS(c *gin.Context) {
	identity := s.upgradeIdentity(c)

	wsc, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	conn := newConn(s.mgr, s, wsc, s.mgr.conf.SendQueueSize)
	if ua := c.GetHeader("User-Agent"); ua != "" {
		conn.SetMeta("user_agent", ua)
	}
	if identity != nil {
		conn.setIdentity(identity.UserID, identity.Username)
	}

	first, err := s.mgr.Register(conn)
	if err != nil {
		// duplicate id; refuse the socket rather than orphan a queue
		_ = wsc.Close()
		return
	}
	logger.Infof("[ws] accepted conn=%s user=%s remote=%s", conn.ID, conn.UserID(), wsc.RemoteAddr())
	if first {
		s.mgr.announceOnline(conn.UserID(), conn.Username())
	}

	safe.Go(conn.writePump)
	conn.readPump() // blocks until transport close / read error
}

func (s *Server) upgradeIdentity(c *gin.Context) *Identity {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
	}
	if token == "" || s.verifier == nil {
		return nil
	}
	id, err := s.verifier.Verify(token)
	if err != nil {
		logger.Infof("[ws] upgrade token rejected: %v", err)
		return nil
	}
	return id
}

// handleInbound dispatches one decoded frame. The variant set is
// closed, so this switch is the whole protocol.
func (s *Server) handleInbound(c *Conn, msg *Message) {
	switch msg.Type {
	case TypePing:
		if err := c.enqueue(BuildPong()); err != nil {
			logger.Debugf("[ws] pong dropped conn=%s err=%v", c.ID, err)
		}
	case TypeAuthenticate:
		s.handleAuthenticate(c, msg)
	default:
		// accepted but not acted upon here
		logger.Debugf("[ws] inbound %s ignored conn=%s", msg.Type, c.ID)
	}
}

// handleAuthenticate verifies an in-band token. Success re-keys the
// connection under the resolved user; failure is reported back and the
// connection stays open.
func (s *Server) handleAuthenticate(c *Conn, msg *Message) {
	reply := func(ok bool, detail string) {
		if err := c.enqueue(BuildAuthResult(ok, detail)); err != nil {
			logger.Debugf("[ws] auth reply dropped conn=%s err=%v", c.ID, err)
		}
	}

	p, err := decode.DecodeMap[AuthenticatePayload](msg.PayloadMap())
	if err != nil || p.Token == "" {
		reply(false, "missing token")
		return
	}
	if s.verifier == nil {
		reply(false, "authentication unavailable")
		return
	}
	id, err := s.verifier.Verify(p.Token)
	if err != nil {
		logger.Infof("[ws] in-band auth failed conn=%s err=%v", c.ID, err)
		reply(false, "invalid token")
		return
	}

	first, err := s.mgr.BindUser(c.ID, id.UserID, id.Username)
	if err != nil {
		reply(false, "connection no longer registered")
		return
	}
	reply(true, "authenticated")
	if first {
		s.mgr.announceOnline(id.UserID, id.Username)
	}
}

// HandleStats serves a snapshot of the registry for the health page.
func (s *Server) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.Stats())
}

// HandleCleanup runs one on-demand reaper sweep. Body is optional;
// without it the configured idle timeout applies.
func (s *Server) HandleCleanup(c *gin.Context) {
	var req struct {
		TimeoutSeconds *int64 `json:"timeout_seconds"`
	}
	_ = c.ShouldBindJSON(&req)

	timeout := s.mgr.conf.IdleTimeout
	if req.TimeoutSeconds != nil {
		timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}
	removed := s.mgr.CleanupInactive(timeout)
	c.JSON(http.StatusOK, gin.H{"removed_count": removed})
}
