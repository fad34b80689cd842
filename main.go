package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"KingShare/global"
	"KingShare/logger"
	midsec "KingShare/middleware/security"
	"KingShare/service/natsx"
	"KingShare/service/storage"
	redisboot "KingShare/service/storage/redis"
	ws "KingShare/service/ws"
	toolsec "KingShare/tools/security"
)

// jwtVerifier adapts the JWT tool to the gateway's authentication
// collaborator interface.
type jwtVerifier struct {
	opts toolsec.Options
}

func (v jwtVerifier) Verify(token string) (*ws.Identity, error) {
	id, err := toolsec.Verify(v.opts, token)
	if err != nil {
		return nil, err
	}
	return &ws.Identity{UserID: id.UserID, Username: id.Username}, nil
}

func main() {
	cfg := global.Load()
	global.ConfigIds(snowNode(cfg.NodeID))
	defer logger.Sync()

	// optional presence mirror
	var presence *storage.PresenceStore
	if cfg.RedisAddr != "" {
		rdb, err := redisboot.New(redisboot.Config{
			Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB,
		})
		if err != nil {
			logger.Warnf("[main] redis unavailable, presence mirror disabled: %v", err)
		} else {
			presence = storage.NewPresenceStore(rdb, cfg.NodeID, cfg.PresenceTTL)
		}
	}

	mgr := ws.NewConnManager(ws.ManagerConf{
		IdleTimeout:   cfg.IdleTimeout,
		SweepEvery:    cfg.SweepEvery,
		SendQueueSize: cfg.SendQueueSize,
		PingInterval:  cfg.PingInterval,
		WriteWait:     cfg.WriteWait,
		OnUserOnline: func(userID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := presence.Online(ctx, userID); err != nil {
				logger.Warnf("[main] presence online user=%s err=%v", userID, err)
			}
		},
		OnUserOffline: func(userID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := presence.Offline(ctx, userID); err != nil {
				logger.Warnf("[main] presence offline user=%s err=%v", userID, err)
			}
		},
	})

	verifier := jwtVerifier{opts: toolsec.Options{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.JWTTTL,
	}}
	srv := ws.NewServer(mgr, verifier, cfg.ReadBufferSize, cfg.WriteBufferSize)

	// optional cross-node notify relay
	var relay *natsx.Relay
	if cfg.NATSURL != "" {
		nc, err := natsx.Connect(natsx.Config{URL: cfg.NATSURL, Name: cfg.NodeID})
		if err != nil {
			logger.Warnf("[main] nats unavailable, notify relay disabled: %v", err)
		} else {
			relay = natsx.NewRelay(nc, mgr)
			if err := relay.Start(); err != nil {
				logger.Warnf("[main] notify relay subscribe failed: %v", err)
				relay = nil
			}
		}
	}

	r := newRouter()
	srv.RegisterRoutes(r, midsec.Middleware(midsec.DefaultOptions(cfg.OpsToken)))

	httpSrv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: r,
	}
	go func() {
		logger.Infof("[main] gateway %s listening on %s", cfg.NodeID, httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[main] http server: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("[main] shutting down")

	if relay != nil {
		relay.Stop()
	}
	mgr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}

// snowNode derives the snowflake node part from the trailing digits of
// the gateway id ("ks_gw-12" -> 12).
func snowNode(nodeID string) int64 {
	i := len(nodeID)
	for i > 0 && nodeID[i-1] >= '0' && nodeID[i-1] <= '9' {
		i--
	}
	n, err := strconv.ParseInt(strings.TrimLeft(nodeID[i:], "0")+"0", 10, 64)
	if err != nil {
		return 1
	}
	n /= 10
	if n <= 0 || n > 1023 {
		return 1
	}
	return n
}
