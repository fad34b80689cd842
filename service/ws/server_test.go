package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errs "KingShare/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type stubVerifier struct {
	tokens map[string]Identity
}

func (s stubVerifier) Verify(token string) (*Identity, error) {
	if id, ok := s.tokens[token]; ok {
		return &id, nil
	}
	return nil, errs.ErrTokenInvalid.Wrap()
}

func newTestGateway(t *testing.T) (*ConnManager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr := NewConnManager(ManagerConf{SweepEvery: -1, SendQueueSize: 16})
	srv := NewServer(mgr, stubVerifier{tokens: map[string]Identity{
		"good-token": {UserID: "u1", Username: "ada"},
	}}, 0, 0)

	r := gin.New()
	srv.RegisterRoutes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		mgr.Close()
		ts.Close()
	})
	return mgr, ts
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readFrame(t *testing.T, c *websocket.Conn) *Message {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("parse %q: %v", data, err)
	}
	return msg
}

func writeFrame(t *testing.T, c *websocket.Conn, raw string) {
	t.Helper()
	if err := c.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func onlyConn(t *testing.T, mgr *ConnManager) *Conn {
	t.Helper()
	mgr.connsMu.RLock()
	defer mgr.connsMu.RUnlock()
	if len(mgr.conns) != 1 {
		t.Fatalf("registered conns = %d, want 1", len(mgr.conns))
	}
	for _, c := range mgr.conns {
		return c
	}
	return nil
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPingPong(t *testing.T) {
	_, ts := newTestGateway(t)
	c := dialWS(t, ts, "")

	writeFrame(t, c, `{"type":"ping"}`)
	if msg := readFrame(t, c); msg.Type != TypePong {
		t.Fatalf("reply = %s, want pong", msg.Type)
	}
}

func TestInBandAuthenticateSuccess(t *testing.T) {
	mgr, ts := newTestGateway(t)
	c := dialWS(t, ts, "")

	writeFrame(t, c, `{"type":"authenticate","payload":{"token":"good-token"}}`)

	msg := readFrame(t, c)
	if msg.Type != TypeAuthResult {
		t.Fatalf("first reply = %s, want authentication_result", msg.Type)
	}
	if ok, _ := msg.PayloadMap()["success"].(bool); !ok {
		t.Fatalf("auth result = %v, want success", msg.PayloadMap())
	}

	// first connection of the user announces the presence transition
	msg = readFrame(t, c)
	if msg.Type != TypeUserOnline || msg.PayloadMap()["user_id"] != "u1" {
		t.Fatalf("second frame = %s %v, want user_online for u1", msg.Type, msg.PayloadMap())
	}
	if !mgr.IsOnline("u1") {
		t.Fatalf("u1 not online after authenticate")
	}
}

func TestInBandAuthenticateFailureKeepsConnection(t *testing.T) {
	mgr, ts := newTestGateway(t)
	c := dialWS(t, ts, "")

	writeFrame(t, c, `{"type":"authenticate","payload":{"token":"bogus"}}`)
	msg := readFrame(t, c)
	if msg.Type != TypeAuthResult {
		t.Fatalf("reply = %s, want authentication_result", msg.Type)
	}
	if ok, _ := msg.PayloadMap()["success"].(bool); ok {
		t.Fatalf("bogus token accepted")
	}
	if mgr.IsOnline("u1") {
		t.Fatalf("u1 online after failed auth")
	}

	// connection must survive the failure
	writeFrame(t, c, `{"type":"ping"}`)
	if msg := readFrame(t, c); msg.Type != TypePong {
		t.Fatalf("reply after failed auth = %s, want pong", msg.Type)
	}
}

func TestMalformedFrameIgnored(t *testing.T) {
	mgr, ts := newTestGateway(t)
	c := dialWS(t, ts, "")
	waitFor(t, func() bool { return mgr.Stats().TotalConnections == 1 }, "registration")

	conn := onlyConn(t, mgr)
	before := conn.LastActivity()

	writeFrame(t, c, `{"type":`)
	writeFrame(t, c, `{"type":"warp_drive"}`)
	time.Sleep(50 * time.Millisecond)
	if !conn.LastActivity().Equal(before) {
		t.Fatalf("malformed frames advanced last_activity")
	}

	writeFrame(t, c, `{"type":"ping"}`)
	if msg := readFrame(t, c); msg.Type != TypePong {
		t.Fatalf("reply = %s, want pong", msg.Type)
	}
	if mgr.Stats().TotalConnections != 1 {
		t.Fatalf("connection dropped on malformed frame")
	}
	if !conn.LastActivity().After(before) {
		t.Fatalf("decodable frame did not advance last_activity")
	}
}

func TestUpgradeTokenResolvesIdentity(t *testing.T) {
	mgr, ts := newTestGateway(t)
	c := dialWS(t, ts, "?token=good-token")

	// the announce broadcast reaches the connection itself
	msg := readFrame(t, c)
	if msg.Type != TypeUserOnline || msg.PayloadMap()["user_id"] != "u1" {
		t.Fatalf("frame = %s %v, want user_online for u1", msg.Type, msg.PayloadMap())
	}
	waitFor(t, func() bool { return mgr.IsOnline("u1") }, "u1 online")
}

func TestUpgradeBadTokenFallsBackToAnonymous(t *testing.T) {
	mgr, ts := newTestGateway(t)
	_ = dialWS(t, ts, "?token=bogus")

	waitFor(t, func() bool { return mgr.Stats().TotalConnections == 1 }, "registration")
	if len(mgr.OnlineUsers()) != 0 {
		t.Fatalf("anonymous conn indexed under a user: %v", mgr.OnlineUsers())
	}
}

func TestStatsEndpoint(t *testing.T) {
	mgr, ts := newTestGateway(t)
	_ = dialWS(t, ts, "?token=good-token")
	waitFor(t, func() bool { return mgr.IsOnline("u1") }, "u1 online")

	resp, err := http.Get(ts.URL + "/api/v1/ws/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var st ConnectionStats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.TotalConnections != 1 || st.UniqueUsers != 1 || st.ConnectionsByUser["u1"] != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	mgr, ts := newTestGateway(t)
	_ = dialWS(t, ts, "")
	waitFor(t, func() bool { return mgr.Stats().TotalConnections == 1 }, "registration")

	body := strings.NewReader(`{"timeout_seconds":0}`)
	resp, err := http.Post(ts.URL+"/api/v1/ws/cleanup", "application/json", body)
	if err != nil {
		t.Fatalf("post cleanup: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		RemovedCount int `json:"removed_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.RemovedCount != 1 {
		t.Fatalf("removed_count = %d, want 1", out.RemovedCount)
	}
	waitFor(t, func() bool { return mgr.Stats().TotalConnections == 0 }, "teardown")
}

func TestNotificationReachesClient(t *testing.T) {
	mgr, ts := newTestGateway(t)
	c := dialWS(t, ts, "?token=good-token")

	if msg := readFrame(t, c); msg.Type != TypeUserOnline {
		t.Fatalf("frame = %s, want user_online", msg.Type)
	}

	mgr.SendToUser("u1", &Message{Type: TypeFileUploaded, Payload: FileUploadedPayload{
		FileID: "f-7", Filename: "a.txt", Size: 12,
	}})
	msg := readFrame(t, c)
	if msg.Type != TypeFileUploaded {
		t.Fatalf("frame = %s, want file_uploaded", msg.Type)
	}
	if got := msg.PayloadMap()["file_id"]; got != "f-7" {
		t.Fatalf("file_id = %v", got)
	}
}

func TestPeerCloseFreesRegistration(t *testing.T) {
	mgr, ts := newTestGateway(t)
	c := dialWS(t, ts, "?token=good-token")
	waitFor(t, func() bool { return mgr.IsOnline("u1") }, "u1 online")

	_ = c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = c.Close()

	waitFor(t, func() bool {
		return !mgr.IsOnline("u1") && mgr.Stats().TotalConnections == 0
	}, "deregistration")
}
