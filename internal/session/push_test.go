package session_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gamemeet/gamemeet/internal/matching"
	"github.com/gamemeet/gamemeet/internal/memstore"
	"github.com/gamemeet/gamemeet/internal/session"
	"github.com/gamemeet/gamemeet/internal/util/slogx"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var pushTokens = map[string]string{
	"tok-alice": "alice",
	"tok-bob":   "bob",
}

type wsMessage struct {
	Method    string              `json:"method"`
	Condition *matching.Criterion `json:"condition,omitempty"`
	RoomID    string              `json:"room_id,omitempty"`
}

type wsFrame struct {
	Message  string `json:"message"`
	Datetime string `json:"datetime"`
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	State    string `json:"state"`
	Error    string `json:"error"`
}

func newPushServer(t *testing.T) (*httptest.Server, *matching.Service) {
	t.Helper()
	svc := matching.NewService(slogx.DiscardLogger(), memstore.New())
	push := session.NewPushServer(
		slogx.DiscardLogger(), svc, session.NewHub(),
		func(token string) (string, error) {
			userID, ok := pushTokens[token]
			if !ok {
				return "", fmt.Errorf("unknown token")
			}
			return userID, nil
		},
		session.Options{RetryInterval: 20 * time.Millisecond},
	)
	mux := http.NewServeMux()
	mux.Handle("/ws/match", push)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func dialPush(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/match?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until one carries the wanted message, skipping
// unrelated ones.
func readUntil(t *testing.T, conn *websocket.Conn, message string) wsFrame {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %q", message)
		if f.Message == message {
			require.NotEmpty(t, f.Datetime)
			return f
		}
	}
}

func TestPushPairScenario(t *testing.T) {
	srv, _ := newPushServer(t)
	alice := dialPush(t, srv, "tok-alice")
	bob := dialPush(t, srv, "tok-bob")
	pair := &matching.Criterion{Topic: "chess", Size: 2}

	require.NoError(t, alice.WriteJSON(wsMessage{Method: "start_wait", Condition: pair}))
	readUntil(t, alice, "waiting started")
	require.NoError(t, bob.WriteJSON(wsMessage{Method: "start_wait", Condition: pair}))
	readUntil(t, bob, "waiting started")

	aliceMatch := readUntil(t, alice, "matching found")
	bobMatch := readUntil(t, bob, "matching found")
	require.NotEmpty(t, aliceMatch.RoomID)
	require.Equal(t, aliceMatch.RoomID, bobMatch.RoomID)
	require.NotEmpty(t, aliceMatch.RoomName)

	require.NoError(t, alice.WriteJSON(wsMessage{Method: "confirm_matching", RoomID: aliceMatch.RoomID}))
	readUntil(t, alice, "confirmed, waiting for others")

	// The room id may be omitted once matched; the session remembers it.
	require.NoError(t, bob.WriteJSON(wsMessage{Method: "confirm_matching"}))

	aliceDone := readUntil(t, alice, "matching complete")
	bobDone := readUntil(t, bob, "matching complete")
	require.Equal(t, aliceMatch.RoomID, aliceDone.RoomID)
	require.Equal(t, aliceMatch.RoomID, bobDone.RoomID)
}

func TestPushStatus(t *testing.T) {
	srv, _ := newPushServer(t)
	alice := dialPush(t, srv, "tok-alice")

	require.NoError(t, alice.WriteJSON(wsMessage{Method: "status"}))
	f := readUntil(t, alice, "status")
	require.Equal(t, "inactive", f.State)

	require.NoError(t, alice.WriteJSON(wsMessage{
		Method:    "start_wait",
		Condition: &matching.Criterion{Topic: "chess", Size: 2},
	}))
	readUntil(t, alice, "waiting started")

	require.NoError(t, alice.WriteJSON(wsMessage{Method: "status"}))
	f = readUntil(t, alice, "status")
	require.Equal(t, "waiting", f.State)
}

func TestPushQuitWait(t *testing.T) {
	srv, svc := newPushServer(t)
	alice := dialPush(t, srv, "tok-alice")

	require.NoError(t, alice.WriteJSON(wsMessage{
		Method:    "start_wait",
		Condition: &matching.Criterion{Topic: "chess", Size: 2},
	}))
	readUntil(t, alice, "waiting started")

	require.NoError(t, alice.WriteJSON(wsMessage{Method: "quit_wait"}))
	readUntil(t, alice, "waiting stopped")

	require.NoError(t, alice.WriteJSON(wsMessage{Method: "status"}))
	f := readUntil(t, alice, "status")
	require.Equal(t, "inactive", f.State)

	req, err := svc.Request(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, matching.StateInactive, req.State)
}

func TestPushWithdrawalCancelsMatch(t *testing.T) {
	srv, _ := newPushServer(t)
	alice := dialPush(t, srv, "tok-alice")
	bob := dialPush(t, srv, "tok-bob")
	pair := &matching.Criterion{Topic: "chess", Size: 2}

	require.NoError(t, alice.WriteJSON(wsMessage{Method: "start_wait", Condition: pair}))
	require.NoError(t, bob.WriteJSON(wsMessage{Method: "start_wait", Condition: pair}))
	aliceMatch := readUntil(t, alice, "matching found")
	readUntil(t, bob, "matching found")

	require.NoError(t, alice.WriteJSON(wsMessage{Method: "confirm_matching", RoomID: aliceMatch.RoomID}))
	readUntil(t, alice, "confirmed, waiting for others")

	require.NoError(t, bob.WriteJSON(wsMessage{Method: "quit_wait"}))
	readUntil(t, bob, "waiting stopped")

	cancelled := readUntil(t, alice, "matching cancelled")
	require.Equal(t, aliceMatch.RoomID, cancelled.RoomID)
}

func TestPushBadMessages(t *testing.T) {
	srv, _ := newPushServer(t)
	alice := dialPush(t, srv, "tok-alice")

	require.NoError(t, alice.WriteJSON(wsMessage{Method: "no_such_method"}))
	f := readUntil(t, alice, "bad message")
	require.NotEmpty(t, f.Error)

	require.NoError(t, alice.WriteJSON(wsMessage{Method: "start_wait"}))
	f = readUntil(t, alice, "bad message")
	require.Equal(t, "missing condition", f.Error)

	require.NoError(t, alice.WriteJSON(wsMessage{
		Method:    "start_wait",
		Condition: &matching.Criterion{Topic: "", Size: 2},
	}))
	readUntil(t, alice, "bad message")
}

func TestPushRejectsBadToken(t *testing.T) {
	srv, _ := newPushServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/match?token=tok-mallory"
	_, rsp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, rsp)
	require.Equal(t, http.StatusUnauthorized, rsp.StatusCode)
}
