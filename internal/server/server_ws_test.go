package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"taboo/internal/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wsReadTimeout = 2 * time.Second

func dialRoom(t *testing.T, app *testApp, code, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(app.ts.URL, "http") + "/ws/rooms/" + code
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial websocket: %v (status %d)", err, status)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	return msg
}

// readUntilType skips messages until one of the given type arrives.
func readUntilType(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if msg["type"] == typ {
			return msg
		}
	}
}

// expectClose drains the connection until the server closes it and checks
// the close code.
func expectClose(t *testing.T, conn *websocket.Conn, code int) *websocket.CloseError {
	t.Helper()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		if !errors.As(err, &closeErr) {
			t.Fatalf("expected close frame %d, got %v", code, err)
		}
		if closeErr.Code != code {
			t.Fatalf("expected close code %d, got %d (%s)", code, closeErr.Code, closeErr.Text)
		}
		return closeErr
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	_ = conn.SetWriteDeadline(time.Now().Add(wsReadTimeout))
	require.NoError(t, conn.WriteJSON(msg))
}

func payloadOf(msg map[string]any) map[string]any {
	payload, _ := msg["payload"].(map[string]any)
	return payload
}

func TestWebsocketRejectsBadCredentials(t *testing.T) {
	app := newTestApp(t)
	code := createRoom(t, app.ts, app.token(t, "alice", "Alice"), nil)

	closeErr := expectClose(t, dialRoom(t, app, code, ""), closeUnauthorized)
	assert.Equal(t, "missing_token", closeErr.Text)

	expectClose(t, dialRoom(t, app, code, "not-a-token"), closeUnauthorized)

	closeErr = expectClose(t, dialRoom(t, app, "ZZZZZZ", app.token(t, "bob", "Bob")), closeNotFound)
	assert.Equal(t, "room_not_found", closeErr.Text)
}

func TestWebsocketSnapshotComesFirst(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "alice", "Alice")
	code := createRoom(t, app.ts, alice, nil)

	conn := dialRoom(t, app, strings.ToLower(code), alice)
	first := readMessage(t, conn)
	require.Equal(t, "snapshot", first["type"])
	state := first["state"].(map[string]any)
	assert.Equal(t, "alice", state["you"])
	assert.Equal(t, code, state["room"].(map[string]any)["code"])
	snapSeq := first["seq"].(float64)

	joinRoom(t, app.ts, app.token(t, "bob", "Bob"), code)
	joined := readUntilType(t, conn, "player_joined")
	assert.Greater(t, joined["seq"].(float64), snapSeq)
	assert.Equal(t, "bob", payloadOf(joined)["player"].(map[string]any)["id"])
	assert.Equal(t, 1, app.hub.Count())
}

func TestWebsocketObserverJoinsAndPlays(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "alice", "Alice")
	bob := app.token(t, "bob", "Bob")
	code := createRoom(t, app.ts, alice, nil)

	aliceConn := dialRoom(t, app, code, alice)
	readUntilType(t, aliceConn, "snapshot")
	bobConn := dialRoom(t, app, code, bob)
	readUntilType(t, bobConn, "snapshot")

	send(t, bobConn, map[string]any{"type": "guess", "text": "early", "request_id": "b0"})
	rejected := readUntilType(t, bobConn, "action_rejected")
	assert.Equal(t, "b0", rejected["request_id"])
	assert.Equal(t, "not_a_player", rejected["code"])

	send(t, bobConn, map[string]any{"type": "join", "request_id": "b1"})
	ack := readUntilType(t, bobConn, "ack")
	assert.Equal(t, "b1", ack["request_id"])
	assert.Equal(t, "join", ack["action"])

	send(t, bobConn, map[string]any{"type": "start", "request_id": "b2"})
	rejected = readUntilType(t, bobConn, "action_rejected")
	assert.Equal(t, "b2", rejected["request_id"])
	assert.Equal(t, "not_owner", rejected["code"])

	send(t, aliceConn, map[string]any{"type": "start", "request_id": "a1"})
	aliceTurn := payloadOf(readUntilType(t, aliceConn, "turn_changed"))
	word, _ := aliceTurn["word"].(string)
	require.NotEmpty(t, word)
	assert.NotEmpty(t, aliceTurn["forbidden"])
	started := readUntilType(t, aliceConn, "ack")
	assert.Equal(t, "a1", started["request_id"])
	assert.Equal(t, word, started["result"].(map[string]any)["word"])

	bobTurn := payloadOf(readUntilType(t, bobConn, "turn_changed"))
	assert.Equal(t, "alice", bobTurn["explainer"])
	assert.Nil(t, bobTurn["word"])
	assert.Nil(t, bobTurn["forbidden"])

	send(t, bobConn, map[string]any{"type": "guess", "text": "nope", "request_id": "b3"})
	wrong := readUntilType(t, bobConn, "wrong_guess")
	assert.Equal(t, "nope", payloadOf(wrong)["text"])
	ack = readUntilType(t, bobConn, "ack")
	assert.Equal(t, "b3", ack["request_id"])
	assert.Equal(t, false, ack["result"].(map[string]any)["correct"])

	send(t, bobConn, map[string]any{"type": "guess", "text": word, "request_id": "b4"})
	correct := payloadOf(readUntilType(t, aliceConn, "correct_guess"))
	assert.Equal(t, "bob", correct["guesser"])
	assert.Equal(t, word, correct["word"])
	ack = readUntilType(t, bobConn, "ack")
	assert.Equal(t, "b4", ack["request_id"])
	assert.Equal(t, true, ack["result"].(map[string]any)["correct"])
}

func TestWebsocketRejectsOutsidersOnceStarted(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "alice", "Alice")
	code := createRoom(t, app.ts, alice, nil)
	joinRoom(t, app.ts, app.token(t, "bob", "Bob"), code)
	resp := doRequest(t, app.ts, http.MethodPost, "/api/rooms/"+code+"/start", alice, nil)
	expectStatus(t, resp, http.StatusOK)

	closeErr := expectClose(t, dialRoom(t, app, code, app.token(t, "carol", "Carol")), closeForbidden)
	assert.Equal(t, "not_a_player", closeErr.Text)
}

func TestWebsocketInvalidMessages(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "alice", "Alice")
	code := createRoom(t, app.ts, alice, nil)
	conn := dialRoom(t, app, code, alice)
	readUntilType(t, conn, "snapshot")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	rejected := readUntilType(t, conn, "action_rejected")
	assert.Equal(t, "invalid_message", rejected["code"])

	send(t, conn, map[string]any{"type": "dance", "request_id": "x"})
	rejected = readUntilType(t, conn, "action_rejected")
	assert.Equal(t, "unknown_message", rejected["code"])
	assert.Equal(t, "x", rejected["request_id"])

	send(t, conn, map[string]any{"type": "chat", "text": "   "})
	rejected = readUntilType(t, conn, "action_rejected")
	assert.Equal(t, "invalid_message", rejected["code"])
}

func TestWebsocketClosedRoom(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "alice", "Alice")
	bob := app.token(t, "bob", "Bob")
	code := createRoom(t, app.ts, alice, nil)
	joinRoom(t, app.ts, bob, code)

	conn := dialRoom(t, app, code, bob)
	readUntilType(t, conn, "snapshot")

	resp := doRequest(t, app.ts, http.MethodDelete, "/api/rooms/"+code, alice, nil)
	expectStatus(t, resp, http.StatusNoContent)

	closed := readUntilType(t, conn, "room_closed")
	assert.Equal(t, "closed_by_owner", payloadOf(closed)["reason"])
	expectClose(t, conn, closeRoomClosed)
}

func TestWebsocketLeave(t *testing.T) {
	app := newTestApp(t)
	alice := app.token(t, "alice", "Alice")
	bob := app.token(t, "bob", "Bob")
	code := createRoom(t, app.ts, alice, nil)
	joinRoom(t, app.ts, bob, code)

	conn := dialRoom(t, app, code, bob)
	readUntilType(t, conn, "snapshot")
	send(t, conn, map[string]any{"type": "leave", "request_id": "bye"})
	ack := readUntilType(t, conn, "ack")
	assert.Equal(t, "bye", ack["request_id"])
	closeErr := expectClose(t, conn, websocket.CloseNormalClosure)
	assert.Equal(t, "left", closeErr.Text)

	room := decodeBody(t, doRequest(t, app.ts, http.MethodGet, "/api/rooms/"+code, alice, nil))
	assert.Len(t, room["players"], 1)
	assert.False(t, app.srv.presence.Pending(code, "bob"))
}

func TestWebsocketRateLimitCloses(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.ActionsPerSecond = 0.01
		cfg.ActionBurst = 1
	})
	alice := app.token(t, "alice", "Alice")
	code := createRoom(t, app.ts, alice, nil)
	conn := dialRoom(t, app, code, alice)
	readUntilType(t, conn, "snapshot")

	for i := 0; i <= maxRateStrikes; i++ {
		send(t, conn, map[string]any{"type": "chat", "text": "spam"})
	}
	closeErr := expectClose(t, conn, closeRateLimited)
	assert.Equal(t, "rate_limited", closeErr.Text)
}
