/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/quotebattle/games/trivia"
)

// frame is the union of every outbound message.
type frame struct {
	Type          string         `json:"type"`
	ClientID      string         `json:"clientId"`
	Game          trivia.Session `json:"game"`
	Command       string         `json:"command"`
	Code          trivia.Code    `json:"code"`
	Answer        string         `json:"answer"`
	Correct       bool           `json:"correct"`
	CorrectAnswer string         `json:"correctAnswer"`
	Awarded       int            `json:"awarded"`
	Outcome       trivia.Outcome `json:"outcome"`

	raw []byte
}

type testServer struct {
	*httptest.Server
	engine *trivia.Engine
}

func startServer(t *testing.T, rounds int) *testServer {
	t.Helper()

	cfg := &Config{metrics: true, quoteSource: quoteSourceLocal}
	reg := prometheus.NewRegistry()

	engine := trivia.NewEngine(trivia.Config{
		Provider: trivia.NewLocalProvider(trivia.LocalConfig{
			Quotes: []trivia.Quote{{Text: "Say my name.", Speaker: "Walter White"}},
		}),
		RoundQuota: rounds,
		Metrics:    trivia.NewMetrics(reg),
	})

	srv := httptest.NewServer(newMux(cfg, engine, reg, make(chan error, 64)))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, engine: engine}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func (s *testServer) dial(t *testing.T) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{t: t, conn: conn}

	hello := c.read("connect")
	require.NotEmpty(t, hello.ClientID)
	c.id = hello.ClientID

	return c
}

func (c *wsClient) send(v any) {
	c.t.Helper()

	require.NoError(c.t, c.conn.WriteJSON(v))
}

func (c *wsClient) read(want string) frame {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)

	var f frame
	require.NoError(c.t, json.Unmarshal(data, &f))
	f.raw = data

	require.Equalf(c.t, want, f.Type, "frame: %s", data)

	return f
}

func (s *testServer) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := s.Client().Get(s.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, body
}

func TestWebsocket_Game(t *testing.T) {
	s := startServer(t, 2)
	a, b := s.dial(t), s.dial(t)
	require.NotEqual(t, a.id, b.id)

	a.send(map[string]any{"type": "create"})
	created := a.read("create")
	gameID := created.Game.ID
	require.NotEmpty(t, gameID)
	require.Equal(t, 2, created.Game.RemainingRounds)

	a.send(map[string]any{"type": "join", "gameId": gameID})
	a.read("join")

	// older clients send the whole game back; only its id is used
	b.send(map[string]any{"type": "join", "clientId": a.id, "game": map[string]any{"id": gameID, "participants": []any{}}})
	for _, c := range []*wsClient{a, b} {
		joined := c.read("join")
		require.Len(t, joined.Game.Participants, 2)
		require.Equal(t, b.id, joined.Game.Participants[1].ID)
		require.Equal(t, trivia.StateActive, joined.Game.State)
	}

	b.send(map[string]any{"type": "start", "gameId": gameID})
	for _, c := range []*wsClient{a, b} {
		update := c.read("update")
		require.Equal(t, 1, update.Game.RemainingRounds)
		require.Equal(t, "Say my name.", update.Game.CurrentQuestion.Prompt)
		require.NotContains(t, string(update.raw), "correctAnswer")
	}

	// out of turn
	b.send(map[string]any{"type": "answer", "gameId": gameID, "answer": "Walter White"})
	require.Equal(t, trivia.CodeNotYourTurn, b.read("error").Code)

	a.send(map[string]any{"type": "answer", "gameId": gameID, "answer": "Walter White"})
	for _, c := range []*wsClient{a, b} {
		res := c.read("result")
		require.True(t, res.Correct)
		require.Equal(t, 100, res.Awarded)
		require.Equal(t, "Walter White", res.CorrectAnswer)
		c.read("update")
	}

	b.send(map[string]any{"type": "answer", "gameId": gameID, "answer": "Badger"})
	for _, c := range []*wsClient{a, b} {
		res := c.read("result")
		require.False(t, res.Correct)

		fin := c.read("finish")
		require.Equal(t, trivia.StateFinished, fin.Game.State)
		require.Equal(t, a.id, fin.Outcome.WinnerID)
		require.False(t, fin.Outcome.Draw)
	}

	a.send(map[string]any{"type": "restart", "gameId": gameID})
	for _, c := range []*wsClient{a, b} {
		update := c.read("update")
		require.Zero(t, update.Game.Participants[0].Score)
		require.True(t, update.Game.Participants[0].HasTurn)
	}
}

func TestWebsocket_MalformedFramesKeepTheConnection(t *testing.T) {
	s := startServer(t, 3)
	a := s.dial(t)

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte("hello?")))
	require.Equal(t, trivia.CodeMalformedCommand, a.read("error").Code)

	a.send(map[string]any{"type": "join"})
	rej := a.read("error")
	require.Equal(t, trivia.CodeMalformedCommand, rej.Code)
	require.Equal(t, "join", rej.Command)

	a.send(map[string]any{"type": "moonwalk"})
	require.Equal(t, trivia.CodeUnknownCommand, a.read("error").Code)

	a.send(map[string]any{"type": "join", "gameId": "missing"})
	require.Equal(t, trivia.CodeUnknownSession, a.read("error").Code)

	a.send(map[string]any{"type": "create"})
	a.read("create")
}

func TestWebsocket_DisconnectLeavesGames(t *testing.T) {
	s := startServer(t, 3)
	a, b := s.dial(t), s.dial(t)

	a.send(map[string]any{"type": "create"})
	gameID := a.read("create").Game.ID

	a.send(map[string]any{"type": "join", "gameId": gameID})
	a.read("join")
	b.send(map[string]any{"type": "join", "gameId": gameID})
	a.read("join")
	b.read("join")

	require.NoError(t, a.conn.Close())

	quit := b.read("quit")
	require.Equal(t, a.id, quit.ClientID)

	snap, err := s.engine.Lookup(gameID)
	require.NoError(t, err)
	require.Len(t, snap.Participants, 1)

	require.NoError(t, b.conn.Close())

	require.Eventually(t, func() bool {
		_, err := s.engine.Lookup(gameID)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHTTP_Session(t *testing.T) {
	s := startServer(t, 3)
	a := s.dial(t)

	a.send(map[string]any{"type": "create"})
	gameID := a.read("create").Game.ID

	resp, body := s.get(t, "/trivia/"+gameID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

	var snap trivia.Session
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Equal(t, gameID, snap.ID)
	require.Equal(t, trivia.StateEmpty, snap.State)

	resp, body = s.get(t, "/trivia/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.JSONEq(t, `{"code":"unknown_session","message":"game \"nope\" not found"}`, string(body))

	resp, body = s.get(t, "/trivia/"+gameID+"/qr")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	require.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))

	resp, _ = s.get(t, "/trivia/nope/qr")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_Ambient(t *testing.T) {
	s := startServer(t, 3)
	s.dial(t)

	tests := map[string]struct {
		path string
		want string
	}{
		"health":  {path: "/healthz", want: "Ok"},
		"version": {path: "/version", want: "quotebattle v" + releaseVersion},
		"robots":  {path: "/robots.txt", want: "Disallow: /"},
		"metrics": {path: "/metrics", want: "quotebattle_connections 1"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp, body := s.get(t, tt.path)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, string(body), tt.want)
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		})
	}
}

func TestNewProvider_Local(t *testing.T) {
	p := newProvider(&Config{quoteSource: quoteSourceLocal, fetchAttempts: 2, fetchTimeout: time.Second})

	q, err := p.FetchQuestion(context.Background())
	require.NoError(t, err)
	require.Len(t, q.Options, trivia.OptionCount)
	require.Contains(t, q.Options, q.CorrectAnswer)
}

func TestNewProvider_APIRetries(t *testing.T) {
	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `[{"quote":"Tread lightly.","author":"Walter White"}]`)
	}))
	t.Cleanup(api.Close)

	p := newProvider(&Config{
		quoteSource:   quoteSourceAPI,
		quoteURL:      api.URL,
		fetchAttempts: 2,
		fetchTimeout:  time.Second,
	})

	q, err := p.FetchQuestion(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Tread lightly.", q.Prompt)
	require.Equal(t, int32(2), calls.Load())
}

func TestHumanReadableSize(t *testing.T) {
	tests := map[int64]string{
		0:             "0 B",
		999:           "999 B",
		1000:          "1.0 kB",
		1500:          "1.5 kB",
		2_500_000:     "2.5 MB",
		7_000_000_000: "7.0 GB",
	}

	for in, want := range tests {
		assert.Equal(t, want, humanReadableSize(in), in)
	}
}
