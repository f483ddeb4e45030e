/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Quote battle transport
//
// Every websocket at {prefix}/ws is one client. The server greets it with a
// generated client id, then reads JSON commands (create, join, start, answer,
// quit, restart) and hands them to the game engine. Everything the engine
// sends the client is queued on its channel and written out by a single
// writer goroutine.
//
// Routes:
//   - {prefix}/ws                → websocket
//   - {prefix}/trivia/:gameid    → JSON snapshot of a game
//   - {prefix}/trivia/:gameid/qr → PNG QR code for that game URL

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/quotebattle/games/trivia"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 4096
	sendBuffer   = 32
	qrSize       = 320
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection.
type Client struct {
	conn *websocket.Conn
	send chan any
	id   string
}

func serveWS(cfg *Config, engine *trivia.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Websocket upgrade from %s failed: %v", realIP(r), err)
			return
		}

		c := &Client{
			conn: conn,
			send: make(chan any, sendBuffer),
		}

		c.id, err = engine.Connect(c.send)
		if err != nil {
			errorf("Registering client from %s failed: %v", realIP(r), err)
			_ = conn.Close()
			return
		}

		logf(cfg, "SERVE: Websocket for %s opened from %s", c.id, realIP(r))

		go c.writePump()
		c.readPump(r.Context(), cfg, engine)

		logf(cfg, "SERVE: Websocket for %s closed", c.id)
	}
}

// readPump feeds inbound frames to the engine until the connection drops,
// then takes the client out of every game.
func (c *Client) readPump(ctx context.Context, cfg *Config, engine *trivia.Engine) {
	defer func() {
		engine.Disconnect(c.id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logf(cfg, "ERROR: Reading from %s: %v", c.id, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		cmd, err := trivia.ParseCommand(data)
		if err != nil {
			engine.Reject(c.id, cmd.Type, err)
			continue
		}

		// Rejections have already been sent back to the client.
		_ = engine.Handle(ctx, c.id, cmd)
	}
}

// writePump is the only writer on the connection. It stops when the
// registry closes the channel.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return w.Write(append(data, '\n'))
}

func serveSession(cfg *Config, engine *trivia.Engine, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		gameID := ps.ByName("gameid")

		snap, err := engine.Lookup(gameID)
		if err != nil {
			if _, err := writeJSON(cfg, w, http.StatusNotFound, trivia.Convert(err)); err != nil {
				errs <- err
			}
			return
		}

		written, err := writeJSON(cfg, w, http.StatusOK, snap)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Game %s (%s) to %s in %s",
			gameID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveQR renders a PNG QR code pointing at the game URL.
func serveQR(cfg *Config, engine *trivia.Engine, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		gameID := ps.ByName("gameid")

		if _, err := engine.Lookup(gameID); err != nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: QR code for %s (%s) to %s in %s",
			gameID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func registerTriviaGame(cfg *Config, engine *trivia.Engine, path string, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, engine))

	mux.GET(cfg.prefix+path+"/:gameid", serveSession(cfg, engine, errs))

	mux.GET(cfg.prefix+path+"/:gameid/qr", serveQR(cfg, engine, errs))
}
