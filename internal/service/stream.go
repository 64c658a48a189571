package service

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is how often pings go out. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// handleEvents upgrades the connection and streams the run's status
// transitions as JSON events. The current status is always sent first; the
// stream closes itself after a terminal status.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := a.lookupRun(w, r)
	if !ok {
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed",
			zap.String("run_id", run.ID), zap.Error(err))
		return
	}

	go a.streamEvents(conn, run.ID)
}

func (a *API) streamEvents(conn *websocket.Conn, runID string) {
	events, unsubscribe := a.hub.Subscribe(runID)
	defer func() {
		unsubscribe()
		_ = conn.Close()
	}()

	// The client never sends data, but control frames still have to be
	// consumed for pong handling and close detection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Snapshot after subscribing so no transition can fall between the two.
	// The request context is gone by now; this read stands on its own.
	run, err := a.ledger.Get(context.Background(), runID)
	if err != nil {
		a.logger.Warn("event stream snapshot failed",
			zap.String("run_id", runID), zap.Error(err))
		return
	}
	snapshot := statusEvent(run.ID, run.Status)
	snapshot.Message = run.Error
	if err := writeEvent(conn, snapshot); err != nil {
		return
	}
	if run.Status.Terminal() {
		closeStream(conn, "run finished")
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case evt, ok := <-events:
			if !ok {
				closeStream(conn, "service shutting down")
				return
			}
			if err := writeEvent(conn, evt); err != nil {
				return
			}
			if evt.Status.Terminal() {
				closeStream(conn, "run finished")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, evt Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(evt)
}

func closeStream(conn *websocket.Conn, reason string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
}
