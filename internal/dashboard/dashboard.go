// Package dashboard provides a live review surface for served
// predictions. It streams one event per prediction to connected
// WebSocket clients and serves a minimal page that renders them;
// richer result rendering belongs to external consumers of the feed.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"nodule-risk/internal/server"
)

// Dashboard broadcasts prediction events to WebSocket clients.
type Dashboard struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]bool
	clientsMu  sync.RWMutex
	broadcast  chan server.PredictionEvent
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a dashboard listening on the given port.
func New(port int) *Dashboard {
	d := &Dashboard{
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan server.PredictionEvent, 100),
		stop:      make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", d.handleIndex).Methods("GET")
	r.HandleFunc("/ws", d.handleWebSocket).Methods("GET")

	d.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return d
}

// Publish implements server.EventPublisher. Events are dropped rather
// than blocking the prediction path when the feed is saturated.
func (d *Dashboard) Publish(e server.PredictionEvent) {
	select {
	case d.broadcast <- e:
	default:
		log.Debug().Msg("dashboard feed saturated, dropping event")
	}
}

// Start runs the broadcast loop and the HTTP server. Blocks until the
// server stops.
func (d *Dashboard) Start() error {
	go d.broadcastLoop()
	log.Info().Str("addr", d.httpServer.Addr).Msg("starting dashboard")
	return d.httpServer.ListenAndServe()
}

// Shutdown stops the broadcast loop and the HTTP server.
func (d *Dashboard) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.stop) })

	d.clientsMu.Lock()
	for conn := range d.clients {
		conn.Close()
	}
	d.clients = make(map[*websocket.Conn]bool)
	d.clientsMu.Unlock()

	return d.httpServer.Shutdown(ctx)
}

func (d *Dashboard) broadcastLoop() {
	for {
		select {
		case <-d.stop:
			return
		case e := <-d.broadcast:
			d.send(e)
		}
	}
}

func (d *Dashboard) send(e server.PredictionEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal dashboard event")
		return
	}

	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()
	for conn := range d.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(d.clients, conn)
		}
	}
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	d.clientsMu.Lock()
	d.clients[conn] = true
	count := len(d.clients)
	d.clientsMu.Unlock()
	log.Info().Int("clients", count).Msg("dashboard client connected")

	// Reader loop only to detect disconnects; clients do not send data.
	go func() {
		defer func() {
			d.clientsMu.Lock()
			delete(d.clients, conn)
			d.clientsMu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Nodule Risk: Live Predictions</title>
<style>
body { font-family: sans-serif; margin: 2em; background: #f0f2f6; }
table { border-collapse: collapse; width: 100%; background: white; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
.low { color: #2e7d32; } .moderate { color: #ef6c00; } .high { color: #c62828; }
</style>
</head>
<body>
<h1>Live Predictions</h1>
<table id="events"><tr><th>Time</th><th>Tier</th><th>Diameter (mm)</th><th>Probability</th><th>Band</th><th>Guidance</th></tr></table>
<script>
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (msg) => {
  const e = JSON.parse(msg.data);
  const row = document.getElementById("events").insertRow(1);
  row.innerHTML = "<td>" + new Date(e.timestamp).toLocaleTimeString() + "</td>" +
    "<td>" + e.tier + "</td><td>" + e.diameter.toFixed(1) + "</td>" +
    "<td>" + (e.probability * 100).toFixed(1) + "%</td>" +
    "<td class='" + e.band + "'>" + e.band + "</td><td>" + e.message + "</td>";
};
</script>
</body>
</html>`))

func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, nil); err != nil {
		log.Error().Err(err).Msg("failed to render dashboard page")
	}
}
