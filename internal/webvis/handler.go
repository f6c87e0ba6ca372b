package webvis

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// wireSample is the JSON shape pushed to a browser client: a topic's frame
// data/meta, flattened so a dashboard script needs no knowledge of the Go
// frame.Frame type.
type wireSample struct {
	FilterID string         `json:"filter_id"`
	Topic    string         `json:"topic"`
	Meta     map[string]any `json:"meta"`
	Data     map[string]any `json:"data"`
}

// Handler upgrades GET /ws/{filter_id} requests and streams every topic
// sample published into the hub for that filter until the client disconnects.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler fed by hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			// The dashboard is a same-origin diagnostic tool, not a public API;
			// origin checking is left to whatever reverse proxy fronts it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles the WebSocket upgrade and streams samples for the filter
// id named by the request path. Endpoint: GET /ws/{filter_id}
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	filterID := strings.TrimPrefix(r.URL.Path, "/ws/")
	if filterID == r.URL.Path || filterID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, unsubscribe := h.hub.Subscribe(filterID)
	defer unsubscribe()

	for sample := range ch {
		wire := wireSample{
			FilterID: sample.FilterID,
			Topic:    sample.Topic,
			Meta:     sample.Frame.Meta,
			Data:     sample.Frame.Data,
		}
		payload, err := json.Marshal(wire)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// RegisterRoutes registers the webvis WebSocket route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/", h.ServeHTTP)
}
