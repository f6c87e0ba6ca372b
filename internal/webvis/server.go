package webvis

import (
	"net/http"

	"openfilter/internal/frame"
)

// Service bundles a Hub and its WebSocket handler behind one RegisterRoutes call.
type Service struct {
	Hub     *Hub
	handler *Handler
}

// NewService creates a webvis Service with a fresh Hub.
func NewService() *Service {
	hub := NewHub()
	return &Service{Hub: hub, handler: NewHandler(hub)}
}

// RegisterRoutes registers the webvis WebSocket route on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
}

// FilterSink publishes a tick's frame set into the hub under one filter id.
// Its Publish method matches worker.Pub's signature structurally, so a
// *FilterSink can be handed to worker.New or Worker.SetMetricsPublisher
// without webvis importing the worker package.
type FilterSink struct {
	hub      *Hub
	filterID string
}

// Sink returns a FilterSink that forwards every topic in a published tick
// for filterID into the hub, for wiring as a worker's metrics-sidecar or
// tee publisher (see cmd/openfilter-run).
func (s *Service) Sink(filterID string) *FilterSink {
	return &FilterSink{hub: s.Hub, filterID: filterID}
}

// Publish fans every topic in set out to the hub as an individual Sample.
func (s *FilterSink) Publish(set frame.Set) {
	for topic, f := range set {
		s.hub.Publish(Sample{FilterID: s.filterID, Topic: topic, Frame: f})
	}
}
