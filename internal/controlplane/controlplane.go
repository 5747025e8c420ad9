// Package controlplane exposes the coordinator's subscribe/unsubscribe/updateThresholds/query surface over HTTP.
// It holds no pipeline logic of its own; every handler is a thin adapter onto the Coordinator.
package controlplane

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sarayu-io/telemetrymon/internal/mqtt"
	"github.com/sarayu-io/telemetrymon/internal/telemetry"
	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
)

// Coordinator is the subset of MqttCoordinator's control surface the HTTP layer drives.
type Coordinator interface {
	SubscribeToTopic(ctx context.Context, topic string)
	UnsubscribeFromTopic(ctx context.Context, topic string)
	GetLatestLiveMessage(topic string) (telemetry.LatestMessage, bool)
	IsTopicSubscribed(topic string) bool
	UpdateThresholds(ctx context.Context, topic string, newLevels []telemetry.ThresholdLevel)
}

// Server wraps a gorilla/mux router bound to a Coordinator.
type Server struct {
	router      *mux.Router
	coordinator Coordinator
	log         *slog.Logger
}

// New builds a Server with routes registered and ready to serve.
func New(coordinator Coordinator) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		coordinator: coordinator,
		log:         telemetrylog.ForComponent("controlplane"),
	}

	s.router.HandleFunc("/topics/{topic:.+}/subscribe", s.handleSubscribe).Methods(http.MethodPost)
	s.router.HandleFunc("/topics/{topic:.+}/unsubscribe", s.handleUnsubscribe).Methods(http.MethodPost)
	s.router.HandleFunc("/topics/{topic:.+}/latest", s.handleLatest).Methods(http.MethodGet)
	s.router.HandleFunc("/topics/{topic:.+}/subscribed", s.handleSubscribed).Methods(http.MethodGet)
	s.router.HandleFunc("/topics/{topic:.+}/thresholds", s.handleUpdateThresholds).Methods(http.MethodPut)

	return s
}

// ServeHTTP lets Server act as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mqtt.TrimTopic(mux.Vars(r)["topic"])
	s.coordinator.SubscribeToTopic(r.Context(), topic)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mqtt.TrimTopic(mux.Vars(r)["topic"])
	s.coordinator.UnsubscribeFromTopic(r.Context(), topic)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	topic := mqtt.TrimTopic(mux.Vars(r)["topic"])

	msg, ok := s.coordinator.GetLatestLiveMessage(topic)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.writeJSON(w, latestResponse{
		Message:   messageEnvelope{Message: msg.Payload},
		Timestamp: msg.Timestamp,
	})
}

func (s *Server) handleSubscribed(w http.ResponseWriter, r *http.Request) {
	topic := mqtt.TrimTopic(mux.Vars(r)["topic"])
	s.writeJSON(w, subscribedResponse{Subscribed: s.coordinator.IsTopicSubscribed(topic)})
}

func (s *Server) handleUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	topic := mqtt.TrimTopic(mux.Vars(r)["topic"])

	var req updateThresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	levels := make([]telemetry.ThresholdLevel, len(req.Levels))
	for i, l := range req.Levels {
		levels[i] = telemetry.ThresholdLevel{Color: l.Color, Value: l.Value, ResetValue: l.ResetValue}
	}

	s.coordinator.UpdateThresholds(r.Context(), topic, levels)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.With(telemetrylog.Error(err)).Warn("failed to encode response")
	}
}
