// Package server exposes the prediction pipeline over HTTP. It owns only
// the request/response shapes; selection, validation, inference, and
// attribution all happen inside the pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"nodule-risk/internal/artifact"
	"nodule-risk/internal/assemble"
	"nodule-risk/internal/model"
	"nodule-risk/internal/predict"
	"nodule-risk/internal/registry"
	"nodule-risk/internal/storage"
)

// EventPublisher receives one event per served prediction. Nil-safe at
// the call site; the dashboard implements it.
type EventPublisher interface {
	Publish(e PredictionEvent)
}

// PredictionEvent is the live-feed shape consumed by the dashboard.
type PredictionEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Tier        string    `json:"tier"`
	Diameter    float64   `json:"diameter"`
	Probability float64   `json:"probability"`
	Band        string    `json:"band"`
	Message     string    `json:"message"`
	Explained   bool      `json:"explained"`
}

// Server provides the HTTP API for risk predictions.
type Server struct {
	pipeline    *predict.Pipeline
	reg         *registry.Registry
	tiers       []artifact.TierInfo
	store       *storage.Store
	publisher   EventPublisher
	attribution bool
	server      *http.Server
}

// PredictRequest is the incoming prediction request.
type PredictRequest struct {
	Diameter float64            `json:"diameter"`
	Features map[string]float64 `json:"features"`
	Explain  bool               `json:"explain"`
}

// AttributionEntry is one (feature, value, contribution) triple, in
// schema order.
type AttributionEntry struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// PredictResponse is the prediction result.
type PredictResponse struct {
	Probability  float64            `json:"probability"`
	Band         string             `json:"band"`
	Message      string             `json:"message"`
	ModelTier    string             `json:"model_tier"`
	BaseValue    *float64           `json:"base_value,omitempty"`
	Attributions []AttributionEntry `json:"attributions,omitempty"`
	Latency      float64            `json:"latency_ms"`
	Timestamp    time.Time          `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Config carries the server's collaborators. Store and Publisher are
// optional; Attribution globally gates explanation requests.
type Config struct {
	Pipeline    *predict.Pipeline
	Registry    *registry.Registry
	Tiers       []artifact.TierInfo
	Store       *storage.Store
	Publisher   EventPublisher
	Attribution bool
	Port        int
	Timeout     time.Duration
}

// New creates the API server.
func New(c Config) *Server {
	s := &Server{
		pipeline:    c.Pipeline,
		reg:         c.Registry,
		tiers:       c.Tiers,
		store:       c.Store,
		publisher:   c.Publisher,
		attribution: c.Attribution,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/model/info", s.handleModelInfo)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", c.Port),
		Handler:      mux,
		ReadTimeout:  timeout * 2,
		WriteTimeout: timeout * 2,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	explain := req.Explain && s.attribution
	result, explanation, err := s.pipeline.Predict(req.Diameter, assemble.Record(req.Features), explain)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	resp := PredictResponse{
		Probability: result.Probability,
		Band:        result.Band.String(),
		Message:     result.Band.Message(),
		ModelTier:   string(result.Tier),
		Latency:     float64(time.Since(start).Milliseconds()),
		Timestamp:   time.Now(),
	}
	if explanation != nil {
		base := explanation.BaseValue
		resp.BaseValue = &base
		resp.Attributions = make([]AttributionEntry, len(explanation.Contributions))
		for i, c := range explanation.Contributions {
			resp.Attributions[i] = AttributionEntry{
				Feature:      c.Feature,
				Value:        c.Value,
				Contribution: c.Contribution,
			}
		}
	}

	s.record(req, resp)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writePipelineError maps the pipeline error taxonomy onto HTTP statuses:
// input errors are the caller's problem, everything else is a defect.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var (
		rangeErr   *registry.OutOfRangeError
		missingErr *assemble.MissingFeatureError
		domainErr  *assemble.DomainError
		shapeErr   *model.ShapeMismatchError
	)
	switch {
	case errors.As(err, &rangeErr), errors.As(err, &missingErr), errors.As(err, &domainErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &shapeErr):
		log.Error().Err(err).Msg("schema/model pairing defect")
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		log.Error().Err(err).Msg("prediction failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// record persists and broadcasts the served prediction, best effort.
func (s *Server) record(req PredictRequest, resp PredictResponse) {
	if s.store != nil {
		err := s.store.StorePrediction(storage.PredictionRecord{
			Tier:        resp.ModelTier,
			Diameter:    req.Diameter,
			Probability: resp.Probability,
			Band:        resp.Band,
			Explained:   resp.Attributions != nil,
			Ts:          resp.Timestamp,
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to persist prediction record")
		}
	}
	if s.publisher != nil {
		s.publisher.Publish(PredictionEvent{
			Timestamp:   resp.Timestamp,
			Tier:        resp.ModelTier,
			Diameter:    req.Diameter,
			Probability: resp.Probability,
			Band:        resp.Band,
			Message:     resp.Message,
			Explained:   resp.Attributions != nil,
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type tierHealth struct {
		Tier     string `json:"tier"`
		Loaded   bool   `json:"loaded"`
		Features int    `json:"features"`
	}
	health := struct {
		Healthy bool         `json:"healthy"`
		Tiers   []tierHealth `json:"tiers"`
	}{Healthy: true}

	for _, e := range s.reg.Entries() {
		health.Tiers = append(health.Tiers, tierHealth{
			Tier:     string(e.Tier),
			Loaded:   e.Model != nil,
			Features: e.Schema.Len(),
		})
		if e.Model == nil {
			health.Healthy = false
		}
	}

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.tiers)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
