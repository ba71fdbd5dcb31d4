package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hamta/tarabar/internal/dispatch"
	"github.com/hamta/tarabar/internal/model"
	"github.com/hamta/tarabar/internal/orders"
	"github.com/hamta/tarabar/internal/store"
	"github.com/hamta/tarabar/pkg/gateway"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the operator-facing HTTP server. It exposes health and metrics
// plus a small JSON API for the manual parts of the flow: sending a shipment
// to a provider, tracking, cancellation and triggering an ingestion sweep.
type Server struct {
	port       int
	store      store.Store
	dispatcher *dispatch.Service
	poller     *orders.Poller
	logger     *otelzap.Logger
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(cfg Config, st store.Store, dispatcher *dispatch.Service, poller *orders.Poller, logger *otelzap.Logger) *Server {
	return &Server{
		port:       cfg.Port,
		store:      st,
		dispatcher: dispatcher,
		poller:     poller,
		logger:     logger,
	}
}

// Handler builds the request mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/providers", s.handleListProviders)
	mux.HandleFunc("GET /api/providers/{id}/void-reasons", s.handleVoidReasons)
	mux.HandleFunc("GET /api/shipments/{id}", s.handleGetShipment)
	mux.HandleFunc("POST /api/shipments/{id}/send", s.handleSendShipment)
	mux.HandleFunc("GET /api/shipments/{id}/tracking", s.handleTrackShipment)
	mux.HandleFunc("POST /api/shipments/{id}/cancel", s.handleCancelShipment)

	return mux
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type ingestResponse struct {
	JobsEnqueued int `json:"jobs_enqueued"`
}

type sendShipmentRequest struct {
	ProviderID int64 `json:"provider_id"`
}

type cancelShipmentRequest struct {
	ReasonID int `json:"reason_id"`
}

type cancelShipmentResponse struct {
	Cancelled bool `json:"cancelled"`
}

type voidReasonResponse struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type providerResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	IsActive bool   `json:"is_active"`
}

type shipmentResponse struct {
	ID                     int64      `json:"id"`
	ReceptorID             int64      `json:"receptor_id"`
	SystemOrderID          string     `json:"system_order_id"`
	SourceOrderID          string     `json:"source_order_id"`
	CustomerName           string     `json:"customer_name"`
	DestinationCity        string     `json:"destination_city"`
	Mobile                 string     `json:"mobile"`
	TotalPrice             float64    `json:"total_price"`
	Status                 string     `json:"status"`
	ProviderID             int64      `json:"provider_id,omitempty"`
	ProviderTrackingNumber string     `json:"provider_tracking_number,omitempty"`
	ProviderOrderID        string     `json:"provider_order_id,omitempty"`
	SentToProviderAt       *time.Time `json:"sent_to_provider_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

type trackingResponse struct {
	TrackingNumber string          `json:"tracking_number"`
	Status         string          `json:"status"`
	Events         []trackingEvent `json:"events,omitempty"`
}

type trackingEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	n, err := s.poller.RunOnce(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusAccepted, ingestResponse{JobsEnqueued: n})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	providers, err := s.store.ListProviders(r.Context(), activeOnly)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	out := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, providerResponse{
			ID:       p.ID,
			Name:     p.Name,
			Code:     p.Code,
			IsActive: p.IsActive,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVoidReasons(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	reasons, err := s.dispatcher.VoidReasons(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := make([]voidReasonResponse, 0, len(reasons))
	for _, reason := range reasons {
		out = append(out, voidReasonResponse{ID: reason.ID, Title: reason.Title})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	shipment, err := s.store.GetShipment(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, shipmentView(shipment))
}

func (s *Server) handleSendShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req sendShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "")
		return
	}
	if req.ProviderID == 0 {
		s.writeError(w, http.StatusBadRequest, "provider_id is required", "provider_id")
		return
	}

	if _, err := s.dispatcher.SendToProvider(r.Context(), id, req.ProviderID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	shipment, err := s.store.GetShipment(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, shipmentView(shipment))
}

func (s *Server) handleTrackShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	info, err := s.dispatcher.Track(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := trackingResponse{
		TrackingNumber: info.TrackingNumber,
		Status:         info.Status,
	}
	for _, ev := range info.Events {
		out.Events = append(out.Events, trackingEvent{
			Timestamp:   ev.Timestamp,
			Description: ev.Description,
			Location:    ev.Location,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancelShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req cancelShipmentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "")
			return
		}
	}

	cancelled, err := s.dispatcher.Cancel(r.Context(), id, req.ReasonID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cancelShipmentResponse{Cancelled: cancelled})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid id", "id")
		return 0, false
	}
	return id, true
}

// writeDomainError maps service layer errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, dispatch.ErrProviderInactive),
		errors.Is(err, dispatch.ErrProviderNotAuthorized),
		errors.Is(err, dispatch.ErrNotSent):
		s.writeError(w, http.StatusConflict, err.Error(), "")
	case gateway.IsValidation(err):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error(), "")
	default:
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			s.writeError(w, http.StatusBadGateway, err.Error(), "")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, field string) {
	s.writeJSON(w, status, errorResponse{Error: msg, Field: field})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func shipmentView(sh *model.Shipment) shipmentResponse {
	return shipmentResponse{
		ID:                     sh.ID,
		ReceptorID:             sh.ReceptorID,
		SystemOrderID:          sh.SystemOrderID,
		SourceOrderID:          sh.SourceOrderID,
		CustomerName:           sh.CustomerFullName(),
		DestinationCity:        sh.DestinationCity,
		Mobile:                 sh.Mobile,
		TotalPrice:             sh.TotalPrice,
		Status:                 string(sh.Status),
		ProviderID:             sh.ProviderID,
		ProviderTrackingNumber: sh.ProviderTrackingNumber,
		ProviderOrderID:        sh.ProviderOrderID,
		SentToProviderAt:       sh.SentToProviderAt,
		CreatedAt:              sh.CreatedAt,
	}
}
