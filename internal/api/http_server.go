package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/config"
	"slotbook/internal/confirmation"
	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/grounds"
	"slotbook/internal/metrics"
	"slotbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the booking engine as seen by HTTP handlers.
type Service interface {
	domain.BookingService
	DaySlots(ctx context.Context, date, sport string) ([]availability.SlotView, error)
	AdminDay(ctx context.Context, date string) (*availability.AdminDay, error)
}

// Subscriber feeds the event stream endpoint.
type Subscriber interface {
	Subscribe(eventType string, handler events.EventHandler) func()
}

// HTTPServer exposes the booking JSON API.
type HTTPServer struct {
	cfg     config.APIConfig
	service Service
	grounds *grounds.Registry
	bus     Subscriber
	encoder confirmation.Encoder
	limiter *rateLimiter
	server  *http.Server
	logger  *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	service Service,
	registry *grounds.Registry,
	bus Subscriber,
	encoder confirmation.Encoder,
	logger *zerolog.Logger,
) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if encoder == nil {
		encoder = confirmation.NewQREncoder()
	}

	srv := &HTTPServer{
		cfg:     cfg,
		service: service,
		grounds: registry,
		bus:     bus,
		encoder: encoder,
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.HandleFunc("GET /api/v1/sports", srv.handleSports)
	mux.HandleFunc("GET /api/v1/slots", srv.handleSlots)
	mux.HandleFunc("POST /api/v1/bookings", srv.handleBook)
	mux.HandleFunc("GET /api/v1/bookings/{date}/{batch}", srv.handleBatch)
	mux.HandleFunc("GET /api/v1/bookings/{date}/{batch}/qr.png", srv.handleBatchQR)
	mux.HandleFunc("GET /api/v1/events", srv.handleEvents)

	mux.HandleFunc("GET /api/v1/admin/slots", srv.handleAdminSlots)
	mux.HandleFunc("POST /api/v1/admin/cancel", srv.handleCancel)
	mux.HandleFunc("DELETE /api/v1/admin/bookings/{date}/{id}", srv.handleCancelByID)
	mux.HandleFunc("POST /api/v1/admin/blocks/toggle", srv.handleToggleBlock)
	mux.HandleFunc("POST /api/v1/admin/blocks", srv.handleBlock)
	mux.HandleFunc("DELETE /api/v1/admin/blocks", srv.handleUnblock)
	mux.HandleFunc("GET /api/v1/admin/export", srv.handleExport)

	handler := srv.requestID(srv.loggingMiddleware(srv.limiter.Wrap(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadHeaderTimeoutMs) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutMs) * time.Millisecond,
	}

	return srv
}

// Handler returns the fully wrapped handler, mainly for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type requestIDKey struct{}

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint, strconv.Itoa(recorder.status))

		s.logger.Info().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, models.MaxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.NewValidationError("body", fmt.Sprintf("exceeds %d bytes", tooLarge.Limit))
		}
		return domain.NewValidationError("body", "invalid JSON body")
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the flusher and deadlines.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
