package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tablequeue/internal/config"
	"tablequeue/internal/domain"
	"tablequeue/internal/events"
	"tablequeue/internal/service"

	"github.com/rs/zerolog"
)

// Services bundles what the HTTP surface calls into.
type Services struct {
	Queues    *service.QueueService
	Shops     *service.ShopService
	Customers *service.CustomerService
	Catalog   *service.CatalogService
	Otp       *service.OtpService
	Hub       *events.Hub
	// Health is pinged by /healthz.
	Health interface {
		Ping(ctx context.Context) error
	}
	// Location formats times in exported files.
	Location *time.Location
}

// HTTPServer exposes the queue engine and account operations over HTTP.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger

	keepAlive time.Duration
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if svc.Location == nil {
		svc.Location = time.UTC
	}

	srv := &HTTPServer{
		cfg:       cfg,
		svc:       svc,
		auth:      NewHTTPAuth(cfg),
		logger:    logger,
		keepAlive: 30 * time.Second,
	}

	mux := http.NewServeMux()
	srv.routes(mux)
	handler := loggingMiddleware(logger, srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/queues", s.handleAdmit)
	mux.HandleFunc("GET /api/queues", s.handleListQueues)
	mux.HandleFunc("GET /api/queues/{id}", s.handleGetQueue)
	mux.HandleFunc("GET /api/queues/shop/{shopId}", s.handleListQueuesByShop)
	mux.HandleFunc("GET /api/queues/customer/{customerId}", s.handleListQueuesByCustomer)
	mux.HandleFunc("GET /api/queues/check-nearby/{shopId}", s.handleCheckNearby)
	mux.HandleFunc("GET /api/queues/notify/{shopId}", s.handleNotifyShop)
	mux.HandleFunc("PATCH /api/queues/generate-qr", s.handleConfirmQR)
	mux.HandleFunc("PATCH /api/queues/assign-table", s.handleAssignTable)
	mux.HandleFunc("PATCH /api/queues/free-table", s.handleFreeTable)
	mux.HandleFunc("GET /api/queues/table-status/{shopId}", s.handleTableStatus)
	mux.HandleFunc("GET /api/queues/history/{shopId}", s.handleHistory)
	mux.HandleFunc("GET /api/queues/history/{shopId}/export", s.handleHistoryExport)

	mux.HandleFunc("GET /api/shops/{shopId}/events", s.handleEvents)

	mux.HandleFunc("POST /api/table-types", s.handleCreateTableType)
	mux.HandleFunc("GET /api/table-types", s.handleListTableTypes)
	mux.HandleFunc("GET /api/table-types/{id}", s.handleGetTableType)
	mux.HandleFunc("POST /api/shop-types", s.handleCreateShopType)
	mux.HandleFunc("GET /api/shop-types", s.handleListShopTypes)

	mux.HandleFunc("POST /api/otp/send", s.handleSendOtp)
	mux.HandleFunc("POST /api/otp/verify", s.handleVerifyOtp)

	mux.HandleFunc("POST /api/shops", s.handleRegisterShop)
	mux.HandleFunc("GET /api/shops", s.handleListShops)
	mux.HandleFunc("GET /api/shops/{id}", s.handleGetShop)
	mux.HandleFunc("POST /api/shops/login", s.handleShopLogin)
	mux.HandleFunc("PATCH /api/shops/{id}/phone", s.handleShopPhone)
	mux.HandleFunc("PATCH /api/shops/{id}/email", s.handleShopEmail)
	mux.HandleFunc("PATCH /api/shops/{id}/name", s.handleShopName)
	mux.HandleFunc("PATCH /api/shops/{id}/address", s.handleShopAddress)
	mux.HandleFunc("PATCH /api/shops/{id}/password", s.handleShopPassword)

	mux.HandleFunc("POST /api/customers", s.handleRegisterCustomer)
	mux.HandleFunc("GET /api/customers/{id}", s.handleGetCustomer)
	mux.HandleFunc("GET /api/customers/phone/{phone}", s.handleCustomerByPhone)
	mux.HandleFunc("POST /api/customers/login", s.handleCustomerLogin)
	mux.HandleFunc("PATCH /api/customers/{id}/phone", s.handleCustomerPhone)
	mux.HandleFunc("PATCH /api/customers/{id}/name", s.handleCustomerName)
	mux.HandleFunc("PATCH /api/customers/{id}/email", s.handleCustomerEmail)
	mux.HandleFunc("PATCH /api/customers/{id}/password", s.handleCustomerPassword)
}

// Handler returns the full middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health.Ping(r.Context()); err != nil {
			s.logger.Error().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps the domain error taxonomy onto HTTP status codes.
// Internal errors are logged and their message is not exposed.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		s.logger.Error().Err(err).
			Str("request_id", RequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", domain.ErrInvalidInput)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
