package impl_http

import (
	"context"
	"net/http"
	"time"

	port_ledger "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/ledger"
	port_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/transfer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	HeaderCorrelationID = "X-Correlation-ID"

	healthProbeTimeout = 2 * time.Second
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterDependencies struct {
	Transfer port_transfer.TransferUseCase
	Status   port_transfer.GetStatusUseCase
	Ledger   port_ledger.Client
	Health   map[string]HealthCheck
}

func NewRouter(logger *zap.Logger, deps RouterDependencies) http.Handler {
	h := &handlers{
		transfer: deps.Transfer,
		status:   deps.Status,
		ledger:   deps.Ledger,
		checks:   deps.Health,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/transfers", func(r chi.Router) {
		r.Post("/", h.createTransfer)
		r.Get("/{transactionId}/status", h.transferStatus)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Get("/{accountNumber}/balance", h.accountBalance)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}
