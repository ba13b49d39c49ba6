package impl_http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	port_ledger "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/ledger"
	port_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/transfer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	transfer port_transfer.TransferUseCase
	status   port_transfer.GetStatusUseCase
	ledger   port_ledger.Client
	checks   map[string]HealthCheck
	logger   *zap.Logger
}

type errorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"traceId,omitempty"`
}

type accountsResponse struct {
	Accounts []port_ledger.AccountBalance `json:"accounts"`
}

func (h *handlers) createTransfer(w http.ResponseWriter, r *http.Request) {
	correlationID := correlationIDFrom(r)
	w.Header().Set(HeaderCorrelationID, correlationID)

	var in port_transfer.TransferInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", TraceID: correlationID})
		return
	}

	in.CorrelationID = correlationID
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" && in.IdempotencyKey == "" {
		in.IdempotencyKey = key
	}

	out, err := h.transfer.Execute(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, out)
}

func (h *handlers) transferStatus(w http.ResponseWriter, r *http.Request) {
	correlationID := correlationIDFrom(r)
	w.Header().Set(HeaderCorrelationID, correlationID)

	out, err := h.status.Execute(r.Context(), port_transfer.GetStatusInput{
		TransactionID: chi.URLParam(r, "transactionId"),
		CorrelationID: correlationID,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, out)
}

func (h *handlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.GetAccounts(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if accounts == nil {
		accounts = []port_ledger.AccountBalance{}
	}

	respondJSON(w, http.StatusOK, accountsResponse{Accounts: accounts})
}

func (h *handlers) accountBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.GetBalance(r.Context(), chi.URLParam(r, "accountNumber"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, balance)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Error("health check failed", zap.String("component", name), zap.Error(err))
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}

	respondJSON(w, status, map[string]any{"status": overall, "components": components})
}

// writeDomainError maps the typed use case errors onto HTTP statuses.
func (h *handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var typed *domain_transfer.Error
	if !errors.As(err, &typed) {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	writeError(w, statusFor(typed), errorResponse{Error: typed.Message, TraceID: typed.TraceID})
}

func statusFor(err *domain_transfer.Error) int {
	switch err.Kind {
	case domain_transfer.KindRejected:
		return http.StatusConflict
	case domain_transfer.KindNotFound:
		return http.StatusNotFound
	case domain_transfer.KindRemoteFailure:
		if err.StatusCode >= 400 && err.StatusCode < 600 {
			return err.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func correlationIDFrom(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(HeaderCorrelationID)); id != "" {
		return id
	}
	return middleware.GetReqID(r.Context())
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	respondJSON(w, status, body)
}
