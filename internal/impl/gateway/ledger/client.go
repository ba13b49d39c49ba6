package impl_ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	port_ledger "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	accountPath = "/api/Account"

	defaultTimeout             = 10 * time.Second
	defaultConsecutiveFailures = 5
	defaultBreakerTimeout      = 30 * time.Second
	maxErrorBody               = 64 << 10
)

type Config struct {
	BaseURL string
	Timeout time.Duration

	// Breaker opens after ConsecutiveFailures server-side failures and
	// half-opens again after BreakerTimeout.
	ConsecutiveFailures uint32
	BreakerTimeout      time.Duration
}

// Client calls the account service over HTTP behind a circuit breaker.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ port_ledger.Client = (*Client)(nil)

func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = defaultConsecutiveFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaultBreakerTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ledger",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ledger circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

type accountResponse struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

type updateBalanceRequest struct {
	AccountNumber string          `json:"accountNumber"`
	Value         decimal.Decimal `json:"value"`
	Type          string          `json:"type"`
}

type errorResponse struct {
	Message string `json:"message"`
	Title   string `json:"title"`
	Detail  string `json:"detail"`
}

func (c *Client) GetAccounts(ctx context.Context) ([]port_ledger.AccountBalance, error) {
	var accounts []accountResponse
	if err := c.do(ctx, http.MethodGet, accountPath, nil, &accounts, "Error to get accounts"); err != nil {
		return nil, err
	}

	out := make([]port_ledger.AccountBalance, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, port_ledger.AccountBalance{AccountNumber: a.AccountNumber, Balance: a.Balance})
	}

	return out, nil
}

func (c *Client) GetBalance(ctx context.Context, accountNumber string) (port_ledger.AccountBalance, error) {
	var account accountResponse
	path := accountPath + "/" + url.PathEscape(accountNumber)

	if err := c.do(ctx, http.MethodGet, path, nil, &account,
		fmt.Sprintf("Error to get balance from account N. %s", accountNumber)); err != nil {
		return port_ledger.AccountBalance{}, err
	}

	if account.AccountNumber == "" {
		account.AccountNumber = accountNumber
	}

	return port_ledger.AccountBalance{AccountNumber: account.AccountNumber, Balance: account.Balance}, nil
}

// UpdateBalance posts the movement and reads the resulting balance back.
func (c *Client) UpdateBalance(ctx context.Context, params port_ledger.UpdateBalanceParams) (port_ledger.AccountBalance, error) {
	body := updateBalanceRequest{
		AccountNumber: params.AccountNumber,
		Value:         params.Amount,
		Type:          string(params.Direction),
	}

	if err := c.do(ctx, http.MethodPost, accountPath, body, nil,
		fmt.Sprintf("Error to update balance to the account n. %s", params.AccountNumber)); err != nil {
		return port_ledger.AccountBalance{}, err
	}

	// The movement is applied at this point; a failed read-back must not
	// turn it into a failure.
	balance, err := c.GetBalance(ctx, params.AccountNumber)
	if err != nil {
		c.logger.Warn("balance read-back failed after update",
			zap.String("account_number", params.AccountNumber),
			zap.String("type", string(params.Direction)),
			zap.Error(err),
		)
		return port_ledger.AccountBalance{AccountNumber: params.AccountNumber}, nil
	}

	return balance, nil
}

// do runs one request through the breaker. Every failure comes back as a
// RemoteFailure carrying a fresh trace id that is also logged.
func (c *Client) do(ctx context.Context, method, path string, in, out any, fallbackMsg string) error {
	traceID := uuid.NewString()
	log := c.logger.With(zap.String("trace_id", traceID), zap.String("method", method), zap.String("path", path))

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, in, out, traceID, fallbackMsg)
	})
	if err == nil {
		return nil
	}

	var typed *domain_transfer.Error
	if errors.As(err, &typed) {
		log.Error(fallbackMsg, zap.Int("status_code", typed.StatusCode), zap.String("message", typed.Message), zap.Error(typed.Err))
		return typed
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Warn("ledger circuit breaker rejected request", zap.Error(err))
		return domain_transfer.RemoteFailure(traceID, http.StatusServiceUnavailable, "Account service is currently unavailable", err)
	}

	log.Error(fallbackMsg, zap.Error(err))
	return domain_transfer.RemoteFailure(traceID, 0, fallbackMsg, err)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any, traceID, fallbackMsg string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return domain_transfer.RemoteFailure(traceID, 0, fallbackMsg, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain_transfer.RemoteFailure(traceID, 0, fallbackMsg, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain_transfer.RemoteFailure(traceID, 0, fallbackMsg, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain_transfer.RemoteFailure(traceID, resp.StatusCode, upstreamMessage(raw, fallbackMsg),
			fmt.Errorf("ledger responded %d", resp.StatusCode))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain_transfer.RemoteFailure(traceID, resp.StatusCode, fallbackMsg, fmt.Errorf("decode response: %w", err))
	}

	return nil
}

// upstreamMessage prefers the account service's own explanation.
func upstreamMessage(raw []byte, fallback string) string {
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, msg := range []string{body.Message, body.Title, body.Detail} {
			if msg = strings.TrimSpace(msg); msg != "" {
				return msg
			}
		}
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil && strings.TrimSpace(plain) != "" {
		return strings.TrimSpace(plain)
	}

	return fallback
}

// isBreakerSuccess keeps client-side rejections (4xx) from opening the
// breaker; only transport errors and 5xx count as failures.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}

	var typed *domain_transfer.Error
	if errors.As(err, &typed) && typed.StatusCode >= 400 && typed.StatusCode < 500 {
		return true
	}

	return false
}
