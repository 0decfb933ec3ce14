package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	types "github.com/bhs-school/fee-payments/internal/core/datamodel/paymentgateway"
)

const maxResponseBytes = 1 << 20

// GatewayError is returned when the gateway answers but refuses the operation.
type GatewayError struct {
	Operation  string
	StatusCode int
	Message    string
	RawBody    json.RawMessage
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s rejected (status %d): %s", e.Operation, e.StatusCode, e.Message)
}

// ErrUnavailable wraps transport failures and unreadable responses.
var ErrUnavailable = errors.New("payment gateway unavailable")

type Config struct {
	BaseURL   string
	SecretKey string
	// Timeout bounds each call; zero leaves it to the caller's context.
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		secretKey:  config.SecretKey,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// CreateSession opens a hosted checkout session. It is not retried.
func (c *Client) CreateSession(ctx context.Context, req *types.SessionRequest) (*types.SessionResult, error) {
	if err := req.Validate(); err != nil {
		c.logger.Error("session request validation failed", "tx_ref", req.TxRef, "error", err)
		return nil, &GatewayError{Operation: "create session", Message: err.Error()}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	c.logger.Info("creating checkout session", "tx_ref", req.TxRef, "amount", req.Amount.String())

	statusCode, body, err := c.do(ctx, http.MethodPost, c.baseURL+"/v3/payments", payload)
	if err != nil {
		return nil, err
	}

	var resp types.SessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error("undecodable session response", "tx_ref", req.TxRef, "status_code", statusCode)
		return nil, fmt.Errorf("%w: decode session response: %v", ErrUnavailable, err)
	}

	if resp.Status != types.ResponseStatusSuccess || resp.Data.Link == "" {
		message := resp.Message
		if message == "" {
			message = "no checkout link returned"
		}
		c.logger.Warn("checkout session refused",
			"tx_ref", req.TxRef,
			"status_code", statusCode,
			"message", message)
		return nil, &GatewayError{
			Operation:  "create session",
			StatusCode: statusCode,
			Message:    message,
			RawBody:    json.RawMessage(body),
		}
	}

	return &types.SessionResult{Link: resp.Data.Link, RawBody: json.RawMessage(body)}, nil
}

// VerifyByReference asks the gateway for the authoritative state of txRef.
// A well-formed refusal (unknown reference, error status) is a Verification
// with Settled false; only transport failures, 5xx and non-JSON bodies are errors.
func (c *Client) VerifyByReference(ctx context.Context, txRef string) (*types.Verification, error) {
	endpoint := c.baseURL + "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(txRef)

	statusCode, body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if statusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: verification returned status %d", ErrUnavailable, statusCode)
	}

	var resp types.VerifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode verification response: %v", ErrUnavailable, err)
	}

	v := &types.Verification{
		ResponseState: resp.Status,
		Message:       resp.Message,
		RawBody:       json.RawMessage(body),
	}
	if resp.Data != nil {
		v.Status = resp.Data.Status
		v.TxRef = resp.Data.TxRef
		v.GatewayTxID = types.IDString(resp.Data.ID)
		v.Amount = resp.Data.Amount
		v.Currency = strings.ToUpper(resp.Data.Currency)
		v.CustomerEmail = resp.Data.Customer.Email
		v.CustomerName = resp.Data.Customer.Name
	}
	v.Settled = resp.Status == types.ResponseStatusSuccess && v.Status == types.TransactionSuccessful

	c.logger.Info("transaction verified",
		"tx_ref", txRef,
		"settled", v.Settled,
		"gateway_status", v.Status,
		"currency", v.Currency)

	return v, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("gateway request failed", "method", method, "error", err)
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, body, nil
}
