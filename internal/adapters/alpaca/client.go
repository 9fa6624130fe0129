// Package alpaca implements the ports.BrokerClient interface against the
// Alpaca Trading API v2.
package alpaca

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

	"github.com/google/uuid"

	"stopkeeper/internal/domain"
	"stopkeeper/internal/ports"
)

const (
	// Base URLs
	baseURLLive  = "https://api.alpaca.markets"
	baseURLPaper = "https://paper-api.alpaca.markets"

	headerKeyID     = "APCA-API-KEY-ID"
	headerSecretKey = "APCA-API-SECRET-KEY"

	openOrdersLimit = 500

	// Alpaca API error code for "insufficient qty available for order".
	codeInsufficientQty = 40310000
)

// Client implements ports.BrokerClient over the Alpaca REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secretKey  string
	logger     ports.Logger
}

// Config holds configuration specific to the Alpaca client adapter.
type Config struct {
	APIKey    string
	SecretKey string
	Paper     bool   // true targets the paper-trading environment
	BaseURL   string // overrides the environment base URL; used by tests
	Logger    ports.Logger
	Timeout   time.Duration // per-request timeout; defaults to 30s
}

// New creates a new Alpaca client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Alpaca client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: Alpaca API key and secret are required", ports.ErrConfigurationError)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Paper {
			baseURL = baseURLPaper
		} else {
			baseURL = baseURLLive
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cfg.Logger.Info(context.Background(), "Alpaca client configured", map[string]interface{}{"baseURL": baseURL, "paper": cfg.Paper})

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		logger:     cfg.Logger,
	}, nil
}

// handleError translates HTTP-level failures into standardized ports errors.
func (c *Client) handleError(ctx context.Context, status int, body []byte, operation string) error {
	var apiErr apiError
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	var mappedErr error
	switch {
	case apiErr.Code == codeInsufficientQty:
		mappedErr = ports.ErrInsufficientQty
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		mappedErr = ports.ErrAuthenticationFailed
	case status == http.StatusNotFound:
		mappedErr = ports.ErrNotFound
	case status == http.StatusUnprocessableEntity:
		mappedErr = ports.ErrInvalidRequest
	case status == http.StatusTooManyRequests:
		mappedErr = ports.ErrRateLimited
	case status >= 500:
		mappedErr = ports.ErrBrokerUnavailable
	default:
		mappedErr = ports.ErrUnknown
	}

	finalErr := fmt.Errorf("%s failed: %w: http %d: %s", operation, mappedErr, status, msg)
	c.logger.Error(ctx, finalErr, fmt.Sprintf("%s failed with API error", operation), map[string]interface{}{
		"operation":  operation,
		"httpStatus": status,
		"apiCode":    apiErr.Code,
		"apiMessage": apiErr.Message,
	})
	return finalErr
}

// wrapTransport classifies request-level failures (network, context).
func (c *Client) wrapTransport(ctx context.Context, err error, operation string) error {
	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	}
	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), map[string]interface{}{"operation": operation})
	return finalErr
}

// do performs one authenticated request and decodes the JSON response into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, operation string) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}
	req.Header.Set(headerKeyID, c.apiKey)
	req.Header.Set(headerSecretKey, c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapTransport(ctx, err, operation)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.wrapTransport(ctx, err, operation)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleError(ctx, resp.StatusCode, respBody, operation)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}

// GetAccount retrieves the account-level figures.
func (c *Client) GetAccount(ctx context.Context) (*domain.Account, error) {
	op := "GetAccount"
	var raw apiAccount
	if err := c.do(ctx, http.MethodGet, "/v2/account", nil, nil, &raw, op); err != nil {
		return nil, err
	}
	acct, err := raw.toDomain()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acct, nil
}

// GetPositions retrieves all open positions in the account.
func (c *Client) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	op := "GetPositions"
	var raw []apiPosition
	if err := c.do(ctx, http.MethodGet, "/v2/positions", nil, nil, &raw, op); err != nil {
		return nil, err
	}
	positions := make([]*domain.Position, 0, len(raw))
	for _, p := range raw {
		pos, err := p.toDomain()
		if err != nil {
			// One malformed position must not hide the rest of the account.
			c.logger.Warn(ctx, "Skipping unparseable position", map[string]interface{}{"symbol": p.Symbol, "error": err.Error()})
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// GetOpenOrders retrieves the open orders for one symbol, in the broker's
// query order.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]*domain.ProtectionOrder, error) {
	return c.listOrders(ctx, symbol, "GetOpenOrders")
}

// GetAllOpenOrders retrieves every open order in the account.
func (c *Client) GetAllOpenOrders(ctx context.Context) ([]*domain.ProtectionOrder, error) {
	return c.listOrders(ctx, "", "GetAllOpenOrders")
}

func (c *Client) listOrders(ctx context.Context, symbol, op string) ([]*domain.ProtectionOrder, error) {
	query := url.Values{}
	query.Set("status", "open")
	query.Set("limit", fmt.Sprintf("%d", openOrdersLimit))
	if symbol != "" {
		query.Set("symbols", symbol)
	}
	var raw []apiOrder
	if err := c.do(ctx, http.MethodGet, "/v2/orders", query, nil, &raw, op); err != nil {
		return nil, err
	}
	orders := make([]*domain.ProtectionOrder, 0, len(raw))
	for _, o := range raw {
		order, err := o.toDomain()
		if err != nil {
			c.logger.Warn(ctx, "Skipping unparseable order", map[string]interface{}{"orderID": o.ID, "error": err.Error()})
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// SubmitStopOrder places a fixed stop order.
func (c *Client) SubmitStopOrder(ctx context.Context, req ports.StopOrderRequest) (*domain.ProtectionOrder, error) {
	op := "SubmitStopOrder"
	body := createOrderRequest{
		Symbol:        req.Symbol,
		Qty:           req.Qty.String(),
		Side:          string(req.Side),
		Type:          string(domain.FixedStop),
		TimeInForce:   string(req.TimeInForce),
		StopPrice:     req.StopPrice.String(),
		ClientOrderID: uuid.NewString(),
	}
	return c.submitOrder(ctx, body, op)
}

// SubmitTrailingStopOrder places a trailing stop order.
func (c *Client) SubmitTrailingStopOrder(ctx context.Context, req ports.TrailingStopOrderRequest) (*domain.ProtectionOrder, error) {
	op := "SubmitTrailingStopOrder"
	body := createOrderRequest{
		Symbol:        req.Symbol,
		Qty:           req.Qty.String(),
		Side:          string(req.Side),
		Type:          string(domain.TrailingStop),
		TimeInForce:   string(req.TimeInForce),
		TrailPercent:  req.TrailPercent.String(),
		ClientOrderID: uuid.NewString(),
	}
	return c.submitOrder(ctx, body, op)
}

func (c *Client) submitOrder(ctx context.Context, body createOrderRequest, op string) (*domain.ProtectionOrder, error) {
	var raw apiOrder
	if err := c.do(ctx, http.MethodPost, "/v2/orders", nil, body, &raw, op); err != nil {
		if errors.Is(err, ports.ErrInvalidRequest) {
			// 422 on order creation means the broker rejected the placement.
			err = fmt.Errorf("%w: %w", ports.ErrOrderPlacementFailed, err)
		}
		return nil, err
	}
	order, err := raw.toDomain()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": order.Symbol, "orderID": order.ID})
	return order, nil
}

// CancelOrder cancels an open order by its broker-assigned ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	op := "CancelOrder"
	err := c.do(ctx, http.MethodDelete, "/v2/orders/"+url.PathEscape(orderID), nil, nil, nil, op)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("%w: %w", ports.ErrOrderNotFound, err)
		}
		if errors.Is(err, ports.ErrInvalidRequest) {
			// 422 on cancellation: the order is no longer cancelable.
			return fmt.Errorf("%w: %w", ports.ErrOrderCancelFailed, err)
		}
		return err
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"orderID": orderID})
	return nil
}
