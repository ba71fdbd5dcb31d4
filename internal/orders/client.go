// Package orders pulls external orders from receptor APIs, maps them into
// shipments and reports registration back to the source system.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/hamta/tarabar/internal/model"
)

// ErrNotConfigured is returned when the receptor lacks its order API base
// URL or auth token.
var ErrNotConfigured = errors.New("order api not configured for receptor")

// callbackStatus is the fixed status code reported back to the source
// system once an order is registered.
const callbackStatus = "tarabar-proc"

// defaultCallbackNote is used when the workflow action carries no note.
const defaultCallbackNote = "سفارش در سامانه ترابری ثبت شد"

// Client talks to one receptor's order source API. Remote systems vary in
// how they wrap their payloads, so every read tolerates the envelope shapes
// seen in the field.
type Client struct {
	receptor   *model.Receptor
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *otelzap.Logger
}

// NewClient creates a client bound to the receptor's configuration.
func NewClient(receptor *model.Receptor, logger *otelzap.Logger) *Client {
	return &Client{
		receptor:   receptor,
		baseURL:    strings.TrimRight(receptor.OrdersBaseURL, "/"),
		authToken:  receptor.OrdersAuthToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// FetchOrderIDs lists the pending order ids at the source system. Three
// response shapes are accepted: `{success,data:{orders:[{id}]}}`,
// `{orders:[{id}]}` and a bare array of numeric ids. Anything else yields
// an empty list after logging.
func (c *Client) FetchOrderIDs(ctx context.Context) ([]string, error) {
	if !c.receptor.OrdersAPIConfigured() {
		return nil, fmt.Errorf("%w: receptor %d", ErrNotConfigured, c.receptor.ID)
	}

	body, status, err := c.get(ctx, c.baseURL+"/orders/")
	if err != nil {
		return nil, fmt.Errorf("fetching order ids: %w", err)
	}
	if status >= 400 {
		return nil, fmt.Errorf("fetching order ids: HTTP %d", status)
	}

	ids, ok := parseOrderIDs(body)
	if !ok {
		c.logger.Warn("Unexpected response structure from orders API",
			zap.Int64("receptor_id", c.receptor.ID),
			zap.ByteString("body", truncateBody(body)))
		return nil, nil
	}
	return ids, nil
}

// FetchOrderDetails loads one order record. A transport failure or an
// unrecognized payload reads as absent, not as an error; the caller decides
// what to do with a missing order.
func (c *Client) FetchOrderDetails(ctx context.Context, orderID string) (*Order, error) {
	if !c.receptor.OrdersAPIConfigured() {
		return nil, fmt.Errorf("%w: receptor %d", ErrNotConfigured, c.receptor.ID)
	}

	body, status, err := c.get(ctx, c.baseURL+"/orders/"+orderID)
	if err != nil {
		c.logger.Error("Failed to fetch order details",
			zap.Int64("receptor_id", c.receptor.ID),
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil, nil
	}
	if status >= 400 {
		c.logger.Error("Failed to fetch order details",
			zap.Int64("receptor_id", c.receptor.ID),
			zap.String("order_id", orderID),
			zap.Int("status", status))
		return nil, nil
	}

	payload, ok := extractOrderPayload(body)
	if !ok {
		c.logger.Warn("Unexpected response structure from order details API",
			zap.Int64("receptor_id", c.receptor.ID),
			zap.String("order_id", orderID),
			zap.ByteString("body", truncateBody(body)))
		return nil, nil
	}

	var order Order
	if err := json.Unmarshal(payload, &order); err != nil {
		c.logger.Warn("Order payload failed to decode",
			zap.Int64("receptor_id", c.receptor.ID),
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil, nil
	}
	return &order, nil
}

// SendCallback PUTs the registration status back to the source system. It
// reports success as a bool and never returns an error; every failure mode
// is logged here.
func (c *Client) SendCallback(ctx context.Context, sourceOrderID, systemOrderID string, shipmentID int64, note string) bool {
	if c.baseURL == "" {
		c.logger.Info("Orders base URL not configured",
			zap.Int64("receptor_id", c.receptor.ID),
			zap.String("source_order_id", sourceOrderID))
		return false
	}
	if note == "" {
		note = defaultCallbackNote
	}

	callbackURL := c.baseURL + "/orders/" + sourceOrderID + "/status"
	payload, _ := json.Marshal(map[string]string{
		"status": callbackStatus,
		"note":   note,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, callbackURL, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error("Error building callback request",
			zap.Int64("receptor_id", c.receptor.ID),
			zap.String("callback_url", callbackURL),
			zap.Error(err))
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Error sending callback",
			zap.Int64("receptor_id", c.receptor.ID),
			zap.String("source_order_id", sourceOrderID),
			zap.String("callback_url", callbackURL),
			zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.Warn("Callback rejected",
			zap.Int64("receptor_id", c.receptor.ID),
			zap.String("source_order_id", sourceOrderID),
			zap.String("callback_url", callbackURL),
			zap.Int("status", resp.StatusCode))
		return false
	}

	c.logger.Info("Callback sent",
		zap.Int64("receptor_id", c.receptor.ID),
		zap.String("source_order_id", sourceOrderID),
		zap.String("system_order_id", systemOrderID),
		zap.Int64("shipment_id", shipmentID))
	return true
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func truncateBody(body []byte) []byte {
	const max = 512
	if len(body) > max {
		return body[:max]
	}
	return body
}
