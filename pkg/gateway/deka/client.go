// Package deka provides integration with the Deka Post parcel API.
package deka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hamta/tarabar/internal/model"
	"github.com/hamta/tarabar/pkg/gateway"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const providerCode = "deka"

// Config holds Deka configuration.
type Config struct {
	BaseURL string
	Referer string // sent on every request, Deka rejects calls without it
	UseMock bool   // when true, uses a mock API client
}

// Client is the Deka gateway client. It implements gateway.Gateway and
// delegates API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	provider  *model.Provider
	config    Config
	apiClient APIClient
	cache     gateway.TokenCache
	logger    *otelzap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

// New creates a new Deka client bound to one provider record. The shared
// token cache may be nil, in which case only the in-process tier is used.
func New(provider *model.Provider, cfg Config, cache gateway.TokenCache, logger *otelzap.Logger) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		password, err := provider.APIPassword.Plaintext()
		if err != nil {
			// Sealed credential reaching this point is a wiring bug; the
			// first authentication will surface it as a config error.
			logger.Warn("Deka provider password still sealed",
				zap.Int64("provider_id", provider.ID))
		}
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:  provider.APIBaseURL,
			Username: provider.APIUsername,
			Password: password,
			Referer:  cfg.Referer,
			Timeout:  30 * time.Second,
		})
	}

	return &Client{
		provider:  provider,
		config:    cfg,
		apiClient: apiClient,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// NewWithAPIClient creates a new Deka client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(provider *model.Provider, cfg Config, apiClient APIClient, cache gateway.TokenCache, logger *otelzap.Logger) *Client {
	return &Client{
		provider:  provider,
		config:    cfg,
		apiClient: apiClient,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// Name returns the provider code.
func (c *Client) Name() string {
	return providerCode
}

// authenticate returns a usable token, reusing the in-process token, then
// the shared cache, before going to the network.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if c.token != "" && now.Before(c.tokenExpiry.Add(-tokenRefreshMargin)) {
		return c.token, nil
	}

	cacheKey := fmt.Sprintf("deka_token_%d", c.provider.ID)
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, cacheKey); ok && tokenUsable(cached, now) {
			c.token = cached
			c.tokenExpiry = tokenExpiry(cached, now)
			return c.token, nil
		}
	}

	token, err := c.apiClient.Authenticate(ctx)
	if err != nil {
		c.logger.Error("Deka authentication failed",
			zap.Int64("provider_id", c.provider.ID),
			zap.Error(err),
		)
		return "", gateway.NewError(providerCode, gateway.KindAuthentication,
			"failed to authenticate").WithCause(err)
	}
	if token == "" {
		return "", gateway.NewError(providerCode, gateway.KindAuthentication,
			"empty token received")
	}

	c.token = token
	c.tokenExpiry = tokenExpiry(token, now)

	if c.cache != nil {
		ttl := c.tokenExpiry.Add(-tokenRefreshMargin).Sub(now)
		if ttl < time.Minute {
			ttl = time.Minute
		}
		c.cache.Set(ctx, cacheKey, token, ttl)
	}

	c.logger.Info("Deka token obtained",
		zap.Int64("provider_id", c.provider.ID),
		zap.Time("expires_at", c.tokenExpiry),
	)

	return token, nil
}

// CreateShipment registers the shipment as a Deka parcel.
func (c *Client) CreateShipment(ctx context.Context, order *gateway.ShipmentOrder) (*gateway.CreateResult, error) {
	if errs := validateOrder(order); len(errs) > 0 {
		return nil, validationError(errs)
	}

	parcel := mapOrder(order, c.provider)

	if errs := validateParcel(parcel); len(errs) > 0 {
		c.logger.Error("Deka parcel validation failed",
			zap.Int64("shipment_id", order.Shipment.ID),
			zap.Strings("errors", errs),
		)
		return nil, validationError(errs)
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Sending shipment to Deka",
		zap.Int64("shipment_id", order.Shipment.ID),
		zap.Int64("provider_id", c.provider.ID),
		zap.String("serial_no", parcel.SerialNo),
	)

	resp, err := c.apiClient.SaveParcel(ctx, token, parcel)
	if err != nil {
		c.logger.Error("Deka API error", zap.Error(err))
		return nil, gateway.NewError(providerCode, gateway.KindIntegration,
			"failed to create shipment").WithCause(err)
	}

	if !resp.Status {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		c.logger.Error("Deka API rejected parcel",
			zap.Int64("shipment_id", order.Shipment.ID),
			zap.String("message", msg),
		)
		return nil, gateway.NewError(providerCode, gateway.KindIntegration,
			"remote rejected parcel: "+msg)
	}

	if len(resp.Data.Parcels) == 0 || resp.Data.Parcels[0].ParcelCode == "" {
		return nil, gateway.NewError(providerCode, gateway.KindIntegration,
			"no parcel code received")
	}

	c.logger.Info("Shipment created in Deka",
		zap.Int64("shipment_id", order.Shipment.ID),
		zap.String("parcel_code", resp.Data.Parcels[0].ParcelCode),
		zap.String("reference_number", resp.Data.ReferenceNumber),
	)

	return &gateway.CreateResult{
		TrackingNumber:  resp.Data.Parcels[0].ParcelCode,
		ReferenceNumber: resp.Data.ReferenceNumber,
		Amount:          resp.Data.Amount,
		Tax:             resp.Data.Tax,
		Raw:             rawResponse(resp),
	}, nil
}

// GetTrackingStatus retrieves tracking information for a parcel.
func (c *Client) GetTrackingStatus(ctx context.Context, trackingNumber string) (*gateway.TrackingInfo, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.apiClient.TrackParcel(ctx, token, trackingNumber)
	if err != nil {
		c.logger.Error("Deka tracking error",
			zap.String("tracking_number", trackingNumber),
			zap.Error(err),
		)
		return nil, gateway.NewError(providerCode, gateway.KindIntegration,
			"failed to get tracking status").WithCause(err)
	}

	if !resp.Status {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, gateway.NewError(providerCode, gateway.KindIntegration, msg)
	}

	info := &gateway.TrackingInfo{
		TrackingNumber: trackingNumber,
		Raw:            resp.Data,
	}
	if state, ok := resp.Data["state"].(string); ok {
		info.Status = state
	}
	return info, nil
}

// CancelShipment voids a parcel. A remote non-success answer is reported as
// (false, nil); only transport failures are errors.
func (c *Client) CancelShipment(ctx context.Context, trackingNumber string, reasonID int) (bool, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return false, err
	}

	resp, err := c.apiClient.DeleteParcels(ctx, token, []string{trackingNumber}, reasonID)
	if err != nil {
		c.logger.Error("Deka cancel error",
			zap.String("tracking_number", trackingNumber),
			zap.Error(err),
		)
		return false, gateway.NewError(providerCode, gateway.KindIntegration,
			"failed to cancel shipment").WithCause(err)
	}

	return resp.Status, nil
}

// ValidateCredentials checks the configured credentials by acquiring a
// token. It never fails: any error is logged and reported as false.
func (c *Client) ValidateCredentials(ctx context.Context) bool {
	token, err := c.authenticate(ctx)
	if err != nil {
		c.logger.Error("Deka credentials validation failed",
			zap.Int64("provider_id", c.provider.ID),
			zap.Error(err),
		)
		return false
	}
	return token != ""
}

// ListVoidReasons returns the cancellation reasons Deka currently accepts.
func (c *Client) ListVoidReasons(ctx context.Context) ([]gateway.VoidReason, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	reasons, err := c.apiClient.GetVoidReasons(ctx, token)
	if err != nil {
		c.logger.Error("Deka void reasons error", zap.Error(err))
		return nil, gateway.NewError(providerCode, gateway.KindIntegration,
			"failed to list void reasons").WithCause(err)
	}

	out := make([]gateway.VoidReason, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, gateway.VoidReason{ID: r.ID, Title: r.Title})
	}
	return out, nil
}

// Cities returns the Deka city catalogue. The endpoint is unauthenticated.
func (c *Client) Cities(ctx context.Context) ([]City, error) {
	cities, err := c.apiClient.GetCities(ctx)
	if err != nil {
		c.logger.Error("Deka city catalogue error", zap.Error(err))
		return nil, gateway.NewError(providerCode, gateway.KindIntegration,
			"failed to list cities").WithCause(err)
	}
	return cities, nil
}

// rawResponse flattens the save response for persistence alongside the
// shipment.
func rawResponse(resp *SaveParcelResponse) map[string]any {
	parcels := make([]any, 0, len(resp.Data.Parcels))
	for _, p := range resp.Data.Parcels {
		parcels = append(parcels, map[string]any{"parcelCode": p.ParcelCode})
	}
	return map[string]any{
		"status":  resp.Status,
		"message": resp.Message,
		"data": map[string]any{
			"parcels":         parcels,
			"referenceNumber": resp.Data.ReferenceNumber,
			"amount":          resp.Data.Amount,
			"tax":             resp.Data.Tax,
		},
	}
}

// Ensure Client implements the gateway interfaces
var (
	_ gateway.Gateway          = (*Client)(nil)
	_ gateway.VoidReasonLister = (*Client)(nil)
)
