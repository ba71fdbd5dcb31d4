package deka

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	username   string
	password   string
	referer    string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL  string
	Username string
	Password string
	Referer  string // Deka requires a Referer header on every call
	Timeout  time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		referer:  cfg.Referer,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Authenticate requests a fresh token. The response body is the bare token
// string, not a JSON document.
// POST /clubapi/token
func (c *HTTPAPIClient) Authenticate(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/clubapi/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", c.referer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("authentication failed: HTTP %d", resp.StatusCode),
		}
	}

	return strings.TrimSpace(string(body)), nil
}

// SaveParcel registers a parcel.
// POST /clubapi/api/Parcels/SaveParcels
func (c *HTTPAPIClient) SaveParcel(ctx context.Context, token string, req *ParcelRequest) (*SaveParcelResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/clubapi/api/Parcels/SaveParcels", token, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result SaveParcelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode save-parcel response: %w", err)
	}
	return &result, nil
}

// TrackParcel retrieves tracking events for a parcel code.
// GET /clubapi/api/Gateway/ClubParcelsTracking
func (c *HTTPAPIClient) TrackParcel(ctx context.Context, token, parcelCode string) (*TrackingResponse, error) {
	path := "/clubapi/api/Gateway/ClubParcelsTracking?parcelCode=" + url.QueryEscape(parcelCode)

	resp, err := c.doRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result TrackingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode tracking response: %w", err)
	}
	return &result, nil
}

// DeleteParcels voids the given parcels.
// POST /clubapi/api/Parcels/DeleteParcelList
func (c *HTTPAPIClient) DeleteParcels(ctx context.Context, token string, parcelCodes []string, reasonID int) (*DeleteResponse, error) {
	payload := map[string]any{
		"parcelCodes":  parcelCodes,
		"voidReasonID": reasonID,
		"companyID":    1,
		"postNodeID":   0,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/clubapi/api/Parcels/DeleteParcelList", token, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result DeleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode delete response: %w", err)
	}
	return &result, nil
}

// GetVoidReasons lists the valid cancellation reasons.
// GET /clubapi/api/Parcels/GetCustomerParcelVoidReasons
func (c *HTTPAPIClient) GetVoidReasons(ctx context.Context, token string) ([]VoidReason, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/clubapi/api/Parcels/GetCustomerParcelVoidReasons", token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result struct {
		Data []VoidReason `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode void reasons: %w", err)
	}
	return result.Data, nil
}

// GetCities lists the city catalogue. The endpoint needs no token.
// GET /ParcelPrice/api/GetCities
func (c *HTTPAPIClient) GetCities(ctx context.Context) ([]City, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ParcelPrice/api/GetCities", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read cities response: %w", err)
	}

	// The catalogue comes either enveloped in {data: [...]} or bare.
	var enveloped struct {
		Data []City `json:"data"`
	}
	if err := json.Unmarshal(body, &enveloped); err == nil && len(enveloped.Data) > 0 {
		return enveloped.Data, nil
	}

	var cities []City
	if err := json.Unmarshal(body, &cities); err != nil {
		return nil, fmt.Errorf("failed to decode cities response: %w", err)
	}
	return cities, nil
}

// doRequest performs an authenticated HTTP request.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", c.referer)

	return c.httpClient.Do(req)
}

// parseError extracts error information from an HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var remote struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &remote); err == nil {
		msg = remote.Message
		if msg == "" {
			msg = remote.Error
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
