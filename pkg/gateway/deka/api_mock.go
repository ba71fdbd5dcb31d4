package deka

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	// AuthCalls counts network authentications, so tests can assert on
	// token reuse.
	AuthCalls int

	OnAuthenticate   func(ctx context.Context) (string, error)
	OnSaveParcel     func(ctx context.Context, token string, req *ParcelRequest) (*SaveParcelResponse, error)
	OnTrackParcel    func(ctx context.Context, token, parcelCode string) (*TrackingResponse, error)
	OnDeleteParcels  func(ctx context.Context, token string, parcelCodes []string, reasonID int) (*DeleteResponse, error)
	OnGetVoidReasons func(ctx context.Context, token string) ([]VoidReason, error)
	OnGetCities      func(ctx context.Context) ([]City, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// MockToken builds a well-formed JWT-shaped token whose exp claim is the
// given time. Only the middle segment is meaningful to the adapter.
func MockToken(exp time.Time) string {
	claims, _ := json.Marshal(map[string]int64{"exp": exp.Unix()})
	return "mockhdr." + base64.StdEncoding.EncodeToString(claims) + ".mocksig"
}

// Authenticate returns a mock token valid for one hour.
func (m *MockAPIClient) Authenticate(ctx context.Context) (string, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	m.AuthCalls++

	if m.SimulateErrors {
		return "", &APIError{StatusCode: 401, Message: "simulated authentication error"}
	}

	if m.OnAuthenticate != nil {
		return m.OnAuthenticate(ctx)
	}

	return MockToken(time.Now().Add(time.Hour)), nil
}

// SaveParcel registers a mock parcel.
func (m *MockAPIClient) SaveParcel(ctx context.Context, token string, req *ParcelRequest) (*SaveParcelResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Message: "simulated API error"}
	}

	if m.OnSaveParcel != nil {
		return m.OnSaveParcel(ctx, token, req)
	}

	return &SaveParcelResponse{
		Status: true,
		Data: SaveParcelData{
			Parcels:         []SavedParcel{{ParcelCode: "DK" + uuid.New().String()[:8]}},
			ReferenceNumber: fmt.Sprintf("REF-%d", time.Now().UnixNano()%1000000),
			Amount:          185000,
			Tax:             18500,
		},
	}, nil
}

// TrackParcel returns mock tracking data.
func (m *MockAPIClient) TrackParcel(ctx context.Context, token, parcelCode string) (*TrackingResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Message: "simulated API error"}
	}

	if m.OnTrackParcel != nil {
		return m.OnTrackParcel(ctx, token, parcelCode)
	}

	return &TrackingResponse{
		Status: true,
		Data: map[string]any{
			"parcelCode": parcelCode,
			"state":      "in_transit",
		},
	}, nil
}

// DeleteParcels voids mock parcels.
func (m *MockAPIClient) DeleteParcels(ctx context.Context, token string, parcelCodes []string, reasonID int) (*DeleteResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Message: "simulated API error"}
	}

	if m.OnDeleteParcels != nil {
		return m.OnDeleteParcels(ctx, token, parcelCodes, reasonID)
	}

	return &DeleteResponse{Status: true}, nil
}

// GetVoidReasons returns mock cancellation reasons.
func (m *MockAPIClient) GetVoidReasons(ctx context.Context, token string) ([]VoidReason, error) {
	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Message: "simulated API error"}
	}

	if m.OnGetVoidReasons != nil {
		return m.OnGetVoidReasons(ctx, token)
	}

	return []VoidReason{
		{ID: 1, Title: "customer request"},
		{ID: 2, Title: "wrong address"},
	}, nil
}

// GetCities returns a mock city catalogue.
func (m *MockAPIClient) GetCities(ctx context.Context) ([]City, error) {
	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Message: "simulated API error"}
	}

	if m.OnGetCities != nil {
		return m.OnGetCities(ctx)
	}

	return []City{
		{ID: 447, Name: "تهران"},
		{ID: 123, Name: "اصفهان"},
		{ID: 138, Name: "مشهد"},
	}, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
