package deka_test

import (
	"context"
	"testing"
	"time"

	"github.com/hamta/tarabar/internal/model"
	"github.com/hamta/tarabar/pkg/gateway"
	"github.com/hamta/tarabar/pkg/gateway/deka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func testProvider() *model.Provider {
	return &model.Provider{
		ID:          7,
		Name:        "Deka Post",
		Code:        "deka",
		APIBaseURL:  "https://services.dekapost.example",
		APIUsername: "club-user",
		IsActive:    true,
		Config: model.ProviderConfig{
			"service_id":  float64(5),
			"contract_id": float64(42),
		},
	}
}

func testOrder() *gateway.ShipmentOrder {
	return &gateway.ShipmentOrder{
		Shipment: &model.Shipment{
			ID:                31,
			ReceptorID:        3,
			SystemOrderID:     "ORD-AB12CD34EF",
			SourceOrderID:     "100924",
			CustomerFirstName: "Ali",
			CustomerLastName:  "Rezai",
			Origin:            "تهران",
			DestinationCity:   "مشهد",
			Address:           "خیابان امام رضا، پلاک 12",
			Postcode:          "9133714117",
			Mobile:            "09121234567",
			TotalPrice:        185000,
			Status:            model.StatusProcessing,
		},
		Items: []model.OrderItem{
			{Quantity: 2, Pricing: &model.OrderItemPricing{ItemName: "Widget"}},
		},
		Receptor: &model.Receptor{
			ID:          3,
			FirstName:   "رضا",
			LastName:    "محمدی",
			CompanyName: "فروشگاه همتا",
			Mobile:      "09351112233",
		},
	}
}

func newTestClient(mockAPI *deka.MockAPIClient) *deka.Client {
	logger := otelzap.New(zap.NewNop())
	return deka.NewWithAPIClient(testProvider(), deka.Config{}, mockAPI, nil, logger)
}

func TestClient_CreateShipment_Success(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	client := newTestClient(mockAPI)

	resp, err := client.CreateShipment(context.Background(), testOrder())

	require.NoError(t, err)
	assert.NotEmpty(t, resp.TrackingNumber)
	assert.NotEmpty(t, resp.ReferenceNumber)
	assert.Equal(t, 185000.0, resp.Amount)
	assert.NotNil(t, resp.Raw)
}

func TestClient_CreateShipment_ValidationAbortsBeforeNetwork(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	saveCalled := false
	mockAPI.OnSaveParcel = func(ctx context.Context, token string, req *deka.ParcelRequest) (*deka.SaveParcelResponse, error) {
		saveCalled = true
		return &deka.SaveParcelResponse{Status: true}, nil
	}
	client := newTestClient(mockAPI)

	order := testOrder()
	order.Shipment.Mobile = "12345" // bad format
	order.Shipment.Address = ""

	_, err := client.CreateShipment(context.Background(), order)

	require.Error(t, err)
	assert.True(t, gateway.IsValidation(err))
	assert.Contains(t, err.Error(), "receiver address is required")
	assert.Contains(t, err.Error(), "mobile format is invalid")
	assert.False(t, saveCalled, "validation failure must abort before any network call")
	assert.Zero(t, mockAPI.AuthCalls)
}

func TestClient_CreateShipment_RemoteRejection(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	mockAPI.OnSaveParcel = func(ctx context.Context, token string, req *deka.ParcelRequest) (*deka.SaveParcelResponse, error) {
		return &deka.SaveParcelResponse{Status: false, Message: "contract expired"}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.CreateShipment(context.Background(), testOrder())

	require.Error(t, err)
	assert.True(t, gateway.IsRetryable(err))
	assert.Contains(t, err.Error(), "contract expired")
}

func TestClient_CreateShipment_MissingParcelCode(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	mockAPI.OnSaveParcel = func(ctx context.Context, token string, req *deka.ParcelRequest) (*deka.SaveParcelResponse, error) {
		return &deka.SaveParcelResponse{Status: true}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.CreateShipment(context.Background(), testOrder())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parcel code")
}

func TestClient_Authenticate_ReusesTokenWithinValidity(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	client := newTestClient(mockAPI)

	ctx := context.Background()
	_, err := client.CreateShipment(ctx, testOrder())
	require.NoError(t, err)
	_, err = client.CreateShipment(ctx, testOrder())
	require.NoError(t, err)

	assert.Equal(t, 1, mockAPI.AuthCalls,
		"second call within the validity window must reuse the token")
}

func TestClient_Authenticate_RefreshesNearExpiry(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	// Tokens expiring inside the 5-minute refresh margin are never reused.
	mockAPI.OnAuthenticate = func(ctx context.Context) (string, error) {
		return deka.MockToken(time.Now().Add(4 * time.Minute)), nil
	}
	client := newTestClient(mockAPI)

	ctx := context.Background()
	_, err := client.CreateShipment(ctx, testOrder())
	require.NoError(t, err)
	_, err = client.CreateShipment(ctx, testOrder())
	require.NoError(t, err)

	assert.Equal(t, 2, mockAPI.AuthCalls)
}

func TestClient_Authenticate_EmptyToken(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	mockAPI.OnAuthenticate = func(ctx context.Context) (string, error) {
		return "", nil
	}
	client := newTestClient(mockAPI)

	_, err := client.CreateShipment(context.Background(), testOrder())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty token")
}

func TestClient_CancelShipment_RemoteNonSuccess(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	mockAPI.OnDeleteParcels = func(ctx context.Context, token string, parcelCodes []string, reasonID int) (*deka.DeleteResponse, error) {
		return &deka.DeleteResponse{Status: false, Message: "already delivered"}, nil
	}
	client := newTestClient(mockAPI)

	ok, err := client.CancelShipment(context.Background(), "DK12345678", 1)

	require.NoError(t, err, "remote non-success is not an error")
	assert.False(t, ok)
}

func TestClient_CancelShipment_Success(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	client := newTestClient(mockAPI)

	ok, err := client.CancelShipment(context.Background(), "DK12345678", 2)

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_GetTrackingStatus(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	client := newTestClient(mockAPI)

	info, err := client.GetTrackingStatus(context.Background(), "DK12345678")

	require.NoError(t, err)
	assert.Equal(t, "DK12345678", info.TrackingNumber)
	assert.Equal(t, "in_transit", info.Status)
}

func TestClient_ValidateCredentials(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	client := newTestClient(mockAPI)
	assert.True(t, client.ValidateCredentials(context.Background()))

	failing := deka.NewMockAPIClient()
	failing.SimulateErrors = true
	client = newTestClient(failing)
	assert.False(t, client.ValidateCredentials(context.Background()),
		"credential validation never raises, it reports false")
}

func TestClient_Name(t *testing.T) {
	client := newTestClient(deka.NewMockAPIClient())
	assert.Equal(t, "deka", client.Name())
}

func TestClient_ListVoidReasons(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	client := newTestClient(mockAPI)

	reasons, err := client.ListVoidReasons(context.Background())

	require.NoError(t, err)
	require.Len(t, reasons, 2)
	assert.Equal(t, 1, reasons[0].ID)
	assert.Equal(t, "customer request", reasons[0].Title)
}

func TestClient_ListVoidReasons_APIError(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	mockAPI.OnGetVoidReasons = func(ctx context.Context, token string) ([]deka.VoidReason, error) {
		return nil, &deka.APIError{StatusCode: 500, Message: "server error"}
	}
	client := newTestClient(mockAPI)

	_, err := client.ListVoidReasons(context.Background())

	require.Error(t, err)
	assert.True(t, gateway.IsRetryable(err))
}

func TestClient_Cities(t *testing.T) {
	mockAPI := deka.NewMockAPIClient()
	client := newTestClient(mockAPI)

	cities, err := client.Cities(context.Background())

	require.NoError(t, err)
	require.NotEmpty(t, cities)
	assert.Equal(t, 447, cities[0].ID)
	assert.Equal(t, "تهران", cities[0].Name)
}
