package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"github.com/hamta/tarabar/internal/model"
	"github.com/hamta/tarabar/internal/store"
	"github.com/hamta/tarabar/pkg/gateway"
)

type stubGateway struct {
	createResult *gateway.CreateResult
	createErr    error
	cancelOK     bool
	cancelErr    error
	tracking     *gateway.TrackingInfo
	createCalls  int
	cancelCalls  int
}

func (s *stubGateway) Name() string { return "deka" }

func (s *stubGateway) CreateShipment(ctx context.Context, order *gateway.ShipmentOrder) (*gateway.CreateResult, error) {
	s.createCalls++
	return s.createResult, s.createErr
}

func (s *stubGateway) GetTrackingStatus(ctx context.Context, trackingNumber string) (*gateway.TrackingInfo, error) {
	return s.tracking, nil
}

func (s *stubGateway) CancelShipment(ctx context.Context, trackingNumber string, reasonID int) (bool, error) {
	s.cancelCalls++
	return s.cancelOK, s.cancelErr
}

func (s *stubGateway) ValidateCredentials(ctx context.Context) bool { return true }

type fixture struct {
	svc      *Service
	store    *store.Memory
	gw       *stubGateway
	receptor *model.Receptor
	provider *model.Provider
	shipment *model.Shipment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()

	provider := &model.Provider{Name: "Deka", Code: "deka", IsActive: true}
	require.NoError(t, st.SaveProvider(ctx, provider))

	receptor := &model.Receptor{CompanyName: "Hamta Shop", ProviderIDs: []int64{provider.ID}}
	require.NoError(t, st.SaveReceptor(ctx, receptor))

	shipment := &model.Shipment{
		ReceptorID:    receptor.ID,
		SourceOrderID: "100924",
		Status:        model.StatusProcessing,
	}
	require.NoError(t, st.CreateShipment(ctx, shipment, nil))

	gw := &stubGateway{
		createResult: &gateway.CreateResult{
			TrackingNumber:  "DK12345678",
			ReferenceNumber: "REF-1",
			Raw:             map[string]any{"amount": 185000.0},
		},
		cancelOK: true,
		tracking: &gateway.TrackingInfo{TrackingNumber: "DK12345678", Status: "in transit"},
	}
	registry := gateway.NewRegistry()
	registry.Register("deka", func(p *model.Provider) gateway.Gateway { return gw })

	svc := NewService(st, registry, otelzap.New(zap.NewNop()), nil)
	return &fixture{svc: svc, store: st, gw: gw, receptor: receptor, provider: provider, shipment: shipment}
}

func TestSendToProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.SendToProvider(ctx, f.shipment.ID, f.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, "DK12345678", result.TrackingNumber)

	got, err := f.store.GetShipment(ctx, f.shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, f.provider.ID, got.ProviderID)
	assert.Equal(t, "DK12345678", got.ProviderTrackingNumber)
	assert.Equal(t, "REF-1", got.ProviderOrderID)
	require.NotNil(t, got.SentToProviderAt)
	assert.Equal(t, map[string]any{"amount": 185000.0}, got.ProviderResponse)
}

func TestSendToProvider_InactiveProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.provider.IsActive = false
	require.NoError(t, f.store.SaveProvider(ctx, f.provider))

	_, err := f.svc.SendToProvider(ctx, f.shipment.ID, f.provider.ID)
	assert.ErrorIs(t, err, ErrProviderInactive)
	assert.Zero(t, f.gw.createCalls)
}

func TestSendToProvider_UnauthorizedReceptor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receptor.ProviderIDs = nil
	require.NoError(t, f.store.SaveReceptor(ctx, f.receptor))

	_, err := f.svc.SendToProvider(ctx, f.shipment.ID, f.provider.ID)
	assert.ErrorIs(t, err, ErrProviderNotAuthorized)
	assert.Zero(t, f.gw.createCalls)
}

func TestSendToProvider_GatewayErrorLeavesShipmentUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gw.createErr = gateway.NewError("deka", gateway.KindIntegration, "timeout")
	_, err := f.svc.SendToProvider(ctx, f.shipment.ID, f.provider.ID)
	require.Error(t, err)

	got, err := f.store.GetShipment(ctx, f.shipment.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ProviderID)
	assert.Empty(t, got.ProviderTrackingNumber)
}

func TestTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendToProvider(ctx, f.shipment.ID, f.provider.ID)
	require.NoError(t, err)

	info, err := f.svc.Track(ctx, f.shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, "in transit", info.Status)
}

func TestTrack_NotSent(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Track(context.Background(), f.shipment.ID)
	assert.ErrorIs(t, err, ErrNotSent)
}

func TestCancel_ClearsLinkage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendToProvider(ctx, f.shipment.ID, f.provider.ID)
	require.NoError(t, err)

	ok, err := f.svc.Cancel(ctx, f.shipment.ID, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.store.GetShipment(ctx, f.shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Zero(t, got.ProviderID)
	assert.Empty(t, got.ProviderTrackingNumber)
	assert.Nil(t, got.SentToProviderAt)

	// linkage gone, provider can now be deleted
	assert.NoError(t, f.store.DeleteProvider(ctx, f.provider.ID))
}

func TestCancel_RemoteRefusalKeepsLinkage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendToProvider(ctx, f.shipment.ID, f.provider.ID)
	require.NoError(t, err)

	f.gw.cancelOK = false
	ok, err := f.svc.Cancel(ctx, f.shipment.ID, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := f.store.GetShipment(ctx, f.shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Equal(t, "DK12345678", got.ProviderTrackingNumber)
}

type listerGateway struct {
	stubGateway
	reasons []gateway.VoidReason
}

func (l *listerGateway) ListVoidReasons(ctx context.Context) ([]gateway.VoidReason, error) {
	return l.reasons, nil
}

func TestVoidReasons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lister := &listerGateway{reasons: []gateway.VoidReason{
		{ID: 2, Title: "انصراف مشتری"},
		{ID: 4, Title: "ثبت اشتباه"},
	}}
	f.svc.registry.Register("deka", func(p *model.Provider) gateway.Gateway { return lister })

	reasons, err := f.svc.VoidReasons(ctx, f.provider.ID)
	require.NoError(t, err)
	require.Len(t, reasons, 2)
	assert.Equal(t, 4, reasons[1].ID)
}

func TestVoidReasons_Unsupported(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.VoidReasons(context.Background(), f.provider.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not publish void reasons")
}

func TestVoidReasons_UnknownProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.VoidReasons(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
