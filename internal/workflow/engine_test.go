package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"github.com/hamta/tarabar/internal/model"
	"github.com/hamta/tarabar/internal/sms"
	"github.com/hamta/tarabar/internal/store"
)

type fakeCallback struct {
	calls []fakeCallbackCall
	fail  bool
}

type fakeCallbackCall struct {
	SourceOrderID string
	SystemOrderID string
	ShipmentID    int64
	Note          string
}

func (f *fakeCallback) SendCallback(ctx context.Context, sourceOrderID, systemOrderID string, shipmentID int64, note string) bool {
	f.calls = append(f.calls, fakeCallbackCall{sourceOrderID, systemOrderID, shipmentID, note})
	return !f.fail
}

type fixture struct {
	engine   *Engine
	store    *store.Memory
	sms      *sms.MockGateway
	callback *fakeCallback
	receptor *model.Receptor
	shipment *model.Shipment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()

	receptor := &model.Receptor{
		CompanyName:     "Hamta Shop",
		Mobile:          "09351112233",
		OrdersBaseURL:   "https://shop.example",
		OrdersAuthToken: "secret",
	}
	require.NoError(t, st.SaveReceptor(ctx, receptor))

	shipment := &model.Shipment{
		ReceptorID:        receptor.ID,
		SourceOrderID:     "100924",
		CustomerFirstName: "Ali",
		CustomerLastName:  "Rezai",
		Mobile:            "09121234567",
		TotalPrice:        2000,
		Status:            model.StatusProcessing,
	}
	require.NoError(t, st.CreateShipment(ctx, shipment, nil))

	mockSMS := sms.NewMockGateway()
	callback := &fakeCallback{}
	engine := NewEngine(st, mockSMS, otelzap.New(zap.NewNop()), nil, Config{AdminTemplate: "سفارش {order_id} برای {receptor_name}"})
	engine.WithCallbackFactory(func(r *model.Receptor) CallbackSender { return callback })

	return &fixture{engine: engine, store: st, sms: mockSMS, callback: callback, receptor: receptor, shipment: shipment}
}

func (f *fixture) saveWorkflow(t *testing.T, w *model.Workflow) {
	t.Helper()
	w.ReceptorID = f.receptor.ID
	require.NoError(t, f.store.SaveWorkflow(context.Background(), w))
}

func TestExecute_RunsStepsAndActionsInOrder(t *testing.T) {
	f := newFixture(t)
	f.saveWorkflow(t, &model.Workflow{
		IsActive: true,
		Steps: []model.WorkflowStep{
			{Order: 2, Actions: []model.WorkflowStepAction{{Order: 1, Kind: model.ActionSMSToCustomer}}},
			{Order: 1, Actions: []model.WorkflowStepAction{
				{Order: 1, Kind: model.ActionNotifyReceptor},
				{Order: 2, Kind: model.ActionSMSToAdmin},
			}},
		},
	})

	require.NoError(t, f.engine.Execute(context.Background(), f.receptor.ID, f.shipment.ID))

	// step 1: callback then admin SMS, step 2: customer SMS
	require.Len(t, f.callback.calls, 1)
	assert.Equal(t, "100924", f.callback.calls[0].SourceOrderID)
	require.Len(t, f.sms.SendCalls, 1)
	require.Len(t, f.sms.LookupCalls, 1)
	assert.Equal(t, "09121234567", f.sms.LookupCalls[0].Receptor)
}

func TestExecute_InactiveWorkflowIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.saveWorkflow(t, &model.Workflow{
		IsActive: false,
		Steps: []model.WorkflowStep{
			{Order: 1, Actions: []model.WorkflowStepAction{{Kind: model.ActionNotifyReceptor}}},
		},
	})

	require.NoError(t, f.engine.Execute(context.Background(), f.receptor.ID, f.shipment.ID))
	assert.Empty(t, f.callback.calls)
}

func TestExecute_MissingWorkflowIsNoOp(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.engine.Execute(context.Background(), f.receptor.ID, f.shipment.ID))
}

func TestExecute_LoadFailuresPropagate(t *testing.T) {
	f := newFixture(t)

	err := f.engine.Execute(context.Background(), 999, f.shipment.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = f.engine.Execute(context.Background(), f.receptor.ID, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExecute_ActionFailureDoesNotStopRun(t *testing.T) {
	f := newFixture(t)
	f.sms.OnLookup = func(receptor, token, token2, template string) error {
		return errors.New("provider down")
	}
	f.saveWorkflow(t, &model.Workflow{
		IsActive: true,
		Steps: []model.WorkflowStep{
			{Order: 1, Actions: []model.WorkflowStepAction{{Order: 1, Kind: model.ActionSMSToCustomer}}},
			{Order: 2, Actions: []model.WorkflowStepAction{{Order: 1, Kind: model.ActionNotifyReceptor}}},
		},
	})

	require.NoError(t, f.engine.Execute(context.Background(), f.receptor.ID, f.shipment.ID))

	// first action failed, second step still ran
	require.Len(t, f.sms.LookupCalls, 1)
	require.Len(t, f.callback.calls, 1)
}

func TestExecute_UnknownActionKindIsSkipped(t *testing.T) {
	f := newFixture(t)
	// bypass store validation to simulate a legacy row
	f.saveWorkflow(t, &model.Workflow{
		IsActive: true,
		Steps: []model.WorkflowStep{
			{Order: 1, Actions: []model.WorkflowStepAction{{Order: 1, Kind: model.ActionNotifyReceptor}}},
		},
	})

	w, err := f.store.GetWorkflowForReceptor(context.Background(), f.receptor.ID)
	require.NoError(t, err)
	w.Steps[0].Actions[0].Kind = "legacy_action"

	// engine handles the unknown kind without failing the run
	f.engine.executeStep(context.Background(), &w.Steps[0], f.receptor, f.shipment)
	assert.Empty(t, f.callback.calls)
}

func TestNotifyReceptor_UsesConfiguredNote(t *testing.T) {
	f := newFixture(t)
	f.saveWorkflow(t, &model.Workflow{
		IsActive: true,
		Steps: []model.WorkflowStep{
			{Order: 1, Actions: []model.WorkflowStepAction{{
				Order:  1,
				Kind:   model.ActionNotifyReceptor,
				Config: map[string]any{"note": "آماده ارسال"},
			}}},
		},
	})

	require.NoError(t, f.engine.Execute(context.Background(), f.receptor.ID, f.shipment.ID))
	require.Len(t, f.callback.calls, 1)
	assert.Equal(t, "آماده ارسال", f.callback.calls[0].Note)
}

func TestSendSMSToCustomer_TokensAndTemplate(t *testing.T) {
	f := newFixture(t)
	f.saveWorkflow(t, &model.Workflow{
		IsActive: true,
		Steps: []model.WorkflowStep{
			{Order: 1, Actions: []model.WorkflowStepAction{{Order: 1, Kind: model.ActionSMSToCustomer}}},
		},
	})

	require.NoError(t, f.engine.Execute(context.Background(), f.receptor.ID, f.shipment.ID))

	require.Len(t, f.sms.LookupCalls, 1)
	call := f.sms.LookupCalls[0]
	assert.Equal(t, "Hamta Shop", call.Token)
	assert.Equal(t, f.shipment.SystemOrderID, call.Token2)
	assert.Equal(t, "register-cargo", call.Template)
}

func TestSendSMSToCustomer_RequiresMobile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noMobile := &model.Shipment{ReceptorID: f.receptor.ID, SourceOrderID: "2"}
	require.NoError(t, f.store.CreateShipment(ctx, noMobile, nil))

	f.saveWorkflow(t, &model.Workflow{
		IsActive: true,
		Steps: []model.WorkflowStep{
			{Order: 1, Actions: []model.WorkflowStepAction{{Order: 1, Kind: model.ActionSMSToCustomer}}},
		},
	})

	require.NoError(t, f.engine.Execute(ctx, f.receptor.ID, noMobile.ID))
	assert.Empty(t, f.sms.LookupCalls)
}

func TestSendSMSToAdmin_MobileFallbackAndVariables(t *testing.T) {
	f := newFixture(t)
	f.saveWorkflow(t, &model.Workflow{
		IsActive: true,
		Steps: []model.WorkflowStep{
			{Order: 1, Actions: []model.WorkflowStepAction{{Order: 1, Kind: model.ActionSMSToAdmin}}},
		},
	})

	require.NoError(t, f.engine.Execute(context.Background(), f.receptor.ID, f.shipment.ID))

	require.Len(t, f.sms.SendCalls, 1)
	call := f.sms.SendCalls[0]
	assert.Equal(t, "09351112233", call.Receptor, "falls back to the receptor's own mobile")
	assert.Equal(t, "سفارش "+f.shipment.SystemOrderID+" برای Hamta Shop", call.Message)
}

func TestSendSMSToAdmin_ConfiguredMobileWins(t *testing.T) {
	f := newFixture(t)
	f.saveWorkflow(t, &model.Workflow{
		IsActive: true,
		Steps: []model.WorkflowStep{
			{Order: 1, Actions: []model.WorkflowStepAction{{
				Order:  1,
				Kind:   model.ActionSMSToAdmin,
				Config: map[string]any{"mobile": "09901234567"},
			}}},
		},
	})

	require.NoError(t, f.engine.Execute(context.Background(), f.receptor.ID, f.shipment.ID))
	require.Len(t, f.sms.SendCalls, 1)
	assert.Equal(t, "09901234567", f.sms.SendCalls[0].Receptor)
}

func TestPrepareVariables(t *testing.T) {
	created := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	shipment := &model.Shipment{
		CustomerFirstName: "Ali",
		CustomerLastName:  "Rezai",
		SystemOrderID:     "ORD-A1B2C3D4E5",
		TotalPrice:        2500000,
		CreatedAt:         created,
	}
	receptor := &model.Receptor{CompanyName: "Hamta Shop"}

	vars := prepareVariables(shipment, receptor)

	assert.Equal(t, "Ali Rezai", vars["customer_name"])
	assert.Equal(t, "ORD-A1B2C3D4E5", vars["order_id"])
	assert.Equal(t, "2025/11/03", vars["order_register_date"])
	assert.Equal(t, "2,500,000 تومان", vars["total_price"])
	assert.Equal(t, "Hamta Shop", vars["receptor_name"])
}
