// Package workflow executes a receptor's configured post-processing
// pipeline against one shipment: ordered steps, ordered actions within a
// step, each action isolated so one failure never stops the run.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/hamta/tarabar/internal/model"
	"github.com/hamta/tarabar/internal/orders"
	"github.com/hamta/tarabar/internal/sms"
	"github.com/hamta/tarabar/internal/store"
	"github.com/hamta/tarabar/internal/telemetry"
)

// CallbackSender reports an order's registration back to its source system.
type CallbackSender interface {
	SendCallback(ctx context.Context, sourceOrderID, systemOrderID string, shipmentID int64, note string) bool
}

// CallbackFactory builds a CallbackSender for one receptor.
type CallbackFactory func(receptor *model.Receptor) CallbackSender

// Config carries the engine's SMS defaults.
type Config struct {
	CustomerTemplate string // Kavenegar lookup template for customer SMS
	AdminTemplate    string // message template for admin SMS
	Sender           string // sender line for plain sends; empty uses the provider default
}

// Engine runs workflows. Load failures of the receptor, shipment or
// workflow propagate to the job layer for retry; everything past that point
// is logged and swallowed per action.
type Engine struct {
	store       store.Store
	sms         sms.Gateway // nil when no SMS key is configured
	logger      *otelzap.Logger
	metrics     *telemetry.Metrics // optional
	cfg         Config
	newCallback CallbackFactory
}

// NewEngine creates a workflow engine. smsGateway and metrics may be nil.
func NewEngine(st store.Store, smsGateway sms.Gateway, logger *otelzap.Logger, metrics *telemetry.Metrics, cfg Config) *Engine {
	if cfg.CustomerTemplate == "" {
		cfg.CustomerTemplate = "register-cargo"
	}
	e := &Engine{
		store:   st,
		sms:     smsGateway,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
	}
	e.newCallback = func(receptor *model.Receptor) CallbackSender {
		return orders.NewClient(receptor, logger)
	}
	return e
}

// WithCallbackFactory overrides how callback senders are built. Used by
// tests.
func (e *Engine) WithCallbackFactory(f CallbackFactory) *Engine {
	e.newCallback = f
	return e
}

// Execute runs the receptor's workflow against the shipment. An inactive or
// absent workflow is a successful no-op.
func (e *Engine) Execute(ctx context.Context, receptorID, shipmentID int64) error {
	receptor, err := e.store.GetReceptor(ctx, receptorID)
	if err != nil {
		return fmt.Errorf("loading receptor %d: %w", receptorID, err)
	}
	shipment, err := e.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return fmt.Errorf("loading shipment %d: %w", shipmentID, err)
	}

	w, err := e.store.GetWorkflowForReceptor(ctx, receptorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Info("Workflow not found or inactive",
				zap.Int64("receptor_id", receptorID),
				zap.Int64("shipment_id", shipmentID))
			return nil
		}
		return fmt.Errorf("loading workflow for receptor %d: %w", receptorID, err)
	}
	if !w.IsActive {
		e.logger.Info("Workflow not found or inactive",
			zap.Int64("receptor_id", receptorID),
			zap.Int64("shipment_id", shipmentID))
		return nil
	}

	e.logger.Info("Workflow execution started",
		zap.Int64("workflow_id", w.ID),
		zap.Int64("shipment_id", shipmentID),
		zap.String("system_order_id", shipment.SystemOrderID))

	for _, step := range w.Steps {
		e.executeStep(ctx, &step, receptor, shipment)
	}

	e.logger.Info("Workflow execution completed",
		zap.Int64("workflow_id", w.ID),
		zap.Int64("shipment_id", shipmentID))
	return nil
}

func (e *Engine) executeStep(ctx context.Context, step *model.WorkflowStep, receptor *model.Receptor, shipment *model.Shipment) {
	e.logger.Info("Executing step",
		zap.Int64("step_id", step.ID),
		zap.String("step_name", step.Name),
		zap.Int("step_order", step.Order),
		zap.Int64("shipment_id", shipment.ID))

	for _, action := range step.Actions {
		e.executeAction(ctx, &action, receptor, shipment)
	}
}

func (e *Engine) executeAction(ctx context.Context, action *model.WorkflowStepAction, receptor *model.Receptor, shipment *model.Shipment) {
	e.logger.Info("Executing action",
		zap.Int64("action_id", action.DBID),
		zap.String("action_type", string(action.Kind)),
		zap.Int64("shipment_id", shipment.ID))

	var ok bool
	switch action.Kind {
	case model.ActionNotifyReceptor:
		ok = e.notifyReceptor(ctx, action, receptor, shipment)
	case model.ActionSMSToCustomer:
		ok = e.sendSMSToCustomer(ctx, action, receptor, shipment)
	case model.ActionSMSToAdmin:
		ok = e.sendSMSToAdmin(ctx, action, receptor, shipment)
	default:
		e.logger.Warn("Unknown action type",
			zap.Int64("action_id", action.DBID),
			zap.String("action_type", string(action.Kind)))
		return
	}

	if e.metrics != nil {
		status := "failed"
		if ok {
			status = "ok"
		}
		e.metrics.RecordWorkflowAction(string(action.Kind), status)
	}
}

func (e *Engine) notifyReceptor(ctx context.Context, action *model.WorkflowStepAction, receptor *model.Receptor, shipment *model.Shipment) bool {
	note := action.ConfigString("note", "")

	if !receptor.OrdersAPIConfigured() {
		e.logger.Error("Receptor API not configured",
			zap.Int64("action_id", action.DBID),
			zap.Int64("shipment_id", shipment.ID))
		return false
	}

	ok := e.newCallback(receptor).SendCallback(ctx, shipment.SourceOrderID, shipment.SystemOrderID, shipment.ID, note)
	if ok {
		e.logger.Info("Receptor notified",
			zap.Int64("action_id", action.DBID),
			zap.Int64("shipment_id", shipment.ID),
			zap.String("source_order_id", shipment.SourceOrderID))
	} else {
		e.logger.Warn("Receptor notification failed",
			zap.Int64("action_id", action.DBID),
			zap.Int64("shipment_id", shipment.ID),
			zap.String("source_order_id", shipment.SourceOrderID))
	}
	if e.metrics != nil {
		outcome := "failed"
		if ok {
			outcome = "ok"
		}
		e.metrics.RecordCallback(outcome)
	}
	return ok
}

func (e *Engine) sendSMSToCustomer(ctx context.Context, action *model.WorkflowStepAction, receptor *model.Receptor, shipment *model.Shipment) bool {
	if shipment.Mobile == "" {
		e.logger.Error("Mobile number is empty",
			zap.Int64("action_id", action.DBID),
			zap.Int64("shipment_id", shipment.ID),
			zap.String("system_order_id", shipment.SystemOrderID))
		return false
	}
	if e.sms == nil {
		e.logger.Error("SMS gateway not configured",
			zap.Int64("action_id", action.DBID),
			zap.Int64("shipment_id", shipment.ID))
		return false
	}

	vars := prepareVariables(shipment, receptor)
	template := action.ConfigString("template", e.cfg.CustomerTemplate)

	err := e.sms.Lookup(ctx, shipment.Mobile, vars["receptor_name"], vars["order_id"], template)
	if err != nil {
		e.logger.Error("Failed to send SMS to customer",
			zap.Int64("action_id", action.DBID),
			zap.Int64("shipment_id", shipment.ID),
			zap.String("mobile", shipment.Mobile),
			zap.Error(err))
		return false
	}

	e.logger.Info("SMS sent to customer",
		zap.Int64("action_id", action.DBID),
		zap.Int64("shipment_id", shipment.ID),
		zap.String("mobile", shipment.Mobile))
	return true
}

func (e *Engine) sendSMSToAdmin(ctx context.Context, action *model.WorkflowStepAction, receptor *model.Receptor, shipment *model.Shipment) bool {
	mobile := action.ConfigString("mobile", receptor.Mobile)
	if mobile == "" {
		e.logger.Error("Admin mobile not configured",
			zap.Int64("action_id", action.DBID),
			zap.Int64("shipment_id", shipment.ID))
		return false
	}
	if e.sms == nil {
		e.logger.Error("SMS gateway not configured",
			zap.Int64("action_id", action.DBID),
			zap.Int64("shipment_id", shipment.ID))
		return false
	}

	vars := prepareVariables(shipment, receptor)
	template := action.ConfigString("template", e.cfg.AdminTemplate)
	message := ReplaceVariables(template, vars)

	if err := e.sms.Send(ctx, mobile, message, e.cfg.Sender); err != nil {
		e.logger.Error("Failed to send SMS to admin",
			zap.Int64("action_id", action.DBID),
			zap.Int64("shipment_id", shipment.ID),
			zap.String("mobile", mobile),
			zap.Error(err))
		return false
	}

	e.logger.Info("SMS sent to admin",
		zap.Int64("action_id", action.DBID),
		zap.Int64("shipment_id", shipment.ID),
		zap.String("mobile", mobile))
	return true
}

// prepareVariables builds the template variable set for one shipment.
func prepareVariables(shipment *model.Shipment, receptor *model.Receptor) map[string]string {
	return map[string]string{
		"customer_name":       shipment.CustomerFullName(),
		"order_id":            shipment.SystemOrderID,
		"order_register_date": shipment.CreatedAt.Format("2006/01/02"),
		"total_price":         formatPrice(shipment.TotalPrice) + " تومان",
		"receptor_name":       receptor.CompanyName,
	}
}
