package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hamta/tarabar/internal/model"
)

// Postgres is the production Store backed by database/sql over the pgx
// stdlib driver.
type Postgres struct {
	db            *sql.DB
	credentialKey []byte // AES-256 key for provider secrets; nil stores them unsealed
}

// NewPostgres opens and pings a Postgres connection.
func NewPostgres(dsn string, credentialKey []byte) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db, credentialKey: credentialKey}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}

func (p *Postgres) GetReceptor(ctx context.Context, id int64) (*model.Receptor, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, company_name, mobile, allowed_ip,
		       username, orders_base_url, orders_auth_token, provider_ids,
		       created_at, updated_at
		FROM receptors WHERE id = $1`, id)
	return scanReceptor(row)
}

func (p *Postgres) ListReceptors(ctx context.Context) ([]*model.Receptor, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, company_name, mobile, allowed_ip,
		       username, orders_base_url, orders_auth_token, provider_ids,
		       created_at, updated_at
		FROM receptors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Receptor
	for rows.Next() {
		r, err := scanReceptor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceptor(row rowScanner) (*model.Receptor, error) {
	var r model.Receptor
	var providerIDs []byte
	err := row.Scan(&r.ID, &r.FirstName, &r.LastName, &r.CompanyName, &r.Mobile,
		&r.AllowedIP, &r.Username, &r.OrdersBaseURL, &r.OrdersAuthToken,
		&providerIDs, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(providerIDs) > 0 {
		if err := json.Unmarshal(providerIDs, &r.ProviderIDs); err != nil {
			return nil, fmt.Errorf("decoding receptor %d provider ids: %w", r.ID, err)
		}
	}
	return &r, nil
}

func (p *Postgres) SaveReceptor(ctx context.Context, r *model.Receptor) error {
	ids, err := json.Marshal(r.ProviderIDs)
	if err != nil {
		return err
	}
	now := time.Now()
	if r.ID == 0 {
		r.CreatedAt = now
		r.UpdatedAt = now
		return p.db.QueryRowContext(ctx, `
			INSERT INTO receptors (first_name, last_name, company_name, mobile,
			    allowed_ip, username, orders_base_url, orders_auth_token,
			    provider_ids, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
			r.FirstName, r.LastName, r.CompanyName, r.Mobile, r.AllowedIP,
			r.Username, r.OrdersBaseURL, r.OrdersAuthToken, ids, r.CreatedAt, r.UpdatedAt,
		).Scan(&r.ID)
	}
	r.UpdatedAt = now
	res, err := p.db.ExecContext(ctx, `
		UPDATE receptors SET first_name=$2, last_name=$3, company_name=$4,
		    mobile=$5, allowed_ip=$6, username=$7, orders_base_url=$8,
		    orders_auth_token=$9, provider_ids=$10, updated_at=$11
		WHERE id=$1`,
		r.ID, r.FirstName, r.LastName, r.CompanyName, r.Mobile, r.AllowedIP,
		r.Username, r.OrdersBaseURL, r.OrdersAuthToken, ids, r.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteReceptor removes the receptor and cascades its workflow tree in one
// transaction.
func (p *Postgres) DeleteReceptor(ctx context.Context, id int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM workflow_step_actions WHERE step_id IN (
			SELECT s.id FROM workflow_steps s
			JOIN workflows w ON w.id = s.workflow_id
			WHERE w.receptor_id = $1)`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM workflow_steps WHERE workflow_id IN (
			SELECT id FROM workflows WHERE receptor_id = $1)`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM workflows WHERE receptor_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM receptors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateShipment inserts the shipment with its items. The unique index on
// (receptor_id, source_order_id) enforces at-most-once ingestion; a collision
// on system_order_id regenerates the id and retries the insert.
func (p *Postgres) CreateShipment(ctx context.Context, s *model.Shipment, items []model.OrderItem) error {
	if s.SystemOrderID == "" {
		s.SystemOrderID = model.NewSystemOrderID()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	var err error
	for attempt := 0; attempt < maxOrderIDRetries; attempt++ {
		err = p.insertShipment(ctx, s, items)
		if err == nil {
			return nil
		}
		if isUniqueViolation(err, "shipments_receptor_source_key") {
			return ErrDuplicateOrder
		}
		if isUniqueViolation(err, "shipments_system_order_id_key") {
			s.SystemOrderID = model.NewSystemOrderID()
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %v", errSystemOrderIDExhausted, err)
}

func (p *Postgres) insertShipment(ctx context.Context, s *model.Shipment, items []model.OrderItem) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	resp, err := json.Marshal(s.ProviderResponse)
	if err != nil {
		return err
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO shipments (receptor_id, system_order_id, source_order_id,
		    customer_first_name, customer_last_name, origin, destination_city,
		    address, postcode, mobile, total_price, status, provider_id,
		    provider_tracking_number, provider_order_id, sent_to_provider_at,
		    provider_response, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING id`,
		s.ReceptorID, s.SystemOrderID, s.SourceOrderID, s.CustomerFirstName,
		s.CustomerLastName, s.Origin, s.DestinationCity, s.Address, s.Postcode,
		s.Mobile, s.TotalPrice, s.Status, nullIfZero(s.ProviderID),
		s.ProviderTrackingNumber, s.ProviderOrderID, s.SentToProviderAt,
		resp, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		return err
	}

	for i := range items {
		it := &items[i]
		it.ShipmentID = s.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (shipment_id, source_item_id, product_id,
			    variation_id, quantity, sku)
			VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			it.ShipmentID, it.SourceItemID, it.ProductID, it.VariationID,
			it.Quantity, it.SKU,
		).Scan(&it.ID)
		if err != nil {
			return err
		}
		if it.Pricing != nil {
			pr := it.Pricing
			pr.OrderItemID = it.ID
			err = tx.QueryRowContext(ctx, `
				INSERT INTO order_item_pricing (order_item_id, item_name,
				    unit_price, quantity, subtotal, discount, tax, total, currency)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
				pr.OrderItemID, pr.ItemName, pr.UnitPrice, pr.Quantity,
				pr.Subtotal, pr.Discount, pr.Tax, pr.Total, pr.Currency,
			).Scan(&pr.ID)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (p *Postgres) GetShipment(ctx context.Context, id int64) (*model.Shipment, error) {
	row := p.db.QueryRowContext(ctx, shipmentSelect+` WHERE id = $1`, id)
	return scanShipment(row)
}

func (p *Postgres) FindShipmentBySourceOrder(ctx context.Context, receptorID int64, sourceOrderID string) (*model.Shipment, error) {
	row := p.db.QueryRowContext(ctx, shipmentSelect+` WHERE receptor_id = $1 AND source_order_id = $2`,
		receptorID, sourceOrderID)
	return scanShipment(row)
}

const shipmentSelect = `
	SELECT id, receptor_id, system_order_id, source_order_id,
	       customer_first_name, customer_last_name, origin, destination_city,
	       address, postcode, mobile, total_price, status, provider_id,
	       provider_tracking_number, provider_order_id, sent_to_provider_at,
	       provider_response, created_at, updated_at
	FROM shipments`

func scanShipment(row rowScanner) (*model.Shipment, error) {
	var s model.Shipment
	var providerID sql.NullInt64
	var sentAt sql.NullTime
	var resp []byte
	err := row.Scan(&s.ID, &s.ReceptorID, &s.SystemOrderID, &s.SourceOrderID,
		&s.CustomerFirstName, &s.CustomerLastName, &s.Origin, &s.DestinationCity,
		&s.Address, &s.Postcode, &s.Mobile, &s.TotalPrice, &s.Status,
		&providerID, &s.ProviderTrackingNumber, &s.ProviderOrderID, &sentAt,
		&resp, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.ProviderID = providerID.Int64
	if sentAt.Valid {
		t := sentAt.Time
		s.SentToProviderAt = &t
	}
	if len(resp) > 0 {
		if err := json.Unmarshal(resp, &s.ProviderResponse); err != nil {
			return nil, fmt.Errorf("decoding shipment %d provider response: %w", s.ID, err)
		}
	}
	return &s, nil
}

func (p *Postgres) UpdateShipment(ctx context.Context, s *model.Shipment) error {
	resp, err := json.Marshal(s.ProviderResponse)
	if err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	res, err := p.db.ExecContext(ctx, `
		UPDATE shipments SET status=$2, provider_id=$3,
		    provider_tracking_number=$4, provider_order_id=$5,
		    sent_to_provider_at=$6, provider_response=$7, updated_at=$8
		WHERE id=$1`,
		s.ID, s.Status, nullIfZero(s.ProviderID), s.ProviderTrackingNumber,
		s.ProviderOrderID, s.SentToProviderAt, resp, s.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *Postgres) ListShipmentItems(ctx context.Context, shipmentID int64) ([]model.OrderItem, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT i.id, i.shipment_id, i.source_item_id, i.product_id,
		       i.variation_id, i.quantity, i.sku,
		       p.id, p.item_name, p.unit_price, p.quantity, p.subtotal,
		       p.discount, p.tax, p.total, p.currency
		FROM order_items i
		LEFT JOIN order_item_pricing p ON p.order_item_id = i.id
		WHERE i.shipment_id = $1 ORDER BY i.id`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		var prID sql.NullInt64
		var name, currency sql.NullString
		var unit, subtotal, discount, tax, total sql.NullFloat64
		var qty sql.NullInt64
		err := rows.Scan(&it.ID, &it.ShipmentID, &it.SourceItemID, &it.ProductID,
			&it.VariationID, &it.Quantity, &it.SKU,
			&prID, &name, &unit, &qty, &subtotal, &discount, &tax, &total, &currency)
		if err != nil {
			return nil, err
		}
		if prID.Valid {
			it.Pricing = &model.OrderItemPricing{
				ID:          prID.Int64,
				OrderItemID: it.ID,
				ItemName:    name.String,
				UnitPrice:   unit.Float64,
				Quantity:    int(qty.Int64),
				Subtotal:    subtotal.Float64,
				Discount:    discount.Float64,
				Tax:         tax.Float64,
				Total:       total.Float64,
				Currency:    currency.String,
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (p *Postgres) GetProvider(ctx context.Context, id int64) (*model.Provider, error) {
	row := p.db.QueryRowContext(ctx, providerSelect+` WHERE id = $1`, id)
	return p.scanProvider(row)
}

func (p *Postgres) ListProviders(ctx context.Context, activeOnly bool) ([]*model.Provider, error) {
	q := providerSelect
	if activeOnly {
		q += ` WHERE is_active`
	}
	rows, err := p.db.QueryContext(ctx, q+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Provider
	for rows.Next() {
		pr, err := p.scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

const providerSelect = `
	SELECT id, name, code, api_base_url, api_username, api_password, api_key,
	       is_active, config, created_at, updated_at
	FROM providers`

func (p *Postgres) scanProvider(row rowScanner) (*model.Provider, error) {
	var pr model.Provider
	var sealed string
	var cfg []byte
	err := row.Scan(&pr.ID, &pr.Name, &pr.Code, &pr.APIBaseURL, &pr.APIUsername,
		&sealed, &pr.APIKey, &pr.IsActive, &cfg, &pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	pr.APIPassword = model.SealedFrom(sealed)
	if p.credentialKey != nil {
		pr.APIPassword, err = pr.APIPassword.Unseal(p.credentialKey)
		if err != nil {
			return nil, fmt.Errorf("provider %d: %w", pr.ID, err)
		}
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &pr.Config); err != nil {
			return nil, fmt.Errorf("decoding provider %d config: %w", pr.ID, err)
		}
	}
	return &pr, nil
}

func (p *Postgres) SaveProvider(ctx context.Context, pr *model.Provider) error {
	password := pr.APIPassword
	if p.credentialKey != nil {
		var err error
		password, err = password.Seal(p.credentialKey)
		if err != nil {
			return err
		}
	} else if password.Ciphertext() == "" {
		// no key configured: store the plaintext as-is
		plain, err := password.Plaintext()
		if err != nil {
			return err
		}
		password = model.SealedFrom(plain)
	}

	cfg, err := json.Marshal(pr.Config)
	if err != nil {
		return err
	}
	now := time.Now()
	if pr.ID == 0 {
		pr.CreatedAt = now
		pr.UpdatedAt = now
		return p.db.QueryRowContext(ctx, `
			INSERT INTO providers (name, code, api_base_url, api_username,
			    api_password, api_key, is_active, config, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
			pr.Name, pr.Code, pr.APIBaseURL, pr.APIUsername, password.Ciphertext(),
			pr.APIKey, pr.IsActive, cfg, pr.CreatedAt, pr.UpdatedAt,
		).Scan(&pr.ID)
	}
	pr.UpdatedAt = now
	res, err := p.db.ExecContext(ctx, `
		UPDATE providers SET name=$2, code=$3, api_base_url=$4, api_username=$5,
		    api_password=$6, api_key=$7, is_active=$8, config=$9, updated_at=$10
		WHERE id=$1`,
		pr.ID, pr.Name, pr.Code, pr.APIBaseURL, pr.APIUsername,
		password.Ciphertext(), pr.APIKey, pr.IsActive, cfg, pr.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteProvider refuses to remove a provider while shipments reference it.
func (p *Postgres) DeleteProvider(ctx context.Context, id int64) error {
	var referenced bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM shipments WHERE provider_id = $1)`, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return ErrProviderInUse
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM providers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *Postgres) GetWorkflowForReceptor(ctx context.Context, receptorID int64) (*model.Workflow, error) {
	var w model.Workflow
	err := p.db.QueryRowContext(ctx,
		`SELECT id, receptor_id, is_active FROM workflows WHERE receptor_id = $1`,
		receptorID).Scan(&w.ID, &w.ReceptorID, &w.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT s.id, s.step_order, s.name,
		       a.id, a.action_order, a.kind, a.config
		FROM workflow_steps s
		LEFT JOIN workflow_step_actions a ON a.step_id = s.id
		WHERE s.workflow_id = $1
		ORDER BY s.step_order, s.id, a.action_order, a.id`, w.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var current *model.WorkflowStep
	for rows.Next() {
		var stepID, stepOrder int64
		var stepName string
		var actionID, actionOrder sql.NullInt64
		var kind sql.NullString
		var cfg []byte
		if err := rows.Scan(&stepID, &stepOrder, &stepName, &actionID, &actionOrder, &kind, &cfg); err != nil {
			return nil, err
		}
		if current == nil || current.ID != stepID {
			w.Steps = append(w.Steps, model.WorkflowStep{ID: stepID, Order: int(stepOrder), Name: stepName})
			current = &w.Steps[len(w.Steps)-1]
		}
		if actionID.Valid {
			action := model.WorkflowStepAction{
				DBID:  actionID.Int64,
				Order: int(actionOrder.Int64),
				Kind:  model.ActionKind(kind.String),
			}
			if len(cfg) > 0 {
				if err := json.Unmarshal(cfg, &action.Config); err != nil {
					return nil, fmt.Errorf("decoding action %d config: %w", action.DBID, err)
				}
			}
			current.Actions = append(current.Actions, action)
		}
	}
	return &w, rows.Err()
}

// SaveWorkflow replaces the workflow tree of the receptor after validating
// every action kind.
func (p *Postgres) SaveWorkflow(ctx context.Context, w *model.Workflow) error {
	if err := validateWorkflow(w); err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO workflows (receptor_id, is_active)
		VALUES ($1, $2)
		ON CONFLICT (receptor_id) DO UPDATE SET is_active = EXCLUDED.is_active
		RETURNING id`, w.ReceptorID, w.IsActive).Scan(&w.ID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM workflow_step_actions WHERE step_id IN (
			SELECT id FROM workflow_steps WHERE workflow_id = $1)`, w.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_steps WHERE workflow_id = $1`, w.ID); err != nil {
		return err
	}

	for i := range w.Steps {
		step := &w.Steps[i]
		err = tx.QueryRowContext(ctx, `
			INSERT INTO workflow_steps (workflow_id, step_order, name)
			VALUES ($1, $2, $3) RETURNING id`,
			w.ID, step.Order, step.Name).Scan(&step.ID)
		if err != nil {
			return err
		}
		for j := range step.Actions {
			action := &step.Actions[j]
			cfg, err := json.Marshal(action.Config)
			if err != nil {
				return err
			}
			err = tx.QueryRowContext(ctx, `
				INSERT INTO workflow_step_actions (step_id, action_order, kind, config)
				VALUES ($1, $2, $3, $4) RETURNING id`,
				step.ID, action.Order, action.Kind, cfg).Scan(&action.DBID)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func nullIfZero(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
