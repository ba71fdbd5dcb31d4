package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamta/tarabar/internal/model"
)

// Memory is an in-memory Store used by tests and by local runs without a
// database. All maps are guarded by one mutex; this store is not meant for
// load.
type Memory struct {
	mu        sync.Mutex
	receptors map[int64]*model.Receptor
	shipments map[int64]*model.Shipment
	items     map[int64][]model.OrderItem // shipment id -> items
	providers map[int64]*model.Provider
	workflows map[int64]*model.Workflow // receptor id -> workflow

	orderIDs map[string]int64 // system order id -> shipment id
	bySource map[sourceKey]int64

	nextID int64
}

type sourceKey struct {
	receptorID    int64
	sourceOrderID string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		receptors: map[int64]*model.Receptor{},
		shipments: map[int64]*model.Shipment{},
		items:     map[int64][]model.OrderItem{},
		providers: map[int64]*model.Provider{},
		workflows: map[int64]*model.Workflow{},
		orderIDs:  map[string]int64{},
		bySource:  map[sourceKey]int64{},
	}
}

func (m *Memory) nextSeq() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) GetReceptor(ctx context.Context, id int64) (*model.Receptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receptors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) ListReceptors(ctx context.Context) ([]*model.Receptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Receptor, 0, len(m.receptors))
	for _, r := range m.receptors {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveReceptor(ctx context.Context, r *model.Receptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.nextSeq()
		r.CreatedAt = time.Now()
	}
	r.UpdatedAt = time.Now()
	cp := *r
	m.receptors[r.ID] = &cp
	return nil
}

// DeleteReceptor removes the receptor and cascades its workflow.
func (m *Memory) DeleteReceptor(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receptors[id]; !ok {
		return ErrNotFound
	}
	delete(m.receptors, id)
	delete(m.workflows, id)
	return nil
}

// CreateShipment assigns ids and persists the shipment with its items. The
// (receptor, source order) pair is enforced at-most-once; a fresh system
// order id is regenerated on the rare collision.
func (m *Memory) CreateShipment(ctx context.Context, s *model.Shipment, items []model.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sourceKey{receptorID: s.ReceptorID, sourceOrderID: s.SourceOrderID}
	if _, exists := m.bySource[key]; exists {
		return ErrDuplicateOrder
	}

	if s.SystemOrderID == "" {
		s.SystemOrderID = model.NewSystemOrderID()
	}
	for i := 0; i < maxOrderIDRetries; i++ {
		if _, taken := m.orderIDs[s.SystemOrderID]; !taken {
			break
		}
		s.SystemOrderID = model.NewSystemOrderID()
	}
	if _, taken := m.orderIDs[s.SystemOrderID]; taken {
		return errSystemOrderIDExhausted
	}

	s.ID = m.nextSeq()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt

	stored := make([]model.OrderItem, len(items))
	for i := range items {
		it := items[i]
		it.ID = m.nextSeq()
		it.ShipmentID = s.ID
		if it.Pricing != nil {
			p := *it.Pricing
			p.ID = m.nextSeq()
			p.OrderItemID = it.ID
			it.Pricing = &p
		}
		stored[i] = it
	}

	cp := *s
	m.shipments[s.ID] = &cp
	m.items[s.ID] = stored
	m.orderIDs[s.SystemOrderID] = s.ID
	m.bySource[key] = s.ID
	return nil
}

func (m *Memory) GetShipment(ctx context.Context, id int64) (*model.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) FindShipmentBySourceOrder(ctx context.Context, receptorID int64, sourceOrderID string) (*model.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySource[sourceKey{receptorID: receptorID, sourceOrderID: sourceOrderID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.shipments[id]
	return &cp, nil
}

func (m *Memory) UpdateShipment(ctx context.Context, s *model.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shipments[s.ID]; !ok {
		return ErrNotFound
	}
	s.UpdatedAt = time.Now()
	cp := *s
	m.shipments[s.ID] = &cp
	return nil
}

func (m *Memory) ListShipmentItems(ctx context.Context, shipmentID int64) ([]model.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shipments[shipmentID]; !ok {
		return nil, ErrNotFound
	}
	items := m.items[shipmentID]
	out := make([]model.OrderItem, len(items))
	copy(out, items)
	return out, nil
}

func (m *Memory) GetProvider(ctx context.Context, id int64) (*model.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListProviders(ctx context.Context, activeOnly bool) ([]*model.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Provider, 0, len(m.providers))
	for _, p := range m.providers {
		if activeOnly && !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveProvider(ctx context.Context, p *model.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.nextSeq()
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = time.Now()
	cp := *p
	m.providers[p.ID] = &cp
	return nil
}

// DeleteProvider refuses to remove a provider while shipments reference it.
func (m *Memory) DeleteProvider(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[id]; !ok {
		return ErrNotFound
	}
	for _, s := range m.shipments {
		if s.ProviderID == id {
			return ErrProviderInUse
		}
	}
	delete(m.providers, id)
	return nil
}

func (m *Memory) GetWorkflowForReceptor(ctx context.Context, receptorID int64) (*model.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[receptorID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneWorkflow(w), nil
}

// SaveWorkflow persists the workflow tree after validating every action
// kind. Steps and actions are returned ordered by their order field, ties
// broken by insertion order.
func (m *Memory) SaveWorkflow(ctx context.Context, w *model.Workflow) error {
	if err := validateWorkflow(w); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receptors[w.ReceptorID]; !ok {
		return ErrNotFound
	}
	if w.ID == 0 {
		w.ID = m.nextSeq()
	}
	for i := range w.Steps {
		if w.Steps[i].ID == 0 {
			w.Steps[i].ID = m.nextSeq()
		}
		for j := range w.Steps[i].Actions {
			if w.Steps[i].Actions[j].DBID == 0 {
				w.Steps[i].Actions[j].DBID = m.nextSeq()
			}
		}
	}
	cp := cloneWorkflow(w)
	sortWorkflow(cp)
	m.workflows[w.ReceptorID] = cp
	return nil
}

func cloneWorkflow(w *model.Workflow) *model.Workflow {
	cp := *w
	cp.Steps = make([]model.WorkflowStep, len(w.Steps))
	for i, step := range w.Steps {
		s := step
		s.Actions = make([]model.WorkflowStepAction, len(step.Actions))
		copy(s.Actions, step.Actions)
		cp.Steps[i] = s
	}
	return &cp
}

func sortWorkflow(w *model.Workflow) {
	sort.SliceStable(w.Steps, func(i, j int) bool {
		if w.Steps[i].Order != w.Steps[j].Order {
			return w.Steps[i].Order < w.Steps[j].Order
		}
		return w.Steps[i].ID < w.Steps[j].ID
	})
	for i := range w.Steps {
		actions := w.Steps[i].Actions
		sort.SliceStable(actions, func(a, b int) bool {
			if actions[a].Order != actions[b].Order {
				return actions[a].Order < actions[b].Order
			}
			return actions[a].DBID < actions[b].DBID
		})
	}
}
