package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fieldops/internal/service/order/domain"
)

// fakeStore 是 OrderRepository + ReferenceRepository 的进程内实现，
// 行为与 GORM 版对齐：FindByID 返回副本，Update 带乐观条件。
type fakeStore struct {
	mu            sync.Mutex
	orders        map[string]*domain.Order
	history       []domain.StatusHistory
	audits        []domain.AuditEntry
	events        []domain.OrderEvent
	cancellations map[string]*domain.CancellationRecord
	splits        []domain.SplitLink

	installers map[string]bool
	branches   map[string]bool
	partners   map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:        make(map[string]*domain.Order),
		cancellations: make(map[string]*domain.CancellationRecord),
		installers:    map[string]bool{"inst-1": true, "inst-2": true},
		branches:      map[string]bool{"b1": true, "b2": true},
		partners:      map[string]bool{"p1": true},
	}
}

func copyOrder(o *domain.Order) *domain.Order {
	dup := *o
	dup.Lines = make([]domain.OrderLine, len(o.Lines))
	copy(dup.Lines, o.Lines)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		dup.CompletedAt = &t
	}
	if o.DeletedAt != nil {
		t := *o.DeletedAt
		dup.DeletedAt = &t
	}
	return &dup
}

func (f *fakeStore) seed(o *domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = copyOrder(o)
}

func (f *fakeStore) stored(id string) *domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		return copyOrder(o)
	}
	return nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		return copyOrder(o), nil
	}
	return nil, nil
}

func (f *fakeStore) Create(_ context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[order.ID]; ok {
		return fmt.Errorf("duplicate order id %s", order.ID)
	}
	f.orders[order.ID] = copyOrder(order)
	return nil
}

func (f *fakeStore) Update(_ context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.orders[order.ID]
	if !ok {
		return fmt.Errorf("order %s vanished", order.ID)
	}
	if stored.Version != order.Version-1 {
		return domain.NewVersionConflict(domain.CodeVersionMismatch, order.Version-1, stored.Version, copyOrder(stored))
	}
	f.orders[order.ID] = copyOrder(order)
	return nil
}

func (f *fakeStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		o.DeletedAt = &at
	}
	return nil
}

func (f *fakeStore) AppendHistory(_ context.Context, row *domain.StatusHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, *row)
	return nil
}

func (f *fakeStore) AppendAudit(_ context.Context, row *domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, *row)
	return nil
}

func (f *fakeStore) AppendEvent(_ context.Context, row *domain.OrderEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *row)
	return nil
}

func (f *fakeStore) CountEvents(_ context.Context, orderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, e := range f.events {
		if e.OrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) FindCancellation(_ context.Context, orderID string) (*domain.CancellationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.cancellations[orderID]; ok {
		dup := *r
		return &dup, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateCancellation(_ context.Context, row *domain.CancellationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dup := *row
	f.cancellations[row.OrderID] = &dup
	return nil
}

func (f *fakeStore) DeleteCancellation(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cancellations, orderID)
	return nil
}

func (f *fakeStore) CreateSplitLink(_ context.Context, row *domain.SplitLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.splits = append(f.splits, *row)
	return nil
}

func (f *fakeStore) InstallerExists(_ context.Context, id string) (bool, error) {
	return f.installers[id], nil
}

func (f *fakeStore) BranchExists(_ context.Context, id string) (bool, error) {
	return f.branches[id], nil
}

func (f *fakeStore) PartnerExists(_ context.Context, id string) (bool, error) {
	return f.partners[id], nil
}

// fakeTx 直接透传：编排层的检查顺序本身保证“先校验后写”，
// 这些测试不依赖真实回滚。
type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context, repos *domain.Repositories) error) error {
	return fn(ctx, &domain.Repositories{Orders: t.store, Refs: t.store})
}

// fakeGate 按网点冻结。
type fakeGate struct {
	lockedBranches map[string]bool
}

func (g *fakeGate) IsOrderLocked(_ context.Context, order *domain.Order) (bool, error) {
	return g.lockedBranches[order.BranchID], nil
}

// fakeLocker 记录加锁的资源名；held 中的资源模拟被别人占住。
type fakeLocker struct {
	mu        sync.Mutex
	held      map[string]bool
	resources []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) WithLockRetry(ctx context.Context, resource string, _ time.Duration, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.resources = append(l.resources, resource)
	if l.held[resource] {
		l.mu.Unlock()
		return domain.NewConflict(domain.CodeAssignLockContended,
			"assignment lock is held by another coordinator", map[string]interface{}{"resource": resource})
	}
	l.held[resource] = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.held, resource)
		l.mu.Unlock()
	}()
	return fn(ctx)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (n *fakeNotifier) Notify(_ context.Context, event *domain.LifecycleEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, *event)
	return nil
}
