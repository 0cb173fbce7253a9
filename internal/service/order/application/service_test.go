package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/pkg/clock"
	"fieldops/internal/service/order/domain"
)

var testNow = time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

type harness struct {
	store    *fakeStore
	gate     *fakeGate
	locker   *fakeLocker
	notifier *fakeNotifier
	svc      *LifecycleService
}

func newHarness() *harness {
	store := newFakeStore()
	gate := &fakeGate{lockedBranches: map[string]bool{}}
	locker := newFakeLocker()
	notifier := &fakeNotifier{}
	svc := NewLifecycleService(&fakeTx{store: store}, gate, locker, notifier,
		clock.Fixed{T: testNow}, nil, Config{})
	return &harness{store: store, gate: gate, locker: locker, notifier: notifier, svc: svc}
}

func (h *harness) seedOrder(id string, status domain.Status, version int64) *domain.Order {
	order := &domain.Order{
		ID: id, Status: status, Version: version,
		BranchID: "b1", PartnerID: "p1",
		CustomerName: "김민수", CustomerAddress: "서울시 송파구",
		AppointmentDate: testNow,
		PromisedDate:    testNow,
		Lines: []domain.OrderLine{
			{ID: id + "-l1", OrderID: id, ProductSKU: "AC-900", Quantity: 2},
		},
		CreatedAt: testNow.AddDate(0, 0, -3),
		UpdatedAt: testNow.AddDate(0, 0, -3),
	}
	if status == domain.StatusAssigned || status == domain.StatusConfirmed ||
		status == domain.StatusReleased || status == domain.StatusDispatched {
		order.InstallerID = "inst-1"
	}
	h.store.seed(order)
	return order
}

func ptr[T any](v T) *T { return &v }

func TestUpdateOrder_AssignHappyPath(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusUnassigned, 1)

	updated, err := h.svc.UpdateOrder(context.Background(), &UpdateOrderRequest{
		OrderID:         "o1",
		ExpectedVersion: ptr(int64(1)),
		Status:          ptr(domain.StatusAssigned),
		InstallerID:     ptr("inst-1"),
		ChangedBy:       "coordinator-a",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, updated.Status)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "inst-1", updated.InstallerID)

	// 指派路径必须裹分布式锁
	assert.Equal(t, []string{"order:assign:o1"}, h.locker.resources)

	require.Len(t, h.store.history, 1)
	assert.Equal(t, domain.StatusUnassigned, h.store.history[0].PreviousStatus)
	assert.Equal(t, domain.StatusAssigned, h.store.history[0].NewStatus)
	require.Len(t, h.store.audits, 1)

	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, domain.EventStatusChanged, h.notifier.events[0].EventType)
}

func TestUpdateOrder_NonStatusChangeSkipsLock(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusAssigned, 1)

	_, err := h.svc.UpdateOrder(context.Background(), &UpdateOrderRequest{
		OrderID:         "o1",
		ExpectedVersion: ptr(int64(1)),
		AppointmentDate: ptr(testNow.AddDate(0, 0, 1)),
		ChangedBy:       "coordinator-a",
	})
	require.NoError(t, err)
	assert.Empty(t, h.locker.resources)
	// 无状态变化时不追加历史行
	assert.Empty(t, h.store.history)
	assert.Len(t, h.store.audits, 1)
}

func TestUpdateOrder_StaleVersionLeavesRecordUntouched(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusAssigned, 5)

	_, err := h.svc.UpdateOrder(context.Background(), &UpdateOrderRequest{
		OrderID:         "o1",
		ExpectedVersion: ptr(int64(3)),
		Status:          ptr(domain.StatusConfirmed),
		ChangedBy:       "coordinator-a",
	})
	require.Error(t, err)
	derr, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeVersionMismatch, derr.Code)
	// 错误里带当前版本与完整服务端状态，客户端一跳调和
	assert.Equal(t, int64(5), derr.Details["currentVersion"])
	state, ok := derr.Details["serverState"].(*domain.Order)
	require.True(t, ok)
	assert.Equal(t, domain.StatusAssigned, state.Status)

	// 存储侧完全未动
	stored := h.store.stored("o1")
	assert.Equal(t, int64(5), stored.Version)
	assert.Equal(t, domain.StatusAssigned, stored.Status)
	assert.Empty(t, h.store.history)
}

func TestUpdateOrder_SettlementLockWinsOverVersionConflict(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusAssigned, 5)
	h.gate.lockedBranches["b1"] = true

	_, err := h.svc.UpdateOrder(context.Background(), &UpdateOrderRequest{
		OrderID:         "o1",
		ExpectedVersion: ptr(int64(3)), // 版本同样过期
		Status:          ptr(domain.StatusConfirmed),
		ChangedBy:       "coordinator-a",
	})
	require.Error(t, err)
	// 结算冻结短路在版本校验之前：报 E2002 而不是 E2017
	assert.Equal(t, domain.CodeSettlementLocked, domain.CodeOf(err))
	assert.Equal(t, int64(5), h.store.stored("o1").Version)
}

func TestUpdateOrder_GuardFailure(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusUnassigned, 1)

	_, err := h.svc.UpdateOrder(context.Background(), &UpdateOrderRequest{
		OrderID:   "o1",
		Status:    ptr(domain.StatusAssigned),
		ChangedBy: "coordinator-a",
		// 不带 installer，UNASSIGNED→ASSIGNED 守卫必须拒绝
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidTransition, domain.CodeOf(err))
	assert.Equal(t, int64(1), h.store.stored("o1").Version)
}

func TestUpdateOrder_ReferenceChecks(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusUnassigned, 1)

	_, err := h.svc.UpdateOrder(context.Background(), &UpdateOrderRequest{
		OrderID: "o1", Status: ptr(domain.StatusAssigned),
		InstallerID: ptr("ghost"), ChangedBy: "c",
	})
	assert.Equal(t, domain.CodeInstallerNotFound, domain.CodeOf(err))

	_, err = h.svc.UpdateOrder(context.Background(), &UpdateOrderRequest{
		OrderID: "o1", BranchID: ptr("ghost"), ChangedBy: "c",
	})
	assert.Equal(t, domain.CodeBranchNotFound, domain.CodeOf(err))

	_, err = h.svc.UpdateOrder(context.Background(), &UpdateOrderRequest{
		OrderID: "o1", PartnerID: ptr("ghost"), ChangedBy: "c",
	})
	assert.Equal(t, domain.CodePartnerNotFound, domain.CodeOf(err))
}

func TestUpdateOrder_AssignLockContention(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusUnassigned, 1)
	h.locker.held["order:assign:o1"] = true

	_, err := h.svc.UpdateOrder(context.Background(), &UpdateOrderRequest{
		OrderID: "o1", Status: ptr(domain.StatusAssigned),
		InstallerID: ptr("inst-1"), ChangedBy: "c",
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeAssignLockContended, domain.CodeOf(err))
	assert.Equal(t, int64(1), h.store.stored("o1").Version)
}

func TestUpdateOrder_NotFound(t *testing.T) {
	h := newHarness()
	_, err := h.svc.UpdateOrder(context.Background(), &UpdateOrderRequest{OrderID: "nope", ChangedBy: "c"})
	assert.Equal(t, domain.CodeOrderNotFound, domain.CodeOf(err))
}

func TestCompleteOrder_Scenario(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusDispatched, 4)

	updated, err := h.svc.CompleteOrder(context.Background(), &CompleteOrderRequest{
		OrderID:         "o1",
		ExpectedVersion: ptr(int64(4)),
		Serials:         []LineSerial{{LineID: "o1-l1", SerialNo: "SN-0099", WasteCode: "P07"}},
		CompletedBy:     "inst-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Equal(t, int64(5), updated.Version) // 恰好 +1
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, "SN-0099", updated.Lines[0].SerialNo)

	require.Len(t, h.store.history, 1)
	assert.Equal(t, domain.StatusDispatched, h.store.history[0].PreviousStatus)
	assert.Equal(t, domain.StatusCompleted, h.store.history[0].NewStatus)
}

func TestCompleteOrder_ErrorCodes(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusDispatched, 1)

	_, err := h.svc.CompleteOrder(context.Background(), &CompleteOrderRequest{
		OrderID: "missing", CompletedBy: "i",
	})
	assert.Equal(t, domain.CodeCompletionNotFound, domain.CodeOf(err))

	_, err = h.svc.CompleteOrder(context.Background(), &CompleteOrderRequest{
		OrderID: "o1", Serials: []LineSerial{{LineID: "o1-l1", SerialNo: "SN", WasteCode: "P22"}},
		CompletedBy: "i",
	})
	assert.Equal(t, domain.CodeInvalidWasteCode, domain.CodeOf(err))

	_, err = h.svc.CompleteOrder(context.Background(), &CompleteOrderRequest{
		OrderID: "o1", Serials: []LineSerial{{LineID: "ghost-line", SerialNo: "SN"}},
		CompletedBy: "i",
	})
	assert.Equal(t, domain.CodeLineNotFound, domain.CodeOf(err))

	// 序列号没回填全 → DISPATCHED→COMPLETED 守卫拒绝
	_, err = h.svc.CompleteOrder(context.Background(), &CompleteOrderRequest{
		OrderID: "o1", CompletedBy: "i",
	})
	assert.Equal(t, domain.CodeInvalidTransition, domain.CodeOf(err))

	// 全部失败路径都不得落盘
	assert.Equal(t, int64(1), h.store.stored("o1").Version)
}

func TestCancelOrder(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusDispatched, 2)

	updated, err := h.svc.CancelOrder(context.Background(), &CancelOrderRequest{
		OrderID: "o1", ExpectedVersion: ptr(int64(2)),
		Reason: "CUSTOMER_REQUEST", CancelledBy: "cs-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, updated.Status)
	assert.Equal(t, int64(3), updated.Version)

	rec, err := h.store.FindCancellation(context.Background(), "o1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.StatusDispatched, rec.PreviousStatus)

	// 二次取消按冲突拒绝
	_, err = h.svc.CancelOrder(context.Background(), &CancelOrderRequest{
		OrderID: "o1", Reason: "AGAIN", CancelledBy: "cs-1",
	})
	assert.Equal(t, domain.CodeAlreadyCancelled, domain.CodeOf(err))
}

func TestCancelOrder_InvalidStatus(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusCollected, 2)

	_, err := h.svc.CancelOrder(context.Background(), &CancelOrderRequest{
		OrderID: "o1", Reason: "r", CancelledBy: "cs-1",
	})
	assert.Equal(t, domain.CodeInvalidStatus, domain.CodeOf(err))
}

func TestRevertCancellation_RestoresPreviousStatus(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusDispatched, 2)

	_, err := h.svc.CancelOrder(context.Background(), &CancelOrderRequest{
		OrderID: "o1", ExpectedVersion: ptr(int64(2)), Reason: "r", CancelledBy: "cs-1",
	})
	require.NoError(t, err)

	updated, err := h.svc.RevertCancellation(context.Background(), &RevertCancellationRequest{
		OrderID: "o1", ExpectedVersion: ptr(int64(3)), RevertedBy: "cs-2",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDispatched, updated.Status)
	assert.Equal(t, int64(4), updated.Version)

	// 撤销后取消记录消失，可以再次取消
	rec, err := h.store.FindCancellation(context.Background(), "o1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRevertCancellation_Errors(t *testing.T) {
	h := newHarness()

	// 非 CANCELLED 状态
	h.seedOrder("o1", domain.StatusDispatched, 1)
	_, err := h.svc.RevertCancellation(context.Background(), &RevertCancellationRequest{OrderID: "o1", RevertedBy: "c"})
	assert.Equal(t, domain.CodeInvalidStatus, domain.CodeOf(err))

	// CANCELLED 但没有取消记录
	h.seedOrder("o2", domain.StatusCancelled, 1)
	_, err = h.svc.RevertCancellation(context.Background(), &RevertCancellationRequest{OrderID: "o2", RevertedBy: "c"})
	assert.Equal(t, domain.CodeNoCancellation, domain.CodeOf(err))

	// 非法撤销目标
	h.seedOrder("o3", domain.StatusDispatched, 1)
	_, err = h.svc.CancelOrder(context.Background(), &CancelOrderRequest{OrderID: "o3", Reason: "r", CancelledBy: "c"})
	require.NoError(t, err)
	_, err = h.svc.RevertCancellation(context.Background(), &RevertCancellationRequest{
		OrderID: "o3", TargetStatus: ptr(domain.StatusCompleted), RevertedBy: "c",
	})
	assert.Equal(t, domain.CodeInvalidRevertTarget, domain.CodeOf(err))
}

func TestRevertCancellation_CompletedWindow(t *testing.T) {
	h := newHarness()
	order := h.seedOrder("o1", domain.StatusDispatched, 1)

	// 完成于 7 天前，超出 5 天撤销窗口
	completedAt := testNow.AddDate(0, 0, -7)
	order.CompletedAt = &completedAt
	h.store.seed(order)

	_, err := h.svc.CancelOrder(context.Background(), &CancelOrderRequest{OrderID: "o1", Reason: "r", CancelledBy: "c"})
	require.NoError(t, err)

	_, err = h.svc.RevertCancellation(context.Background(), &RevertCancellationRequest{OrderID: "o1", RevertedBy: "c"})
	assert.Equal(t, domain.CodeRevertWindowExceeded, domain.CodeOf(err))
}

func TestAddOrderEvent(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusDispatched, 1)

	count, err := h.svc.AddOrderEvent(context.Background(), &AddOrderEventRequest{
		OrderID: "o1", ExpectedVersion: 1,
		EventType: "SITE_NOTE", Payload: `{"note":"已联系客户"}`, CreatedBy: "inst-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(2), h.store.stored("o1").Version)

	// 终态不接受事件
	h.seedOrder("o2", domain.StatusCollected, 1)
	_, err = h.svc.AddOrderEvent(context.Background(), &AddOrderEventRequest{
		OrderID: "o2", ExpectedVersion: 1, EventType: "SITE_NOTE", CreatedBy: "inst-1",
	})
	assert.Equal(t, domain.CodeInvalidStatus, domain.CodeOf(err))
}

func TestBulkUpdateStatus_PartialFailure(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusReleased, 1)
	h.seedOrder("o2", domain.StatusUnassigned, 1) // UNASSIGNED→DISPATCHED 不在表里
	h.seedOrder("o3", domain.StatusReleased, 1)

	result, err := h.svc.BulkUpdateStatus(context.Background(), &BulkStatusRequest{
		OrderIDs:     []string{"o1", "o2", "o3"},
		TargetStatus: domain.StatusDispatched,
		ChangedBy:    "dispatcher",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	require.Len(t, result.Items, 3)
	assert.True(t, result.Items[0].Success)
	assert.False(t, result.Items[1].Success)
	assert.Equal(t, domain.CodeInvalidTransition, result.Items[1].Error)
	assert.True(t, result.Items[2].Success)
}
