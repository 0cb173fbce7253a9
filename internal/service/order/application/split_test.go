package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/service/order/domain"
)

func TestSplitOrder_HappyPath(t *testing.T) {
	h := newHarness()
	parent := h.seedOrder("o1", domain.StatusConfirmed, 3)

	result, err := h.svc.SplitOrder(context.Background(), &SplitOrderRequest{
		OrderID:         "o1",
		ExpectedVersion: 3,
		Lines: []SplitLineRequest{{
			LineID: "o1-l1",
			Assignments: []SplitAssignment{
				{InstallerID: "inst-1", Quantity: 1},
				{Quantity: 1}, // 未指派的子单
			},
		}},
		RequestedBy: "coordinator-a",
	})
	require.NoError(t, err)
	require.Len(t, result.ChildOrderIDs, 2)

	// 父单被取消且版本 +1
	stored := h.store.stored("o1")
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.Equal(t, int64(4), stored.Version)

	// 子单继承客户/网点/预约字段；带 installer 的直接 ASSIGNED
	assigned, unassigned := 0, 0
	for _, childID := range result.ChildOrderIDs {
		child := h.store.stored(childID)
		require.NotNil(t, child)
		assert.Equal(t, parent.BranchID, child.BranchID)
		assert.Equal(t, parent.PartnerID, child.PartnerID)
		assert.Equal(t, parent.CustomerName, child.CustomerName)
		assert.Equal(t, parent.CustomerAddress, child.CustomerAddress)
		assert.True(t, parent.AppointmentDate.Equal(child.AppointmentDate))
		assert.Equal(t, int64(1), child.Version)
		require.Len(t, child.Lines, 1)
		assert.Equal(t, "AC-900", child.Lines[0].ProductSKU)
		assert.Equal(t, 1, child.Lines[0].Quantity)
		switch child.Status {
		case domain.StatusAssigned:
			assigned++
			assert.Equal(t, "inst-1", child.InstallerID)
		case domain.StatusUnassigned:
			unassigned++
			assert.Empty(t, child.InstallerID)
		default:
			t.Fatalf("unexpected child status %s", child.Status)
		}
	}
	assert.Equal(t, 1, assigned)
	assert.Equal(t, 1, unassigned)

	// 每个子单一条拆分关联
	require.Len(t, h.store.splits, 2)
	for _, link := range h.store.splits {
		assert.Equal(t, "o1", link.ParentOrderID)
		assert.Equal(t, "o1-l1", link.LineID)
		assert.Equal(t, 1, link.Quantity)
	}
}

func TestSplitOrder_QuantityMismatchCreatesNothing(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusConfirmed, 3)

	for _, assignments := range [][]SplitAssignment{
		{{InstallerID: "inst-1", Quantity: 1}},                                       // 少拆
		{{InstallerID: "inst-1", Quantity: 2}, {InstallerID: "inst-2", Quantity: 1}}, // 超拆
	} {
		_, err := h.svc.SplitOrder(context.Background(), &SplitOrderRequest{
			OrderID:         "o1",
			ExpectedVersion: 3,
			Lines:           []SplitLineRequest{{LineID: "o1-l1", Assignments: assignments}},
			RequestedBy:     "coordinator-a",
		})
		require.Error(t, err)
		assert.Equal(t, domain.CodeSplitQuantity, domain.CodeOf(err))
	}

	// 校验失败前不得创建任何子单或关联
	assert.Len(t, h.store.orders, 1)
	assert.Empty(t, h.store.splits)
	assert.Equal(t, domain.StatusConfirmed, h.store.stored("o1").Status)
	assert.Equal(t, int64(3), h.store.stored("o1").Version)
}

func TestSplitOrder_Guards(t *testing.T) {
	h := newHarness()

	// 状态不允许拆
	h.seedOrder("o1", domain.StatusDispatched, 1)
	_, err := h.svc.SplitOrder(context.Background(), &SplitOrderRequest{
		OrderID: "o1", ExpectedVersion: 1,
		Lines:       []SplitLineRequest{{LineID: "o1-l1", Assignments: []SplitAssignment{{Quantity: 2}}}},
		RequestedBy: "c",
	})
	assert.Equal(t, domain.CodeInvalidStatus, domain.CodeOf(err))

	// 版本不匹配
	h.seedOrder("o2", domain.StatusConfirmed, 7)
	_, err = h.svc.SplitOrder(context.Background(), &SplitOrderRequest{
		OrderID: "o2", ExpectedVersion: 6,
		Lines:       []SplitLineRequest{{LineID: "o2-l1", Assignments: []SplitAssignment{{Quantity: 2}}}},
		RequestedBy: "c",
	})
	assert.Equal(t, domain.CodeVersionMismatch, domain.CodeOf(err))

	// 未知行
	h.seedOrder("o3", domain.StatusConfirmed, 1)
	_, err = h.svc.SplitOrder(context.Background(), &SplitOrderRequest{
		OrderID: "o3", ExpectedVersion: 1,
		Lines:       []SplitLineRequest{{LineID: "ghost", Assignments: []SplitAssignment{{Quantity: 2}}}},
		RequestedBy: "c",
	})
	assert.Equal(t, domain.CodeLineNotFound, domain.CodeOf(err))
}

func TestSplitOrder_EmptyRequestRejected(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusConfirmed, 3)

	// 不带任何行的拆单请求：不能把父单取消掉
	_, err := h.svc.SplitOrder(context.Background(), &SplitOrderRequest{
		OrderID: "o1", ExpectedVersion: 3, RequestedBy: "cs-1",
	})
	assert.Equal(t, domain.CodeSplitQuantity, domain.CodeOf(err))

	stored := h.store.stored("o1")
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, int64(3), stored.Version)
	assert.Len(t, h.store.orders, 1)
	assert.Empty(t, h.store.splits)
	assert.Empty(t, h.store.cancellations)
}

func TestSplitOrder_UncoveredLineRejected(t *testing.T) {
	h := newHarness()
	parent := h.seedOrder("o1", domain.StatusConfirmed, 3)
	parent.Lines = append(parent.Lines, domain.OrderLine{
		ID: "o1-l2", OrderID: "o1", ProductSKU: "WM-500", Quantity: 1,
	})
	h.store.seed(parent)

	// 只拆第一行：第二行没人承接，父单取消后这一行会凭空消失
	_, err := h.svc.SplitOrder(context.Background(), &SplitOrderRequest{
		OrderID: "o1", ExpectedVersion: 3,
		Lines: []SplitLineRequest{
			{LineID: "o1-l1", Assignments: []SplitAssignment{{InstallerID: "inst-1", Quantity: 2}}},
		},
		RequestedBy: "cs-1",
	})
	assert.Equal(t, domain.CodeSplitQuantity, domain.CodeOf(err))

	stored := h.store.stored("o1")
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, int64(3), stored.Version)
	assert.Len(t, stored.Lines, 2)
	assert.Len(t, h.store.orders, 1)
	assert.Empty(t, h.store.splits)
}

func TestSplitOrder_DuplicateLineRejected(t *testing.T) {
	h := newHarness()
	h.seedOrder("o1", domain.StatusConfirmed, 3)

	// 同一行出现两次会让数量校验互相掩盖，直接拒绝
	_, err := h.svc.SplitOrder(context.Background(), &SplitOrderRequest{
		OrderID: "o1", ExpectedVersion: 3,
		Lines: []SplitLineRequest{
			{LineID: "o1-l1", Assignments: []SplitAssignment{{Quantity: 2}}},
			{LineID: "o1-l1", Assignments: []SplitAssignment{{Quantity: 2}}},
		},
		RequestedBy: "cs-1",
	})
	assert.Equal(t, domain.CodeSplitQuantity, domain.CodeOf(err))
	assert.Len(t, h.store.orders, 1)
	assert.Empty(t, h.store.splits)
}
