package domain

// Status 定义了安装/拆卸工单的生命周期状态。
type Status string

const (
	StatusUnassigned    Status = "UNASSIGNED"     // 已录入，未指派装机员
	StatusAssigned      Status = "ASSIGNED"       // 已指派
	StatusConfirmed     Status = "CONFIRMED"      // 装机员已确认接单
	StatusReleased      Status = "RELEASED"       // 当日放行，待出发
	StatusDispatched    Status = "DISPATCHED"     // 已出发/到场
	StatusCompleted     Status = "COMPLETED"      // 施工完成
	StatusPartial       Status = "PARTIAL"        // 部分完成
	StatusPostponed     Status = "POSTPONED"      // 客户改期
	StatusAbsent        Status = "ABSENT"         // 上门无人
	StatusRequestCancel Status = "REQUEST_CANCEL" // 客户发起取消申请
	StatusCancelled     Status = "CANCELLED"      // 已取消
	StatusCollected     Status = "COLLECTED"      // 废旧件已回收，流程闭环
)

// transitions 是唯一权威的流转表：有向、无隐式边。
// 注意 REQUEST_CANCEL 在表里是终态——部分调用方期望它能到
// {CANCELLED, DISPATCHED}，与表不一致，在产品澄清前以表为准。
var transitions = map[Status][]Status{
	StatusUnassigned:    {StatusAssigned},
	StatusAssigned:      {StatusConfirmed, StatusUnassigned},
	StatusConfirmed:     {StatusReleased, StatusAssigned},
	StatusReleased:      {StatusDispatched, StatusConfirmed},
	StatusDispatched:    {StatusCompleted, StatusPartial, StatusPostponed, StatusAbsent, StatusCancelled},
	StatusPostponed:     {StatusDispatched, StatusAbsent, StatusCancelled},
	StatusAbsent:        {StatusDispatched, StatusPostponed, StatusCancelled},
	StatusCompleted:     {StatusCollected},
	StatusPartial:       {StatusCompleted, StatusCollected},
	StatusCollected:     {},
	StatusCancelled:     {},
	StatusRequestCancel: {},
}

// CanTransition 只查表，不看守卫。
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AvailableTransitions 返回表中声明的出边（拷贝，调用方可随意改）。
func AvailableTransitions(from Status) []Status {
	next := transitions[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// IsTerminal 表示该状态没有任何出边。
func IsTerminal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// IsKnownStatus 校验字符串是否是合法状态值。
func IsKnownStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CancellableStatuses 是允许发起取消的状态集合。
var CancellableStatuses = map[Status]bool{
	StatusUnassigned: true,
	StatusAssigned:   true,
	StatusConfirmed:  true,
	StatusReleased:   true,
	StatusDispatched: true,
	StatusPostponed:  true,
	StatusAbsent:     true,
}

// RevertTargetForbidden 是撤销取消时不允许指定的目标状态。
var RevertTargetForbidden = map[Status]bool{
	StatusCancelled: true,
	StatusCompleted: true,
	StatusPartial:   true,
	StatusCollected: true,
}

// EventEligibleStatuses 是允许追加现场事件的状态集合。
var EventEligibleStatuses = map[Status]bool{
	StatusAssigned:   true,
	StatusConfirmed:  true,
	StatusReleased:   true,
	StatusDispatched: true,
	StatusPostponed:  true,
	StatusAbsent:     true,
	StatusPartial:    true,
}
