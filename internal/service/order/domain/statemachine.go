package domain

import (
	"fmt"
	"time"
)

// TransitionContext 是守卫判定需要的请求上下文。
// 表和守卫都是静态数据，判定本身无 I/O。
type TransitionContext struct {
	InstallerID       string
	AppointmentDate   time.Time
	Now               time.Time // 由编排层从 Clock 注入
	SerialsCaptured   bool
	ReasonCode        string
	RetryCount        int
	WastePickupLogged bool
}

// maxAbsenceRetries：DISPATCHED→ABSENT 最多允许第 0/1/2 次，第 3 次起拒绝。
const maxAbsenceRetries = 3

// 撤销时限：完成后 5 天内可撤销；改约日期与原承诺日期差不超过 15 天。
const (
	revertWindowDays      = 5
	appointmentWindowDays = 15
)

type guardFunc func(ctx TransitionContext) *Error

// guards 按 (from,to) 精确注册；未注册的表内边无条件放行。
var guards = map[[2]Status]guardFunc{
	{StatusUnassigned, StatusAssigned}: func(ctx TransitionContext) *Error {
		if ctx.InstallerID == "" {
			return guardFailed(StatusUnassigned, StatusAssigned, "an installer is required to assign the order")
		}
		return nil
	},
	{StatusConfirmed, StatusReleased}: func(ctx TransitionContext) *Error {
		// 严格按自然日相等判定，不是“当日或之前”。
		if !sameCalendarDay(ctx.AppointmentDate, ctx.Now) {
			return guardFailed(StatusConfirmed, StatusReleased, "order can only be released on its appointment day")
		}
		return nil
	},
	{StatusDispatched, StatusCompleted}: func(ctx TransitionContext) *Error {
		if !ctx.SerialsCaptured {
			return guardFailed(StatusDispatched, StatusCompleted, "product serials must be captured before completion")
		}
		return nil
	},
	{StatusDispatched, StatusPostponed}: func(ctx TransitionContext) *Error {
		if ctx.ReasonCode == "" {
			return guardFailed(StatusDispatched, StatusPostponed, "a reason code is required to postpone")
		}
		return nil
	},
	{StatusDispatched, StatusAbsent}: func(ctx TransitionContext) *Error {
		if ctx.RetryCount >= maxAbsenceRetries {
			return guardFailed(StatusDispatched, StatusAbsent, fmt.Sprintf("absence retry limit of %d reached", maxAbsenceRetries))
		}
		return nil
	},
	{StatusDispatched, StatusCancelled}: func(ctx TransitionContext) *Error {
		if ctx.ReasonCode == "" {
			return guardFailed(StatusDispatched, StatusCancelled, "a reason code is required to cancel on site")
		}
		return nil
	},
	{StatusCompleted, StatusCollected}: func(ctx TransitionContext) *Error {
		if !ctx.WastePickupLogged {
			return guardFailed(StatusCompleted, StatusCollected, "waste pickup must be logged before collection")
		}
		return nil
	},
}

// ValidateTransition 先查表再跑守卫，任一不过即拒绝。返回 nil 表示放行。
func ValidateTransition(from, to Status, ctx TransitionContext) *Error {
	if !CanTransition(from, to) {
		return NewValidation(CodeInvalidTransition,
			fmt.Sprintf("transition %s -> %s is not allowed", from, to),
			map[string]interface{}{"from": from, "to": to, "available": AvailableTransitions(from)})
	}
	if guard, ok := guards[[2]Status{from, to}]; ok {
		if err := guard(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CanRevert 判定已完成订单能否撤销取消：
// 先查完成时限（≤5 天），不过直接短路；
// 若调用方带了新的预约日期，再查它与原承诺日期的间隔（≤15 天）。
// 两个窗口都按毫秒差整除一天向下取整，第 5/15 天本身算通过。
func CanRevert(completedAt, originalPromisedDate time.Time, newAppointmentDate *time.Time, now time.Time) *Error {
	sinceCompleted := wholeDays(completedAt, now)
	if sinceCompleted > revertWindowDays {
		return NewValidation(CodeRevertWindowExceeded,
			fmt.Sprintf("revert window of %d days exceeded", revertWindowDays),
			map[string]interface{}{"daysSinceCompleted": sinceCompleted, "limit": revertWindowDays})
	}
	if newAppointmentDate != nil {
		gap := wholeDays(originalPromisedDate, *newAppointmentDate)
		if gap > appointmentWindowDays {
			return NewValidation(CodeRevertWindowExceeded,
				fmt.Sprintf("appointment window of %d days exceeded", appointmentWindowDays),
				map[string]interface{}{"daysFromPromised": gap, "limit": appointmentWindowDays})
		}
	}
	return nil
}

func guardFailed(from, to Status, reason string) *Error {
	return NewValidation(CodeInvalidTransition,
		fmt.Sprintf("transition %s -> %s rejected: %s", from, to, reason),
		map[string]interface{}{"from": from, "to": to, "reason": reason})
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func wholeDays(from, to time.Time) int64 {
	return (to.UnixMilli() - from.UnixMilli()) / (24 * time.Hour).Milliseconds()
}
