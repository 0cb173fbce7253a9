package domain

import "fmt"

// Kind 把生命周期引擎抛出的所有错误收敛成一个封闭集合，
// 边界层（HTTP）据此映射状态码，核心层不感知 HTTP。
type Kind int

const (
	KindValidation Kind = iota + 1 // 结构性校验失败（非法流转、守卫不过、拆单数量不符）
	KindConflict                   // 版本冲突、结算冻结、锁竞争、重复取消
	KindNotFound                   // 订单/装机员/网点/合作商/取消记录不存在
)

// 对外稳定的错误码，老客户端按字面值匹配，禁止改动。
const (
	CodeOrderNotFound        = "E2004"
	CodeInvalidTransition    = "E2001"
	CodeSettlementLocked     = "E2002"
	CodeRevertWindowExceeded = "E2003"
	CodeSyncVersionConflict  = "E2006"
	CodeVersionMismatch      = "E2017"
	CodeInvalidStatus        = "E2018"
	CodeAlreadyCancelled     = "E2019"
	CodeSplitQuantity        = "E2020"
	CodeNoCancellation       = "E2022"
	CodeInvalidRevertTarget  = "E2023"
	CodeInstallerNotFound    = "E2025"
	CodeBranchNotFound       = "E2026"
	CodePartnerNotFound      = "E2027"
	CodeAssignLockContended  = "E2028"
	CodeSyncBatchTooLarge    = "E2029"
	CodeUnknownSyncOp        = "E2030"
	CodeCompletionNotFound   = "E3001"
	CodeInvalidWasteCode     = "E3002"
	CodeLineNotFound         = "E3003"
)

// Error 是核心层唯一的错误载体：固定码 + 人读消息 + 机器可读明细。
// 冲突类错误会把服务端当前状态塞进 Details，客户端无需二次读取即可调和。
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func newError(kind Kind, code, message string, details map[string]interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Details: details}
}

func NewValidation(code, message string, details map[string]interface{}) *Error {
	return newError(KindValidation, code, message, details)
}

func NewConflict(code, message string, details map[string]interface{}) *Error {
	return newError(KindConflict, code, message, details)
}

func NewNotFound(code, message string, details map[string]interface{}) *Error {
	return newError(KindNotFound, code, message, details)
}

// NewVersionConflict 携带期望/当前版本和完整服务端状态。
// code 区分直连更新（E2017）与离线批量同步（E2006）两条路径。
func NewVersionConflict(code string, expected, current int64, serverState *Order) *Error {
	return NewConflict(code, fmt.Sprintf("version mismatch: expected %d, current %d", expected, current), map[string]interface{}{
		"expectedVersion": expected,
		"currentVersion":  current,
		"serverState":     serverState,
	})
}

// NewSettlementLocked 是结算冻结的固定错误，门禁命中时短路返回，不得绕过。
func NewSettlementLocked(orderID string) *Error {
	return NewConflict(CodeSettlementLocked, "order is in a locked settlement period", map[string]interface{}{
		"orderId": orderID,
	})
}

// AsError 在 err 属于本包封闭错误集时返回具体类型。
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// CodeOf 取错误码，非本包错误返回空串。
func CodeOf(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
