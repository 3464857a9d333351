package domain

// StatusPhase 订单生命周期阶段（封闭集合）。
//
// 流转：submitted → pending → {processing, open} → {partial | filled |
// canceled | expired | rejected | timed_out}。
// 进入终态后不再接受任何迁移（幂等：取消之后迟到的轮询响应不能“复活”订单）。
type StatusPhase string

const (
	PhaseSubmitted  StatusPhase = "submitted"  // 已提交，等待交易所确认
	PhasePending    StatusPhase = "pending"    // 提交已确认，撮合前
	PhaseProcessing StatusPhase = "processing" // 交易所处理中（delayed 等）
	PhaseOpen       StatusPhase = "open"       // 挂在订单簿上
	PhasePartial    StatusPhase = "partial"    // 部分成交
	PhaseFilled     StatusPhase = "filled"     // 全部成交（终态）
	PhaseCanceled   StatusPhase = "canceled"   // 已取消（终态）
	PhaseExpired    StatusPhase = "expired"    // 已过期（终态）
	PhaseRejected   StatusPhase = "rejected"   // 被拒绝（终态）
	PhaseTimedOut   StatusPhase = "timed_out"  // 在途超时（终态，触发自动撤单）
)

// IsTerminal 是否为终态
func (p StatusPhase) IsTerminal() bool {
	switch p {
	case PhaseFilled, PhaseCanceled, PhaseExpired, PhaseRejected, PhaseTimedOut:
		return true
	}
	return false
}
