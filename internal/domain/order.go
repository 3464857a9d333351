package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/tradecard/clob/types"
)

// InputMode 用户输入口径
type InputMode string

const (
	InputModeUSD       InputMode = "usd"       // 按美元金额输入
	InputModeContracts InputMode = "contracts" // 按合约数量输入
)

// Quote 盘口快照。
//
// 由 QuoteSource 整体替换，绝不原地修改；BestBid/BestAsk 缺失（单边或无
// 订单簿市场）时为 nil，此时 LastTrade 作为备选参考价。
type Quote struct {
	BestBid    *decimal.Decimal
	BestAsk    *decimal.Decimal
	LastTrade  *decimal.Decimal
	TickSize   decimal.Decimal
	ObservedAt time.Time
}

// Touch 返回给定方向的对手价（买看 ask，卖看 bid）。
// 盘口缺失时退回最新成交价；两者都没有返回 nil。
func (q *Quote) Touch(side types.Side) *decimal.Decimal {
	if q == nil {
		return nil
	}
	if side == types.SideBuy {
		if q.BestAsk != nil {
			return q.BestAsk
		}
		return q.LastTrade
	}
	if q.BestBid != nil {
		return q.BestBid
	}
	return q.LastTrade
}

// OrderIntent 用户确认执行时创建的下单意图。
//
// 冻结（Freeze）之后不可变：价格/数量在确认瞬间定格，之后的盘口刷新
// 不会改变实际发出的订单。
type OrderIntent struct {
	IntentID        string          // 意图唯一 ID
	TokenID         string          // 资产 token 引用
	ConditionID     string          // condition 引用（token 不可用时解析用）
	Side            types.Side      // 订单方向
	InputMode       InputMode       // 输入口径
	RawAmount       decimal.Decimal // 用户输入的原始数量（USD 或合约数）
	SlippagePercent decimal.Decimal // 滑点容忍（百分比）
	Behavior        types.OrderType // FAK / GTC
	CreatedAt       time.Time
}

// FinalizedOrder 冻结后的订单快照（由 OrderIntent + Quote 确定性导出）。
//
// 不变量：
//   - LimitPrice 是 tick size 的整数倍
//   - LimitPrice × Contracts 的 USD 金额不超过 2 位小数
//   - Contracts >= 最小名义金额对应的合约数
type FinalizedOrder struct {
	LimitPrice       decimal.Decimal
	Contracts        decimal.Decimal
	EstimatedMaxCost decimal.Decimal
}

// OrderRecord 在途订单记录。
//
// 提交成功时创建；只由状态轮询循环修改；用户关闭终态订单或重试时重置。
type OrderRecord struct {
	OrderID         string
	Phase           StatusPhase
	FilledContracts decimal.Decimal
	TotalContracts  decimal.Decimal
	FillPrice       decimal.Decimal
	SubmittedAt     time.Time
	LastPolledAt    time.Time
}

// ApplyPhase 尝试迁移到新阶段。终态被锁定：已是终态时返回 false，
// 迟到的轮询结果不会覆盖。
func (r *OrderRecord) ApplyPhase(next StatusPhase) bool {
	if r.Phase.IsTerminal() {
		return false
	}
	r.Phase = next
	return true
}
