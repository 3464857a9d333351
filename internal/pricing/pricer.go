// Package pricing 把盘口、方向和滑点容忍合成为可提交的限价单快照。
//
// 设计上故意提交一个比对手价“更差”的限价：滑点容忍度抬高（买）或压低
// （卖）限价来提高可成交概率，同时把最坏可接受价格限定住；实际成交仍
// 可能拿到更好的价格。
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betbot/tradecard/clob/types"
	"github.com/betbot/tradecard/internal/domain"
	"github.com/betbot/tradecard/internal/sizing"
)

// 下单前的本地校验错误（不会发往网络，用户修改输入后可直接重试）
var (
	ErrNoQuote          = fmt.Errorf("no usable quote for instrument")
	ErrBelowMinimum     = fmt.Errorf("order amount below minimum notional")
	ErrNoValidContracts = fmt.Errorf("order amount invalid: no tick-exact contract count")
)

// Finalize 在用户确认瞬间冻结订单。
//
// 返回的 FinalizedOrder 是不可变快照：之后盘口继续刷新也不会改变实际
// 发出的价格与数量。
func Finalize(quote *domain.Quote, intent *domain.OrderIntent, minUsd decimal.Decimal) (*domain.FinalizedOrder, error) {
	touch := quote.Touch(intent.Side)
	if touch == nil || touch.Sign() <= 0 {
		return nil, ErrNoQuote
	}

	isBuy := intent.Side == types.SideBuy
	buffered := sizing.BufferPrice(*touch, intent.SlippagePercent, isBuy)

	// 限价 = 缓冲价向下取整到 tick（绝不向上，见 sizing.RoundPriceToTick）
	limit := sizing.RoundPriceToTick(buffered, quote.TickSize)
	if limit.Sign() <= 0 {
		return nil, ErrNoQuote
	}

	minContracts := minContractsFor(intent, *touch, limit, minUsd)

	desired, err := desiredContracts(intent, limit)
	if err != nil {
		return nil, err
	}
	if desired.LessThan(minContracts) {
		return nil, fmt.Errorf("%w: need >= %s contracts (~$%s)",
			ErrBelowMinimum, minContracts, sizing.EstimatedCost(limit, minContracts))
	}

	contracts, ok := sizing.FinalizeContracts(desired, minContracts, limit)
	if !ok {
		return nil, ErrNoValidContracts
	}

	return &domain.FinalizedOrder{
		LimitPrice:       limit,
		Contracts:        contracts,
		EstimatedMaxCost: sizing.EstimatedCost(limit, contracts),
	}, nil
}

// minContractsFor 计算最小合约数。
//
// 买入按对手价+滑点缓冲（与实际限价同向）；卖出的缓冲方向是压低价格，
// 名义金额校验必须用实际提交的限价，否则会低估门槛。
func minContractsFor(intent *domain.OrderIntent, touch, limit, minUsd decimal.Decimal) decimal.Decimal {
	if intent.Side == types.SideBuy {
		return sizing.MinContractsForFloor(touch, intent.SlippagePercent, minUsd)
	}
	return sizing.MinContractsForFloor(limit, decimal.Zero, minUsd)
}

func desiredContracts(intent *domain.OrderIntent, limit decimal.Decimal) (decimal.Decimal, error) {
	if intent.InputMode == domain.InputModeContracts {
		return intent.RawAmount, nil
	}
	contracts, ok := sizing.UsdToContracts(intent.RawAmount, limit)
	if !ok {
		return decimal.Zero, ErrNoQuote
	}
	return contracts, nil
}
