// Package sizing 提供下单数量与价格的纯计算函数。
//
// 所有函数无 IO、完全确定性；金额使用 decimal 避免浮点误差
// （交易所对价格 tick 与 USD 金额精度有硬性要求）。
package sizing

import (
	"github.com/shopspring/decimal"
)

var (
	// contractStep 合约数量的粗粒度步长（0.1）。
	// 最小名义金额按此步长向上取整，避免价格波动后粉尘订单跌回门槛以下。
	contractStep = decimal.NewFromFloat(0.1)

	// costPrecision USD 金额的最大小数位（交易所约束：2 位）
	costPrecision int32 = 2

	hundred = decimal.NewFromInt(100)
)

// RoundPriceToTick 将价格向下取整到 tick 的整数倍。
//
// 永远不向上取整：向上会把买单限价推高到用户容忍之外。
// tick <= 0 时原样返回。
func RoundPriceToTick(price, tick decimal.Decimal) decimal.Decimal {
	if tick.Sign() <= 0 {
		return price
	}
	return price.Div(tick).Floor().Mul(tick)
}

// UsdToContracts 按限价把 USD 金额换算为合约数（整数向下取整）。
// limitPrice <= 0 时返回 false。
func UsdToContracts(usd, limitPrice decimal.Decimal) (decimal.Decimal, bool) {
	if limitPrice.Sign() <= 0 {
		return decimal.Zero, false
	}
	return usd.Div(limitPrice).Floor(), true
}

// BufferPrice 计算滑点缓冲后的参考价。
//
// 买入：愿意最多支付 price × (1 + s/100)；
// 卖出：愿意最低接受 price × (1 - s/100)。
func BufferPrice(price, slippagePercent decimal.Decimal, isBuy bool) decimal.Decimal {
	factor := slippagePercent.Div(hundred)
	if isBuy {
		return price.Mul(decimal.NewFromInt(1).Add(factor))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(factor))
}

// MinContractsForFloor 计算满足最小名义金额的最小合约数。
//
// 以滑点缓冲后的价格计算（订单实际按缓冲价提交，交易所按限价校验名义
// 金额），并向上取整到 0.1 步长。
func MinContractsForFloor(limitPrice, slippagePercent, minUsd decimal.Decimal) decimal.Decimal {
	buffered := BufferPrice(limitPrice, slippagePercent, true)
	if buffered.Sign() <= 0 {
		return decimal.Zero
	}
	raw := minUsd.Div(buffered)
	return raw.Div(contractStep).Ceil().Mul(contractStep)
}

// FinalizeContracts 确定最终下单合约数。
//
// 取 desired/minimum 中较大者，然后在步长 {0.01, 0.1, 1} 上向上微调，
// 直到 limitPrice × contracts 的 USD 金额不超过 2 位小数（交易所约束）。
// 每个步长最多尝试 maxStepAdjust 次；全部失败返回 false，调用方必须
// 作为“订单金额无效”上报，绝不能静默提交错误数量。
//
// 对 desired 单调不减。
func FinalizeContracts(desired, minimum, limitPrice decimal.Decimal) (decimal.Decimal, bool) {
	const maxStepAdjust = 10

	if limitPrice.Sign() <= 0 {
		return decimal.Zero, false
	}

	contracts := desired
	if minimum.GreaterThan(contracts) {
		contracts = minimum
	}
	if contracts.Sign() <= 0 {
		return decimal.Zero, false
	}

	steps := []decimal.Decimal{
		decimal.NewFromFloat(0.01),
		decimal.NewFromFloat(0.1),
		decimal.NewFromInt(1),
	}
	for _, step := range steps {
		base := contracts.Div(step).Ceil().Mul(step)
		for k := 0; k < maxStepAdjust; k++ {
			cand := base.Add(step.Mul(decimal.NewFromInt(int64(k))))
			if costRepresentable(limitPrice, cand) {
				return cand, true
			}
		}
	}
	return decimal.Zero, false
}

// costRepresentable 检查 price × contracts 是否能用 ≤2 位小数的 USD 表达。
func costRepresentable(price, contracts decimal.Decimal) bool {
	cost := price.Mul(contracts)
	return cost.Equal(cost.Truncate(costPrecision))
}

// EstimatedCost 订单的最坏成本估计（限价 × 合约数，截断到 2 位小数）。
func EstimatedCost(limitPrice, contracts decimal.Decimal) decimal.Decimal {
	return limitPrice.Mul(contracts).Truncate(costPrecision)
}
