package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/betbot/tradecard/clob/types"
)

// FillPreview 按订单簿深度估算的成交预览（界面上的成本估计行）。
type FillPreview struct {
	Contracts decimal.Decimal // 预计能成交的合约数
	AvgPrice  decimal.Decimal // 预计平均成交价
	UsedUSD   decimal.Decimal // 预计实际使用（买）或获得（卖）的 USD
}

// EstimateFill 沿订单簿逐层扫掠，估算 amountUSD 能换到多少合约。
//
// 只是展示用的估计：提交与否仍由限价决定，实际成交可能更好或不足额。
func EstimateFill(book *types.OrderBookSummary, side types.Side, amountUSD decimal.Decimal) FillPreview {
	var preview FillPreview
	if book == nil || amountUSD.Sign() <= 0 {
		return preview
	}

	levels := sweepLevels(book, side)
	if len(levels) == 0 {
		return preview
	}

	remaining := amountUSD
	totalCost := decimal.Zero
	for _, lvl := range levels {
		levelValue := lvl.price.Mul(lvl.size)
		if levelValue.LessThanOrEqual(remaining) {
			// 整层吃掉
			preview.Contracts = preview.Contracts.Add(lvl.size)
			totalCost = totalCost.Add(levelValue)
			remaining = remaining.Sub(levelValue)
		} else {
			// 部分吃掉
			fillSize := remaining.Div(lvl.price)
			preview.Contracts = preview.Contracts.Add(fillSize)
			totalCost = totalCost.Add(remaining)
			remaining = decimal.Zero
		}
		if remaining.Sign() <= 0 {
			break
		}
	}

	if preview.Contracts.Sign() > 0 {
		preview.AvgPrice = totalCost.Div(preview.Contracts).Round(6)
	}
	preview.UsedUSD = amountUSD.Sub(remaining)
	return preview
}

type bookLevel struct {
	price decimal.Decimal
	size  decimal.Decimal
}

// sweepLevels 取对手方向的价格层，按成交优先级排序：
// 买入吃 asks（价格从低到高），卖出吃 bids（价格从高到低）。
// 上游返回的排序不保证，这里显式排。
func sweepLevels(book *types.OrderBookSummary, side types.Side) []bookLevel {
	var raw []types.OrderSummary
	if side == types.SideBuy {
		raw = book.Asks
	} else {
		raw = book.Bids
	}

	levels := make([]bookLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil || price.Sign() <= 0 {
			continue
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil || size.Sign() <= 0 {
			continue
		}
		levels = append(levels, bookLevel{price: price, size: size})
	}

	sort.Slice(levels, func(i, j int) bool {
		if side == types.SideBuy {
			return levels[i].price.LessThan(levels[j].price)
		}
		return levels[i].price.GreaterThan(levels[j].price)
	})
	return levels
}
