package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradecard/clob/types"
	"github.com/betbot/tradecard/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func buyIntent(amount, slippage string) *domain.OrderIntent {
	return &domain.OrderIntent{
		IntentID:        "intent-1",
		TokenID:         "token-1",
		Side:            types.SideBuy,
		InputMode:       domain.InputModeUSD,
		RawAmount:       dec(amount),
		SlippagePercent: dec(slippage),
		Behavior:        types.OrderTypeFAK,
		CreatedAt:       time.Now(),
	}
}

// 场景：ask $0.50、tick $0.01、输入 $100、滑点 2%
// → 缓冲价 $0.51 → 限价 $0.51 → 合约数 floor(100/0.51)=196 → 成本 $99.96
func TestFinalize_BuyWithSlippage(t *testing.T) {
	quote := &domain.Quote{
		BestBid:    decPtr("0.49"),
		BestAsk:    decPtr("0.50"),
		TickSize:   dec("0.01"),
		ObservedAt: time.Now(),
	}

	order, err := Finalize(quote, buyIntent("100", "2"), dec("1"))
	require.NoError(t, err)
	assert.True(t, order.LimitPrice.Equal(dec("0.51")), "limit=%s", order.LimitPrice)
	assert.True(t, order.Contracts.Equal(dec("196")), "contracts=%s", order.Contracts)
	assert.True(t, order.EstimatedMaxCost.Equal(dec("99.96")), "cost=%s", order.EstimatedMaxCost)
}

// 场景：限价 $0.90 下最小合约数 1.2（约 $1.08），输入 $0.50 在提交前被拒
func TestFinalize_BelowFloorRejected(t *testing.T) {
	quote := &domain.Quote{
		BestAsk:    decPtr("0.90"),
		TickSize:   dec("0.01"),
		ObservedAt: time.Now(),
	}

	_, err := Finalize(quote, buyIntent("0.50", "0"), dec("1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBelowMinimum), "err=%v", err)
}

func TestFinalize_SellUsesBidAndBuffersDown(t *testing.T) {
	quote := &domain.Quote{
		BestBid:    decPtr("0.60"),
		BestAsk:    decPtr("0.62"),
		TickSize:   dec("0.01"),
		ObservedAt: time.Now(),
	}
	intent := buyIntent("50", "5")
	intent.Side = types.SideSell

	order, err := Finalize(quote, intent, dec("1"))
	require.NoError(t, err)
	// 0.60 × 0.95 = 0.57，tick 取整后仍为 0.57
	assert.True(t, order.LimitPrice.Equal(dec("0.57")), "limit=%s", order.LimitPrice)
}

func TestFinalize_NoQuote(t *testing.T) {
	quote := &domain.Quote{TickSize: dec("0.01"), ObservedAt: time.Now()}
	_, err := Finalize(quote, buyIntent("100", "2"), dec("1"))
	assert.True(t, errors.Is(err, ErrNoQuote))
}

// 无订单簿市场退回最新成交价
func TestFinalize_LastTradeFallback(t *testing.T) {
	quote := &domain.Quote{
		LastTrade:  decPtr("0.40"),
		TickSize:   dec("0.01"),
		ObservedAt: time.Now(),
	}
	order, err := Finalize(quote, buyIntent("20", "0"), dec("1"))
	require.NoError(t, err)
	assert.True(t, order.LimitPrice.Equal(dec("0.40")), "limit=%s", order.LimitPrice)
	assert.True(t, order.Contracts.Equal(dec("50")), "contracts=%s", order.Contracts)
}

// 冻结语义：Finalize 之后盘口刷新不影响已生成的订单快照
func TestFinalize_FrozenSnapshot(t *testing.T) {
	ask := dec("0.50")
	quote := &domain.Quote{BestAsk: &ask, TickSize: dec("0.01"), ObservedAt: time.Now()}

	order, err := Finalize(quote, buyIntent("100", "2"), dec("1"))
	require.NoError(t, err)

	// 模拟并发盘口刷新（整体替换后旧快照不受影响，这里直接改指针指向的值以验证值拷贝）
	ask = dec("0.99")
	quote.BestAsk = &ask

	assert.True(t, order.LimitPrice.Equal(dec("0.51")), "limit=%s", order.LimitPrice)
	assert.True(t, order.Contracts.Equal(dec("196")))
}
