// Package ports 定义执行引擎与外部系统之间的接口边界。
//
// 引擎只依赖这些接口，网络实现放在 clob/client；测试用假实现替换。
package ports

import (
	"context"

	"github.com/betbot/tradecard/clob/types"
)

// TradingClient 交易所只读/下单接口。
//
// 所有方法接受 ctx；轮询循环用 ctx 取消来放弃过期请求。
type TradingClient interface {
	// GetOrderBook 获取订单簿快照。无订单簿市场返回空 Bids/Asks，不报错。
	GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error)

	// GetMarket 按 condition ID 获取市场元数据（tick size、token 列表）。
	GetMarket(ctx context.Context, conditionID string) (*types.Market, error)

	// GetLastTradePrice 获取最新成交价（无订单簿市场的备选参考价）。
	GetLastTradePrice(ctx context.Context, tokenID string) (*types.MarketPrice, error)

	// PostOrder 提交订单。返回的 OrderResponse.Raw 保留原始响应体，
	// 调用方自行提取订单 ID 与错误细节。
	PostOrder(ctx context.Context, req *types.PlaceOrderRequest) (*types.OrderResponse, error)

	// GetOrder 查询单笔订单状态。订单不存在时返回 (nil, nil)。
	GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error)

	// CancelOrder 撤销订单。订单已处于终态不算错误。
	CancelOrder(ctx context.Context, orderID string) (*types.CancelResponse, error)

	// RefreshOrders 通知外围订单列表刷新。fire-and-forget，失败只记日志。
	RefreshOrders(ctx context.Context) error
}
