package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/betbot/tradecard/clob/types"
)

// GetOrderBook 获取订单簿。
// 无订单簿市场返回空的 Bids/Asks，不报错。
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error) {
	if err := c.rateLimiter.Wait(ctx, "book:get"); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.get(ctx, EndpointGetOrderBook, map[string]string{
		"token_id": tokenID,
	})
	if err != nil {
		return nil, fmt.Errorf("获取订单簿失败: %w", err)
	}

	var book types.OrderBookSummary
	if err := parseResponse(resp, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// GetMarket 获取市场元数据（tick size、token 列表）
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*types.Market, error) {
	if err := c.rateLimiter.Wait(ctx, "market:get"); err != nil {
		return nil, err
	}

	endpoint := strings.Replace(EndpointGetMarket, "{conditionID}", conditionID, 1)
	resp, err := c.httpClient.get(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("获取市场信息失败: %w", err)
	}

	var market types.Market
	if err := parseResponse(resp, &market); err != nil {
		return nil, err
	}
	return &market, nil
}

// GetLastTradePrice 获取最新成交价
func (c *Client) GetLastTradePrice(ctx context.Context, tokenID string) (*types.MarketPrice, error) {
	if err := c.rateLimiter.Wait(ctx, "price:get"); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.get(ctx, EndpointGetLastTradePrice, map[string]string{
		"token_id": tokenID,
	})
	if err != nil {
		return nil, fmt.Errorf("获取最新成交价失败: %w", err)
	}

	var price types.MarketPrice
	if err := parseResponse(resp, &price); err != nil {
		return nil, err
	}
	return &price, nil
}
