package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/betbot/tradecard/clob/types"
)

// PostOrder 提交订单。
// 保留原始响应体到 OrderResponse.Raw：上游订单 ID 字段名不稳定，
// 错误分类也需要完整载荷。
func (c *Client) PostOrder(ctx context.Context, req *types.PlaceOrderRequest) (*types.OrderResponse, error) {
	if err := c.rateLimiter.Wait(ctx, "order:post"); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.post(ctx, EndpointPostOrder, req)
	if err != nil {
		return nil, fmt.Errorf("提交订单失败: %w", err)
	}

	var result types.OrderResponse
	// 非 2xx 的错误载荷也要解析：拒单原因在响应体里
	_ = json.Unmarshal(resp.Body(), &result)
	result.Raw = json.RawMessage(resp.Body())

	if !resp.IsSuccess() && result.ErrorMsg == "" {
		result.ErrorMsg = fmt.Sprintf("http %d: %s", resp.StatusCode(), resp.String())
	}
	if !resp.IsSuccess() {
		result.Success = false
	}
	return &result, nil
}

// GetOrder 查询单笔订单状态。订单不存在返回 (nil, nil)。
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error) {
	if err := c.rateLimiter.Wait(ctx, "order:get"); err != nil {
		return nil, err
	}

	endpoint := strings.Replace(EndpointGetOrder, "{orderID}", orderID, 1)
	resp, err := c.httpClient.get(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}

	var order types.OpenOrder
	if err := parseResponse(resp, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder 撤销订单。
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*types.CancelResponse, error) {
	if err := c.rateLimiter.Wait(ctx, "order:delete"); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.delete(ctx, EndpointCancelOrder, map[string]string{
		"orderID": orderID,
	})
	if err != nil {
		return nil, fmt.Errorf("撤销订单失败: %w", err)
	}

	var result types.CancelResponse
	_ = json.Unmarshal(resp.Body(), &result)
	result.Raw = json.RawMessage(resp.Body())

	if !resp.IsSuccess() && result.ErrorMsg == "" {
		result.ErrorMsg = fmt.Sprintf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// RefreshOrders 通知外围订单列表刷新（拉一次未结订单并丢弃结果）。
// fire-and-forget：失败由调用方记日志，不升级。
func (c *Client) RefreshOrders(ctx context.Context) error {
	if err := c.rateLimiter.Wait(ctx, "order:get"); err != nil {
		return err
	}

	resp, err := c.httpClient.get(ctx, EndpointGetOpenOrders, nil)
	if err != nil {
		return fmt.Errorf("刷新订单列表失败: %w", err)
	}
	return parseResponse(resp, nil)
}
