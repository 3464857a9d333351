package types

import "encoding/json"

// PlaceOrderRequest 下单请求。
//
// 订单签名由上游托管方完成，这里只传递未签名的订单参数。
type PlaceOrderRequest struct {
	TokenID   string    `json:"tokenID"`
	Price     string    `json:"price"`
	Size      string    `json:"size"`
	Side      Side      `json:"side"`
	OrderType OrderType `json:"orderType"`
}

// OrderResponse 订单响应
//
// 注意：上游返回的订单 ID 字段名不稳定（orderID / orderId / id 都出现过），
// 这里保留原始载荷，由调用方用 ExtractOrderID 提取。
type OrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	Status   string `json:"status"`

	// Raw 原始响应体（用于订单 ID 提取与错误分类）
	Raw json.RawMessage `json:"-"`
}

// OpenOrder 订单状态查询响应
type OpenOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	CreatedAt    int64  `json:"created_at"`
	OrderType    string `json:"order_type"`
}

// CancelResponse 取消订单响应
type CancelResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`

	Raw json.RawMessage `json:"-"`
}
